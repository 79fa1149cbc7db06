package redactor_test

import (
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"soc-log-pipeline/internal/redactor"
)

func TestRedact(t *testing.T) {
	r := redactor.New()

	tests := []struct {
		name         string
		line         string
		sanitized    string
		internal     []string
		external     []string
		macs         []string
		emails       int
		secrets      int
		uniqueIPsLen int
	}{
		{
			name:         "SSH failure with external address",
			line:         "Failed password for invalid user admin from 203.0.113.7 port 22",
			sanitized:    "Failed password for invalid user admin from [EXTERNAL_IP_0] port 22",
			internal:     []string{},
			external:     []string{"203.0.113.7"},
			macs:         []string{},
			uniqueIPsLen: 1,
		},
		{
			name:         "Internal and external indexed separately and sorted",
			line:         "conn 192.168.1.20 -> 8.8.8.8 via 10.0.0.1 and 1.1.1.1 then 192.168.1.20",
			sanitized:    "conn [INTERNAL_IP_1] -> [EXTERNAL_IP_1] via [INTERNAL_IP_0] and [EXTERNAL_IP_0] then [INTERNAL_IP_1]",
			internal:     []string{"10.0.0.1", "192.168.1.20"},
			external:     []string{"1.1.1.1", "8.8.8.8"},
			macs:         []string{},
			uniqueIPsLen: 4,
		},
		{
			name:         "MAC removed before address extraction",
			line:         "DHCPACK on 10.1.2.3 to 00:1a:2b:3c:4d:5e via eth0",
			sanitized:    "DHCPACK on [INTERNAL_IP_0] to [MAC_ADDRESS] via eth0",
			internal:     []string{"10.1.2.3"},
			external:     []string{},
			macs:         []string{"00:1a:2b:3c:4d:5e"},
			uniqueIPsLen: 1,
		},
		{
			name:      "Email replaced",
			line:      "login notice sent to alice.smith@example.com",
			sanitized: "login notice sent to [EMAIL_REDACTED]",
			internal:  []string{},
			external:  []string{},
			macs:      []string{},
			emails:    1,
		},
		{
			name:      "Password value redacted, key kept",
			line:      "db connect user=app password=hunter2 host=db",
			sanitized: "db connect user=app password=[REDACTED] host=db",
			internal:  []string{},
			external:  []string{},
			macs:      []string{},
			secrets:   1,
		},
		{
			name:      "Short flag credential redacted",
			line:      "mysql -u root -p s3cr3t mydb",
			sanitized: "mysql -u root -p [REDACTED] mydb",
			internal:  []string{},
			external:  []string{},
			macs:      []string{},
			secrets:   1,
		},
		{
			name:      "Find flags starting with -p are kept",
			line:      "find / -perm -4000 -path /proc -prune -o -print",
			sanitized: "find / -perm -4000 -path /proc -prune -o -print",
			internal:  []string{},
			external:  []string{},
			macs:      []string{},
		},
		{
			name:         "IPv6 loopback is internal",
			line:         "listener bound to ::1 and 2001:db8::5",
			sanitized:    "listener bound to [INTERNAL_IP_0] and [EXTERNAL_IP_0]",
			internal:     []string{"::1"},
			external:     []string{"2001:db8::5"},
			macs:         []string{},
			uniqueIPsLen: 2,
		},
		{
			name:      "Timestamps are not addresses",
			line:      "  Oct 19 12:30:45 host sshd[42]: session check  ",
			sanitized: "Oct 19 12:30:45 host sshd[42]: session check",
			internal:  []string{},
			external:  []string{},
			macs:      []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := r.Redact(tt.line)
			assert.Equal(t, tt.sanitized, res.Sanitized)
			assert.Equal(t, tt.internal, res.Artifacts.InternalIPs)
			assert.Equal(t, tt.external, res.Artifacts.ExternalIPs)
			assert.Equal(t, tt.macs, res.Artifacts.MACAddresses)
			assert.Equal(t, tt.emails, res.Artifacts.RedactedEmails)
			assert.Equal(t, tt.secrets, res.Artifacts.RedactedSecrets)
			assert.Equal(t, tt.uniqueIPsLen, res.Artifacts.UniqueIPCount)
		})
	}
}

func TestRedactIsDeterministic(t *testing.T) {
	r := redactor.New()
	line := "GET /admin from 198.51.100.4 and 172.16.5.9 mac aa-bb-cc-dd-ee-ff token=abc123"

	first := r.Redact(line)
	for i := 0; i < 20; i++ {
		require.Equal(t, first, r.Redact(line))
	}
}

func TestRedactIndicesArePerLine(t *testing.T) {
	r := redactor.New()

	a := r.Redact("request from 203.0.113.9")
	b := r.Redact("request from 198.51.100.1 and 203.0.113.9")

	assert.Equal(t, "request from [EXTERNAL_IP_0]", a.Sanitized)
	assert.Equal(t, "request from [EXTERNAL_IP_0] and [EXTERNAL_IP_1]", b.Sanitized)
}

func TestIsInternal(t *testing.T) {
	cases := map[string]bool{
		"10.20.30.40":     true,
		"172.31.255.1":    true,
		"172.32.0.1":      false,
		"127.0.0.1":       true,
		"fe80::1":         true,
		"fd00::10":        true,
		"::ffff:10.0.0.1": true,
		"203.0.113.7":     false,
		"2001:4860::8888": false,
	}
	for in, want := range cases {
		assert.Equal(t, want, redactor.IsInternal(netip.MustParseAddr(in)), in)
	}
}
