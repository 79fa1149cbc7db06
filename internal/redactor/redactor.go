package redactor

import (
	"net/netip"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"soc-log-pipeline/internal/model"
)

const (
	MACPlaceholder    = "[MAC_ADDRESS]"
	EmailPlaceholder  = "[EMAIL_REDACTED]"
	SecretPlaceholder = "[REDACTED]"
)

var (
	macRegex   = regexp.MustCompile(`(?i)\b(?:[0-9a-f]{2}[:-]){5}[0-9a-f]{2}\b`)
	emailRegex = regexp.MustCompile(`[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}`)
	ipv4Regex  = regexp.MustCompile(`\b(?:(?:25[0-5]|2[0-4]\d|1\d\d|[1-9]?\d)\.){3}(?:25[0-5]|2[0-4]\d|1\d\d|[1-9]?\d)\b`)
	// Anything colon-bearing that could be an IPv6 literal; netip decides.
	ipv6Candidate = regexp.MustCompile(`[0-9A-Fa-f]*:[0-9A-Fa-f:.]*[0-9A-Fa-f]`)
)

// secretPattern redacts the submatch at valueGroup and keeps the rest of the match.
type secretPattern struct {
	re         *regexp.Regexp
	valueGroup int
}

var secretPatterns = []secretPattern{
	{regexp.MustCompile(`(?i)\b((?:password|passwd|pwd|pass|secret|token|api[_-]?key)\s*[=:]\s*)("[^"]*"|'[^']*'|[^\s&;,]+)`), 2},
	{regexp.MustCompile(`(?i)(--password\s+)("[^"]*"|'[^']*'|\S+)`), 2},
	// -p takes its value as the next token; -perm, -print and -path are other flags.
	{regexp.MustCompile(`(^|\s)(-p\s+)(\S+)`), 3},
}

// Private ranges, loopback and link-local count as internal.
var internalPrefixes = []netip.Prefix{
	netip.MustParsePrefix("10.0.0.0/8"),
	netip.MustParsePrefix("172.16.0.0/12"),
	netip.MustParsePrefix("192.168.0.0/16"),
	netip.MustParsePrefix("127.0.0.0/8"),
	netip.MustParsePrefix("169.254.0.0/16"),
	netip.MustParsePrefix("::1/128"),
	netip.MustParsePrefix("fc00::/7"),
	netip.MustParsePrefix("fe80::/10"),
}

type Result struct {
	Sanitized string
	Artifacts model.Artifacts
}

type Redactor interface {
	Redact(line string) Result
}

type patternRedactor struct{}

func New() Redactor {
	return &patternRedactor{}
}

// Redact strips hardware addresses, emails, credentials and network addresses from
// line, in that order, so later patterns never see what earlier ones replaced.
func (r *patternRedactor) Redact(line string) Result {
	artifacts := model.Artifacts{
		InternalIPs:  []string{},
		ExternalIPs:  []string{},
		MACAddresses: []string{},
	}

	text := line
	text, artifacts.MACAddresses = redactMACs(text)

	artifacts.RedactedEmails = len(emailRegex.FindAllStringIndex(text, -1))
	text = emailRegex.ReplaceAllString(text, EmailPlaceholder)

	for _, p := range secretPatterns {
		var n int
		text, n = redactValues(p.re, p.valueGroup, text)
		artifacts.RedactedSecrets += n
	}

	text, artifacts.InternalIPs, artifacts.ExternalIPs = redactAddresses(text)
	artifacts.UniqueIPCount = len(artifacts.InternalIPs) + len(artifacts.ExternalIPs)

	return Result{
		Sanitized: strings.TrimSpace(text),
		Artifacts: artifacts,
	}
}

// IsInternal reports whether addr falls in one of the internal prefixes.
func IsInternal(addr netip.Addr) bool {
	addr = addr.Unmap()
	for _, p := range internalPrefixes {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}

func redactMACs(text string) (string, []string) {
	found := []string{}
	seen := make(map[string]struct{})
	for _, mac := range macRegex.FindAllString(text, -1) {
		if _, ok := seen[mac]; ok {
			continue
		}
		seen[mac] = struct{}{}
		found = append(found, mac)
	}
	return macRegex.ReplaceAllString(text, MACPlaceholder), found
}

func redactValues(re *regexp.Regexp, valueGroup int, text string) (string, int) {
	matches := re.FindAllStringSubmatchIndex(text, -1)
	if len(matches) == 0 {
		return text, 0
	}
	var b strings.Builder
	last, count := 0, 0
	for _, m := range matches {
		start, end := m[2*valueGroup], m[2*valueGroup+1]
		if start < 0 {
			continue
		}
		if text[start:end] != SecretPlaceholder {
			count++
		}
		b.WriteString(text[last:start])
		b.WriteString(SecretPlaceholder)
		last = end
	}
	b.WriteString(text[last:])
	return b.String(), count
}

type addrSpan struct {
	start, end int
	literal    string
	addr       netip.Addr
}

func findAddresses(text string) []addrSpan {
	var spans []addrSpan
	for _, m := range ipv6Candidate.FindAllStringIndex(text, -1) {
		start, end := m[0], m[1]
		if start > 0 && isWordByte(text[start-1]) || end < len(text) && isWordByte(text[end]) {
			continue
		}
		addr, err := netip.ParseAddr(text[start:end])
		if err != nil || !addr.Is6() {
			continue
		}
		spans = append(spans, addrSpan{start: start, end: end, literal: text[start:end], addr: addr})
	}
	for _, m := range ipv4Regex.FindAllStringIndex(text, -1) {
		if overlaps(spans, m[0], m[1]) {
			continue
		}
		addr, err := netip.ParseAddr(text[m[0]:m[1]])
		if err != nil {
			continue
		}
		spans = append(spans, addrSpan{start: m[0], end: m[1], literal: text[m[0]:m[1]], addr: addr})
	}
	sort.Slice(spans, func(i, j int) bool { return spans[i].start < spans[j].start })
	return spans
}

func redactAddresses(text string) (string, []string, []string) {
	spans := findAddresses(text)
	if len(spans) == 0 {
		return text, []string{}, []string{}
	}

	internal := make(map[string]netip.Addr)
	external := make(map[string]netip.Addr)
	for _, s := range spans {
		if IsInternal(s.addr) {
			internal[s.literal] = s.addr
		} else {
			external[s.literal] = s.addr
		}
	}
	internalList := sortedLiterals(internal)
	externalList := sortedLiterals(external)

	placeholders := make(map[string]string, len(spans))
	for i, lit := range internalList {
		placeholders[lit] = "[INTERNAL_IP_" + strconv.Itoa(i) + "]"
	}
	for i, lit := range externalList {
		placeholders[lit] = "[EXTERNAL_IP_" + strconv.Itoa(i) + "]"
	}

	var b strings.Builder
	last := 0
	for _, s := range spans {
		b.WriteString(text[last:s.start])
		b.WriteString(placeholders[s.literal])
		last = s.end
	}
	b.WriteString(text[last:])
	return b.String(), internalList, externalList
}

func sortedLiterals(set map[string]netip.Addr) []string {
	out := make([]string, 0, len(set))
	for lit := range set {
		out = append(out, lit)
	}
	sort.Slice(out, func(i, j int) bool {
		if c := set[out[i]].Compare(set[out[j]]); c != 0 {
			return c < 0
		}
		return out[i] < out[j]
	})
	return out
}

func overlaps(spans []addrSpan, start, end int) bool {
	for _, s := range spans {
		if start < s.end && s.start < end {
			return true
		}
	}
	return false
}

func isWordByte(c byte) bool {
	return c == '_' || c >= '0' && c <= '9' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z'
}
