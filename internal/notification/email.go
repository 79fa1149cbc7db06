package notification

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"net"
	"net/smtp"
	"strconv"
	"strings"

	"soc-log-pipeline/config"
	"soc-log-pipeline/internal/model"
)

var reportTemplate = template.Must(template.New("report").Funcs(template.FuncMap{
	"riskColor": func(score int) template.CSS { return template.CSS(riskColor(score)) },
}).Parse(`<div style="font-family: sans-serif; max-width: 600px;">
  <h2 style="color: #1e293b;">Security Incident Report</h2>
  <p style="color: #64748b;">A new batch of suspicious activity has been analyzed.</p>
  <table style="width: 100%; border-collapse: collapse; margin: 20px 0;">
    <thead style="background-color: #f8fafc; text-align: left;">
      <tr>
        <th style="padding: 10px;">ID</th>
        <th style="padding: 10px;">Risk</th>
        <th style="padding: 10px;">Summary</th>
      </tr>
    </thead>
    <tbody>
{{- range .Alerts }}
      <tr style="border-bottom: 1px solid #eee;">
        <td style="padding: 10px; font-family: monospace;">#{{ .EventID }}</td>
        <td style="padding: 10px; font-weight: bold; color: {{ riskColor .RiskScore }};">{{ .RiskScore }}/10</td>
        <td style="padding: 10px;">{{ .Summary }}</td>
      </tr>
{{- end }}
    </tbody>
  </table>
{{- if .DashboardURL }}
  <a href="{{ .DashboardURL }}" style="background-color: #6366f1; color: white; padding: 12px 24px; text-decoration: none; border-radius: 8px; font-weight: bold;">Open Investigation Dashboard</a>
{{- end }}
</div>
`))

func riskColor(score int) string {
	switch {
	case score >= 8:
		return "#ef4444"
	case score >= 6:
		return "#f97316"
	default:
		return "#22c55e"
	}
}

type sendMailFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// EmailChannel sends an HTML report over SMTP. smtp.SendMail upgrades to
// STARTTLS whenever the server offers it.
type EmailChannel struct {
	host         string
	port         int
	username     string
	password     string
	dashboardURL string
	send         sendMailFunc
}

func NewEmailChannel(cfg *config.Config) *EmailChannel {
	return &EmailChannel{
		host:         cfg.Notification.SMTPHost,
		port:         cfg.Notification.SMTPPort,
		username:     cfg.Notification.Username,
		password:     cfg.Notification.Password,
		dashboardURL: cfg.Notification.DashboardURL,
		send:         smtp.SendMail,
	}
}

func (e *EmailChannel) Type() string {
	return "email"
}

// Configured reports whether sender credentials are present.
func (e *EmailChannel) Configured() bool {
	return e.username != "" && e.password != "" && e.host != ""
}

func (e *EmailChannel) Send(ctx context.Context, to string, alerts []model.Alert) error {
	if !e.Configured() {
		return fmt.Errorf("email sender credentials are not configured")
	}
	if len(alerts) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	msg, err := e.buildMessage(to, alerts)
	if err != nil {
		return err
	}
	addr := net.JoinHostPort(e.host, strconv.Itoa(e.port))
	auth := smtp.PlainAuth("", e.username, e.password, e.host)
	if err := e.send(addr, auth, e.username, []string{to}, msg); err != nil {
		return fmt.Errorf("send email to %s: %w", to, err)
	}
	return nil
}

func (e *EmailChannel) buildMessage(to string, alerts []model.Alert) ([]byte, error) {
	var body bytes.Buffer
	data := struct {
		Alerts       []model.Alert
		DashboardURL string
	}{alerts, e.dashboardURL}
	if err := reportTemplate.Execute(&body, data); err != nil {
		return nil, fmt.Errorf("render email body: %w", err)
	}

	var msg strings.Builder
	fmt.Fprintf(&msg, "From: %s\r\n", e.username)
	fmt.Fprintf(&msg, "To: %s\r\n", to)
	fmt.Fprintf(&msg, "Subject: SOC Batch Alert: %d Incidents Detected\r\n", len(alerts))
	msg.WriteString("MIME-Version: 1.0\r\n")
	msg.WriteString("Content-Type: text/html; charset=\"UTF-8\"\r\n\r\n")
	msg.Write(body.Bytes())
	return []byte(msg.String()), nil
}
