package notification

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"soc-log-pipeline/internal/model"
)

// Notifier fans one batch of alerts out to every recipient. Each recipient is
// sent to on its own goroutine so a slow mail server never stalls the watcher.
type Notifier struct {
	channel Channel
	timeout time.Duration
	wg      sync.WaitGroup
}

func NewNotifier(channel Channel) *Notifier {
	return &Notifier{channel: channel, timeout: 30 * time.Second}
}

// Notify starts the sends and returns immediately. Failures are logged and
// not retried.
func (n *Notifier) Notify(ctx context.Context, recipients []model.Recipient, alerts []model.Alert) int {
	if len(alerts) == 0 {
		return 0
	}
	started := 0
	for _, r := range dedupe(recipients) {
		selected := filterByRisk(alerts, r.MinRiskScore)
		if len(selected) == 0 {
			continue
		}
		started++
		n.wg.Add(1)
		go func(to string, selected []model.Alert) {
			defer n.wg.Done()
			sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), n.timeout)
			defer cancel()
			if err := n.channel.Send(sendCtx, to, selected); err != nil {
				log.Error().Err(err).Str("channel", n.channel.Type()).Str("recipient", to).Msg("Failed to deliver alert notification")
				return
			}
			log.Info().Str("channel", n.channel.Type()).Str("recipient", to).Int("alerts", len(selected)).Msg("Alert notification sent")
		}(r.Address, selected)
	}
	return started
}

// Wait blocks until every in-flight send has finished.
func (n *Notifier) Wait() {
	n.wg.Wait()
}

func dedupe(recipients []model.Recipient) []model.Recipient {
	seen := make(map[string]int, len(recipients))
	out := make([]model.Recipient, 0, len(recipients))
	for _, r := range recipients {
		addr := strings.TrimSpace(r.Address)
		if addr == "" {
			continue
		}
		key := strings.ToLower(addr)
		if i, ok := seen[key]; ok {
			if r.MinRiskScore < out[i].MinRiskScore {
				out[i].MinRiskScore = r.MinRiskScore
			}
			continue
		}
		seen[key] = len(out)
		out = append(out, model.Recipient{Address: addr, MinRiskScore: r.MinRiskScore})
	}
	return out
}

func filterByRisk(alerts []model.Alert, min int) []model.Alert {
	if min <= 0 {
		return alerts
	}
	out := make([]model.Alert, 0, len(alerts))
	for _, a := range alerts {
		if a.RiskScore >= min {
			out = append(out, a)
		}
	}
	return out
}
