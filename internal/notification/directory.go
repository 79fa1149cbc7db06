package notification

import (
	"context"

	"github.com/rs/zerolog/log"

	"soc-log-pipeline/internal/model"
	"soc-log-pipeline/internal/repository"
)

// Directory resolves who receives alerts: static addresses from config plus
// any active subscribers in the database.
type Directory struct {
	static      []string
	subscribers repository.SubscriberRepository
}

func NewDirectory(static []string, subscribers repository.SubscriberRepository) *Directory {
	return &Directory{static: static, subscribers: subscribers}
}

func (d *Directory) Recipients(ctx context.Context) []model.Recipient {
	out := make([]model.Recipient, 0, len(d.static))
	for _, addr := range d.static {
		out = append(out, model.Recipient{Address: addr})
	}
	if d.subscribers == nil {
		return out
	}
	subs, err := d.subscribers.ActiveRecipients(ctx)
	if err != nil {
		log.Error().Err(err).Msg("Failed to load subscribers, using configured recipients only")
		return out
	}
	return append(out, subs...)
}
