package repository

import (
	"context"

	"soc-log-pipeline/internal/model"
)

// SubscriberRepository lists alert recipients managed outside the config file.
type SubscriberRepository interface {
	ActiveRecipients(ctx context.Context) ([]model.Recipient, error)
}
