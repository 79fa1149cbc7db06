package notification

import (
	"context"

	"soc-log-pipeline/internal/model"
)

// Channel delivers one consolidated alert message to one recipient.
type Channel interface {
	Send(ctx context.Context, to string, alerts []model.Alert) error
	Type() string
}
