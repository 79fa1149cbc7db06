package mysql

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"soc-log-pipeline/internal/model"
	"soc-log-pipeline/internal/repository"
)

// Subscriber is a dashboard user who opted in to alert emails.
type Subscriber struct {
	ID           uint   `gorm:"primaryKey"`
	Email        string `gorm:"size:255;uniqueIndex;not null"`
	MinRiskScore int    `gorm:"not null;default:0"`
	Active       bool   `gorm:"not null;default:true;index"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (Subscriber) TableName() string {
	return "alert_subscribers"
}

type subscriberRepository struct {
	db *gorm.DB
}

// NewSubscriberRepository returns nil when no database is configured.
func NewSubscriberRepository(db *gorm.DB) (repository.SubscriberRepository, error) {
	if db == nil {
		return nil, nil
	}
	if err := db.AutoMigrate(&Subscriber{}); err != nil {
		log.Error().Err(err).Msg("Failed to migrate subscriber table")
		return nil, fmt.Errorf("failed to migrate subscribers: %w", err)
	}
	return &subscriberRepository{db: db}, nil
}

func (r *subscriberRepository) ActiveRecipients(ctx context.Context) ([]model.Recipient, error) {
	var subs []Subscriber
	if err := r.db.WithContext(ctx).Where("active = ?", true).Order("id").Find(&subs).Error; err != nil {
		return nil, fmt.Errorf("failed to query subscribers: %w", err)
	}
	return toRecipients(subs), nil
}

func toRecipients(subs []Subscriber) []model.Recipient {
	out := make([]model.Recipient, 0, len(subs))
	for _, s := range subs {
		if !s.Active || s.Email == "" {
			continue
		}
		out = append(out, model.Recipient{Address: s.Email, MinRiskScore: s.MinRiskScore})
	}
	return out
}
