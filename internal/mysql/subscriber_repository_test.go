package mysql

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"soc-log-pipeline/internal/model"
)

func TestToRecipientsSkipsInactive(t *testing.T) {
	got := toRecipients([]Subscriber{
		{Email: "soc@example.com", Active: true},
		{Email: "old@example.com", Active: false},
		{Email: "ir@example.com", Active: true, MinRiskScore: 7},
		{Email: "", Active: true},
	})
	assert.Equal(t, []model.Recipient{
		{Address: "soc@example.com"},
		{Address: "ir@example.com", MinRiskScore: 7},
	}, got)
}

func TestNewSubscriberRepositoryWithoutDB(t *testing.T) {
	repo, err := NewSubscriberRepository(nil)
	require.NoError(t, err)
	assert.Nil(t, repo)
}

func TestSubscriberTableName(t *testing.T) {
	assert.Equal(t, "alert_subscribers", Subscriber{}.TableName())
}
