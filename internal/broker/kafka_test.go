package broker

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishEvent_MarshalFailure(t *testing.T) {
	p := NewProducer([]string{"127.0.0.1:1"}, "campaignhub.events")
	defer p.Close()

	err := p.PublishEvent(context.Background(), "k", map[string]interface{}{"bad": make(chan int)})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "marshal")
}

func TestPublishEvent_UnreachableBroker(t *testing.T) {
	p := NewProducer([]string{"127.0.0.1:1"}, "campaignhub.events")
	defer p.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	err := p.PublishEvent(ctx, "campaign:7", CampaignEvent{
		Type:       EventCampaignResolved,
		CampaignId: 7,
		Status:     2,
		Amount:     12000,
		Goal:       10000,
		OccurredAt: time.Now(),
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "kafka")
}
