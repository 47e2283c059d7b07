package logic

import (
	"context"
	"errors"
	"strconv"
	"testing"
	"time"

	"github.com/blues/campaignhub/internal/broker"
	"github.com/blues/campaignhub/internal/database/dbtest"
	"github.com/blues/campaignhub/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockCanceller struct {
	mock.Mock
}

func (m *mockCanceller) CancelSchedule(ctx context.Context, paymentId int64) error {
	return m.Called(ctx, paymentId).Error(0)
}

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) PublishEvent(ctx context.Context, key string, event interface{}) error {
	return m.Called(ctx, key, event).Error(0)
}

func TestResolveFundingOutcomes_CancelsEachPendingPayment(t *testing.T) {
	db := dbtest.Open(t)
	owner := seedUser(t, db, "owner@example.com", false, false)
	backer := seedUser(t, db, "backer@example.com", false, false)
	now := time.Now()
	c := seedFundingCampaign(t, db, owner, 10000, now.Add(-time.Hour))
	require.NoError(t, db.Model(&model.CampaignModel{}).Where("id = ?", c.Id).
		Update("status", model.CampaignStatusEnded).Error)

	pending := model.PaymentStatusPending
	var ids []int64
	for i := 0; i < 2; i++ {
		p := model.PaymentModel{
			UserId:      backer.Id,
			Amount:      1000,
			CampaignId:  &c.Id,
			MerchantUid: "imp-mock-" + strconv.Itoa(i),
			Status:      &pending,
		}
		require.NoError(t, db.Create(&p).Error)
		ids = append(ids, p.Id)
	}

	canceller := &mockCanceller{}
	canceller.On("CancelSchedule", mock.Anything, ids[0]).Return(nil).Once()
	canceller.On("CancelSchedule", mock.Anything, ids[1]).Return(errors.New("gateway timeout")).Once()

	publisher := &mockPublisher{}
	publisher.On("PublishEvent", mock.Anything, strconv.FormatInt(c.Id, 10), mock.MatchedBy(func(e broker.CampaignEvent) bool {
		return e.Type == broker.EventCampaignResolved &&
			e.Status == int(model.CampaignStatusFundingFailed) &&
			e.Goal == 10000
	})).Return(errors.New("kafka unavailable")).Once()

	lifecycle := NewLifecycleLogic(db, canceller, publisher, 2)
	report, err := lifecycle.ResolveFundingOutcomes(context.Background(), now)
	require.NoError(t, err)

	assert.Equal(t, FundingReport{Failed: 1, Cancelled: 1, CancelErrors: 1}, *report)
	canceller.AssertExpectations(t)
	publisher.AssertExpectations(t)
}

func TestNotifyStaff_PublishesPerRecipient(t *testing.T) {
	db := dbtest.Open(t)
	staffA := seedUser(t, db, "a@example.com", true, false)
	staffB := seedUser(t, db, "b@example.com", true, false)
	seedUser(t, db, "customer@example.com", false, false)

	publisher := &mockPublisher{}
	for _, staff := range []Actor{staffA, staffB} {
		publisher.On("PublishEvent", mock.Anything, strconv.FormatInt(staff.Id, 10), mock.AnythingOfType("broker.NotificationEvent")).
			Return(nil).Once()
	}

	n, err := NewNotificationLogic(db, publisher).NotifyStaff(context.Background(), "new chat waiting")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	publisher.AssertExpectations(t)
	publisher.AssertNumberOfCalls(t, "PublishEvent", 2)
}
