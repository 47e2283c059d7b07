package logic

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/blues/campaignhub/internal/broker"
	"github.com/blues/campaignhub/internal/database/dbtest"
	"github.com/blues/campaignhub/internal/gateway"
	"github.com/blues/campaignhub/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSchedulePayment_Success(t *testing.T) {
	db := dbtest.Open(t)
	gw := newFakeGateway()
	pub := &recordingPublisher{}
	l := NewPaymentLogic(db, gw, pub)

	owner := seedUser(t, db, "owner@example.com", false, false)
	backer := seedUser(t, db, "backer@example.com", false, false)
	end := time.Now().Add(72 * time.Hour).Truncate(time.Second)
	c := seedFundingCampaign(t, db, owner, 10000, end)
	card := seedCard(t, db, backer)

	raw, payment, err := l.SchedulePayment(context.Background(), backer, &SchedulePaymentRequest{
		CampaignId: c.Id, Amount: 4000, SelectedCard: card.Id,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, raw)
	require.NotNil(t, payment.Status)
	assert.Equal(t, model.PaymentStatusPending, *payment.Status)
	assert.Equal(t, card.CustomerUid, payment.CustomerUid)
	assert.Equal(t, int64(4000), fundingAmount(t, db, c.Id))

	require.Len(t, gw.scheduled, 1)
	item := gw.scheduled[0].Schedules[0]
	assert.Equal(t, payment.MerchantUid, item.MerchantUid)
	assert.Equal(t, end.Add(24*time.Hour).Unix(), item.ScheduleAt)
	assert.Equal(t, "KRW", item.Currency)

	require.Equal(t, 1, pub.count())
	event := pub.events[0].(broker.PaymentEvent)
	assert.Equal(t, broker.EventPaymentScheduled, event.Type)
}

func TestSchedulePayment_GatewayFailureLeavesNoRows(t *testing.T) {
	db := dbtest.Open(t)
	gw := newFakeGateway()
	gw.scheduleErr = &gateway.APIError{StatusCode: http.StatusOK, Code: 1, Message: "card declined"}
	l := NewPaymentLogic(db, gw, nil)

	owner := seedUser(t, db, "owner@example.com", false, false)
	c := seedFundingCampaign(t, db, owner, 10000, time.Now().Add(time.Hour))
	card := seedCard(t, db, owner)

	_, _, err := l.SchedulePayment(context.Background(), owner, &SchedulePaymentRequest{
		CampaignId: c.Id, Amount: 4000, SelectedCard: card.Id,
	})
	requireKind(t, err, KindExternal)

	var count int64
	require.NoError(t, db.Model(&model.PaymentModel{}).Count(&count).Error)
	assert.Zero(t, count)
	assert.Zero(t, fundingAmount(t, db, c.Id))
	assert.Empty(t, gw.unscheduledUids())
}

func TestSchedulePayment_UnknownGatewayOutcomeCompensates(t *testing.T) {
	db := dbtest.Open(t)
	gw := newFakeGateway()
	gw.scheduleErr = errors.New("read: connection reset by peer")
	l := NewPaymentLogic(db, gw, nil)
	l.newUid = func() string { return "imp-unknown-outcome" }

	owner := seedUser(t, db, "owner@example.com", false, false)
	c := seedFundingCampaign(t, db, owner, 10000, time.Now().Add(time.Hour))
	card := seedCard(t, db, owner)

	_, _, err := l.SchedulePayment(context.Background(), owner, &SchedulePaymentRequest{
		CampaignId: c.Id, Amount: 4000, SelectedCard: card.Id,
	})
	requireKind(t, err, KindExternal)

	var count int64
	require.NoError(t, db.Model(&model.PaymentModel{}).Count(&count).Error)
	assert.Zero(t, count)
	assert.Equal(t, []string{"imp-unknown-outcome"}, gw.unscheduledUids())
}

func TestSchedulePayment_LocalFailureCompensates(t *testing.T) {
	db := dbtest.Open(t)
	gw := newFakeGateway()
	l := NewPaymentLogic(db, gw, nil)

	owner := seedUser(t, db, "owner@example.com", false, false)
	c := seedFundingCampaign(t, db, owner, 10000, time.Now().Add(time.Hour))
	card := seedCard(t, db, owner)
	// 筹款记录缺失导致本地事务失败
	require.NoError(t, db.Where("campaign_id = ?", c.Id).Delete(&model.FundingModel{}).Error)

	_, _, err := l.SchedulePayment(context.Background(), owner, &SchedulePaymentRequest{
		CampaignId: c.Id, Amount: 4000, SelectedCard: card.Id,
	})
	require.Error(t, err)

	var count int64
	require.NoError(t, db.Model(&model.PaymentModel{}).Count(&count).Error)
	assert.Zero(t, count)

	require.Len(t, gw.scheduled, 1)
	assert.Equal(t, []string{gw.scheduled[0].Schedules[0].MerchantUid}, gw.unscheduledUids())
}

func TestSchedulePayment_Validation(t *testing.T) {
	db := dbtest.Open(t)
	gw := newFakeGateway()
	l := NewPaymentLogic(db, gw, nil)
	ctx := context.Background()

	owner := seedUser(t, db, "owner@example.com", false, false)
	other := seedUser(t, db, "other@example.com", false, false)
	c := seedFundingCampaign(t, db, owner, 10000, time.Now().Add(time.Hour))
	otherCard := seedCard(t, db, other)
	card := seedCard(t, db, owner)

	_, _, err := l.SchedulePayment(ctx, owner, &SchedulePaymentRequest{CampaignId: c.Id, Amount: 0, SelectedCard: card.Id})
	requireKind(t, err, KindValidation)

	_, _, err = l.SchedulePayment(ctx, owner, &SchedulePaymentRequest{CampaignId: c.Id, Amount: 100, SelectedCard: otherCard.Id})
	requireKind(t, err, KindForbidden)

	_, _, err = l.SchedulePayment(ctx, owner, &SchedulePaymentRequest{CampaignId: 999, Amount: 100, SelectedCard: card.Id})
	requireKind(t, err, KindNotFound)

	require.NoError(t, db.Model(&model.CampaignModel{}).Where("id = ?", c.Id).
		Update("status", model.CampaignStatusEnded).Error)
	_, _, err = l.SchedulePayment(ctx, owner, &SchedulePaymentRequest{CampaignId: c.Id, Amount: 100, SelectedCard: card.Id})
	requireKind(t, err, KindValidation)

	assert.Empty(t, gw.scheduled)
}

func TestCancelScheduleByUser(t *testing.T) {
	db := dbtest.Open(t)
	gw := newFakeGateway()
	l := NewPaymentLogic(db, gw, nil)
	ctx := context.Background()

	owner := seedUser(t, db, "owner@example.com", false, false)
	stranger := seedUser(t, db, "stranger@example.com", false, false)
	c := seedFundingCampaign(t, db, owner, 10000, time.Now().Add(time.Hour))
	card := seedCard(t, db, owner)
	_, payment, err := l.SchedulePayment(ctx, owner, &SchedulePaymentRequest{CampaignId: c.Id, Amount: 500, SelectedCard: card.Id})
	require.NoError(t, err)

	requireKind(t, l.CancelScheduleByUser(ctx, stranger, payment.Id), KindForbidden)

	gw.unscheduleErr = errors.New("timeout")
	requireKind(t, l.CancelScheduleByUser(ctx, owner, payment.Id), KindExternal)
	var stored model.PaymentModel
	require.NoError(t, db.First(&stored, payment.Id).Error)
	assert.Equal(t, model.PaymentStatusPending, *stored.Status)

	gw.unscheduleErr = nil
	require.NoError(t, l.CancelScheduleByUser(ctx, owner, payment.Id))
	require.NoError(t, db.First(&stored, payment.Id).Error)
	assert.Equal(t, model.PaymentStatusReservationCancelled, *stored.Status)

	requireKind(t, l.CancelScheduleByUser(ctx, owner, payment.Id), KindValidation)
}

func TestGetScheduleInfo(t *testing.T) {
	db := dbtest.Open(t)
	gw := newFakeGateway()
	l := NewPaymentLogic(db, gw, nil)
	ctx := context.Background()

	owner := seedUser(t, db, "owner@example.com", false, false)
	c := seedFundingCampaign(t, db, owner, 10000, time.Now().Add(time.Hour))
	card := seedCard(t, db, owner)
	_, payment, err := l.SchedulePayment(ctx, owner, &SchedulePaymentRequest{CampaignId: c.Id, Amount: 700, SelectedCard: card.Id})
	require.NoError(t, err)

	info, err := l.GetScheduleInfo(ctx, owner, payment.Id)
	require.NoError(t, err)
	assert.Equal(t, int64(700), info.Amount)
	assert.Equal(t, c.Title, info.Campaign)
	assert.Contains(t, info.Message, "owner@example.com")
}

func TestReconcileSchedules(t *testing.T) {
	db := dbtest.Open(t)
	gw := newFakeGateway()
	l := NewPaymentLogic(db, gw, nil)
	now := time.Now()
	l.now = func() time.Time { return now }
	ctx := context.Background()

	owner := seedUser(t, db, "owner@example.com", false, false)
	c := seedFundingCampaign(t, db, owner, 10000, now.Add(time.Hour))
	card := seedCard(t, db, owner)
	_, payment, err := l.SchedulePayment(ctx, owner, &SchedulePaymentRequest{CampaignId: c.Id, Amount: 700, SelectedCard: card.Id})
	require.NoError(t, err)

	old := now.Add(-time.Hour).Unix()
	gw.listed[card.CustomerUid] = []gateway.Schedule{
		{MerchantUid: payment.MerchantUid, ScheduleStatus: gateway.ScheduleStatusScheduled, CreatedAt: old},
		{MerchantUid: "orphan-old", ScheduleStatus: gateway.ScheduleStatusScheduled, CreatedAt: old},
		{MerchantUid: "orphan-fresh", ScheduleStatus: gateway.ScheduleStatusScheduled, CreatedAt: now.Unix()},
		{MerchantUid: "already-paid", ScheduleStatus: "executed", CreatedAt: old},
	}

	report, err := l.ReconcileSchedules(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Customers)
	assert.Equal(t, 1, report.Orphans)
	assert.Equal(t, 1, report.Cancelled)
	assert.Equal(t, []string{"orphan-old"}, gw.unscheduledUids())
}
