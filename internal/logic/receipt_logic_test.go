package logic

import (
	"context"
	"testing"
	"time"

	"github.com/blues/campaignhub/internal/database/dbtest"
	"github.com/blues/campaignhub/internal/gateway"
	"github.com/blues/campaignhub/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestRefund(t *testing.T) {
	db := dbtest.Open(t)
	gw := newFakeGateway()
	l := NewPaymentLogic(db, gw, nil)
	shop := NewShopLogic(db, nil, NewNotificationLogic(db, nil), 1)

	admin := seedUser(t, db, "admin@example.com", true, true)
	buyer := seedUser(t, db, "buyer@example.com", false, false)
	other := seedUser(t, db, "other@example.com", false, false)
	category, err := shop.CreateCategory(admin, "goods")
	require.NoError(t, err)
	p, err := shop.CreateProduct(admin, &ProductRequest{CategoryId: category.Id, ProductName: "a", ProductPrice: 100, ProductStock: 5})
	require.NoError(t, err)
	order, err := shop.PlaceOrder(buyer, orderFor(OrderLine{ProductId: p.Id, ProductCount: 2}))
	require.NoError(t, err)

	_, err = l.CreateReceipt(other, &ReceiptRequest{MerchantUid: "m1", ImpUid: "imp1", Amount: 200, OrderId: &order.Id})
	requireKind(t, err, KindForbidden)

	receipt, err := l.CreateReceipt(buyer, &ReceiptRequest{MerchantUid: "m1", ImpUid: "imp1", Amount: 200, OrderId: &order.Id})
	require.NoError(t, err)

	_, err = l.RequestRefund(buyer, receipt.Id, &RefundRequest{Status: model.PaymentStatusPending})
	requireKind(t, err, KindValidation)
	_, err = l.RequestRefund(buyer, receipt.Id, &RefundRequest{Status: model.PaymentStatusOther})
	requireKind(t, err, KindValidation)

	refunded, err := l.RequestRefund(buyer, receipt.Id, &RefundRequest{Status: model.PaymentStatusOther, OtherStatus: "wrong size"})
	require.NoError(t, err)
	assert.Equal(t, "wrong size", refunded.StatusDisplay())

	var details []model.ShopOrderDetailModel
	require.NoError(t, db.Where("order_id = ?", order.Id).Find(&details).Error)
	for _, d := range details {
		assert.Equal(t, model.OrderDetailStatusRefundRequested, d.OrderDetailStatus)
	}

	// 明细已不是已付款状态
	_, err = l.RequestRefund(buyer, receipt.Id, &RefundRequest{Status: model.PaymentStatusUserCancelled})
	requireKind(t, err, KindValidation)

	requested, total, err := shop.ListRefundRequested(1, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, requested, 1)
	assert.Equal(t, order.Id, requested[0].Id)

	_, err = l.AdminRefund(context.Background(), buyer, receipt.Id, "")
	requireKind(t, err, KindForbidden)
	done, err := l.AdminRefund(context.Background(), admin, receipt.Id, "approved")
	require.NoError(t, err)
	assert.Equal(t, model.PaymentStatusCancelThenRepay, *done.Status)
}

func TestReceipts(t *testing.T) {
	db := dbtest.Open(t)
	gw := newFakeGateway()
	l := NewPaymentLogic(db, gw, nil)
	ctx := context.Background()

	owner := seedUser(t, db, "owner@example.com", false, false)
	c := seedFundingCampaign(t, db, owner, 10000, time.Now().Add(time.Hour))
	card := seedCard(t, db, owner)
	_, scheduled, err := l.SchedulePayment(ctx, owner, &SchedulePaymentRequest{CampaignId: c.Id, Amount: 100, SelectedCard: card.Id})
	require.NoError(t, err)
	shopReceipt, err := l.CreateReceipt(owner, &ReceiptRequest{MerchantUid: "m1", ImpUid: "imp1", Amount: 300})
	require.NoError(t, err)

	gw.payments["imp1"] = &gateway.Payment{ImpUid: "imp1", ReceiptURL: "https://receipt/imp1"}
	gw.payments[scheduled.MerchantUid] = &gateway.Payment{MerchantUid: scheduled.MerchantUid, ReceiptURL: "https://receipt/s"}

	list, err := l.ListReceipts(owner)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, shopReceipt.Id, list[0].Id)

	found, err := l.ReceiptURL(ctx, owner, shopReceipt.Id)
	require.NoError(t, err)
	assert.Equal(t, "https://receipt/imp1", found.ReceiptURL)

	schedules, total, err := l.ListScheduleReceipts(owner, 1, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, schedules, 1)
	assert.Equal(t, c.Title, schedules[0].CampaignTitle)

	found, err = l.ScheduleReceiptURL(ctx, owner, scheduled.Id)
	require.NoError(t, err)
	assert.Equal(t, "https://receipt/s", found.ReceiptURL)

	choices := StatusChoices()
	require.Len(t, choices, 7)
	assert.Equal(t, model.PaymentStatusPending, choices[0].Value)
}
