package logic

import (
	"context"
	"testing"
	"time"

	"github.com/blues/campaignhub/internal/database/dbtest"
	"github.com/blues/campaignhub/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func campaignRequest() *CampaignRequest {
	start := time.Now().Add(-time.Hour)
	return &CampaignRequest{
		Title:             "beach cleanup",
		Content:           "join us",
		Members:           2,
		CampaignStartDate: start,
		CampaignEndDate:   start.Add(7 * 24 * time.Hour),
	}
}

func TestCreateCampaign(t *testing.T) {
	db := dbtest.Open(t)
	l := NewCampaignLogic(db)
	owner := seedUser(t, db, "owner@example.com", false, false)

	req := campaignRequest()
	req.IsFunding = true
	req.Goal = 10000
	c, err := l.CreateCampaign(owner, req)
	require.NoError(t, err)
	assert.Equal(t, model.CampaignStatusUnapproved, c.Status)
	require.NotNil(t, c.Funding)
	assert.Equal(t, int64(10000), c.Funding.Goal)
	assert.Zero(t, fundingAmount(t, db, c.Id))
}

func TestCreateCampaign_Validation(t *testing.T) {
	db := dbtest.Open(t)
	l := NewCampaignLogic(db)
	owner := seedUser(t, db, "owner@example.com", false, false)

	cases := map[string]func(r *CampaignRequest){
		"empty title":     func(r *CampaignRequest) { r.Title = " " },
		"no members":      func(r *CampaignRequest) { r.Members = 0 },
		"end before":      func(r *CampaignRequest) { r.CampaignEndDate = r.CampaignStartDate.Add(-time.Hour) },
		"funding no goal": func(r *CampaignRequest) { r.IsFunding = true },
		"half activity": func(r *CampaignRequest) {
			at := time.Now()
			r.ActivityStartDate = &at
		},
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			req := campaignRequest()
			mutate(req)
			_, err := l.CreateCampaign(owner, req)
			requireKind(t, err, KindValidation)
		})
	}
}

func TestUpdateDeleteCampaign_OwnerOnly(t *testing.T) {
	db := dbtest.Open(t)
	l := NewCampaignLogic(db)
	owner := seedUser(t, db, "owner@example.com", false, false)
	other := seedUser(t, db, "other@example.com", false, false)

	c, err := l.CreateCampaign(owner, campaignRequest())
	require.NoError(t, err)

	req := campaignRequest()
	req.Title = "renamed"
	_, err = l.UpdateCampaign(other, c.Id, req)
	requireKind(t, err, KindForbidden)
	requireKind(t, l.DeleteCampaign(other, c.Id), KindForbidden)

	updated, err := l.UpdateCampaign(owner, c.Id, req)
	require.NoError(t, err)
	assert.Equal(t, "renamed", updated.Title)

	require.NoError(t, l.DeleteCampaign(owner, c.Id))
	_, err = l.GetCampaign(c.Id)
	requireKind(t, err, KindNotFound)
}

// fundingEditRequest 以当前活动内容构造修改请求
func fundingEditRequest(t *testing.T, l *CampaignLogic, id int64) *CampaignRequest {
	t.Helper()
	detail, err := l.GetCampaign(id)
	require.NoError(t, err)
	require.NotNil(t, detail.Funding)
	return &CampaignRequest{
		Title:             detail.Title,
		Content:           detail.Content,
		Members:           detail.Members,
		CampaignStartDate: detail.CampaignStartDate,
		CampaignEndDate:   detail.CampaignEndDate,
		IsFunding:         true,
		Goal:              detail.Funding.Goal,
	}
}

func TestFundingTerms_LockedWhilePaymentsPending(t *testing.T) {
	db := dbtest.Open(t)
	l := NewCampaignLogic(db)
	payments := NewPaymentLogic(db, newFakeGateway(), nil)
	owner := seedUser(t, db, "owner@example.com", false, false)
	backer := seedUser(t, db, "backer@example.com", false, false)

	c := seedFundingCampaign(t, db, owner, 10000, time.Now().Add(24*time.Hour))
	card := seedCard(t, db, backer)
	_, payment, err := payments.SchedulePayment(context.Background(), backer, &SchedulePaymentRequest{
		CampaignId: c.Id, Amount: 4000, SelectedCard: card.Id,
	})
	require.NoError(t, err)

	t.Run("end date", func(t *testing.T) {
		req := fundingEditRequest(t, l, c.Id)
		req.CampaignEndDate = req.CampaignEndDate.Add(30 * 24 * time.Hour)
		_, err := l.UpdateCampaign(owner, c.Id, req)
		requireKind(t, err, KindConflict)
	})
	t.Run("goal", func(t *testing.T) {
		req := fundingEditRequest(t, l, c.Id)
		req.Goal = 2000
		_, err := l.UpdateCampaign(owner, c.Id, req)
		requireKind(t, err, KindConflict)
	})
	t.Run("other fields", func(t *testing.T) {
		req := fundingEditRequest(t, l, c.Id)
		req.Title = "renamed"
		updated, err := l.UpdateCampaign(owner, c.Id, req)
		require.NoError(t, err)
		assert.Equal(t, "renamed", updated.Title)
	})

	requireKind(t, l.DeleteCampaign(owner, c.Id), KindConflict)
	var status model.PaymentModel
	require.NoError(t, db.First(&status, payment.Id).Error)
	assert.Equal(t, model.PaymentStatusPending, *status.Status)
	assert.Equal(t, int64(4000), fundingAmount(t, db, c.Id))

	// 预约取消后可以删除
	require.NoError(t, payments.CancelSchedule(context.Background(), payment.Id))
	req := fundingEditRequest(t, l, c.Id)
	req.CampaignEndDate = req.CampaignEndDate.Add(time.Hour)
	_, err = l.UpdateCampaign(owner, c.Id, req)
	require.NoError(t, err)
	require.NoError(t, l.DeleteCampaign(owner, c.Id))
}

func TestToggleParticipation_Capacity(t *testing.T) {
	db := dbtest.Open(t)
	l := NewCampaignLogic(db)
	owner := seedUser(t, db, "owner@example.com", false, false)
	a := seedUser(t, db, "a@example.com", false, false)
	b := seedUser(t, db, "b@example.com", false, false)
	c3 := seedUser(t, db, "c@example.com", false, false)

	c, err := l.CreateCampaign(owner, campaignRequest())
	require.NoError(t, err)

	joined, err := l.ToggleParticipation(a, c.Id)
	require.NoError(t, err)
	assert.True(t, joined)
	joined, err = l.ToggleParticipation(b, c.Id)
	require.NoError(t, err)
	assert.True(t, joined)

	_, err = l.ToggleParticipation(c3, c.Id)
	requireKind(t, err, KindConflict)

	joined, err = l.ToggleParticipation(a, c.Id)
	require.NoError(t, err)
	assert.False(t, joined)

	joined, err = l.ToggleParticipation(c3, c.Id)
	require.NoError(t, err)
	assert.True(t, joined)

	detail, err := l.GetCampaign(c.Id)
	require.NoError(t, err)
	assert.Equal(t, int64(2), detail.ParticipantCount)
	assert.Equal(t, "owner@example.com", detail.Username)
}

func TestToggleLike(t *testing.T) {
	db := dbtest.Open(t)
	l := NewCampaignLogic(db)
	owner := seedUser(t, db, "owner@example.com", false, false)
	c, err := l.CreateCampaign(owner, campaignRequest())
	require.NoError(t, err)

	liked, err := l.ToggleLike(owner, c.Id)
	require.NoError(t, err)
	assert.True(t, liked)
	is, err := l.IsLiked(owner, c.Id)
	require.NoError(t, err)
	assert.True(t, is)

	liked, err = l.ToggleLike(owner, c.Id)
	require.NoError(t, err)
	assert.False(t, liked)
}

func TestListCampaigns_Ordering(t *testing.T) {
	db := dbtest.Open(t)
	l := NewCampaignLogic(db)
	admin := seedUser(t, db, "admin@example.com", false, true)
	liker := seedUser(t, db, "liker@example.com", false, false)

	now := time.Now()
	early := seedFundingCampaign(t, db, admin, 1000, now.Add(24*time.Hour))
	late := seedFundingCampaign(t, db, admin, 1000, now.Add(72*time.Hour))
	unapproved, err := l.CreateCampaign(admin, campaignRequest())
	require.NoError(t, err)

	require.NoError(t, db.Model(&model.FundingModel{}).Where("campaign_id = ?", late.Id).Update("amount", 500).Error)
	_, err = l.ToggleLike(liker, early.Id)
	require.NoError(t, err)

	ids := func(cs []model.CampaignModel) []int64 {
		out := make([]int64, 0, len(cs))
		for _, c := range cs {
			out = append(out, c.Id)
		}
		return out
	}

	closing, total, err := l.ListCampaigns(CampaignQuery{Order: OrderClosing})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Equal(t, []int64{early.Id, late.Id}, ids(closing))

	byAmount, _, err := l.ListCampaigns(CampaignQuery{Order: OrderAmount})
	require.NoError(t, err)
	assert.Equal(t, []int64{late.Id, early.Id}, ids(byAmount))

	byLike, _, err := l.ListCampaigns(CampaignQuery{Order: OrderLike})
	require.NoError(t, err)
	assert.Equal(t, []int64{early.Id, late.Id}, ids(byLike))

	require.NoError(t, l.UpdateStatus(admin, unapproved.Id, model.CampaignStatusActive))
	requireKind(t, l.UpdateStatus(liker, unapproved.Id, model.CampaignStatusActive), KindForbidden)
	requireKind(t, l.UpdateStatus(admin, unapproved.Id, model.CampaignStatus(9)), KindValidation)

	_, err = ParseCampaignOrder("random")
	requireKind(t, err, KindValidation)
	order, err := ParseCampaignOrder("")
	require.NoError(t, err)
	assert.Equal(t, OrderRecent, order)
}
