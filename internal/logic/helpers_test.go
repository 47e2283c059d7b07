package logic

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/blues/campaignhub/internal/gateway"
	"github.com/blues/campaignhub/internal/model"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// fakeGateway 记录调用并按需返回错误
type fakeGateway struct {
	mu sync.Mutex

	scheduleErr   error
	unscheduleErr error
	customerErr   error
	cancelErr     error

	scheduled   []gateway.ScheduleRequest
	unscheduled []string
	customers   []gateway.CustomerRequest
	listed      map[string][]gateway.Schedule
	payments    map[string]*gateway.Payment
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		listed:   map[string][]gateway.Schedule{},
		payments: map[string]*gateway.Payment{},
	}
}

func (g *fakeGateway) CreateCustomer(_ context.Context, req gateway.CustomerRequest) (*gateway.Customer, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.customerErr != nil {
		return nil, g.customerErr
	}
	g.customers = append(g.customers, req)
	return &gateway.Customer{CustomerUid: req.CustomerUid, CardNumber: req.CardNumber}, nil
}

func (g *fakeGateway) SchedulePayment(_ context.Context, req gateway.ScheduleRequest) ([]gateway.Schedule, json.RawMessage, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.scheduleErr != nil {
		return nil, nil, g.scheduleErr
	}
	g.scheduled = append(g.scheduled, req)
	out := make([]gateway.Schedule, 0, len(req.Schedules))
	for _, item := range req.Schedules {
		out = append(out, gateway.Schedule{
			CustomerUid:    req.CustomerUid,
			MerchantUid:    item.MerchantUid,
			ScheduleAt:     item.ScheduleAt,
			Amount:         item.Amount,
			Name:           item.Name,
			ScheduleStatus: gateway.ScheduleStatusScheduled,
		})
	}
	raw, _ := json.Marshal(out)
	return out, raw, nil
}

func (g *fakeGateway) GetSchedule(_ context.Context, merchantUid string) (*gateway.Schedule, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, req := range g.scheduled {
		for _, item := range req.Schedules {
			if item.MerchantUid == merchantUid {
				return &gateway.Schedule{
					MerchantUid:    item.MerchantUid,
					ScheduleAt:     item.ScheduleAt,
					Amount:         item.Amount,
					Name:           item.Name,
					BuyerName:      item.BuyerName,
					BuyerEmail:     item.BuyerEmail,
					ScheduleStatus: gateway.ScheduleStatusScheduled,
				}, nil
			}
		}
	}
	return nil, errors.New("schedule not found")
}

func (g *fakeGateway) ListSchedules(_ context.Context, customerUid string, _, _ time.Time) ([]gateway.Schedule, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.listed[customerUid], nil
}

func (g *fakeGateway) Unschedule(_ context.Context, _ string, merchantUid string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.unscheduleErr != nil {
		return g.unscheduleErr
	}
	g.unscheduled = append(g.unscheduled, merchantUid)
	return nil
}

func (g *fakeGateway) CancelPayment(_ context.Context, req gateway.CancelRequest) (*gateway.Payment, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.cancelErr != nil {
		return nil, g.cancelErr
	}
	return &gateway.Payment{ImpUid: req.ImpUid, MerchantUid: req.MerchantUid, Status: "cancelled"}, nil
}

func (g *fakeGateway) FindByImpUid(_ context.Context, impUid string) (*gateway.Payment, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if p, ok := g.payments[impUid]; ok {
		return p, nil
	}
	return nil, errors.New("payment not found")
}

func (g *fakeGateway) FindByMerchantUid(_ context.Context, merchantUid string) (*gateway.Payment, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if p, ok := g.payments[merchantUid]; ok {
		return p, nil
	}
	return nil, errors.New("payment not found")
}

func (g *fakeGateway) unscheduledUids() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.unscheduled...)
}

// recordingPublisher 收集投递的事件
type recordingPublisher struct {
	mu     sync.Mutex
	events []interface{}
}

func (p *recordingPublisher) PublishEvent(_ context.Context, _ string, event interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.events)
}

func seedUser(t *testing.T, db *gorm.DB, email string, staff, admin bool) Actor {
	t.Helper()
	u := model.UserModel{Email: email, Username: email, IsStaff: staff, IsAdmin: admin}
	require.NoError(t, db.Create(&u).Error)
	return ActorFromUser(&u)
}

// seedFundingCampaign 创建进行中的筹款活动
func seedFundingCampaign(t *testing.T, db *gorm.DB, owner Actor, goal int64, end time.Time) *model.CampaignModel {
	t.Helper()
	c := model.CampaignModel{
		UserId:            owner.Id,
		Title:             "campaign",
		Content:           "content",
		Members:           10,
		CampaignStartDate: end.Add(-30 * 24 * time.Hour),
		CampaignEndDate:   end,
		Status:            model.CampaignStatusActive,
		IsFunding:         true,
	}
	require.NoError(t, db.Create(&c).Error)
	require.NoError(t, db.Create(&model.FundingModel{CampaignId: c.Id, Goal: goal}).Error)
	return &c
}

func seedCard(t *testing.T, db *gorm.DB, owner Actor) *model.RegisterPaymentModel {
	t.Helper()
	card := model.RegisterPaymentModel{
		UserId:      owner.Id,
		CustomerUid: fmt.Sprintf("%s_1", owner.Email),
		CardNumber:  "encrypted",
		CardMask:    "12345678****3456",
	}
	require.NoError(t, db.Create(&card).Error)
	return &card
}

func fundingAmount(t *testing.T, db *gorm.DB, campaignId int64) int64 {
	t.Helper()
	var f model.FundingModel
	require.NoError(t, db.Where("campaign_id = ?", campaignId).First(&f).Error)
	return f.Amount
}

func requireKind(t *testing.T, err error, kind ErrorKind) {
	t.Helper()
	require.Error(t, err)
	require.Equal(t, kind, KindOf(err), "unexpected error: %v", err)
}
