package logic

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/blues/campaignhub/internal/broker"
	"github.com/blues/campaignhub/internal/gateway"
	"github.com/blues/campaignhub/internal/logger"
	"github.com/blues/campaignhub/internal/metrics"
	"github.com/blues/campaignhub/internal/model"
	"github.com/blues/campaignhub/internal/tracing"
	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// PaymentGateway 支付网关能力
type PaymentGateway interface {
	CreateCustomer(ctx context.Context, req gateway.CustomerRequest) (*gateway.Customer, error)
	SchedulePayment(ctx context.Context, req gateway.ScheduleRequest) ([]gateway.Schedule, json.RawMessage, error)
	GetSchedule(ctx context.Context, merchantUid string) (*gateway.Schedule, error)
	ListSchedules(ctx context.Context, customerUid string, from, to time.Time) ([]gateway.Schedule, error)
	Unschedule(ctx context.Context, customerUid, merchantUid string) error
	CancelPayment(ctx context.Context, req gateway.CancelRequest) (*gateway.Payment, error)
	FindByImpUid(ctx context.Context, impUid string) (*gateway.Payment, error)
	FindByMerchantUid(ctx context.Context, merchantUid string) (*gateway.Payment, error)
}

const (
	scheduleCurrency = "KRW"
	scheduleDelay    = 24 * time.Hour
	// 对账时跳过刚创建的预约，避免与进行中的下单请求竞争
	reconcileGrace = 10 * time.Minute
)

// PaymentLogic 预约支付编排
type PaymentLogic struct {
	db        *gorm.DB
	gateway   PaymentGateway
	ledger    *FundingLedger
	publisher EventPublisher
	now       func() time.Time
	newUid    func() string
}

// NewPaymentLogic publisher 可以为 nil
func NewPaymentLogic(db *gorm.DB, gw PaymentGateway, publisher EventPublisher) *PaymentLogic {
	return &PaymentLogic{
		db:        db,
		gateway:   gw,
		ledger:    NewFundingLedger(db),
		publisher: publisher,
		now:       time.Now,
		newUid: func() string {
			return "imp" + strings.ReplaceAll(uuid.NewString(), "-", "")
		},
	}
}

// SchedulePaymentRequest 预约认筹请求
type SchedulePaymentRequest struct {
	CampaignId   int64 `json:"campaign"`
	Amount       int64 `json:"amount"`
	SelectedCard int64 `json:"selected_card"`
}

// SchedulePayment 先向网关预约扣款，成功后在同一事务中写入支付记录并累加筹款金额
func (l *PaymentLogic) SchedulePayment(ctx context.Context, actor Actor, req *SchedulePaymentRequest) (json.RawMessage, *model.PaymentModel, error) {
	ctx, span := tracing.StartSpan(ctx, "payment.schedule")
	defer span.End()

	if req.Amount <= 0 {
		return nil, nil, ValidationError("amount", "认筹金额必须大于0")
	}

	var campaign model.CampaignModel
	if err := l.db.First(&campaign, req.CampaignId).Error; err != nil {
		return nil, nil, notFoundOr(err, "活动不存在")
	}
	if !campaign.IsFunding {
		return nil, nil, ValidationError("campaign", "该活动不接受筹款")
	}
	if campaign.Status != model.CampaignStatusActive {
		return nil, nil, ValidationError("campaign", "活动不在进行中")
	}

	var card model.RegisterPaymentModel
	if err := l.db.First(&card, req.SelectedCard).Error; err != nil {
		return nil, nil, notFoundOr(err, "支付卡不存在")
	}
	if !CanModify(actor, &card) {
		return nil, nil, ForbiddenError("只能使用本人登记的支付卡")
	}

	merchantUid := l.newUid()
	scheduleAt := campaign.CampaignEndDate.Add(scheduleDelay)

	start := time.Now()
	_, raw, err := l.gateway.SchedulePayment(ctx, gateway.ScheduleRequest{
		CustomerUid: card.CustomerUid,
		Schedules: []gateway.ScheduleItem{{
			MerchantUid: merchantUid,
			ScheduleAt:  scheduleAt.Unix(),
			Currency:    scheduleCurrency,
			Amount:      req.Amount,
			Name:        campaign.Title,
			BuyerName:   actor.Username,
			BuyerEmail:  actor.Email,
		}},
	})
	metrics.GatewayLatency.WithLabelValues("schedule").Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.PaymentSchedulesTotal.WithLabelValues("gateway_error").Inc()
		var apiErr *gateway.APIError
		if errors.As(err, &apiErr) {
			logger.Warn("Gateway rejected schedule for campaign %d user %d: %v", campaign.Id, actor.Id, err)
		} else {
			// 网关可能已受理，撤销以免留下孤儿预约
			logger.Warn("Gateway schedule outcome unknown for campaign %d user %d: %v", campaign.Id, actor.Id, err)
			l.compensate(ctx, card.CustomerUid, merchantUid, err)
		}
		return nil, nil, ExternalError("预约扣款失败", err)
	}

	pending := model.PaymentStatusPending
	campaignId := campaign.Id
	payment := model.PaymentModel{
		UserId:          actor.Id,
		Amount:          req.Amount,
		CampaignId:      &campaignId,
		MerchantUid:     merchantUid,
		CustomerUid:     card.CustomerUid,
		Status:          &pending,
		GatewayResponse: datatypes.JSON(raw),
	}

	err = l.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&payment).Error; err != nil {
			return fmt.Errorf("create payment: %w", err)
		}
		return l.ledger.RecordPledge(tx, campaign.Id, req.Amount)
	})
	if err != nil {
		metrics.PaymentSchedulesTotal.WithLabelValues("local_error").Inc()
		l.compensate(ctx, card.CustomerUid, merchantUid, err)
		return nil, nil, err
	}

	metrics.PaymentSchedulesTotal.WithLabelValues("ok").Inc()
	logger.Info("Scheduled payment %d (%s) for campaign %d at %s",
		payment.Id, merchantUid, campaign.Id, scheduleAt.Format(time.RFC3339))
	l.publishPayment(ctx, broker.EventPaymentScheduled, &payment)

	return raw, &payment, nil
}

// compensate 本地提交失败时撤销网关预约，撤销失败由对账任务兜底
func (l *PaymentLogic) compensate(ctx context.Context, customerUid, merchantUid string, cause error) {
	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 15*time.Second)
	defer cancel()

	if err := l.gateway.Unschedule(cctx, customerUid, merchantUid); err != nil {
		metrics.OrphanSchedulesTotal.WithLabelValues("compensation_failed").Inc()
		logger.Error("Orphaned gateway schedule %s (local error: %v), unschedule failed: %v", merchantUid, cause, err)
		return
	}
	metrics.OrphanSchedulesTotal.WithLabelValues("compensated").Inc()
	logger.Warn("Unscheduled %s after failed schedule: %v", merchantUid, cause)
}

// ScheduleInfo 预约详情
type ScheduleInfo struct {
	Message    string    `json:"message"`
	ScheduleAt time.Time `json:"schedule_at"`
	Amount     int64     `json:"amount"`
	Campaign   string    `json:"campaign"`
	Buyer      string    `json:"buyer"`
	Status     string    `json:"schedule_status"`
}

// GetScheduleInfo 查询网关侧的预约信息
func (l *PaymentLogic) GetScheduleInfo(ctx context.Context, actor Actor, paymentId int64) (*ScheduleInfo, error) {
	payment, err := l.ownedPayment(actor, paymentId)
	if err != nil {
		return nil, err
	}
	if payment.CampaignId == nil {
		return nil, ValidationError("payment", "不是预约支付")
	}

	s, err := l.gateway.GetSchedule(ctx, payment.MerchantUid)
	if err != nil {
		return nil, ExternalError("查询预约失败", err)
	}
	at := time.Unix(s.ScheduleAt, 0)
	return &ScheduleInfo{
		Message: fmt.Sprintf("%s(%s) 已为 %s 活动认筹 %d，扣款日期为 %s。感谢您的支持。",
			s.BuyerName, s.BuyerEmail, s.Name, s.Amount, at.Format("2006-01-02 15:04")),
		ScheduleAt: at,
		Amount:     s.Amount,
		Campaign:   s.Name,
		Buyer:      s.BuyerName,
		Status:     s.ScheduleStatus,
	}, nil
}

// CancelSchedule 取消网关预约，成功后状态变为预约已取消；失败时状态不变
func (l *PaymentLogic) CancelSchedule(ctx context.Context, paymentId int64) error {
	var payment model.PaymentModel
	if err := l.db.First(&payment, paymentId).Error; err != nil {
		return notFoundOr(err, "支付记录不存在")
	}
	return l.cancelSchedule(ctx, &payment)
}

// CancelScheduleByUser 用户取消自己的待扣款预约
func (l *PaymentLogic) CancelScheduleByUser(ctx context.Context, actor Actor, paymentId int64) error {
	payment, err := l.ownedPayment(actor, paymentId)
	if err != nil {
		return err
	}
	return l.cancelSchedule(ctx, payment)
}

func (l *PaymentLogic) cancelSchedule(ctx context.Context, payment *model.PaymentModel) error {
	if payment.CampaignId == nil || payment.Status == nil || *payment.Status != model.PaymentStatusPending {
		return ValidationError("status", "只有待扣款的预约可以取消")
	}

	start := time.Now()
	err := l.gateway.Unschedule(ctx, payment.CustomerUid, payment.MerchantUid)
	metrics.GatewayLatency.WithLabelValues("unschedule").Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.PaymentCancellationsTotal.WithLabelValues("gateway_error").Inc()
		return ExternalError("取消预约失败", err)
	}

	res := l.db.Model(&model.PaymentModel{}).
		Where("id = ? AND status = ?", payment.Id, model.PaymentStatusPending).
		Update("status", model.PaymentStatusReservationCancelled)
	if res.Error != nil {
		metrics.PaymentCancellationsTotal.WithLabelValues("local_error").Inc()
		return fmt.Errorf("mark payment %d cancelled: %w", payment.Id, res.Error)
	}

	metrics.PaymentCancellationsTotal.WithLabelValues("ok").Inc()
	cancelled := model.PaymentStatusReservationCancelled
	payment.Status = &cancelled
	l.publishPayment(ctx, broker.EventPaymentCancelled, payment)
	return nil
}

// ReconcileReport 对账结果
type ReconcileReport struct {
	Customers int
	Orphans   int
	Cancelled int
	Failed    int
}

// ReconcileSchedules 撤销网关上存在但本地没有对应待扣款记录的预约
func (l *PaymentLogic) ReconcileSchedules(ctx context.Context) (*ReconcileReport, error) {
	ctx, span := tracing.StartSpan(ctx, "payment.reconcile")
	defer span.End()

	var customerUids []string
	err := l.db.Raw(`SELECT customer_uid FROM register_payment WHERE customer_uid <> ''
		UNION SELECT customer_uid FROM payment WHERE customer_uid <> '' AND campaign_id IS NOT NULL`).
		Scan(&customerUids).Error
	if err != nil {
		return nil, fmt.Errorf("load customer uids: %w", err)
	}

	now := l.now()
	report := &ReconcileReport{Customers: len(customerUids)}
	for _, customerUid := range customerUids {
		schedules, err := l.gateway.ListSchedules(ctx, customerUid, now.Add(-24*time.Hour), now.AddDate(2, 0, 0))
		if err != nil {
			logger.Error("Failed to list gateway schedules for %s: %v", customerUid, err)
			report.Failed++
			continue
		}

		for _, s := range schedules {
			if s.ScheduleStatus != "" && s.ScheduleStatus != gateway.ScheduleStatusScheduled {
				continue
			}
			if s.CreatedAt > 0 && now.Sub(time.Unix(s.CreatedAt, 0)) < reconcileGrace {
				continue
			}

			var count int64
			if err := l.db.Model(&model.PaymentModel{}).
				Where("merchant_uid = ? AND status = ?", s.MerchantUid, model.PaymentStatusPending).
				Count(&count).Error; err != nil {
				logger.Error("Failed to look up payment %s: %v", s.MerchantUid, err)
				report.Failed++
				continue
			}
			if count > 0 {
				continue
			}

			report.Orphans++
			if err := l.gateway.Unschedule(ctx, customerUid, s.MerchantUid); err != nil {
				metrics.OrphanSchedulesTotal.WithLabelValues("reconcile_failed").Inc()
				logger.Error("Failed to unschedule orphan %s for %s: %v", s.MerchantUid, customerUid, err)
				report.Failed++
				continue
			}
			metrics.OrphanSchedulesTotal.WithLabelValues("reconciled").Inc()
			logger.Warn("Unscheduled orphan gateway schedule %s for %s", s.MerchantUid, customerUid)
			report.Cancelled++
		}
	}
	return report, nil
}

func (l *PaymentLogic) ownedPayment(actor Actor, paymentId int64) (*model.PaymentModel, error) {
	var payment model.PaymentModel
	if err := l.db.First(&payment, paymentId).Error; err != nil {
		return nil, notFoundOr(err, "支付记录不存在")
	}
	if err := requireOwner(actor, &payment); err != nil {
		return nil, err
	}
	return &payment, nil
}

func (l *PaymentLogic) publishPayment(ctx context.Context, eventType string, p *model.PaymentModel) {
	if l.publisher == nil {
		return
	}
	event := broker.PaymentEvent{
		Type:        eventType,
		PaymentId:   p.Id,
		UserId:      p.UserId,
		MerchantUid: p.MerchantUid,
		Amount:      p.Amount,
		OccurredAt:  l.now(),
	}
	if p.CampaignId != nil {
		event.CampaignId = *p.CampaignId
	}
	if err := l.publisher.PublishEvent(ctx, strconv.FormatInt(p.Id, 10), event); err != nil {
		logger.Warn("Failed to publish %s for payment %d: %v", eventType, p.Id, err)
	}
}
