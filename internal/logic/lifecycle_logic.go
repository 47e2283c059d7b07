package logic

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/blues/campaignhub/internal/broker"
	"github.com/blues/campaignhub/internal/logger"
	"github.com/blues/campaignhub/internal/metrics"
	"github.com/blues/campaignhub/internal/model"
	"github.com/blues/campaignhub/internal/tracing"
	"github.com/panjf2000/ants/v2"
	"gorm.io/gorm"
)

// ScheduleCanceller 取消单笔预约
type ScheduleCanceller interface {
	CancelSchedule(ctx context.Context, paymentId int64) error
}

// LifecycleLogic 活动状态流转与筹款结算
type LifecycleLogic struct {
	db        *gorm.DB
	canceller ScheduleCanceller
	publisher EventPublisher
	workers   int
}

func NewLifecycleLogic(db *gorm.DB, canceller ScheduleCanceller, publisher EventPublisher, workers int) *LifecycleLogic {
	if workers <= 0 {
		workers = 1
	}
	return &LifecycleLogic{db: db, canceller: canceller, publisher: publisher, workers: workers}
}

// AdvanceEndedCampaigns 将已到结束日期的进行中活动置为已结束，重复执行无副作用
func (l *LifecycleLogic) AdvanceEndedCampaigns(ctx context.Context, now time.Time) (int, error) {
	_, span := tracing.StartSpan(ctx, "lifecycle.advance")
	defer span.End()

	var ids []int64
	if err := l.db.Model(&model.CampaignModel{}).
		Where("status = ? AND campaign_end_date <= ?", model.CampaignStatusActive, now).
		Pluck("id", &ids).Error; err != nil {
		return 0, fmt.Errorf("load ended campaigns: %w", err)
	}

	advanced := 0
	for _, id := range ids {
		res := l.db.Model(&model.CampaignModel{}).
			Where("id = ? AND status = ?", id, model.CampaignStatusActive).
			Update("status", model.CampaignStatusEnded)
		if res.Error != nil {
			logger.Error("Failed to end campaign %d: %v", id, res.Error)
			continue
		}
		if res.RowsAffected == 1 {
			advanced++
			metrics.CampaignsEndedTotal.Inc()
		}
	}

	if advanced > 0 {
		logger.Info("Ended %d campaigns", advanced)
	}
	return advanced, nil
}

// FundingReport 筹款结算结果
type FundingReport struct {
	Funded       int
	Failed       int
	Completed    int
	Cancelled    int
	CancelErrors int
}

type fundingCandidate struct {
	Id     int64
	Status model.CampaignStatus
	Goal   int64
	Amount int64
}

// ResolveFundingOutcomes 对已结束的筹款活动判定成败；失败活动逐笔取消预约，取消失败的在下次运行时重试
func (l *LifecycleLogic) ResolveFundingOutcomes(ctx context.Context, now time.Time) (*FundingReport, error) {
	ctx, span := tracing.StartSpan(ctx, "lifecycle.resolve_funding")
	defer span.End()

	pendingExists := "EXISTS (SELECT 1 FROM payment WHERE payment.campaign_id = campaign.id AND payment.status = ?)"

	var candidates []fundingCandidate
	err := l.db.Table("campaign").
		Select("campaign.id, campaign.status, funding.goal, funding.amount").
		Joins("JOIN funding ON funding.campaign_id = campaign.id").
		Where("campaign.is_funding = ? AND campaign.campaign_end_date <= ?", true, now).
		Where(l.db.Where("campaign.status = ? AND (funding.amount < funding.goal OR "+pendingExists+")",
			model.CampaignStatusEnded, model.PaymentStatusPending).
			Or("campaign.status = ? AND "+pendingExists,
				model.CampaignStatusFundingFailed, model.PaymentStatusPending)).
		Scan(&candidates).Error
	if err != nil {
		return nil, fmt.Errorf("load funding candidates: %w", err)
	}
	if len(candidates) == 0 {
		return &FundingReport{}, nil
	}

	pool, err := ants.NewPool(l.workers)
	if err != nil {
		return nil, fmt.Errorf("create worker pool: %w", err)
	}
	defer pool.Release()

	var (
		wg                                      sync.WaitGroup
		funded, failed, completed, cancelled, e int64
	)
	for _, c := range candidates {
		c := c
		wg.Add(1)
		submitErr := pool.Submit(func() {
			defer wg.Done()
			if c.Amount >= c.Goal && c.Status == model.CampaignStatusEnded {
				n, err := l.completeFunded(ctx, c)
				if err != nil {
					logger.Error("Failed to complete payments for campaign %d: %v", c.Id, err)
					atomic.AddInt64(&e, 1)
					return
				}
				atomic.AddInt64(&funded, 1)
				atomic.AddInt64(&completed, int64(n))
				return
			}

			ok, n, errs := l.failUnfunded(ctx, c)
			if ok {
				atomic.AddInt64(&failed, 1)
			}
			atomic.AddInt64(&cancelled, int64(n))
			atomic.AddInt64(&e, int64(errs))
		})
		if submitErr != nil {
			wg.Done()
			logger.Error("Failed to submit funding task for campaign %d: %v", c.Id, submitErr)
			atomic.AddInt64(&e, 1)
		}
	}
	wg.Wait()

	report := &FundingReport{
		Funded:       int(funded),
		Failed:       int(failed),
		Completed:    int(completed),
		Cancelled:    int(cancelled),
		CancelErrors: int(e),
	}
	logger.Info("Funding resolution finished: funded=%d failed=%d completed=%d cancelled=%d errors=%d",
		report.Funded, report.Failed, report.Completed, report.Cancelled, report.CancelErrors)
	return report, nil
}

func (l *LifecycleLogic) completeFunded(ctx context.Context, c fundingCandidate) (int, error) {
	res := l.db.Model(&model.PaymentModel{}).
		Where("campaign_id = ? AND status = ?", c.Id, model.PaymentStatusPending).
		Update("status", model.PaymentStatusReservationComplete)
	if res.Error != nil {
		return 0, res.Error
	}
	metrics.FundingOutcomesTotal.WithLabelValues("funded").Inc()
	logger.Info("Campaign %d funded (%d/%d), %d payments completed", c.Id, c.Amount, c.Goal, res.RowsAffected)
	l.publishOutcome(ctx, c, model.CampaignStatusEnded)
	return int(res.RowsAffected), nil
}

// failUnfunded 返回本次是否完成状态转换、已取消笔数和失败笔数
func (l *LifecycleLogic) failUnfunded(ctx context.Context, c fundingCandidate) (bool, int, int) {
	transitioned := false
	if c.Status == model.CampaignStatusEnded {
		res := l.db.Model(&model.CampaignModel{}).
			Where("id = ? AND status = ?", c.Id, model.CampaignStatusEnded).
			Update("status", model.CampaignStatusFundingFailed)
		if res.Error != nil {
			logger.Error("Failed to mark campaign %d funding failed: %v", c.Id, res.Error)
			return false, 0, 1
		}
		if res.RowsAffected == 1 {
			transitioned = true
			metrics.FundingOutcomesTotal.WithLabelValues("failed").Inc()
			logger.Info("Campaign %d failed to reach goal (%d/%d)", c.Id, c.Amount, c.Goal)
			l.publishOutcome(ctx, c, model.CampaignStatusFundingFailed)
		}
	}

	var paymentIds []int64
	if err := l.db.Model(&model.PaymentModel{}).
		Where("campaign_id = ? AND status = ?", c.Id, model.PaymentStatusPending).
		Pluck("id", &paymentIds).Error; err != nil {
		logger.Error("Failed to load pending payments for campaign %d: %v", c.Id, err)
		return transitioned, 0, 1
	}

	cancelled, errs := 0, 0
	for _, id := range paymentIds {
		if err := l.canceller.CancelSchedule(ctx, id); err != nil {
			logger.Error("Failed to cancel payment %d for campaign %d: %v", id, c.Id, err)
			errs++
			continue
		}
		cancelled++
	}
	return transitioned, cancelled, errs
}

func (l *LifecycleLogic) publishOutcome(ctx context.Context, c fundingCandidate, status model.CampaignStatus) {
	if l.publisher == nil {
		return
	}
	event := broker.CampaignEvent{
		Type:       broker.EventCampaignResolved,
		CampaignId: c.Id,
		Status:     int(status),
		Amount:     c.Amount,
		Goal:       c.Goal,
		OccurredAt: time.Now(),
	}
	if err := l.publisher.PublishEvent(ctx, strconv.FormatInt(c.Id, 10), event); err != nil {
		logger.Warn("Failed to publish outcome for campaign %d: %v", c.Id, err)
	}
}
