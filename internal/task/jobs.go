package task

import (
	"context"
	"time"

	"github.com/blues/campaignhub/internal/logger"
	"github.com/blues/campaignhub/internal/logic"
	"github.com/blues/campaignhub/internal/metrics"
	"github.com/go-co-op/gocron/v2"
)

const jobTimeout = 10 * time.Minute

// Lifecycle 活动状态流转
type Lifecycle interface {
	AdvanceEndedCampaigns(ctx context.Context, now time.Time) (int, error)
	ResolveFundingOutcomes(ctx context.Context, now time.Time) (*logic.FundingReport, error)
}

// Reconciler 网关预约对账
type Reconciler interface {
	ReconcileSchedules(ctx context.Context) (*logic.ReconcileReport, error)
}

// execute gocron 调用入口，带超时并记录结果
func execute(job Job) {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	start := time.Now()
	if err := job.Run(ctx); err != nil {
		metrics.JobRunsTotal.WithLabelValues(job.GetName(), "error").Inc()
		logger.Error("Job %s failed after %s: %v", job.GetName(), time.Since(start), err)
		return
	}
	metrics.JobRunsTotal.WithLabelValues(job.GetName(), "ok").Inc()
}

// CampaignStatusJob 将到期活动置为已结束
type CampaignStatusJob struct {
	lifecycle Lifecycle
	cron      string
	now       func() time.Time
}

func NewCampaignStatusJob(lifecycle Lifecycle, cron string) *CampaignStatusJob {
	return &CampaignStatusJob{lifecycle: lifecycle, cron: cron, now: time.Now}
}

func (j *CampaignStatusJob) GetName() string {
	return "campaign_status_checker"
}

func (j *CampaignStatusJob) GetSchedule() gocron.JobDefinition {
	return gocron.CronJob(j.cron, false)
}

func (j *CampaignStatusJob) Run(ctx context.Context) error {
	logger.Info("Starting campaign status task")
	n, err := j.lifecycle.AdvanceEndedCampaigns(ctx, j.now())
	if err != nil {
		return err
	}
	logger.Info("Campaign status task completed. Ended %d campaigns", n)
	return nil
}

func (j *CampaignStatusJob) Execute() { execute(j) }

// FundingResultJob 结算已结束的筹款活动
type FundingResultJob struct {
	lifecycle Lifecycle
	cron      string
	now       func() time.Time
}

func NewFundingResultJob(lifecycle Lifecycle, cron string) *FundingResultJob {
	return &FundingResultJob{lifecycle: lifecycle, cron: cron, now: time.Now}
}

func (j *FundingResultJob) GetName() string {
	return "funding_result_checker"
}

func (j *FundingResultJob) GetSchedule() gocron.JobDefinition {
	return gocron.CronJob(j.cron, false)
}

func (j *FundingResultJob) Run(ctx context.Context) error {
	logger.Info("Starting funding result task")
	report, err := j.lifecycle.ResolveFundingOutcomes(ctx, j.now())
	if err != nil {
		return err
	}
	logger.Info("Funding result task completed. funded=%d failed=%d completed=%d cancelled=%d cancel_errors=%d",
		report.Funded, report.Failed, report.Completed, report.Cancelled, report.CancelErrors)
	return nil
}

func (j *FundingResultJob) Execute() { execute(j) }

// ScheduleReconcileJob 清理网关上没有本地记录的预约
type ScheduleReconcileJob struct {
	reconciler Reconciler
	cron       string
}

func NewScheduleReconcileJob(reconciler Reconciler, cron string) *ScheduleReconcileJob {
	return &ScheduleReconcileJob{reconciler: reconciler, cron: cron}
}

func (j *ScheduleReconcileJob) GetName() string {
	return "schedule_reconciler"
}

func (j *ScheduleReconcileJob) GetSchedule() gocron.JobDefinition {
	return gocron.CronJob(j.cron, false)
}

func (j *ScheduleReconcileJob) Run(ctx context.Context) error {
	report, err := j.reconciler.ReconcileSchedules(ctx)
	if err != nil {
		return err
	}
	logger.Info("Schedule reconcile completed. customers=%d orphans=%d cancelled=%d failed=%d",
		report.Customers, report.Orphans, report.Cancelled, report.Failed)
	return nil
}

func (j *ScheduleReconcileJob) Execute() { execute(j) }
