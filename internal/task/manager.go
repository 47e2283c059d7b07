package task

import (
	"context"
	"fmt"
	"sort"

	"github.com/blues/campaignhub/internal/logger"
	"github.com/go-co-op/gocron/v2"
)

// Job 定时任务
type Job interface {
	GetName() string
	GetSchedule() gocron.JobDefinition
	Run(ctx context.Context) error
	Execute()
}

// Manager 任务管理器
type Manager struct {
	scheduler gocron.Scheduler
	locker    gocron.Locker
	jobs      map[string]Job
}

// NewManager 创建新的任务管理器，locker 非空时多实例只会有一个执行
func NewManager(locker gocron.Locker, jobs ...Job) (*Manager, error) {
	var opts []gocron.SchedulerOption
	if locker != nil {
		opts = append(opts, gocron.WithDistributedLocker(locker))
	}
	s, err := gocron.NewScheduler(opts...)
	if err != nil {
		return nil, fmt.Errorf("create scheduler: %w", err)
	}

	m := &Manager{
		scheduler: s,
		locker:    locker,
		jobs:      make(map[string]Job, len(jobs)),
	}
	for _, job := range jobs {
		m.jobs[job.GetName()] = job
	}
	return m, nil
}

// Start 注册所有任务并启动调度器
func (m *Manager) Start() error {
	if err := m.RegisterJobs(); err != nil {
		return err
	}
	m.scheduler.Start()
	logger.Info("Task manager started successfully with %d jobs", len(m.jobs))
	return nil
}

// RegisterJobs 注册所有任务
func (m *Manager) RegisterJobs() error {
	for _, name := range m.Names() {
		job := m.jobs[name]
		_, err := m.scheduler.NewJob(
			job.GetSchedule(),
			gocron.NewTask(job.Execute),
			gocron.WithName(job.GetName()),
			gocron.WithSingletonMode(gocron.LimitModeReschedule),
		)
		if err != nil {
			logger.Error("Failed to register job %s: %v", job.GetName(), err)
			return fmt.Errorf("register job %s: %w", job.GetName(), err)
		}
	}
	return nil
}

// Names 已注册任务名称（排序）
func (m *Manager) Names() []string {
	names := make([]string, 0, len(m.jobs))
	for name := range m.jobs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// RunByName 立即执行一次指定任务，与定时执行共用同一把分布式锁
func (m *Manager) RunByName(ctx context.Context, name string) error {
	job, ok := m.jobs[name]
	if !ok {
		return fmt.Errorf("unknown job %q", name)
	}
	if m.locker == nil {
		return job.Run(ctx)
	}

	lock, err := m.locker.Lock(ctx, name)
	if err != nil {
		return fmt.Errorf("lock job %s: %w", name, err)
	}
	defer func() {
		if err := lock.Unlock(context.Background()); err != nil {
			logger.Error("Failed to unlock job %s: %v", name, err)
		}
	}()
	return job.Run(ctx)
}

// Stop 停止任务管理器
func (m *Manager) Stop() {
	if err := m.scheduler.Shutdown(); err != nil {
		logger.Error("Failed to shutdown scheduler: %v", err)
	}
	logger.Info("Task manager stopped")
}
