package main

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"time"

	"github.com/blues/campaignhub/internal/broker"
	"github.com/blues/campaignhub/internal/cache"
	"github.com/blues/campaignhub/internal/chat"
	"github.com/blues/campaignhub/internal/cipher"
	"github.com/blues/campaignhub/internal/config"
	"github.com/blues/campaignhub/internal/database"
	"github.com/blues/campaignhub/internal/gateway"
	"github.com/blues/campaignhub/internal/logger"
	"github.com/blues/campaignhub/internal/logic"
	"github.com/blues/campaignhub/internal/middleware"
	"github.com/blues/campaignhub/internal/task"
	"github.com/blues/campaignhub/internal/tracing"
	"github.com/go-co-op/gocron/v2"
	"github.com/redis/go-redis/v9"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"gorm.io/gorm"
)

const (
	viewDedupTTL = 24 * time.Hour
	jobLockTTL   = 30 * time.Minute
)

// app 进程内共享的依赖
type app struct {
	cfg      *config.Config
	db       *gorm.DB
	rdb      *redis.Client
	producer *broker.Producer
	tracer   *sdktrace.TracerProvider
	tokens   *middleware.TokenIssuer

	campaigns     *logic.CampaignLogic
	comments      *logic.CommentLogic
	notifications *logic.NotificationLogic
	payments      *logic.PaymentLogic
	cards         *logic.CardLogic
	shop          *logic.ShopLogic
	chat          *logic.ChatLogic
	lifecycle     *logic.LifecycleLogic
	relay         *chat.Relay
}

func loadConfig() (*config.Config, error) {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	l, err := logger.NewWithOptions(logger.Options{
		Level:      cfg.Log.Level,
		Output:     cfg.Log.Output,
		File:       cfg.Log.File,
		MaxSize:    cfg.Log.MaxSize,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAge:     cfg.Log.MaxAge,
		Compress:   cfg.Log.Compress,
	})
	if err != nil {
		return nil, err
	}
	logger.SetDefaultLogger(l)
	return cfg, nil
}

func newTokenIssuer(cfg *config.Config) *middleware.TokenIssuer {
	return middleware.NewTokenIssuer(cfg.JWT)
}

func newApp() (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, tokens: newTokenIssuer(cfg)}

	// 初始化数据库
	a.db, err = database.Init(cfg.Database)
	if err != nil {
		return nil, err
	}

	a.tracer, err = tracing.Init(cfg.Tracing)
	if err != nil {
		logger.Warn("Tracing disabled: %v", err)
	}

	if cfg.Redis.Enabled {
		a.rdb, err = cache.NewClient(cfg.Redis)
		if err != nil {
			a.Close()
			return nil, err
		}
	}

	var publisher logic.EventPublisher
	if cfg.Kafka.Enabled {
		a.producer = broker.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		publisher = a.producer
	}

	var views logic.ViewTracker
	broadcaster := chat.Broadcaster(chat.NewLocalBroadcaster())
	if a.rdb != nil {
		views = cache.NewViewTracker(a.rdb, viewDedupTTL)
		broadcaster = chat.NewRedisBroadcaster(a.rdb)
	}

	fieldCipher, err := cipher.New(cipherKey(cfg.Cipher.Key))
	if err != nil {
		a.Close()
		return nil, err
	}

	gw := gateway.NewClient(cfg.Gateway)

	a.campaigns = logic.NewCampaignLogic(a.db)
	a.comments = logic.NewCommentLogic(a.db)
	a.notifications = logic.NewNotificationLogic(a.db, publisher)
	a.payments = logic.NewPaymentLogic(a.db, gw, publisher)
	a.cards = logic.NewCardLogic(a.db, gw, fieldCipher, cfg.Gateway.PG)
	a.shop = logic.NewShopLogic(a.db, views, a.notifications, cfg.Task.Workers)
	a.chat = logic.NewChatLogic(a.db, a.notifications)
	a.lifecycle = logic.NewLifecycleLogic(a.db, a.payments, publisher, cfg.Task.Workers)

	a.relay, err = chat.NewRelay(a.chat, broadcaster, cfg.Chat.Workers)
	if err != nil {
		a.Close()
		return nil, err
	}

	logger.Info("Application initialized (redis=%t, kafka=%t, tracing=%t)",
		a.rdb != nil, a.producer != nil, a.tracer != nil)
	return a, nil
}

// cipherKey 非 release 模式未配置密钥时使用进程内临时密钥
func cipherKey(configured string) string {
	if configured != "" {
		return configured
	}
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		logger.Fatal("Failed to generate cipher key: %v", err)
	}
	logger.Warn("cipher.key not configured, card digits are encrypted with an ephemeral key")
	return base64.StdEncoding.EncodeToString(key)
}

// taskManager 组装定时任务，启用 redis 时使用分布式锁
func (a *app) taskManager() (*task.Manager, error) {
	var locker gocron.Locker
	if a.rdb != nil {
		locker = cache.NewLocker(a.rdb, jobLockTTL)
	}
	return task.NewManager(locker, newJobs(a.cfg.Task, a.lifecycle, a.payments)...)
}

// newJobs 全部定时任务，job list 不连接数据库时依赖可以为 nil
func newJobs(cfg config.TaskConfig, lifecycle task.Lifecycle, reconciler task.Reconciler) []task.Job {
	return []task.Job{
		task.NewCampaignStatusJob(lifecycle, cfg.StatusCron),
		task.NewFundingResultJob(lifecycle, cfg.FundingCron),
		task.NewScheduleReconcileJob(reconciler, cfg.ReconcileCron),
	}
}

// Close 释放外部连接
func (a *app) Close() {
	if a.relay != nil {
		a.relay.Close()
	}
	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			logger.Error("Failed to close kafka producer: %v", err)
		}
	}
	if a.rdb != nil {
		if err := a.rdb.Close(); err != nil {
			logger.Error("Failed to close redis client: %v", err)
		}
	}
	if a.tracer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := a.tracer.Shutdown(ctx); err != nil {
			logger.Error("Failed to shutdown tracer: %v", err)
		}
	}
	if a.db != nil {
		if sqlDB, err := a.db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
	logger.Sync()
}
