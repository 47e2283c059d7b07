package logic

import (
	"context"
	"fmt"
	"strconv"

	"github.com/blues/campaignhub/internal/broker"
	"github.com/blues/campaignhub/internal/logger"
	"github.com/blues/campaignhub/internal/model"
	"gorm.io/gorm"
)

// EventPublisher 事件投递（kafka producer 实现）
type EventPublisher interface {
	PublishEvent(ctx context.Context, key string, event interface{}) error
}

// NotificationLogic 站内通知
type NotificationLogic struct {
	db        *gorm.DB
	publisher EventPublisher
}

// NewNotificationLogic publisher 可以为 nil
func NewNotificationLogic(db *gorm.DB, publisher EventPublisher) *NotificationLogic {
	return &NotificationLogic{db: db, publisher: publisher}
}

// CreateTx 在调用方事务中写入通知
func (n *NotificationLogic) CreateTx(tx *gorm.DB, userIds []int64, message string) ([]model.NotificationModel, error) {
	if len(userIds) == 0 {
		return nil, nil
	}
	notes := make([]model.NotificationModel, 0, len(userIds))
	for _, uid := range userIds {
		notes = append(notes, model.NotificationModel{UserId: uid, Message: message})
	}
	if err := tx.Create(&notes).Error; err != nil {
		return nil, fmt.Errorf("create notifications: %w", err)
	}
	return notes, nil
}

// Publish 提交后投递事件，失败只记录日志
func (n *NotificationLogic) Publish(ctx context.Context, notes []model.NotificationModel) {
	if n.publisher == nil {
		return
	}
	for _, note := range notes {
		event := broker.NotificationEvent{
			Type:           broker.EventNotificationCreated,
			NotificationId: note.Id,
			UserId:         note.UserId,
			Message:        note.Message,
			CreatedAt:      note.CreatedAt,
		}
		if err := n.publisher.PublishEvent(ctx, strconv.FormatInt(note.UserId, 10), event); err != nil {
			logger.Warn("Failed to publish notification %d for user %d: %v", note.Id, note.UserId, err)
		}
	}
}

// NotifyStaff 通知所有客服
func (n *NotificationLogic) NotifyStaff(ctx context.Context, message string) (int, error) {
	var staffIds []int64
	if err := n.db.Model(&model.UserModel{}).Where("is_staff = ?", true).Pluck("id", &staffIds).Error; err != nil {
		return 0, fmt.Errorf("load staff users: %w", err)
	}
	notes, err := n.CreateTx(n.db, staffIds, message)
	if err != nil {
		return 0, err
	}
	n.Publish(ctx, notes)
	return len(notes), nil
}

// ListNotifications 分页获取我的通知
func (n *NotificationLogic) ListNotifications(userId int64, page, pageSize int) ([]model.NotificationModel, int64, error) {
	page, pageSize = NormalizePage(page, pageSize, PageSizeNotification)

	var notes []model.NotificationModel
	var total int64

	if err := n.db.Model(&model.NotificationModel{}).Where("user_id = ?", userId).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * pageSize
	if err := n.db.Where("user_id = ?", userId).Order("created_at DESC, id DESC").Offset(offset).Limit(pageSize).Find(&notes).Error; err != nil {
		return nil, 0, err
	}
	return notes, total, nil
}

// DeleteAll 删除我的全部通知
func (n *NotificationLogic) DeleteAll(userId int64) (int64, error) {
	res := n.db.Where("user_id = ?", userId).Delete(&model.NotificationModel{})
	return res.RowsAffected, res.Error
}
