package logic

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/blues/campaignhub/internal/logger"
	"github.com/blues/campaignhub/internal/metrics"
	"github.com/blues/campaignhub/internal/model"
	"gorm.io/gorm"
)

// ChatLogic 客服会话
type ChatLogic struct {
	db       *gorm.DB
	notifier *NotificationLogic
	now      func() time.Time
}

func NewChatLogic(db *gorm.DB, notifier *NotificationLogic) *ChatLogic {
	return &ChatLogic{db: db, notifier: notifier, now: time.Now}
}

// GetOrCreateRoom 每个用户只有一个会话
func (l *ChatLogic) GetOrCreateRoom(actor Actor) (*model.RoomModel, bool, error) {
	var room model.RoomModel
	err := l.db.Where("user_id = ?", actor.Id).Order("id ASC").First(&room).Error
	if err == nil {
		return &room, false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, err
	}

	room = model.RoomModel{UserId: actor.Id}
	if err := l.db.Create(&room).Error; err != nil {
		return nil, false, fmt.Errorf("create room: %w", err)
	}
	return &room, true, nil
}

// RoomSummary 客服端会话列表项
type RoomSummary struct {
	model.RoomModel
	Email    string `json:"email"`
	Username string `json:"username"`
}

// ListRooms 客服查看全部会话，未回复的排在前面
func (l *ChatLogic) ListRooms(actor Actor) ([]RoomSummary, error) {
	if !actor.IsStaff && !actor.IsAdmin {
		return nil, ForbiddenError("只有客服可以查看会话列表")
	}
	var rooms []RoomSummary
	err := l.db.Table("chat_room").
		Select("chat_room.*, users.email, users.username").
		Joins("LEFT JOIN users ON users.id = chat_room.user_id").
		Order("chat_room.is_active DESC, chat_room.updated_at DESC").
		Scan(&rooms).Error
	return rooms, err
}

// AuthorizeRoom 只有会话所有者或客服可以进入
func (l *ChatLogic) AuthorizeRoom(actor Actor, roomId int64) (*model.RoomModel, error) {
	var room model.RoomModel
	if err := l.db.First(&room, roomId).Error; err != nil {
		return nil, notFoundOr(err, "会话不存在")
	}
	if room.UserId != actor.Id && !actor.IsStaff {
		return nil, ForbiddenError("无权进入该会话")
	}
	return &room, nil
}

// RoomMessage 消息及发送者
type RoomMessage struct {
	model.MessageModel
	Email string `json:"email"`
}

// RoomMessages 会话历史消息
func (l *ChatLogic) RoomMessages(actor Actor, roomId int64) ([]RoomMessage, error) {
	if _, err := l.AuthorizeRoom(actor, roomId); err != nil {
		return nil, err
	}
	var messages []RoomMessage
	err := l.db.Table("chat_message").
		Select("chat_message.*, users.email").
		Joins("LEFT JOIN users ON users.id = chat_message.user_id").
		Where("chat_message.room_id = ?", roomId).
		Order("chat_message.created_at ASC, chat_message.id ASC").
		Scan(&messages).Error
	return messages, err
}

// AssignCounselor 客服连接时接管会话
func (l *ChatLogic) AssignCounselor(roomId, staffId int64) error {
	return l.db.Model(&model.RoomModel{}).Where("id = ?", roomId).
		Update("counselor_id", staffId).Error
}

// ReleaseCounselor 只释放由自己接管的会话
func (l *ChatLogic) ReleaseCounselor(roomId, staffId int64) error {
	return l.db.Model(&model.RoomModel{}).
		Where("id = ? AND counselor_id = ?", roomId, staffId).
		Update("counselor_id", nil).Error
}

// SaveMessage 保存一条消息
func (l *ChatLogic) SaveMessage(roomId int64, actor Actor, text string) (*model.MessageModel, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ValidationError("message", "消息不能为空")
	}
	msg := model.MessageModel{RoomId: roomId, UserId: actor.Id, Message: text}
	if err := l.db.Create(&msg).Error; err != nil {
		return nil, fmt.Errorf("save message: %w", err)
	}
	metrics.ChatMessagesTotal.Inc()
	return &msg, nil
}

// MarkActivity 用户发言使会话变为待回复；无客服在线且本轮尚未提醒时通知全部客服。
// 客服发言后会话恢复为已回复并清除提醒标记，下一次用户发言会再次提醒
func (l *ChatLogic) MarkActivity(ctx context.Context, roomId int64, actor Actor) (bool, error) {
	if actor.IsStaff {
		return false, l.db.Model(&model.RoomModel{}).Where("id = ?", roomId).
			Updates(map[string]interface{}{"is_active": false, "alarm_sent_at": nil}).Error
	}

	if err := l.db.Model(&model.RoomModel{}).
		Where("id = ? AND is_active = ?", roomId, false).
		Update("is_active", true).Error; err != nil {
		return false, err
	}

	// 客服在线期间不提醒，客服未回复就离开时下一次用户发言补发
	res := l.db.Model(&model.RoomModel{}).
		Where("id = ? AND counselor_id IS NULL AND alarm_sent_at IS NULL", roomId).
		Update("alarm_sent_at", l.now())
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected == 0 {
		return false, nil
	}

	n, err := l.notifier.NotifyStaff(ctx, fmt.Sprintf("%d号会话有新的咨询消息", roomId))
	if err != nil {
		return false, err
	}
	metrics.ChatAlarmsTotal.Inc()
	logger.Info("Chat room %d alarm sent to %d staff", roomId, n)
	return true, nil
}
