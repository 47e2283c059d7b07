package model

import "time"

// RoomModel 用户与客服之间的会话
type RoomModel struct {
	Id        int64     `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	UserId      int64      `json:"user_id" gorm:"index;not null"`
	CounselorId *int64     `json:"counselor_id"`
	IsActive    bool       `json:"is_active" gorm:"index;default:false"`
	AlarmSentAt *time.Time `json:"alarm_sent_at"`
}

func (RoomModel) TableName() string {
	return "chat_room"
}

// MessageModel 聊天消息
type MessageModel struct {
	Id        int64     `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`

	RoomId  int64  `json:"room_id" gorm:"index;not null"`
	UserId  int64  `json:"user_id" gorm:"not null"`
	Message string `json:"message" gorm:"type:text;not null"`
}

func (MessageModel) TableName() string {
	return "chat_message"
}

// NotificationModel 站内通知
type NotificationModel struct {
	Id        int64     `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`

	UserId  int64  `json:"user_id" gorm:"index;not null"`
	Message string `json:"message" gorm:"not null"`
}

func (NotificationModel) TableName() string {
	return "notification"
}
