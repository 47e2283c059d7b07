package model

import "time"

// CommentModel 活动评论
type CommentModel struct {
	Id        int64     `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	UserId     int64  `json:"user_id" gorm:"index;not null"`
	CampaignId int64  `json:"campaign_id" gorm:"index;not null"`
	Content    string `json:"content" gorm:"type:text;not null"`
}

func (CommentModel) TableName() string {
	return "campaign_comment"
}

func (c *CommentModel) OwnerId() int64 {
	return c.UserId
}

// ReviewModel 活动结束后的回顾
type ReviewModel struct {
	Id        int64     `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	UserId     int64  `json:"user_id" gorm:"index;not null"`
	CampaignId int64  `json:"campaign_id" gorm:"index;not null"`
	Title      string `json:"title" gorm:"not null"`
	Content    string `json:"content" gorm:"type:text;not null"`
}

func (ReviewModel) TableName() string {
	return "campaign_review"
}

func (r *ReviewModel) OwnerId() int64 {
	return r.UserId
}
