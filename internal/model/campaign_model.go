package model

import (
	"time"
)

// CampaignModel 活动模型
type CampaignModel struct {
	Id        int64     `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	UserId  int64  `json:"user_id" gorm:"index;not null"`
	Title   string `json:"title" gorm:"not null"`
	Content string `json:"content" gorm:"type:text"`
	Members int    `json:"members" gorm:"not null"`

	// 活动期间
	CampaignStartDate time.Time  `json:"campaign_start_date" gorm:"not null"`
	CampaignEndDate   time.Time  `json:"campaign_end_date" gorm:"index;not null"`
	ActivityStartDate *time.Time `json:"activity_start_date"`
	ActivityEndDate   *time.Time `json:"activity_end_date"`

	Image     string         `json:"image"`
	Category  int            `json:"category" gorm:"index"`
	Status    CampaignStatus `json:"status" gorm:"index;default:0"`
	IsFunding bool           `json:"is_funding" gorm:"default:false"`

	Funding *FundingModel `json:"fundings,omitempty" gorm:"foreignKey:CampaignId"`
}

// CampaignStatus 活动状态
type CampaignStatus int

const (
	CampaignStatusUnapproved    CampaignStatus = 0 // 待审核
	CampaignStatusActive        CampaignStatus = 1 // 进行中
	CampaignStatusEnded         CampaignStatus = 2 // 已结束
	CampaignStatusFundingFailed CampaignStatus = 3 // 筹款失败
)

func (s CampaignStatus) Valid() bool {
	return s >= CampaignStatusUnapproved && s <= CampaignStatusFundingFailed
}

func (CampaignModel) TableName() string {
	return "campaign"
}

func (c *CampaignModel) OwnerId() int64 {
	return c.UserId
}

// FundingModel 筹款目标与已认筹金额，与活动一对一
type FundingModel struct {
	Id        int64     `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	CampaignId  int64  `json:"campaign" gorm:"uniqueIndex;not null"`
	Goal        int64  `json:"goal" gorm:"not null"`
	Amount      int64  `json:"amount" gorm:"not null;default:0"`
	ApproveFile string `json:"approve_file"`
}

func (FundingModel) TableName() string {
	return "funding"
}

// ParticipantModel 活动参与记录
type ParticipantModel struct {
	Id        int64     `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`

	UserId         int64 `json:"user_id" gorm:"uniqueIndex:idx_participant_user_campaign;not null"`
	CampaignId     int64 `json:"campaign_id" gorm:"uniqueIndex:idx_participant_user_campaign;not null"`
	IsParticipated bool  `json:"is_participated" gorm:"default:true"`
}

func (ParticipantModel) TableName() string {
	return "participant"
}

// CampaignLikeModel 活动点赞
type CampaignLikeModel struct {
	UserId     int64     `json:"user_id" gorm:"primaryKey"`
	CampaignId int64     `json:"campaign_id" gorm:"primaryKey"`
	CreatedAt  time.Time `json:"created_at"`
}

func (CampaignLikeModel) TableName() string {
	return "campaign_like"
}
