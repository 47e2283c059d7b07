package logic

import (
	"strings"

	"gorm.io/gorm"
)

// CampaignOrder 活动列表排序方式
type CampaignOrder int

const (
	OrderRecent CampaignOrder = iota
	OrderClosing
	OrderPopular
	OrderLike
	OrderAmount
)

var campaignOrderNames = map[string]CampaignOrder{
	"recent":  OrderRecent,
	"closing": OrderClosing,
	"popular": OrderPopular,
	"like":    OrderLike,
	"amount":  OrderAmount,
}

// ParseCampaignOrder 空值默认 recent，未知值返回校验错误
func ParseCampaignOrder(s string) (CampaignOrder, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return OrderRecent, nil
	}
	order, ok := campaignOrderNames[s]
	if !ok {
		return OrderRecent, ValidationError("order", "不支持的排序方式: "+s)
	}
	return order, nil
}

func (o CampaignOrder) String() string {
	for name, v := range campaignOrderNames {
		if v == o {
			return name
		}
	}
	return "recent"
}

func (o CampaignOrder) apply(db *gorm.DB) *gorm.DB {
	switch o {
	case OrderClosing:
		return orderByClosing(db)
	case OrderPopular:
		return orderByPopular(db)
	case OrderLike:
		return orderByLike(db)
	case OrderAmount:
		return orderByAmount(db)
	default:
		return orderByRecent(db)
	}
}

func orderByRecent(db *gorm.DB) *gorm.DB {
	return db.Order("campaign.created_at DESC").Order("campaign.id DESC")
}

func orderByClosing(db *gorm.DB) *gorm.DB {
	return db.Order("campaign.campaign_end_date ASC").Order("campaign.id ASC")
}

func orderByPopular(db *gorm.DB) *gorm.DB {
	return db.Order("(SELECT COUNT(*) FROM participant WHERE participant.campaign_id = campaign.id) DESC").
		Order("campaign.id DESC")
}

func orderByLike(db *gorm.DB) *gorm.DB {
	return db.Order("(SELECT COUNT(*) FROM campaign_like WHERE campaign_like.campaign_id = campaign.id) DESC").
		Order("campaign.id DESC")
}

func orderByAmount(db *gorm.DB) *gorm.DB {
	return db.Order("(SELECT COALESCE(MAX(funding.amount), 0) FROM funding WHERE funding.campaign_id = campaign.id) DESC").
		Order("campaign.id DESC")
}
