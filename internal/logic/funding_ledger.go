package logic

import (
	"fmt"

	"github.com/blues/campaignhub/internal/model"
	"gorm.io/gorm"
)

// FundingLedger 筹款台账，只通过原子自增累加金额
type FundingLedger struct {
	db *gorm.DB
}

func NewFundingLedger(db *gorm.DB) *FundingLedger {
	return &FundingLedger{db: db}
}

// RecordPledge 必须在创建支付记录的同一事务中调用
func (f *FundingLedger) RecordPledge(tx *gorm.DB, campaignId int64, amount int64) error {
	if amount <= 0 {
		return ValidationError("amount", "认筹金额必须大于0")
	}

	res := tx.Model(&model.FundingModel{}).
		Where("campaign_id = ?", campaignId).
		Update("amount", gorm.Expr("amount + ?", amount))
	if res.Error != nil {
		return fmt.Errorf("record pledge for campaign %d: %w", campaignId, res.Error)
	}
	if res.RowsAffected == 0 {
		return NotFoundError("筹款信息不存在")
	}
	return nil
}

// Funding 读取活动的筹款信息
func (f *FundingLedger) Funding(campaignId int64) (*model.FundingModel, error) {
	var funding model.FundingModel
	if err := f.db.Where("campaign_id = ?", campaignId).First(&funding).Error; err != nil {
		return nil, notFoundOr(err, "筹款信息不存在")
	}
	return &funding, nil
}
