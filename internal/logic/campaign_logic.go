package logic

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/blues/campaignhub/internal/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CampaignLogic 活动业务逻辑
type CampaignLogic struct {
	db  *gorm.DB
	now func() time.Time
}

// NewCampaignLogic 创建活动业务逻辑
func NewCampaignLogic(db *gorm.DB) *CampaignLogic {
	return &CampaignLogic{db: db, now: time.Now}
}

// CampaignRequest 创建/修改活动请求
type CampaignRequest struct {
	Title             string     `json:"title"`
	Content           string     `json:"content"`
	Members           int        `json:"members"`
	CampaignStartDate time.Time  `json:"campaign_start_date"`
	CampaignEndDate   time.Time  `json:"campaign_end_date"`
	ActivityStartDate *time.Time `json:"activity_start_date"`
	ActivityEndDate   *time.Time `json:"activity_end_date"`
	Image             string     `json:"image"`
	Category          int        `json:"category"`
	IsFunding         bool       `json:"is_funding"`
	Goal              int64      `json:"goal"`
	ApproveFile       string     `json:"approve_file"`
}

// CampaignDetail 活动详情
type CampaignDetail struct {
	model.CampaignModel
	Username         string `json:"user"`
	ParticipantCount int64  `json:"participant_count"`
	LikeCount        int64  `json:"like_count"`
}

// CampaignQuery 活动列表查询条件
type CampaignQuery struct {
	End      string // N: 进行中, Y: 已结束, 空: 已审核的全部
	Order    CampaignOrder
	Keyword  string
	Category *int
	Page     int
	PageSize int
}

// CreateCampaign 创建活动，状态为待审核
func (l *CampaignLogic) CreateCampaign(actor Actor, req *CampaignRequest) (*model.CampaignModel, error) {
	if err := validateCampaignRequest(req); err != nil {
		return nil, err
	}

	campaign := model.CampaignModel{
		UserId:            actor.Id,
		Title:             strings.TrimSpace(req.Title),
		Content:           req.Content,
		Members:           req.Members,
		CampaignStartDate: req.CampaignStartDate,
		CampaignEndDate:   req.CampaignEndDate,
		ActivityStartDate: req.ActivityStartDate,
		ActivityEndDate:   req.ActivityEndDate,
		Image:             req.Image,
		Category:          req.Category,
		Status:            model.CampaignStatusUnapproved,
		IsFunding:         req.IsFunding,
	}

	err := l.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&campaign).Error; err != nil {
			return fmt.Errorf("create campaign: %w", err)
		}
		if !req.IsFunding {
			return nil
		}
		funding := model.FundingModel{
			CampaignId:  campaign.Id,
			Goal:        req.Goal,
			Amount:      0,
			ApproveFile: req.ApproveFile,
		}
		if err := tx.Create(&funding).Error; err != nil {
			return fmt.Errorf("create funding: %w", err)
		}
		campaign.Funding = &funding
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &campaign, nil
}

// GetCampaign 获取活动详情
func (l *CampaignLogic) GetCampaign(id int64) (*CampaignDetail, error) {
	var campaign model.CampaignModel
	if err := l.db.Preload("Funding").First(&campaign, id).Error; err != nil {
		return nil, notFoundOr(err, "活动不存在")
	}

	detail := &CampaignDetail{CampaignModel: campaign}
	if err := l.db.Model(&model.ParticipantModel{}).Where("campaign_id = ?", id).Count(&detail.ParticipantCount).Error; err != nil {
		return nil, err
	}
	if err := l.db.Model(&model.CampaignLikeModel{}).Where("campaign_id = ?", id).Count(&detail.LikeCount).Error; err != nil {
		return nil, err
	}
	var owner model.UserModel
	if err := l.db.Select("username").First(&owner, campaign.UserId).Error; err == nil {
		detail.Username = owner.Username
	}
	return detail, nil
}

// ListCampaigns 分页获取活动列表
func (l *CampaignLogic) ListCampaigns(q CampaignQuery) ([]model.CampaignModel, int64, error) {
	q.Page, q.PageSize = NormalizePage(q.Page, q.PageSize, PageSizeCampaign)

	filter := func() *gorm.DB {
		db := l.db.Model(&model.CampaignModel{})
		now := l.now()
		switch q.End {
		case "N":
			db = db.Where("campaign.status = ? AND campaign.campaign_start_date <= ? AND campaign.campaign_end_date >= ?",
				model.CampaignStatusActive, now, now)
		case "Y":
			db = db.Where("campaign.status >= ?", model.CampaignStatusEnded)
		default:
			db = db.Where("campaign.status >= ?", model.CampaignStatusActive)
		}
		if kw := strings.TrimSpace(q.Keyword); kw != "" {
			like := "%" + strings.ToLower(kw) + "%"
			db = db.Where("LOWER(campaign.title) LIKE ? OR LOWER(campaign.content) LIKE ?", like, like)
		}
		if q.Category != nil {
			db = db.Where("campaign.category = ?", *q.Category)
		}
		return db
	}

	var total int64
	if err := filter().Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var campaigns []model.CampaignModel
	offset := (q.Page - 1) * q.PageSize
	if err := q.Order.apply(filter()).
		Preload("Funding").
		Offset(offset).
		Limit(q.PageSize).
		Find(&campaigns).Error; err != nil {
		return nil, 0, err
	}
	return campaigns, total, nil
}

// UpdateCampaign 修改活动，仅所有者
func (l *CampaignLogic) UpdateCampaign(actor Actor, id int64, req *CampaignRequest) (*model.CampaignModel, error) {
	if err := validateCampaignRequest(req); err != nil {
		return nil, err
	}

	var campaign model.CampaignModel
	err := l.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Preload("Funding").First(&campaign, id).Error; err != nil {
			return notFoundOr(err, "活动不存在")
		}
		if err := requireOwner(actor, &campaign); err != nil {
			return err
		}
		if campaign.Funding != nil && fundingTermsChanged(&campaign, req) {
			pending, err := pendingPaymentCount(tx, id)
			if err != nil {
				return err
			}
			if pending > 0 {
				return ConflictError("已有待扣款的预约，不能修改结束时间或目标金额")
			}
		}

		updates := map[string]interface{}{
			"title":               strings.TrimSpace(req.Title),
			"content":             req.Content,
			"members":             req.Members,
			"campaign_start_date": req.CampaignStartDate,
			"campaign_end_date":   req.CampaignEndDate,
			"activity_start_date": req.ActivityStartDate,
			"activity_end_date":   req.ActivityEndDate,
			"image":               req.Image,
			"category":            req.Category,
			"is_funding":          req.IsFunding,
		}
		if err := tx.Model(&campaign).Updates(updates).Error; err != nil {
			return fmt.Errorf("update campaign %d: %w", id, err)
		}

		switch {
		case req.IsFunding && campaign.Funding != nil:
			if err := tx.Model(campaign.Funding).Updates(map[string]interface{}{
				"goal":         req.Goal,
				"approve_file": req.ApproveFile,
			}).Error; err != nil {
				return fmt.Errorf("update funding: %w", err)
			}
		case req.IsFunding:
			funding := model.FundingModel{CampaignId: campaign.Id, Goal: req.Goal, ApproveFile: req.ApproveFile}
			if err := tx.Create(&funding).Error; err != nil {
				return fmt.Errorf("create funding: %w", err)
			}
		case campaign.Funding != nil:
			if campaign.Funding.Amount > 0 {
				return ConflictError("已有认筹金额的活动不能取消筹款")
			}
			if err := tx.Delete(campaign.Funding).Error; err != nil {
				return fmt.Errorf("delete funding: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if err := l.db.Preload("Funding").First(&campaign, id).Error; err != nil {
		return nil, err
	}
	return &campaign, nil
}

// fundingTermsChanged 结束时间决定网关扣款时间，目标金额决定成败
func fundingTermsChanged(campaign *model.CampaignModel, req *CampaignRequest) bool {
	return !campaign.CampaignEndDate.Equal(req.CampaignEndDate) ||
		!req.IsFunding ||
		campaign.Funding.Goal != req.Goal
}

func pendingPaymentCount(tx *gorm.DB, campaignId int64) (int64, error) {
	var n int64
	err := tx.Model(&model.PaymentModel{}).
		Where("campaign_id = ? AND status = ?", campaignId, model.PaymentStatusPending).
		Count(&n).Error
	if err != nil {
		return 0, fmt.Errorf("count pending payments for campaign %d: %w", campaignId, err)
	}
	return n, nil
}

// DeleteCampaign 删除活动及其筹款、参与、点赞、评论、回顾
func (l *CampaignLogic) DeleteCampaign(actor Actor, id int64) error {
	return l.db.Transaction(func(tx *gorm.DB) error {
		var campaign model.CampaignModel
		if err := tx.First(&campaign, id).Error; err != nil {
			return notFoundOr(err, "活动不存在")
		}
		if err := requireOwner(actor, &campaign); err != nil {
			return err
		}
		pending, err := pendingPaymentCount(tx, id)
		if err != nil {
			return err
		}
		if pending > 0 {
			return ConflictError("已有待扣款的预约，不能删除活动")
		}

		children := []interface{}{
			&model.FundingModel{},
			&model.ParticipantModel{},
			&model.CampaignLikeModel{},
			&model.CommentModel{},
			&model.ReviewModel{},
		}
		for _, child := range children {
			if err := tx.Where("campaign_id = ?", id).Delete(child).Error; err != nil {
				return fmt.Errorf("delete campaign %d children: %w", id, err)
			}
		}
		return tx.Delete(&campaign).Error
	})
}

// ToggleLike 点赞/取消点赞
func (l *CampaignLogic) ToggleLike(actor Actor, campaignId int64) (bool, error) {
	liked := false
	err := l.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Select("id").First(&model.CampaignModel{}, campaignId).Error; err != nil {
			return notFoundOr(err, "活动不存在")
		}
		res := tx.Where("campaign_id = ? AND user_id = ?", campaignId, actor.Id).Delete(&model.CampaignLikeModel{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected > 0 {
			return nil
		}
		liked = true
		return tx.Create(&model.CampaignLikeModel{CampaignId: campaignId, UserId: actor.Id}).Error
	})
	return liked, err
}

// IsLiked 是否已点赞
func (l *CampaignLogic) IsLiked(actor Actor, campaignId int64) (bool, error) {
	var count int64
	err := l.db.Model(&model.CampaignLikeModel{}).
		Where("campaign_id = ? AND user_id = ?", campaignId, actor.Id).
		Count(&count).Error
	return count > 0, err
}

// ToggleParticipation 参加/取消参加，参加时校验名额
func (l *CampaignLogic) ToggleParticipation(actor Actor, campaignId int64) (bool, error) {
	joined := false
	err := l.db.Transaction(func(tx *gorm.DB) error {
		var campaign model.CampaignModel
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&campaign, campaignId).Error; err != nil {
			return notFoundOr(err, "活动不存在")
		}

		var existing model.ParticipantModel
		err := tx.Where("campaign_id = ? AND user_id = ?", campaignId, actor.Id).First(&existing).Error
		if err == nil {
			return tx.Delete(&existing).Error
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		var count int64
		if err := tx.Model(&model.ParticipantModel{}).Where("campaign_id = ?", campaignId).Count(&count).Error; err != nil {
			return err
		}
		if count+1 > int64(campaign.Members) {
			return ConflictError("活动参与名额已满")
		}

		joined = true
		return tx.Create(&model.ParticipantModel{
			CampaignId:     campaignId,
			UserId:         actor.Id,
			IsParticipated: true,
		}).Error
	})
	return joined, err
}

// IsParticipating 是否已参加
func (l *CampaignLogic) IsParticipating(actor Actor, campaignId int64) (bool, error) {
	var count int64
	err := l.db.Model(&model.ParticipantModel{}).
		Where("campaign_id = ? AND user_id = ?", campaignId, actor.Id).
		Count(&count).Error
	return count > 0, err
}

// UpdateStatus 管理员审核/修改活动状态
func (l *CampaignLogic) UpdateStatus(actor Actor, campaignId int64, status model.CampaignStatus) error {
	if err := RequireAdmin(actor); err != nil {
		return err
	}
	if !status.Valid() {
		return ValidationError("status", "无效的活动状态")
	}
	res := l.db.Model(&model.CampaignModel{}).Where("id = ?", campaignId).Update("status", status)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return NotFoundError("活动不存在")
	}
	return nil
}

// ListAllCampaigns 管理员查看全部申请
func (l *CampaignLogic) ListAllCampaigns(page, pageSize int) ([]model.CampaignModel, int64, error) {
	page, pageSize = NormalizePage(page, pageSize, PageSizeAdminCampaign)

	var total int64
	if err := l.db.Model(&model.CampaignModel{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var campaigns []model.CampaignModel
	offset := (page - 1) * pageSize
	if err := l.db.Preload("Funding").Order("created_at DESC, id DESC").Offset(offset).Limit(pageSize).Find(&campaigns).Error; err != nil {
		return nil, 0, err
	}
	return campaigns, total, nil
}

// ListOwnedBy 我发起的活动
func (l *CampaignLogic) ListOwnedBy(userId int64) ([]model.CampaignModel, error) {
	var campaigns []model.CampaignModel
	err := l.db.Preload("Funding").Where("user_id = ?", userId).Order("created_at DESC").Find(&campaigns).Error
	return campaigns, err
}

// ListLikedBy 我点赞的活动
func (l *CampaignLogic) ListLikedBy(userId int64) ([]model.CampaignModel, error) {
	var campaigns []model.CampaignModel
	err := l.db.Preload("Funding").
		Where("id IN (?)", l.db.Model(&model.CampaignLikeModel{}).Select("campaign_id").Where("user_id = ?", userId)).
		Order("created_at DESC").
		Find(&campaigns).Error
	return campaigns, err
}

// ListParticipatedBy 我参加的活动，按活动结束时间倒序
func (l *CampaignLogic) ListParticipatedBy(userId int64) ([]model.CampaignModel, error) {
	var campaigns []model.CampaignModel
	err := l.db.Preload("Funding").
		Where("id IN (?)", l.db.Model(&model.ParticipantModel{}).Select("campaign_id").Where("user_id = ?", userId)).
		Order("activity_end_date DESC").
		Find(&campaigns).Error
	return campaigns, err
}

// validateCampaignRequest 校验活动字段与日期约束
func validateCampaignRequest(req *CampaignRequest) error {
	if strings.TrimSpace(req.Title) == "" {
		return ValidationError("title", "标题不能为空")
	}
	if strings.TrimSpace(req.Content) == "" {
		return ValidationError("content", "内容不能为空")
	}
	if req.Members < 1 {
		return ValidationError("members", "参与名额至少为1")
	}
	if req.CampaignStartDate.IsZero() || req.CampaignEndDate.IsZero() {
		return ValidationError("campaign_end_date", "活动起止时间不能为空")
	}
	if !req.CampaignStartDate.Before(req.CampaignEndDate) {
		return ValidationError("campaign_end_date", "活动结束时间必须晚于开始时间")
	}
	if (req.ActivityStartDate == nil) != (req.ActivityEndDate == nil) {
		return ValidationError("activity_end_date", "活动日程的开始与结束时间必须同时填写")
	}
	if req.ActivityStartDate != nil && req.ActivityStartDate.After(*req.ActivityEndDate) {
		return ValidationError("activity_end_date", "活动日程结束时间不能早于开始时间")
	}
	if req.IsFunding && req.Goal <= 0 {
		return ValidationError("goal", "筹款目标金额必须大于0")
	}
	return nil
}
