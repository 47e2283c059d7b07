package logic

import (
	"strings"

	"github.com/blues/campaignhub/internal/model"
	"gorm.io/gorm"
)

// CommentLogic 评论与回顾
type CommentLogic struct {
	db *gorm.DB
}

func NewCommentLogic(db *gorm.DB) *CommentLogic {
	return &CommentLogic{db: db}
}

func (l *CommentLogic) campaignExists(campaignId int64) (*model.CampaignModel, error) {
	var campaign model.CampaignModel
	if err := l.db.Select("id", "status").First(&campaign, campaignId).Error; err != nil {
		return nil, notFoundOr(err, "活动不存在")
	}
	return &campaign, nil
}

// ListComments 分页获取活动评论
func (l *CommentLogic) ListComments(campaignId int64, page, pageSize int) ([]model.CommentModel, int64, error) {
	page, pageSize = NormalizePage(page, pageSize, PageSizeReview)

	var total int64
	if err := l.db.Model(&model.CommentModel{}).Where("campaign_id = ?", campaignId).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var comments []model.CommentModel
	offset := (page - 1) * pageSize
	if err := l.db.Where("campaign_id = ?", campaignId).
		Order("created_at DESC, id DESC").
		Offset(offset).
		Limit(pageSize).
		Find(&comments).Error; err != nil {
		return nil, 0, err
	}
	return comments, total, nil
}

// CreateComment 发表评论
func (l *CommentLogic) CreateComment(actor Actor, campaignId int64, content string) (*model.CommentModel, error) {
	if strings.TrimSpace(content) == "" {
		return nil, ValidationError("content", "评论内容不能为空")
	}
	if _, err := l.campaignExists(campaignId); err != nil {
		return nil, err
	}
	comment := model.CommentModel{UserId: actor.Id, CampaignId: campaignId, Content: content}
	if err := l.db.Create(&comment).Error; err != nil {
		return nil, err
	}
	return &comment, nil
}

// UpdateComment 修改评论，仅作者
func (l *CommentLogic) UpdateComment(actor Actor, commentId int64, content string) (*model.CommentModel, error) {
	if strings.TrimSpace(content) == "" {
		return nil, ValidationError("content", "评论内容不能为空")
	}
	var comment model.CommentModel
	if err := l.db.First(&comment, commentId).Error; err != nil {
		return nil, notFoundOr(err, "评论不存在")
	}
	if err := requireOwner(actor, &comment); err != nil {
		return nil, err
	}
	if err := l.db.Model(&comment).Update("content", content).Error; err != nil {
		return nil, err
	}
	return &comment, nil
}

// DeleteComment 删除评论，仅作者
func (l *CommentLogic) DeleteComment(actor Actor, commentId int64) error {
	var comment model.CommentModel
	if err := l.db.First(&comment, commentId).Error; err != nil {
		return notFoundOr(err, "评论不存在")
	}
	if err := requireOwner(actor, &comment); err != nil {
		return err
	}
	return l.db.Delete(&comment).Error
}

// ListUserComments 我的评论
func (l *CommentLogic) ListUserComments(userId int64) ([]model.CommentModel, error) {
	var comments []model.CommentModel
	err := l.db.Where("user_id = ?", userId).Order("created_at DESC").Find(&comments).Error
	return comments, err
}

// ReviewRequest 回顾请求
type ReviewRequest struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

func (r *ReviewRequest) validate() error {
	if strings.TrimSpace(r.Title) == "" {
		return ValidationError("title", "标题不能为空")
	}
	if strings.TrimSpace(r.Content) == "" {
		return ValidationError("content", "内容不能为空")
	}
	return nil
}

// ListReviews 分页获取活动回顾
func (l *CommentLogic) ListReviews(campaignId int64, page, pageSize int) ([]model.ReviewModel, int64, error) {
	page, pageSize = NormalizePage(page, pageSize, PageSizeReview)

	var total int64
	if err := l.db.Model(&model.ReviewModel{}).Where("campaign_id = ?", campaignId).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var reviews []model.ReviewModel
	offset := (page - 1) * pageSize
	if err := l.db.Where("campaign_id = ?", campaignId).
		Order("created_at DESC, id DESC").
		Offset(offset).
		Limit(pageSize).
		Find(&reviews).Error; err != nil {
		return nil, 0, err
	}
	return reviews, total, nil
}

// CreateReview 回顾只能写在已结束的活动上
func (l *CommentLogic) CreateReview(actor Actor, campaignId int64, req *ReviewRequest) (*model.ReviewModel, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}
	campaign, err := l.campaignExists(campaignId)
	if err != nil {
		return nil, err
	}
	if campaign.Status < model.CampaignStatusEnded {
		return nil, ValidationError("campaign", "活动结束后才能写回顾")
	}
	review := model.ReviewModel{UserId: actor.Id, CampaignId: campaignId, Title: req.Title, Content: req.Content}
	if err := l.db.Create(&review).Error; err != nil {
		return nil, err
	}
	return &review, nil
}

// UpdateReview 修改回顾，仅作者
func (l *CommentLogic) UpdateReview(actor Actor, reviewId int64, req *ReviewRequest) (*model.ReviewModel, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}
	var review model.ReviewModel
	if err := l.db.First(&review, reviewId).Error; err != nil {
		return nil, notFoundOr(err, "回顾不存在")
	}
	if err := requireOwner(actor, &review); err != nil {
		return nil, err
	}
	if err := l.db.Model(&review).Updates(map[string]interface{}{"title": req.Title, "content": req.Content}).Error; err != nil {
		return nil, err
	}
	return &review, nil
}

// DeleteReview 删除回顾，仅作者
func (l *CommentLogic) DeleteReview(actor Actor, reviewId int64) error {
	var review model.ReviewModel
	if err := l.db.First(&review, reviewId).Error; err != nil {
		return notFoundOr(err, "回顾不存在")
	}
	if err := requireOwner(actor, &review); err != nil {
		return err
	}
	return l.db.Delete(&review).Error
}

// ListUserReviews 我的回顾
func (l *CommentLogic) ListUserReviews(userId int64) ([]model.ReviewModel, error) {
	var reviews []model.ReviewModel
	err := l.db.Where("user_id = ?", userId).Order("created_at DESC").Find(&reviews).Error
	return reviews, err
}
