package handler

import (
	"net/http"
	"strconv"

	"github.com/blues/campaignhub/internal/logic"
	"github.com/blues/campaignhub/internal/model"
	"github.com/gin-gonic/gin"
)

type CampaignHandler struct {
	campaignLogic *logic.CampaignLogic
	commentLogic  *logic.CommentLogic
}

func NewCampaignHandler(campaignLogic *logic.CampaignLogic, commentLogic *logic.CommentLogic) *CampaignHandler {
	return &CampaignHandler{campaignLogic: campaignLogic, commentLogic: commentLogic}
}

// CreateCampaign 创建活动
func (h *CampaignHandler) CreateCampaign(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}
	var req logic.CampaignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	campaign, err := h.campaignLogic.CreateCampaign(actor, &req)
	if err != nil {
		HandleError(c, err)
		return
	}
	SuccessResponse(c, http.StatusCreated, "活动创建成功，等待审核", campaign)
}

// ListCampaigns 活动列表
func (h *CampaignHandler) ListCampaigns(c *gin.Context) {
	order, err := logic.ParseCampaignOrder(c.Query("order"))
	if err != nil {
		HandleError(c, err)
		return
	}

	page, pageSize := pageQuery(c)
	q := logic.CampaignQuery{
		End:      c.Query("end"),
		Order:    order,
		Keyword:  c.Query("keyword"),
		Page:     page,
		PageSize: pageSize,
	}
	if raw := c.Query("category"); raw != "" {
		category, err := strconv.Atoi(raw)
		if err != nil {
			ErrorResponse(c, http.StatusBadRequest, "无效的分类")
			return
		}
		q.Category = &category
	}

	campaigns, total, err := h.campaignLogic.ListCampaigns(q)
	if err != nil {
		HandleError(c, err)
		return
	}
	page, pageSize = logic.NormalizePage(page, pageSize, logic.PageSizeCampaign)
	SuccessResponse(c, http.StatusOK, "", newPageResult(campaigns, page, pageSize, total))
}

// GetCampaign 活动详情
func (h *CampaignHandler) GetCampaign(c *gin.Context) {
	id, ok := paramId(c, "id", "无效的活动ID")
	if !ok {
		return
	}
	detail, err := h.campaignLogic.GetCampaign(id)
	if err != nil {
		HandleError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, "", detail)
}

// UpdateCampaign 修改活动
func (h *CampaignHandler) UpdateCampaign(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}
	id, ok := paramId(c, "id", "无效的活动ID")
	if !ok {
		return
	}
	var req logic.CampaignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	campaign, err := h.campaignLogic.UpdateCampaign(actor, id, &req)
	if err != nil {
		HandleError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, "活动修改成功", campaign)
}

// DeleteCampaign 删除活动
func (h *CampaignHandler) DeleteCampaign(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}
	id, ok := paramId(c, "id", "无效的活动ID")
	if !ok {
		return
	}
	if err := h.campaignLogic.DeleteCampaign(actor, id); err != nil {
		HandleError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, "活动已删除", nil)
}

// ToggleLike 点赞/取消点赞
func (h *CampaignHandler) ToggleLike(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}
	id, ok := paramId(c, "id", "无效的活动ID")
	if !ok {
		return
	}
	liked, err := h.campaignLogic.ToggleLike(actor, id)
	if err != nil {
		HandleError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, "", gin.H{"is_liked": liked})
}

func (h *CampaignHandler) IsLiked(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}
	id, ok := paramId(c, "id", "无效的活动ID")
	if !ok {
		return
	}
	liked, err := h.campaignLogic.IsLiked(actor, id)
	if err != nil {
		HandleError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, "", gin.H{"is_liked": liked})
}

// ToggleParticipation 参与/退出活动
func (h *CampaignHandler) ToggleParticipation(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}
	id, ok := paramId(c, "id", "无效的活动ID")
	if !ok {
		return
	}
	joined, err := h.campaignLogic.ToggleParticipation(actor, id)
	if err != nil {
		HandleError(c, err)
		return
	}
	message := "已退出活动"
	if joined {
		message = "参与成功"
	}
	SuccessResponse(c, http.StatusOK, message, gin.H{"is_participated": joined})
}

func (h *CampaignHandler) IsParticipating(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}
	id, ok := paramId(c, "id", "无效的活动ID")
	if !ok {
		return
	}
	joined, err := h.campaignLogic.IsParticipating(actor, id)
	if err != nil {
		HandleError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, "", gin.H{"is_participated": joined})
}

// UpdateStatus 管理员修改活动状态
func (h *CampaignHandler) UpdateStatus(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}
	id, ok := paramId(c, "id", "无效的活动ID")
	if !ok {
		return
	}
	var req struct {
		Status *model.CampaignStatus `json:"status"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.Status == nil {
		ErrorResponse(c, http.StatusBadRequest, "缺少状态参数")
		return
	}
	if err := h.campaignLogic.UpdateStatus(actor, id, *req.Status); err != nil {
		HandleError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, "状态已更新", gin.H{"status": *req.Status})
}

// ListAllCampaigns 管理员查看全部活动
func (h *CampaignHandler) ListAllCampaigns(c *gin.Context) {
	page, pageSize := pageQuery(c)
	campaigns, total, err := h.campaignLogic.ListAllCampaigns(page, pageSize)
	if err != nil {
		HandleError(c, err)
		return
	}
	page, pageSize = logic.NormalizePage(page, pageSize, logic.PageSizeAdminCampaign)
	SuccessResponse(c, http.StatusOK, "", newPageResult(campaigns, page, pageSize, total))
}

// MyCampaigns 我发起、点赞、参与的活动
func (h *CampaignHandler) MyCampaigns(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}

	var (
		campaigns []model.CampaignModel
		err       error
	)
	switch c.DefaultQuery("type", "owned") {
	case "owned":
		campaigns, err = h.campaignLogic.ListOwnedBy(actor.Id)
	case "liked":
		campaigns, err = h.campaignLogic.ListLikedBy(actor.Id)
	case "participated":
		campaigns, err = h.campaignLogic.ListParticipatedBy(actor.Id)
	default:
		ErrorResponse(c, http.StatusBadRequest, "无效的类型")
		return
	}
	if err != nil {
		HandleError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, "", campaigns)
}

// ListComments 评论列表
func (h *CampaignHandler) ListComments(c *gin.Context) {
	id, ok := paramId(c, "id", "无效的活动ID")
	if !ok {
		return
	}
	page, pageSize := pageQuery(c)
	comments, total, err := h.commentLogic.ListComments(id, page, pageSize)
	if err != nil {
		HandleError(c, err)
		return
	}
	page, pageSize = logic.NormalizePage(page, pageSize, logic.PageSizeReview)
	SuccessResponse(c, http.StatusOK, "", newPageResult(comments, page, pageSize, total))
}

type contentRequest struct {
	Content string `json:"content"`
}

func (h *CampaignHandler) CreateComment(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}
	id, ok := paramId(c, "id", "无效的活动ID")
	if !ok {
		return
	}
	var req contentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}
	comment, err := h.commentLogic.CreateComment(actor, id, req.Content)
	if err != nil {
		HandleError(c, err)
		return
	}
	SuccessResponse(c, http.StatusCreated, "评论成功", comment)
}

func (h *CampaignHandler) UpdateComment(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}
	id, ok := paramId(c, "comment_id", "无效的评论ID")
	if !ok {
		return
	}
	var req contentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}
	comment, err := h.commentLogic.UpdateComment(actor, id, req.Content)
	if err != nil {
		HandleError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, "评论已修改", comment)
}

func (h *CampaignHandler) DeleteComment(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}
	id, ok := paramId(c, "comment_id", "无效的评论ID")
	if !ok {
		return
	}
	if err := h.commentLogic.DeleteComment(actor, id); err != nil {
		HandleError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, "评论已删除", nil)
}

// ListReviews 活动后记列表
func (h *CampaignHandler) ListReviews(c *gin.Context) {
	id, ok := paramId(c, "id", "无效的活动ID")
	if !ok {
		return
	}
	page, pageSize := pageQuery(c)
	reviews, total, err := h.commentLogic.ListReviews(id, page, pageSize)
	if err != nil {
		HandleError(c, err)
		return
	}
	page, pageSize = logic.NormalizePage(page, pageSize, logic.PageSizeReview)
	SuccessResponse(c, http.StatusOK, "", newPageResult(reviews, page, pageSize, total))
}

func (h *CampaignHandler) CreateReview(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}
	id, ok := paramId(c, "id", "无效的活动ID")
	if !ok {
		return
	}
	var req logic.ReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}
	review, err := h.commentLogic.CreateReview(actor, id, &req)
	if err != nil {
		HandleError(c, err)
		return
	}
	SuccessResponse(c, http.StatusCreated, "后记已发布", review)
}

func (h *CampaignHandler) UpdateReview(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}
	id, ok := paramId(c, "review_id", "无效的后记ID")
	if !ok {
		return
	}
	var req logic.ReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}
	review, err := h.commentLogic.UpdateReview(actor, id, &req)
	if err != nil {
		HandleError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, "后记已修改", review)
}

func (h *CampaignHandler) DeleteReview(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}
	id, ok := paramId(c, "review_id", "无效的后记ID")
	if !ok {
		return
	}
	if err := h.commentLogic.DeleteReview(actor, id); err != nil {
		HandleError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, "后记已删除", nil)
}

// MyComments 我的评论与后记
func (h *CampaignHandler) MyComments(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}
	comments, err := h.commentLogic.ListUserComments(actor.Id)
	if err != nil {
		HandleError(c, err)
		return
	}
	reviews, err := h.commentLogic.ListUserReviews(actor.Id)
	if err != nil {
		HandleError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, "", gin.H{"comments": comments, "reviews": reviews})
}
