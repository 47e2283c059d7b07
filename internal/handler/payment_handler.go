package handler

import (
	"net/http"

	"github.com/blues/campaignhub/internal/logic"
	"github.com/gin-gonic/gin"
)

type PaymentHandler struct {
	paymentLogic *logic.PaymentLogic
	cardLogic    *logic.CardLogic
}

func NewPaymentHandler(paymentLogic *logic.PaymentLogic, cardLogic *logic.CardLogic) *PaymentHandler {
	return &PaymentHandler{paymentLogic: paymentLogic, cardLogic: cardLogic}
}

// RegisterCard 登记支付卡
func (h *PaymentHandler) RegisterCard(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}
	var req logic.RegisterCardRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}
	card, err := h.cardLogic.RegisterCard(c.Request.Context(), actor, &req)
	if err != nil {
		HandleError(c, err)
		return
	}
	SuccessResponse(c, http.StatusCreated, "卡片登记成功", card)
}

func (h *PaymentHandler) ListCards(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}
	cards, err := h.cardLogic.ListCards(actor)
	if err != nil {
		HandleError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, "", cards)
}

func (h *PaymentHandler) DeleteCard(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}
	id, ok := paramId(c, "id", "无效的卡片ID")
	if !ok {
		return
	}
	if err := h.cardLogic.DeleteCard(actor, id); err != nil {
		HandleError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, "卡片已删除", nil)
}

// SchedulePayment 预约认筹
func (h *PaymentHandler) SchedulePayment(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}
	var req logic.SchedulePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}
	raw, payment, err := h.paymentLogic.SchedulePayment(c.Request.Context(), actor, &req)
	if err != nil {
		HandleError(c, err)
		return
	}
	SuccessResponse(c, http.StatusCreated, "预约成功", gin.H{"payment": payment, "schedule": raw})
}

// GetSchedule 预约详情
func (h *PaymentHandler) GetSchedule(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}
	id, ok := paramId(c, "id", "无效的支付ID")
	if !ok {
		return
	}
	info, err := h.paymentLogic.GetScheduleInfo(c.Request.Context(), actor, id)
	if err != nil {
		HandleError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, info.Message, info)
}

// CancelSchedule 用户取消预约
func (h *PaymentHandler) CancelSchedule(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}
	id, ok := paramId(c, "id", "无效的支付ID")
	if !ok {
		return
	}
	if err := h.paymentLogic.CancelScheduleByUser(c.Request.Context(), actor, id); err != nil {
		HandleError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, "预约已取消", nil)
}

// CreateReceipt 登记商城收据
func (h *PaymentHandler) CreateReceipt(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}
	var req logic.ReceiptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}
	payment, err := h.paymentLogic.CreateReceipt(actor, &req)
	if err != nil {
		HandleError(c, err)
		return
	}
	SuccessResponse(c, http.StatusCreated, "", payment)
}

func (h *PaymentHandler) ListReceipts(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}
	payments, err := h.paymentLogic.ListReceipts(actor)
	if err != nil {
		HandleError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, "", payments)
}

func (h *PaymentHandler) GetReceipt(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}
	id, ok := paramId(c, "id", "无效的支付ID")
	if !ok {
		return
	}
	found, err := h.paymentLogic.ReceiptURL(c.Request.Context(), actor, id)
	if err != nil {
		HandleError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, "", gin.H{"receipt_url": found.ReceiptURL, "payment": found})
}

// ListScheduleReceipts 预约收据列表
func (h *PaymentHandler) ListScheduleReceipts(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}
	page, pageSize := pageQuery(c)
	receipts, total, err := h.paymentLogic.ListScheduleReceipts(actor, page, pageSize)
	if err != nil {
		HandleError(c, err)
		return
	}
	page, pageSize = logic.NormalizePage(page, pageSize, logic.PageSizeReceipt)
	SuccessResponse(c, http.StatusOK, "", newPageResult(receipts, page, pageSize, total))
}

func (h *PaymentHandler) GetScheduleReceipt(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}
	id, ok := paramId(c, "id", "无效的支付ID")
	if !ok {
		return
	}
	found, err := h.paymentLogic.ScheduleReceiptURL(c.Request.Context(), actor, id)
	if err != nil {
		HandleError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, "", gin.H{"receipt_url": found.ReceiptURL, "payment": found})
}

// RequestRefund 退款申请
func (h *PaymentHandler) RequestRefund(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}
	id, ok := paramId(c, "id", "无效的支付ID")
	if !ok {
		return
	}
	var req logic.RefundRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}
	payment, err := h.paymentLogic.RequestRefund(actor, id, &req)
	if err != nil {
		HandleError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, "退款申请已提交", payment)
}

// AdminRefund 管理员退款
func (h *PaymentHandler) AdminRefund(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}
	id, ok := paramId(c, "id", "无效的支付ID")
	if !ok {
		return
	}
	var req struct {
		Reason string `json:"reason"`
	}
	_ = c.ShouldBindJSON(&req)
	payment, err := h.paymentLogic.AdminRefund(c.Request.Context(), actor, id, req.Reason)
	if err != nil {
		HandleError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, "退款完成", payment)
}

// StatusChoices 支付状态选项
func (h *PaymentHandler) StatusChoices(c *gin.Context) {
	SuccessResponse(c, http.StatusOK, "", logic.StatusChoices())
}
