package logic

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/blues/campaignhub/internal/gateway"
	"github.com/blues/campaignhub/internal/logger"
	"github.com/blues/campaignhub/internal/metrics"
	"github.com/blues/campaignhub/internal/model"
	"gorm.io/gorm"
)

// ReceiptRequest 商城支付完成后登记收据
type ReceiptRequest struct {
	MerchantUid string `json:"merchant_uid"`
	ImpUid      string `json:"imp_uid"`
	Amount      int64  `json:"amount"`
	OrderId     *int64 `json:"order"`
}

// ScheduleReceipt 预约支付收据
type ScheduleReceipt struct {
	model.PaymentModel
	CampaignTitle   string    `json:"campaign_title"`
	CampaignEndDate time.Time `json:"campaign_end_date"`
	StatusLabel     string    `json:"status_label"`
}

// CreateReceipt 登记商城收据
func (l *PaymentLogic) CreateReceipt(actor Actor, req *ReceiptRequest) (*model.PaymentModel, error) {
	if strings.TrimSpace(req.MerchantUid) == "" {
		return nil, ValidationError("merchant_uid", "merchant_uid 不能为空")
	}
	if strings.TrimSpace(req.ImpUid) == "" {
		return nil, ValidationError("imp_uid", "imp_uid 不能为空")
	}
	if req.Amount <= 0 {
		return nil, ValidationError("amount", "支付金额必须大于0")
	}

	if req.OrderId != nil {
		var order model.ShopOrderModel
		if err := l.db.First(&order, *req.OrderId).Error; err != nil {
			return nil, notFoundOr(err, "订单不存在")
		}
		if err := requireOwner(actor, &order); err != nil {
			return nil, err
		}
	}

	impUid := req.ImpUid
	payment := model.PaymentModel{
		UserId:      actor.Id,
		Amount:      req.Amount,
		OrderId:     req.OrderId,
		MerchantUid: req.MerchantUid,
		ImpUid:      &impUid,
	}
	if err := l.db.Create(&payment).Error; err != nil {
		return nil, fmt.Errorf("create receipt: %w", err)
	}
	return &payment, nil
}

// ListReceipts 我的商城收据
func (l *PaymentLogic) ListReceipts(actor Actor) ([]model.PaymentModel, error) {
	var payments []model.PaymentModel
	err := l.db.Where("user_id = ? AND campaign_id IS NULL", actor.Id).
		Order("created_at DESC, id DESC").
		Find(&payments).Error
	return payments, err
}

// ReceiptURL 商城收据详情，按 imp_uid 查询网关
func (l *PaymentLogic) ReceiptURL(ctx context.Context, actor Actor, paymentId int64) (*gateway.Payment, error) {
	payment, err := l.ownedPayment(actor, paymentId)
	if err != nil {
		return nil, err
	}
	if payment.ImpUid == nil || *payment.ImpUid == "" {
		return nil, ValidationError("imp_uid", "该支付没有 imp_uid")
	}
	found, err := l.gateway.FindByImpUid(ctx, *payment.ImpUid)
	if err != nil {
		return nil, ExternalError("查询收据失败", err)
	}
	return found, nil
}

// ListScheduleReceipts 预约支付收据，按活动结束日期倒序
func (l *PaymentLogic) ListScheduleReceipts(actor Actor, page, pageSize int) ([]ScheduleReceipt, int64, error) {
	page, pageSize = NormalizePage(page, pageSize, PageSizeReceipt)

	var total int64
	if err := l.db.Model(&model.PaymentModel{}).
		Where("user_id = ? AND campaign_id IS NOT NULL", actor.Id).
		Count(&total).Error; err != nil {
		return nil, 0, err
	}

	type row struct {
		model.PaymentModel
		CampaignTitle   string
		CampaignEndDate time.Time
	}
	var rows []row
	offset := (page - 1) * pageSize
	err := l.db.Table("payment").
		Select("payment.*, campaign.title AS campaign_title, campaign.campaign_end_date AS campaign_end_date").
		Joins("LEFT JOIN campaign ON campaign.id = payment.campaign_id").
		Where("payment.user_id = ? AND payment.campaign_id IS NOT NULL", actor.Id).
		Order("campaign.campaign_end_date DESC, payment.id DESC").
		Offset(offset).Limit(pageSize).
		Scan(&rows).Error
	if err != nil {
		return nil, 0, err
	}

	receipts := make([]ScheduleReceipt, 0, len(rows))
	for i := range rows {
		r := ScheduleReceipt{
			PaymentModel:    rows[i].PaymentModel,
			CampaignTitle:   rows[i].CampaignTitle,
			CampaignEndDate: rows[i].CampaignEndDate,
		}
		r.StatusLabel = r.StatusDisplay()
		receipts = append(receipts, r)
	}
	return receipts, total, nil
}

// ScheduleReceiptURL 预约收据详情，按 merchant_uid 查询网关
func (l *PaymentLogic) ScheduleReceiptURL(ctx context.Context, actor Actor, paymentId int64) (*gateway.Payment, error) {
	payment, err := l.ownedPayment(actor, paymentId)
	if err != nil {
		return nil, err
	}
	found, err := l.gateway.FindByMerchantUid(ctx, payment.MerchantUid)
	if err != nil {
		return nil, ExternalError("查询收据失败", err)
	}
	return found, nil
}

// RefundRequest 退款申请
type RefundRequest struct {
	Status      model.PaymentStatus `json:"status"`
	OtherStatus string              `json:"other_status"`
}

var refundableStatuses = map[model.PaymentStatus]bool{
	model.PaymentStatusUserCancelled:   true,
	model.PaymentStatusUnsatisfied:     true,
	model.PaymentStatusCancelThenRepay: true,
	model.PaymentStatusOther:           true,
}

// RequestRefund 商城订单退款申请，订单明细必须全部处于已付款状态
func (l *PaymentLogic) RequestRefund(actor Actor, paymentId int64, req *RefundRequest) (*model.PaymentModel, error) {
	if !refundableStatuses[req.Status] {
		return nil, ValidationError("status", "无效的退款原因")
	}
	if req.Status == model.PaymentStatusOther && strings.TrimSpace(req.OtherStatus) == "" {
		return nil, ValidationError("other_status", "请填写退款原因")
	}

	payment, err := l.ownedPayment(actor, paymentId)
	if err != nil {
		return nil, err
	}
	if payment.OrderId == nil {
		return nil, ValidationError("payment", "只有商城订单可以申请退款")
	}

	err = l.db.Transaction(func(tx *gorm.DB) error {
		var details []model.ShopOrderDetailModel
		if err := tx.Where("order_id = ?", *payment.OrderId).Find(&details).Error; err != nil {
			return err
		}
		if len(details) == 0 {
			return ValidationError("order", "订单没有明细")
		}
		for _, d := range details {
			if d.OrderDetailStatus != model.OrderDetailStatusPaid {
				return ValidationError("status", "订单已开始处理，无法申请退款")
			}
		}

		res := tx.Model(&model.ShopOrderDetailModel{}).
			Where("order_id = ? AND order_detail_status = ?", *payment.OrderId, model.OrderDetailStatusPaid).
			Update("order_detail_status", model.OrderDetailStatusRefundRequested)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected != int64(len(details)) {
			return ValidationError("status", "订单状态已变化，请重试")
		}

		status := req.Status
		other := ""
		if status == model.PaymentStatusOther {
			other = strings.TrimSpace(req.OtherStatus)
		}
		if err := tx.Model(&model.PaymentModel{}).Where("id = ?", payment.Id).
			Updates(map[string]interface{}{"status": status, "other_status": other}).Error; err != nil {
			return err
		}
		payment.Status = &status
		payment.OtherStatus = other
		return nil
	})
	if err != nil {
		return nil, err
	}
	return payment, nil
}

// AdminRefund 管理员向网关发起取消并标记为已退款
func (l *PaymentLogic) AdminRefund(ctx context.Context, actor Actor, paymentId int64, reason string) (*model.PaymentModel, error) {
	if err := RequireAdmin(actor); err != nil {
		return nil, err
	}

	var payment model.PaymentModel
	if err := l.db.First(&payment, paymentId).Error; err != nil {
		return nil, notFoundOr(err, "支付记录不存在")
	}

	req := gateway.CancelRequest{MerchantUid: payment.MerchantUid, Reason: reason}
	if payment.ImpUid != nil {
		req.ImpUid = *payment.ImpUid
	}
	if _, err := l.gateway.CancelPayment(ctx, req); err != nil {
		metrics.PaymentCancellationsTotal.WithLabelValues("refund_gateway_error").Inc()
		return nil, ExternalError("退款失败", err)
	}

	status := model.PaymentStatusCancelThenRepay
	if err := l.db.Model(&model.PaymentModel{}).Where("id = ?", payment.Id).
		Update("status", status).Error; err != nil {
		// 网关已退款，本地状态需人工修正
		logger.Error("Payment %d refunded at gateway but status update failed: %v", payment.Id, err)
		return nil, fmt.Errorf("mark payment %d refunded: %w", payment.Id, err)
	}
	metrics.PaymentCancellationsTotal.WithLabelValues("refunded").Inc()
	payment.Status = &status
	return &payment, nil
}

// StatusChoice 状态选项
type StatusChoice struct {
	Value model.PaymentStatus `json:"value"`
	Label string              `json:"label"`
}

// StatusChoices 支付状态选项
func StatusChoices() []StatusChoice {
	choices := make([]StatusChoice, 0, len(model.PaymentStatusLabels))
	for v, label := range model.PaymentStatusLabels {
		choices = append(choices, StatusChoice{Value: v, Label: label})
	}
	sort.Slice(choices, func(i, j int) bool { return choices[i].Value < choices[j].Value })
	return choices
}
