package model

import (
	"time"

	"gorm.io/datatypes"
)

// PaymentStatus 支付状态
type PaymentStatus int

const (
	PaymentStatusPending              PaymentStatus = 0 // 预约待扣款
	PaymentStatusReservationCancelled PaymentStatus = 1 // 预约已取消
	PaymentStatusUserCancelled        PaymentStatus = 2 // 用户改变主意
	PaymentStatusUnsatisfied          PaymentStatus = 3 // 商品不满意
	PaymentStatusCancelThenRepay      PaymentStatus = 4 // 取消后重新支付
	PaymentStatusReservationComplete  PaymentStatus = 5 // 预约扣款完成
	PaymentStatusOther                PaymentStatus = 6 // 其他
)

// PaymentStatusLabels 状态展示文案
var PaymentStatusLabels = map[PaymentStatus]string{
	PaymentStatusPending:              "筹款待扣款",
	PaymentStatusReservationCancelled: "预约已取消",
	PaymentStatusUserCancelled:        "用户改变主意",
	PaymentStatusUnsatisfied:          "商品不满意",
	PaymentStatusCancelThenRepay:      "取消后重新支付",
	PaymentStatusReservationComplete:  "预约扣款完成",
	PaymentStatusOther:                "其他",
}

// PaymentModel 支付记录；CampaignId 为空表示商城订单支付
type PaymentModel struct {
	Id        int64     `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	UserId      int64          `json:"user_id" gorm:"index;not null"`
	Amount      int64          `json:"amount" gorm:"not null"`
	CampaignId  *int64         `json:"campaign_id" gorm:"index"`
	OrderId     *int64         `json:"order_id" gorm:"index"`
	MerchantUid string         `json:"merchant_uid" gorm:"index;not null"`
	ImpUid      *string        `json:"imp_uid"`
	CustomerUid string         `json:"customer_uid"`
	Status      *PaymentStatus `json:"status" gorm:"index"`
	OtherStatus string         `json:"other_status"`

	// 网关返回的原始预约数据
	GatewayResponse datatypes.JSON `json:"-"`
}

func (PaymentModel) TableName() string {
	return "payment"
}

func (p *PaymentModel) OwnerId() int64 {
	return p.UserId
}

// StatusDisplay 状态为“其他”时返回用户填写的原因
func (p *PaymentModel) StatusDisplay() string {
	if p.Status == nil {
		return ""
	}
	if *p.Status == PaymentStatusOther && p.OtherStatus != "" {
		return p.OtherStatus
	}
	return PaymentStatusLabels[*p.Status]
}

// RegisterPaymentModel 已登记的支付卡
type RegisterPaymentModel struct {
	Id        int64     `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`

	UserId      int64  `json:"user_id" gorm:"index;not null"`
	CustomerUid string `json:"customer_uid" gorm:"index"`
	CardNumber  string `json:"-" gorm:"not null"` // nonce,ciphertext,tag
	CardMask    string `json:"card_number" gorm:"index;not null"`
}

func (RegisterPaymentModel) TableName() string {
	return "register_payment"
}

func (r *RegisterPaymentModel) OwnerId() int64 {
	return r.UserId
}
