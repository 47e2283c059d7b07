package broker

import "time"

const (
	EventNotificationCreated = "notification.created"
	EventPaymentScheduled    = "payment.scheduled"
	EventPaymentCancelled    = "payment.cancelled"
	EventCampaignResolved    = "campaign.funding_resolved"
)

// NotificationEvent 站内通知创建事件
type NotificationEvent struct {
	Type           string    `json:"type"`
	NotificationId int64     `json:"notification_id"`
	UserId         int64     `json:"user_id"`
	Message        string    `json:"message"`
	CreatedAt      time.Time `json:"created_at"`
}

// PaymentEvent 预约支付状态事件
type PaymentEvent struct {
	Type        string    `json:"type"`
	PaymentId   int64     `json:"payment_id"`
	UserId      int64     `json:"user_id"`
	CampaignId  int64     `json:"campaign_id"`
	MerchantUid string    `json:"merchant_uid"`
	Amount      int64     `json:"amount"`
	OccurredAt  time.Time `json:"occurred_at"`
}

// CampaignEvent 筹款结果事件
type CampaignEvent struct {
	Type       string    `json:"type"`
	CampaignId int64     `json:"campaign_id"`
	Status     int       `json:"status"`
	Amount     int64     `json:"amount"`
	Goal       int64     `json:"goal"`
	OccurredAt time.Time `json:"occurred_at"`
}
