package gateway

import "encoding/json"

// envelope 网关统一响应格式
type envelope struct {
	Code     int             `json:"code"`
	Message  string          `json:"message"`
	Response json.RawMessage `json:"response"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiredAt   int64  `json:"expired_at"`
	Now         int64  `json:"now"`
}

// CustomerRequest 登记卡片（生成账单键）
type CustomerRequest struct {
	CustomerUid string `json:"-"`
	CardNumber  string `json:"card_number"`
	Expiry      string `json:"expiry"`
	Birth       string `json:"birth"`
	Pwd2Digit   string `json:"pwd_2digit"`
	PG          string `json:"pg,omitempty"`
}

// Customer 网关侧的账单键信息
type Customer struct {
	CustomerUid string `json:"customer_uid"`
	CardName    string `json:"card_name"`
	CardNumber  string `json:"card_number"`
	PGProvider  string `json:"pg_provider"`
}

// ScheduleItem 单次预约扣款
type ScheduleItem struct {
	MerchantUid string `json:"merchant_uid"`
	ScheduleAt  int64  `json:"schedule_at"`
	Currency    string `json:"currency"`
	Amount      int64  `json:"amount"`
	Name        string `json:"name"`
	BuyerName   string `json:"buyer_name,omitempty"`
	BuyerEmail  string `json:"buyer_email,omitempty"`
}

// ScheduleRequest 预约扣款请求
type ScheduleRequest struct {
	CustomerUid string         `json:"customer_uid"`
	Schedules   []ScheduleItem `json:"schedules"`
}

// Schedule 网关返回的预约信息
type Schedule struct {
	CustomerUid    string `json:"customer_uid"`
	MerchantUid    string `json:"merchant_uid"`
	ScheduleAt     int64  `json:"schedule_at"`
	Amount         int64  `json:"amount"`
	Name           string `json:"name"`
	BuyerName      string `json:"buyer_name"`
	BuyerEmail     string `json:"buyer_email"`
	ScheduleStatus string `json:"schedule_status"`
	CreatedAt      int64  `json:"created_at"`
}

const ScheduleStatusScheduled = "scheduled"

type scheduleList struct {
	List     []Schedule `json:"list"`
	Next     int        `json:"next"`
	Previous int        `json:"previous"`
}

// CancelRequest 支付取消
type CancelRequest struct {
	ImpUid      string `json:"imp_uid,omitempty"`
	MerchantUid string `json:"merchant_uid,omitempty"`
	Reason      string `json:"reason,omitempty"`
}

// Payment 网关侧支付记录
type Payment struct {
	ImpUid      string `json:"imp_uid"`
	MerchantUid string `json:"merchant_uid"`
	Amount      int64  `json:"amount"`
	Status      string `json:"status"`
	ReceiptURL  string `json:"receipt_url"`
}
