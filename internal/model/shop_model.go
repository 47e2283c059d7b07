package model

import "time"

// ShopCategoryModel 商品分类
type ShopCategoryModel struct {
	Id           int64  `json:"id" gorm:"primaryKey"`
	CategoryName string `json:"category_name" gorm:"uniqueIndex;not null"`
}

func (ShopCategoryModel) TableName() string {
	return "shop_category"
}

// ShopProductModel 商品
type ShopProductModel struct {
	Id          int64     `json:"id" gorm:"primaryKey"`
	ProductDate time.Time `json:"product_date" gorm:"autoCreateTime"`
	UpdatedAt   time.Time `json:"updated_at"`

	CategoryId   int64  `json:"category" gorm:"index"`
	ProductName  string `json:"product_name" gorm:"not null"`
	ProductDesc  string `json:"product_desc" gorm:"type:text"`
	ProductPrice int64  `json:"product_price" gorm:"not null"`
	ProductStock int    `json:"product_stock" gorm:"not null;default:0"`
	Hits         int    `json:"hits" gorm:"default:0"`

	SoldOut          bool `json:"sold_out" gorm:"default:false"`
	RestockAvailable bool `json:"restock_available" gorm:"default:false"`
	Restocked        bool `json:"restocked" gorm:"default:false"`
}

func (ShopProductModel) TableName() string {
	return "shop_product"
}

// OrderDetailStatus 订单明细状态
type OrderDetailStatus int

const (
	OrderDetailStatusPaid            OrderDetailStatus = 0 // 已付款
	OrderDetailStatusPreparing       OrderDetailStatus = 1
	OrderDetailStatusShipping        OrderDetailStatus = 2
	OrderDetailStatusDelivered       OrderDetailStatus = 3
	OrderDetailStatusConfirmed       OrderDetailStatus = 4
	OrderDetailStatusCancelled       OrderDetailStatus = 5
	OrderDetailStatusRefundRequested OrderDetailStatus = 6 // 已申请取消
)

func (s OrderDetailStatus) Valid() bool {
	return s >= OrderDetailStatusPaid && s <= OrderDetailStatusRefundRequested
}

// ShopOrderModel 订单
type ShopOrderModel struct {
	Id        int64     `json:"id" gorm:"primaryKey"`
	OrderDate time.Time `json:"order_date" gorm:"autoCreateTime"`

	UserId          int64  `json:"user_id" gorm:"index;not null"`
	ZipCode         string `json:"zip_code"`
	Address         string `json:"address"`
	AddressDetail   string `json:"address_detail"`
	AddressMessage  string `json:"address_message"`
	ReceiverName    string `json:"receiver_name"`
	ReceiverNumber  string `json:"receiver_number"`
	OrderTotalPrice int64  `json:"order_totalprice" gorm:"default:0"`

	Details []ShopOrderDetailModel `json:"order_info" gorm:"foreignKey:OrderId"`
}

func (ShopOrderModel) TableName() string {
	return "shop_order"
}

func (o *ShopOrderModel) OwnerId() int64 {
	return o.UserId
}

// ShopOrderDetailModel 订单明细
type ShopOrderDetailModel struct {
	Id                int64             `json:"id" gorm:"primaryKey"`
	OrderId           int64             `json:"order" gorm:"index;not null"`
	ProductId         int64             `json:"product_id" gorm:"index;not null"`
	ProductCount      int               `json:"product_count" gorm:"not null"`
	OrderDetailStatus OrderDetailStatus `json:"status" gorm:"default:0"`
}

func (ShopOrderDetailModel) TableName() string {
	return "shop_order_detail"
}

// RestockNotificationModel 到货提醒订阅
type RestockNotificationModel struct {
	Id        int64      `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time  `json:"created_at"`
	SentAt    *time.Time `json:"sent_at"`

	UserId           int64  `json:"user_id" gorm:"uniqueIndex:idx_restock_user_product;not null"`
	ProductId        int64  `json:"product" gorm:"uniqueIndex:idx_restock_user_product;not null"`
	Message          string `json:"message"`
	NotificationSent bool   `json:"notification_sent" gorm:"index;default:false"`
}

func (RestockNotificationModel) TableName() string {
	return "restock_notification"
}
