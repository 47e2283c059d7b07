package model

// All 返回需要迁移的全部模型
func All() []interface{} {
	return []interface{}{
		&UserModel{},
		&CampaignModel{},
		&FundingModel{},
		&ParticipantModel{},
		&CampaignLikeModel{},
		&CommentModel{},
		&ReviewModel{},
		&PaymentModel{},
		&RegisterPaymentModel{},
		&ShopCategoryModel{},
		&ShopProductModel{},
		&ShopOrderModel{},
		&ShopOrderDetailModel{},
		&RestockNotificationModel{},
		&RoomModel{},
		&MessageModel{},
		&NotificationModel{},
	}
}
