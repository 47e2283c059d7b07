package logic

const (
	PageSizeCampaign      = 6
	PageSizeAdminCampaign = 10
	PageSizeReview        = 5
	PageSizeReceipt       = 6
	PageSizeShop          = 6
	PageSizeNotification  = 6
	maxPageSize           = 60
)

// NormalizePage 修正非法的分页参数
func NormalizePage(page, pageSize, defaultSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = defaultSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	return page, pageSize
}
