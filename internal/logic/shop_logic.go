package logic

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/blues/campaignhub/internal/logger"
	"github.com/blues/campaignhub/internal/metrics"
	"github.com/blues/campaignhub/internal/model"
	"github.com/panjf2000/ants/v2"
	"gorm.io/gorm"
)

// ViewTracker 商品浏览去重
type ViewTracker interface {
	FirstView(ctx context.Context, productId int64, viewer string) (bool, error)
}

var receiverNumberPattern = regexp.MustCompile(`^\d{3}-\d{3,4}-\d{4}$`)

// ShopLogic 商城商品、订单与到货提醒
type ShopLogic struct {
	db       *gorm.DB
	views    ViewTracker
	notifier *NotificationLogic
	workers  int
	now      func() time.Time
}

// NewShopLogic views 为 nil 时每次浏览都计数
func NewShopLogic(db *gorm.DB, views ViewTracker, notifier *NotificationLogic, workers int) *ShopLogic {
	if workers <= 0 {
		workers = 1
	}
	return &ShopLogic{db: db, views: views, notifier: notifier, workers: workers, now: time.Now}
}

// ProductQuery 商品列表条件
type ProductQuery struct {
	CategoryId *int64
	SortBy     string // hits, latest, high_price, low_price
	Search     string
	Page       int
	PageSize   int
}

func productOrder(sortBy string) string {
	switch sortBy {
	case "hits":
		return "hits DESC, id DESC"
	case "high_price":
		return "product_price DESC, id DESC"
	case "low_price":
		return "product_price ASC, id DESC"
	default:
		return "product_date DESC, id DESC"
	}
}

// ListProducts 分页获取商品列表
func (l *ShopLogic) ListProducts(q ProductQuery) ([]model.ShopProductModel, int64, error) {
	q.Page, q.PageSize = NormalizePage(q.Page, q.PageSize, PageSizeShop)

	if q.CategoryId != nil {
		var category model.ShopCategoryModel
		if err := l.db.First(&category, *q.CategoryId).Error; err != nil {
			return nil, 0, notFoundOr(err, "分类不存在")
		}
	}

	filter := func() *gorm.DB {
		db := l.db.Model(&model.ShopProductModel{})
		if q.CategoryId != nil {
			db = db.Where("category_id = ?", *q.CategoryId)
		}
		if s := strings.TrimSpace(q.Search); s != "" {
			like := "%" + strings.ToLower(s) + "%"
			db = db.Where("LOWER(product_name) LIKE ? OR LOWER(product_desc) LIKE ?", like, like)
		}
		return db
	}

	var total int64
	if err := filter().Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var products []model.ShopProductModel
	offset := (q.Page - 1) * q.PageSize
	if err := filter().Order(productOrder(q.SortBy)).Offset(offset).Limit(q.PageSize).Find(&products).Error; err != nil {
		return nil, 0, err
	}
	return products, total, nil
}

// GetProduct 商品详情，同一浏览者 24 小时内只计一次浏览量
func (l *ShopLogic) GetProduct(ctx context.Context, id int64, viewer string) (*model.ShopProductModel, error) {
	var product model.ShopProductModel
	if err := l.db.First(&product, id).Error; err != nil {
		return nil, notFoundOr(err, "商品不存在")
	}

	count := true
	if l.views != nil && viewer != "" {
		first, err := l.views.FirstView(ctx, id, viewer)
		if err != nil {
			logger.Warn("View tracker unavailable for product %d: %v", id, err)
		} else {
			count = first
		}
	}
	if count {
		if err := l.db.Model(&model.ShopProductModel{}).Where("id = ?", id).
			UpdateColumn("hits", gorm.Expr("hits + 1")).Error; err != nil {
			return nil, err
		}
		product.Hits++
	}
	return &product, nil
}

// ProductRequest 商品创建/修改
type ProductRequest struct {
	CategoryId   int64  `json:"category"`
	ProductName  string `json:"product_name"`
	ProductDesc  string `json:"product_desc"`
	ProductPrice int64  `json:"product_price"`
	ProductStock int    `json:"product_stock"`
}

func validateProduct(req *ProductRequest) error {
	if strings.TrimSpace(req.ProductName) == "" {
		return ValidationError("product_name", "商品名称不能为空")
	}
	if req.ProductPrice <= 0 {
		return ValidationError("product_price", "商品价格必须大于0")
	}
	if req.ProductStock < 0 {
		return ValidationError("product_stock", "库存不能小于0")
	}
	return nil
}

func (l *ShopLogic) CreateProduct(actor Actor, req *ProductRequest) (*model.ShopProductModel, error) {
	if err := RequireAdmin(actor); err != nil {
		return nil, err
	}
	if err := validateProduct(req); err != nil {
		return nil, err
	}
	var category model.ShopCategoryModel
	if err := l.db.First(&category, req.CategoryId).Error; err != nil {
		return nil, notFoundOr(err, "分类不存在")
	}

	product := model.ShopProductModel{
		CategoryId:   req.CategoryId,
		ProductName:  strings.TrimSpace(req.ProductName),
		ProductDesc:  req.ProductDesc,
		ProductPrice: req.ProductPrice,
		ProductStock: req.ProductStock,
		SoldOut:      req.ProductStock == 0,
	}
	if err := l.db.Create(&product).Error; err != nil {
		return nil, fmt.Errorf("create product: %w", err)
	}
	return &product, nil
}

// UpdateProduct 库存从售罄恢复时触发到货提醒
func (l *ShopLogic) UpdateProduct(ctx context.Context, actor Actor, id int64, req *ProductRequest) (*model.ShopProductModel, error) {
	if err := RequireAdmin(actor); err != nil {
		return nil, err
	}
	if err := validateProduct(req); err != nil {
		return nil, err
	}

	var product model.ShopProductModel
	if err := l.db.First(&product, id).Error; err != nil {
		return nil, notFoundOr(err, "商品不存在")
	}

	restocked := product.SoldOut && req.ProductStock > 0
	updates := map[string]interface{}{
		"product_name":  strings.TrimSpace(req.ProductName),
		"product_desc":  req.ProductDesc,
		"product_price": req.ProductPrice,
		"product_stock": req.ProductStock,
		"sold_out":      req.ProductStock == 0,
	}
	if req.CategoryId != 0 {
		updates["category_id"] = req.CategoryId
	}
	if restocked {
		updates["restocked"] = true
	}
	if err := l.db.Model(&product).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("update product %d: %w", id, err)
	}
	if err := l.db.First(&product, id).Error; err != nil {
		return nil, err
	}

	if restocked {
		if _, err := l.NotifyRestock(ctx, id); err != nil {
			logger.Error("Failed to send restock notifications for product %d: %v", id, err)
		}
	}
	return &product, nil
}

func (l *ShopLogic) DeleteProduct(actor Actor, id int64) error {
	if err := RequireAdmin(actor); err != nil {
		return err
	}
	res := l.db.Delete(&model.ShopProductModel{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return NotFoundError("商品不存在")
	}
	return nil
}

// ListCategories 分类列表
func (l *ShopLogic) ListCategories() ([]model.ShopCategoryModel, error) {
	var categories []model.ShopCategoryModel
	err := l.db.Order("id ASC").Find(&categories).Error
	return categories, err
}

func (l *ShopLogic) CreateCategory(actor Actor, name string) (*model.ShopCategoryModel, error) {
	if err := RequireAdmin(actor); err != nil {
		return nil, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ValidationError("category_name", "分类名称不能为空")
	}
	if err := l.ensureCategoryNameFree(name, 0); err != nil {
		return nil, err
	}
	category := model.ShopCategoryModel{CategoryName: name}
	if err := l.db.Create(&category).Error; err != nil {
		return nil, fmt.Errorf("create category: %w", err)
	}
	return &category, nil
}

func (l *ShopLogic) UpdateCategory(actor Actor, id int64, name string) (*model.ShopCategoryModel, error) {
	if err := RequireAdmin(actor); err != nil {
		return nil, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ValidationError("category_name", "分类名称不能为空")
	}
	var category model.ShopCategoryModel
	if err := l.db.First(&category, id).Error; err != nil {
		return nil, notFoundOr(err, "分类不存在")
	}
	if err := l.ensureCategoryNameFree(name, id); err != nil {
		return nil, err
	}
	if err := l.db.Model(&category).Update("category_name", name).Error; err != nil {
		return nil, err
	}
	category.CategoryName = name
	return &category, nil
}

func (l *ShopLogic) DeleteCategory(actor Actor, id int64) error {
	if err := RequireAdmin(actor); err != nil {
		return err
	}
	res := l.db.Delete(&model.ShopCategoryModel{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return NotFoundError("分类不存在")
	}
	return nil
}

func (l *ShopLogic) ensureCategoryNameFree(name string, exceptId int64) error {
	var count int64
	if err := l.db.Model(&model.ShopCategoryModel{}).
		Where("category_name = ? AND id <> ?", name, exceptId).
		Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return ConflictError("分类名称已存在")
	}
	return nil
}

// OrderRequest 下单请求
type OrderRequest struct {
	Order struct {
		ZipCode        string `json:"zip_code"`
		Address        string `json:"address"`
		AddressDetail  string `json:"address_detail"`
		AddressMessage string `json:"address_message"`
		ReceiverName   string `json:"receiver_name"`
		ReceiverNumber string `json:"receiver_number"`
	} `json:"order"`
	Products []OrderLine `json:"product"`
}

// OrderLine 订单行
type OrderLine struct {
	ProductId    int64 `json:"product"`
	ProductCount int   `json:"product_count"`
}

var errInsufficientStock = errors.New("insufficient stock")

// PlaceOrder 在一个事务中扣减所有订单行库存，任一行失败则整单回滚
func (l *ShopLogic) PlaceOrder(actor Actor, req *OrderRequest) (*model.ShopOrderModel, error) {
	if !receiverNumberPattern.MatchString(req.Order.ReceiverNumber) {
		metrics.OrdersRejectedTotal.WithLabelValues("validation").Inc()
		return nil, ValidationError("receiver_number", "联系电话格式应为 000-0000-0000")
	}
	if len(req.Products) == 0 {
		metrics.OrdersRejectedTotal.WithLabelValues("validation").Inc()
		return nil, ValidationError("product", "订单不能为空")
	}
	for _, line := range req.Products {
		if line.ProductCount <= 0 {
			metrics.OrdersRejectedTotal.WithLabelValues("validation").Inc()
			return nil, ValidationError("product_count", "购买数量必须大于0")
		}
	}

	order := model.ShopOrderModel{
		UserId:         actor.Id,
		ZipCode:        req.Order.ZipCode,
		Address:        req.Order.Address,
		AddressDetail:  req.Order.AddressDetail,
		AddressMessage: req.Order.AddressMessage,
		ReceiverName:   req.Order.ReceiverName,
		ReceiverNumber: req.Order.ReceiverNumber,
	}

	err := l.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&order).Error; err != nil {
			return fmt.Errorf("create order: %w", err)
		}

		var total int64
		for _, line := range req.Products {
			var product model.ShopProductModel
			if err := tx.First(&product, line.ProductId).Error; err != nil {
				return notFoundOr(err, "商品不存在")
			}

			res := tx.Model(&model.ShopProductModel{}).
				Where("id = ? AND product_stock >= ?", line.ProductId, line.ProductCount).
				UpdateColumn("product_stock", gorm.Expr("product_stock - ?", line.ProductCount))
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return errInsufficientStock
			}

			if err := tx.Model(&model.ShopProductModel{}).
				Where("id = ? AND product_stock = 0", line.ProductId).
				UpdateColumns(map[string]interface{}{
					"sold_out":          true,
					"restock_available": true,
					"restocked":         false,
				}).Error; err != nil {
				return err
			}

			detail := model.ShopOrderDetailModel{
				OrderId:           order.Id,
				ProductId:         line.ProductId,
				ProductCount:      line.ProductCount,
				OrderDetailStatus: model.OrderDetailStatusPaid,
			}
			if err := tx.Create(&detail).Error; err != nil {
				return fmt.Errorf("create order detail: %w", err)
			}
			order.Details = append(order.Details, detail)
			total += product.ProductPrice * int64(line.ProductCount)
		}

		order.OrderTotalPrice = total
		return tx.Model(&order).Update("order_total_price", total).Error
	})
	if err != nil {
		if errors.Is(err, errInsufficientStock) {
			metrics.OrdersRejectedTotal.WithLabelValues("stock").Inc()
			return nil, ValidationError("product_count", "库存不足")
		}
		metrics.OrdersRejectedTotal.WithLabelValues("error").Inc()
		return nil, err
	}

	metrics.OrdersPlacedTotal.Inc()
	return &order, nil
}

// ListOrders userId 为 nil 时返回全部订单（管理员）
func (l *ShopLogic) ListOrders(userId *int64, page, pageSize int) ([]model.ShopOrderModel, int64, error) {
	page, pageSize = NormalizePage(page, pageSize, PageSizeShop)

	filter := func() *gorm.DB {
		db := l.db.Model(&model.ShopOrderModel{})
		if userId != nil {
			db = db.Where("user_id = ?", *userId)
		}
		return db
	}

	var total int64
	if err := filter().Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var orders []model.ShopOrderModel
	offset := (page - 1) * pageSize
	if err := filter().Preload("Details").Order("order_date DESC, id DESC").
		Offset(offset).Limit(pageSize).Find(&orders).Error; err != nil {
		return nil, 0, err
	}
	return orders, total, nil
}

// UpdateOrderDetailStatus 管理员修改订单明细状态
func (l *ShopLogic) UpdateOrderDetailStatus(actor Actor, detailId int64, status model.OrderDetailStatus) error {
	if err := RequireAdmin(actor); err != nil {
		return err
	}
	if !status.Valid() {
		return ValidationError("status", "无效的订单状态")
	}
	res := l.db.Model(&model.ShopOrderDetailModel{}).Where("id = ?", detailId).
		Update("order_detail_status", status)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return NotFoundError("订单明细不存在")
	}
	return nil
}

// ListRefundRequested 已申请取消的订单
func (l *ShopLogic) ListRefundRequested(page, pageSize int) ([]model.ShopOrderModel, int64, error) {
	page, pageSize = NormalizePage(page, pageSize, PageSizeShop)

	sub := l.db.Model(&model.ShopOrderDetailModel{}).
		Select("order_id").
		Where("order_detail_status = ?", model.OrderDetailStatusRefundRequested)

	var total int64
	if err := l.db.Model(&model.ShopOrderModel{}).Where("id IN (?)", sub).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var orders []model.ShopOrderModel
	offset := (page - 1) * pageSize
	err := l.db.Where("id IN (?)", sub).Preload("Details").
		Order("order_date DESC, id DESC").Offset(offset).Limit(pageSize).Find(&orders).Error
	return orders, total, err
}

// SubscribeRestock 售罄商品的到货提醒订阅
func (l *ShopLogic) SubscribeRestock(actor Actor, productId int64) (*model.RestockNotificationModel, error) {
	var product model.ShopProductModel
	if err := l.db.First(&product, productId).Error; err != nil {
		return nil, notFoundOr(err, "商品不存在")
	}
	if !product.SoldOut {
		return nil, ValidationError("product", "商品未售罄")
	}

	var count int64
	if err := l.db.Model(&model.RestockNotificationModel{}).
		Where("user_id = ? AND product_id = ?", actor.Id, productId).
		Count(&count).Error; err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, ConflictError("已订阅到货提醒")
	}

	sub := model.RestockNotificationModel{
		UserId:    actor.Id,
		ProductId: productId,
		Message:   fmt.Sprintf("%s 已到货", product.ProductName),
	}
	if err := l.db.Create(&sub).Error; err != nil {
		return nil, fmt.Errorf("create restock subscription: %w", err)
	}
	return &sub, nil
}

// NotifyRestock 每条订阅只发送一次；返回本次发送的数量
func (l *ShopLogic) NotifyRestock(ctx context.Context, productId int64) (int, error) {
	var subs []model.RestockNotificationModel
	if err := l.db.Where("product_id = ? AND notification_sent = ?", productId, false).
		Find(&subs).Error; err != nil {
		return 0, fmt.Errorf("load restock subscriptions: %w", err)
	}
	if len(subs) == 0 {
		return 0, nil
	}

	pool, err := ants.NewPool(l.workers)
	if err != nil {
		return 0, fmt.Errorf("create worker pool: %w", err)
	}
	defer pool.Release()

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		sent int
	)
	for _, s := range subs {
		s := s
		wg.Add(1)
		if err := pool.Submit(func() {
			defer wg.Done()
			ok, err := l.sendRestock(ctx, &s)
			if err != nil {
				logger.Error("Failed to send restock notification %d: %v", s.Id, err)
				return
			}
			if ok {
				mu.Lock()
				sent++
				mu.Unlock()
			}
		}); err != nil {
			wg.Done()
			logger.Error("Failed to submit restock notification %d: %v", s.Id, err)
		}
	}
	wg.Wait()

	if sent > 0 {
		logger.Info("Sent %d restock notifications for product %d", sent, productId)
	}
	return sent, nil
}

func (l *ShopLogic) sendRestock(ctx context.Context, s *model.RestockNotificationModel) (bool, error) {
	var notes []model.NotificationModel
	claimed := false

	err := l.db.Transaction(func(tx *gorm.DB) error {
		now := l.now()
		res := tx.Model(&model.RestockNotificationModel{}).
			Where("id = ? AND notification_sent = ?", s.Id, false).
			Updates(map[string]interface{}{"notification_sent": true, "sent_at": now})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}
		claimed = true

		message := s.Message
		if message == "" {
			message = "您订阅的商品已到货"
		}
		created, err := l.notifier.CreateTx(tx, []int64{s.UserId}, message)
		if err != nil {
			return err
		}
		notes = created
		return nil
	})
	if err != nil || !claimed {
		return false, err
	}

	metrics.RestockNotificationsTotal.Inc()
	l.notifier.Publish(ctx, notes)
	return true, nil
}
