package handler

import (
	"net/http"
	"strconv"

	"github.com/blues/campaignhub/internal/logic"
	"github.com/blues/campaignhub/internal/middleware"
	"github.com/blues/campaignhub/internal/model"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const viewerCookie = "viewer_id"

type ShopHandler struct {
	shopLogic *logic.ShopLogic
}

func NewShopHandler(shopLogic *logic.ShopLogic) *ShopHandler {
	return &ShopHandler{shopLogic: shopLogic}
}

func (h *ShopHandler) listProducts(c *gin.Context, categoryId *int64) {
	page, pageSize := pageQuery(c)
	products, total, err := h.shopLogic.ListProducts(logic.ProductQuery{
		CategoryId: categoryId,
		SortBy:     c.Query("sort_by"),
		Search:     c.Query("search_query"),
		Page:       page,
		PageSize:   pageSize,
	})
	if err != nil {
		HandleError(c, err)
		return
	}
	page, pageSize = logic.NormalizePage(page, pageSize, logic.PageSizeShop)
	SuccessResponse(c, http.StatusOK, "", newPageResult(products, page, pageSize, total))
}

// ListProducts 全部商品
func (h *ShopHandler) ListProducts(c *gin.Context) {
	h.listProducts(c, nil)
}

// ListCategoryProducts 分类商品
func (h *ShopHandler) ListCategoryProducts(c *gin.Context) {
	id, ok := paramId(c, "id", "无效的分类ID")
	if !ok {
		return
	}
	h.listProducts(c, &id)
}

// viewer 已登录用户按用户去重，匿名用户按 cookie 去重
func viewer(c *gin.Context) string {
	if actor, ok := middleware.ActorFrom(c); ok {
		return "user:" + strconv.FormatInt(actor.Id, 10)
	}
	v, err := c.Cookie(viewerCookie)
	if err != nil || v == "" {
		v = uuid.NewString()
		c.SetCookie(viewerCookie, v, 86400, "/", "", false, true)
	}
	return "anon:" + v
}

// GetProduct 商品详情
func (h *ShopHandler) GetProduct(c *gin.Context) {
	id, ok := paramId(c, "id", "无效的商品ID")
	if !ok {
		return
	}
	product, err := h.shopLogic.GetProduct(c.Request.Context(), id, viewer(c))
	if err != nil {
		HandleError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, "", product)
}

func (h *ShopHandler) CreateProduct(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}
	var req logic.ProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}
	product, err := h.shopLogic.CreateProduct(actor, &req)
	if err != nil {
		HandleError(c, err)
		return
	}
	SuccessResponse(c, http.StatusCreated, "商品已创建", product)
}

func (h *ShopHandler) UpdateProduct(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}
	id, ok := paramId(c, "id", "无效的商品ID")
	if !ok {
		return
	}
	var req logic.ProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}
	product, err := h.shopLogic.UpdateProduct(c.Request.Context(), actor, id, &req)
	if err != nil {
		HandleError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, "商品已修改", product)
}

func (h *ShopHandler) DeleteProduct(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}
	id, ok := paramId(c, "id", "无效的商品ID")
	if !ok {
		return
	}
	if err := h.shopLogic.DeleteProduct(actor, id); err != nil {
		HandleError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, "商品已删除", nil)
}

func (h *ShopHandler) ListCategories(c *gin.Context) {
	categories, err := h.shopLogic.ListCategories()
	if err != nil {
		HandleError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, "", categories)
}

type categoryRequest struct {
	CategoryName string `json:"category_name"`
}

func (h *ShopHandler) CreateCategory(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}
	var req categoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}
	category, err := h.shopLogic.CreateCategory(actor, req.CategoryName)
	if err != nil {
		HandleError(c, err)
		return
	}
	SuccessResponse(c, http.StatusCreated, "分类已创建", category)
}

func (h *ShopHandler) UpdateCategory(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}
	id, ok := paramId(c, "id", "无效的分类ID")
	if !ok {
		return
	}
	var req categoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}
	category, err := h.shopLogic.UpdateCategory(actor, id, req.CategoryName)
	if err != nil {
		HandleError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, "分类已修改", category)
}

func (h *ShopHandler) DeleteCategory(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}
	id, ok := paramId(c, "id", "无效的分类ID")
	if !ok {
		return
	}
	if err := h.shopLogic.DeleteCategory(actor, id); err != nil {
		HandleError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, "分类已删除", nil)
}

// PlaceOrder 下单
func (h *ShopHandler) PlaceOrder(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}
	var req logic.OrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}
	order, err := h.shopLogic.PlaceOrder(actor, &req)
	if err != nil {
		HandleError(c, err)
		return
	}
	SuccessResponse(c, http.StatusCreated, "下单成功", order)
}

// MyOrders 我的订单
func (h *ShopHandler) MyOrders(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}
	h.listOrders(c, &actor.Id)
}

// AllOrders 管理员查看全部订单
func (h *ShopHandler) AllOrders(c *gin.Context) {
	h.listOrders(c, nil)
}

func (h *ShopHandler) listOrders(c *gin.Context, userId *int64) {
	page, pageSize := pageQuery(c)
	orders, total, err := h.shopLogic.ListOrders(userId, page, pageSize)
	if err != nil {
		HandleError(c, err)
		return
	}
	page, pageSize = logic.NormalizePage(page, pageSize, logic.PageSizeShop)
	SuccessResponse(c, http.StatusOK, "", newPageResult(orders, page, pageSize, total))
}

// UpdateOrderStatus 管理员修改订单明细状态
func (h *ShopHandler) UpdateOrderStatus(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}
	id, ok := paramId(c, "id", "无效的订单明细ID")
	if !ok {
		return
	}
	var req struct {
		Status *model.OrderDetailStatus `json:"status"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.Status == nil {
		ErrorResponse(c, http.StatusBadRequest, "缺少状态参数")
		return
	}
	if err := h.shopLogic.UpdateOrderDetailStatus(actor, id, *req.Status); err != nil {
		HandleError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// RefundRequested 管理员查看申请取消的订单
func (h *ShopHandler) RefundRequested(c *gin.Context) {
	page, pageSize := pageQuery(c)
	orders, total, err := h.shopLogic.ListRefundRequested(page, pageSize)
	if err != nil {
		HandleError(c, err)
		return
	}
	page, pageSize = logic.NormalizePage(page, pageSize, logic.PageSizeShop)
	SuccessResponse(c, http.StatusOK, "", newPageResult(orders, page, pageSize, total))
}

// SubscribeRestock 到货提醒订阅
func (h *ShopHandler) SubscribeRestock(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}
	id, ok := paramId(c, "id", "无效的商品ID")
	if !ok {
		return
	}
	sub, err := h.shopLogic.SubscribeRestock(actor, id)
	if err != nil {
		HandleError(c, err)
		return
	}
	SuccessResponse(c, http.StatusCreated, "到货提醒订阅成功", sub)
}
