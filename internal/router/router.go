package router

import (
	"net/http"

	"github.com/blues/campaignhub/internal/chat"
	"github.com/blues/campaignhub/internal/config"
	"github.com/blues/campaignhub/internal/handler"
	"github.com/blues/campaignhub/internal/logger"
	"github.com/blues/campaignhub/internal/logic"
	"github.com/blues/campaignhub/internal/middleware"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"
	"gorm.io/gorm"
)

// Deps 路由依赖
type Deps struct {
	Config        *config.Config
	DB            *gorm.DB
	Tokens        *middleware.TokenIssuer
	Campaigns     *logic.CampaignLogic
	Comments      *logic.CommentLogic
	Payments      *logic.PaymentLogic
	Cards         *logic.CardLogic
	Shop          *logic.ShopLogic
	Chat          *logic.ChatLogic
	Notifications *logic.NotificationLogic
	Relay         *chat.Relay
}

func Setup(d Deps) *gin.Engine {
	r := gin.New()

	// 中间件
	r.Use(logger.GinLogger())
	r.Use(gin.Recovery())
	r.Use(middleware.Metrics())
	r.Use(middleware.CORS(d.Config.Chat))
	if d.Config.RateLimit.QPS > 0 {
		limiter := middleware.NewIPRateLimiter(rate.Limit(d.Config.RateLimit.QPS), d.Config.RateLimit.Burst)
		r.Use(middleware.RateLimit(limiter))
	}

	// 健康检查
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"service": "campaignhub",
		})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	auth := middleware.Auth(d.Tokens, d.DB)
	optional := middleware.OptionalAuth(d.Tokens, d.DB)
	admin := middleware.RequireAdmin()

	campaignHandler := handler.NewCampaignHandler(d.Campaigns, d.Comments)
	paymentHandler := handler.NewPaymentHandler(d.Payments, d.Cards)
	shopHandler := handler.NewShopHandler(d.Shop)
	chatHandler := handler.NewChatHandler(d.Chat, d.Relay, chat.NewUpgrader(d.Config.Chat.AllowedOrigins))
	notificationHandler := handler.NewNotificationHandler(d.Notifications)

	// API版本组
	v1 := r.Group("/api/v1")
	{
		campaigns := v1.Group("/campaigns")
		{
			campaigns.GET("", campaignHandler.ListCampaigns)
			campaigns.GET("/:id", campaignHandler.GetCampaign)
			campaigns.GET("/:id/comments", campaignHandler.ListComments)
			campaigns.GET("/:id/reviews", campaignHandler.ListReviews)

			campaigns.POST("", auth, campaignHandler.CreateCampaign)
			campaigns.PUT("/:id", auth, campaignHandler.UpdateCampaign)
			campaigns.DELETE("/:id", auth, campaignHandler.DeleteCampaign)
			campaigns.POST("/:id/like", auth, campaignHandler.ToggleLike)
			campaigns.GET("/:id/like", auth, campaignHandler.IsLiked)
			campaigns.POST("/:id/participation", auth, campaignHandler.ToggleParticipation)
			campaigns.GET("/:id/participation", auth, campaignHandler.IsParticipating)
			campaigns.POST("/:id/comments", auth, campaignHandler.CreateComment)
			campaigns.PUT("/comments/:comment_id", auth, campaignHandler.UpdateComment)
			campaigns.DELETE("/comments/:comment_id", auth, campaignHandler.DeleteComment)
			campaigns.POST("/:id/reviews", auth, campaignHandler.CreateReview)
			campaigns.PUT("/reviews/:review_id", auth, campaignHandler.UpdateReview)
			campaigns.DELETE("/reviews/:review_id", auth, campaignHandler.DeleteReview)
		}

		me := v1.Group("/me", auth)
		{
			me.GET("/campaigns", campaignHandler.MyCampaigns)
			me.GET("/comments", campaignHandler.MyComments)
			me.GET("/orders", shopHandler.MyOrders)
		}

		payments := v1.Group("/payments", auth)
		{
			payments.GET("/status-choices", paymentHandler.StatusChoices)
			payments.POST("/cards", paymentHandler.RegisterCard)
			payments.GET("/cards", paymentHandler.ListCards)
			payments.DELETE("/cards/:id", paymentHandler.DeleteCard)
			payments.POST("/schedule", paymentHandler.SchedulePayment)
			payments.GET("/schedule/:id", paymentHandler.GetSchedule)
			payments.POST("/schedule/:id/cancel", paymentHandler.CancelSchedule)
			payments.GET("/schedule-receipts", paymentHandler.ListScheduleReceipts)
			payments.GET("/schedule-receipts/:id", paymentHandler.GetScheduleReceipt)
			payments.POST("/receipts", paymentHandler.CreateReceipt)
			payments.GET("/receipts", paymentHandler.ListReceipts)
			payments.GET("/receipts/:id", paymentHandler.GetReceipt)
			payments.POST("/receipts/:id/refund", paymentHandler.RequestRefund)
		}

		shop := v1.Group("/shop")
		{
			shop.GET("/products", optional, shopHandler.ListProducts)
			shop.GET("/products/:id", optional, shopHandler.GetProduct)
			shop.GET("/categories", shopHandler.ListCategories)
			shop.GET("/categories/:id/products", shopHandler.ListCategoryProducts)
			shop.POST("/orders", auth, shopHandler.PlaceOrder)
			shop.POST("/products/:id/restock", auth, shopHandler.SubscribeRestock)
		}

		chatGroup := v1.Group("/chat", auth)
		{
			chatGroup.POST("/rooms", chatHandler.MyRoom)
			chatGroup.GET("/rooms", middleware.RequireStaff(), chatHandler.ListRooms)
			chatGroup.GET("/rooms/:id/messages", chatHandler.RoomMessages)
		}

		notifications := v1.Group("/notifications", auth)
		{
			notifications.GET("", notificationHandler.ListNotifications)
			notifications.DELETE("", notificationHandler.DeleteAll)
		}

		adminGroup := v1.Group("/admin", auth, admin)
		{
			adminGroup.GET("/campaigns", campaignHandler.ListAllCampaigns)
			adminGroup.PUT("/campaigns/:id/status", campaignHandler.UpdateStatus)
			adminGroup.POST("/payments/:id/refund", paymentHandler.AdminRefund)
			adminGroup.POST("/shop/products", shopHandler.CreateProduct)
			adminGroup.PUT("/shop/products/:id", shopHandler.UpdateProduct)
			adminGroup.DELETE("/shop/products/:id", shopHandler.DeleteProduct)
			adminGroup.POST("/shop/categories", shopHandler.CreateCategory)
			adminGroup.PUT("/shop/categories/:id", shopHandler.UpdateCategory)
			adminGroup.DELETE("/shop/categories/:id", shopHandler.DeleteCategory)
			adminGroup.GET("/shop/orders", shopHandler.AllOrders)
			adminGroup.PUT("/shop/order-details/:id/status", shopHandler.UpdateOrderStatus)
			adminGroup.GET("/shop/refunds", shopHandler.RefundRequested)
		}
	}

	r.GET("/ws/chat/:room_id", auth, chatHandler.Connect)

	return r
}
