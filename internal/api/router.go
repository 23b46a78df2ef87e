package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mhmpets/mhm_server/config"
	"github.com/mhmpets/mhm_server/internal/api/handler"
	"github.com/mhmpets/mhm_server/internal/api/middleware"
)

type Router struct {
	subscriptionHandler *handler.SubscriptionHandler
	webhookHandler      *handler.WebhookHandler
	verificationHandler *handler.VerificationHandler
	actionHandler       *handler.ActionHandler
	cfg                 *config.Config
}

func NewRouter(
	subscriptionHandler *handler.SubscriptionHandler,
	webhookHandler *handler.WebhookHandler,
	verificationHandler *handler.VerificationHandler,
	actionHandler *handler.ActionHandler,
	cfg *config.Config,
) *Router {
	return &Router{
		subscriptionHandler: subscriptionHandler,
		webhookHandler:      webhookHandler,
		verificationHandler: verificationHandler,
		actionHandler:       actionHandler,
		cfg:                 cfg,
	}
}

func (r *Router) Setup() *gin.Engine {
	if r.cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(middleware.RequestID())
	engine.Use(gin.Logger())
	engine.Use(middleware.CORS(r.cfg.CORS))

	engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// 兼容旧客户端的单入口
	engine.GET("/exec", r.actionHandler.Exec)
	engine.POST("/exec", r.actionHandler.Exec)

	api := engine.Group("/api/v1")
	{
		// 订阅
		subs := api.Group("/subscriptions")
		{
			subs.GET("/check", r.subscriptionHandler.Check)
		}

		// 订阅管理（需要管理令牌）
		subsAdmin := api.Group("/subscriptions")
		subsAdmin.Use(middleware.AdminAuth(r.cfg.Admin.JWTSecret))
		{
			subsAdmin.GET("", r.subscriptionHandler.List)
			subsAdmin.POST("", r.subscriptionHandler.Register)
			subsAdmin.PUT("/sync", r.subscriptionHandler.Sync)
		}

		// 支付回调
		webhooks := api.Group("/webhooks")
		{
			webhooks.POST("/paypal", r.webhookHandler.PayPal)
			webhooks.POST("/paypal/ipn", r.webhookHandler.IPN)
		}

		// 邮箱验证
		verification := api.Group("/verification")
		{
			verification.POST("/send", r.verificationHandler.SendCode)
			verification.POST("/verify", r.verificationHandler.Verify)
		}

		// 账号绑定
		accounts := api.Group("/accounts")
		{
			accounts.POST("/link", r.verificationHandler.Link)
			accounts.POST("/recover", r.verificationHandler.Recover)
			accounts.GET("/by-email", r.verificationHandler.GetByEmail)
			accounts.GET("/by-cloud-id", r.verificationHandler.GetByCloudID)
		}
	}

	return engine
}
