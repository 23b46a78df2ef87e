package handler

import (
	"fmt"
	"log"

	"github.com/gin-gonic/gin"

	"github.com/mhmpets/mhm_server/internal/api/middleware"
	"github.com/mhmpets/mhm_server/internal/model/dto"
	"github.com/mhmpets/mhm_server/internal/pkg/response"
	"github.com/mhmpets/mhm_server/internal/service"
)

type SubscriptionHandler struct {
	entitlementService *service.EntitlementService
}

func NewSubscriptionHandler(entitlementService *service.EntitlementService) *SubscriptionHandler {
	return &SubscriptionHandler{
		entitlementService: entitlementService,
	}
}

// Check 查询订阅权益
// GET /api/v1/subscriptions/check?email=&cloudId=
func (h *SubscriptionHandler) Check(c *gin.Context) {
	var req dto.CheckSubscriptionRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.Error(c, err.Error())
		return
	}
	h.check(c, req.Email, req.CloudID)
}

func (h *SubscriptionHandler) check(c *gin.Context, email, cloudID string) {
	ent, err := h.entitlementService.Lookup(c.Request.Context(), email, cloudID)
	if err != nil {
		respondError(c, "checkSubscription", err)
		return
	}
	response.Success(c, gin.H{"subscription": ent})
}

// Register 登记订阅（管理）
// POST /api/v1/subscriptions
func (h *SubscriptionHandler) Register(c *gin.Context) {
	var req dto.RegisterSubscriptionRequest
	if err := c.ShouldBind(&req); err != nil {
		response.Error(c, err.Error())
		return
	}
	h.register(c, &req)
}

func (h *SubscriptionHandler) register(c *gin.Context, req *dto.RegisterSubscriptionRequest) {
	resp, err := h.entitlementService.Register(c.Request.Context(), service.RegisterParams{
		Email:   req.Email,
		CloudID: req.CloudID,
		Plan:    req.Plan,
		TxnID:   req.TxnID,
	})
	if err != nil {
		respondError(c, "registerSubscription", err)
		return
	}
	log.Printf("[%s] registerSubscription by %s: cloudId=%s", middleware.GetRequestID(c), adminActor(c), resp.CloudID)

	response.SuccessWithMessage(c, "Subscription registered", gin.H{
		"cloudId":   resp.CloudID,
		"expiresAt": resp.ExpiresAt,
	})
}

// List 订阅者列表（管理）
// GET /api/v1/subscriptions
func (h *SubscriptionHandler) List(c *gin.Context) {
	subs, err := h.entitlementService.List(c.Request.Context())
	if err != nil {
		respondError(c, "getSubscribers", err)
		return
	}
	response.Success(c, gin.H{"subscribers": subs})
}

// Sync 全量覆盖订阅表（管理）
// PUT /api/v1/subscriptions/sync
func (h *SubscriptionHandler) Sync(c *gin.Context) {
	var req dto.BulkSyncRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, "Invalid subscribers data")
		return
	}
	h.sync(c, req.Subscribers)
}

func (h *SubscriptionHandler) sync(c *gin.Context, subscribers []dto.SubscriberInfo) {
	n, err := h.entitlementService.BulkReplace(c.Request.Context(), subscribers)
	if err != nil {
		respondError(c, "adminSync", err)
		return
	}
	log.Printf("[%s] adminSync by %s: %d subscribers", middleware.GetRequestID(c), adminActor(c), n)
	response.SuccessWithMessage(c, fmt.Sprintf("Synced %d subscribers", n), gin.H{"count": n})
}

// adminActor 管理操作执行者，未配置管理密钥时为 anonymous
func adminActor(c *gin.Context) string {
	if subject, ok := middleware.GetAdminSubject(c); ok && subject != "" {
		return subject
	}
	return "anonymous"
}
