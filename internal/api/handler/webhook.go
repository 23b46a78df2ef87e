package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/mhmpets/mhm_server/internal/model/dto"
	"github.com/mhmpets/mhm_server/internal/pkg/response"
	"github.com/mhmpets/mhm_server/internal/service"
)

type WebhookHandler struct {
	webhookService *service.WebhookService
}

func NewWebhookHandler(webhookService *service.WebhookService) *WebhookHandler {
	return &WebhookHandler{
		webhookService: webhookService,
	}
}

// PayPal PayPal webhook
// POST /api/v1/webhooks/paypal
func (h *WebhookHandler) PayPal(c *gin.Context) {
	raw, err := c.GetRawData()
	if err != nil {
		response.Error(c, "No data received")
		return
	}
	h.paypal(c, raw)
}

func (h *WebhookHandler) paypal(c *gin.Context, raw []byte) {
	result, err := h.webhookService.HandlePaymentWebhook(c.Request.Context(), raw)
	if err != nil {
		respondError(c, "paypalWebhook", err)
		return
	}
	writeWebhookResult(c, result)
}

// IPN 旧版 IPN 表单通知
// POST /api/v1/webhooks/paypal/ipn
func (h *WebhookHandler) IPN(c *gin.Context) {
	if err := c.Request.ParseForm(); err != nil {
		response.Error(c, "Invalid form data")
		return
	}
	h.ipn(c, flattenForm(c))
}

func (h *WebhookHandler) ipn(c *gin.Context, fields map[string]string) {
	result, err := h.webhookService.HandleLegacyNotification(c.Request.Context(), fields)
	if err != nil {
		respondError(c, "paypalIPN", err)
		return
	}
	writeWebhookResult(c, result)
}

func writeWebhookResult(c *gin.Context, result *dto.WebhookResult) {
	payload := gin.H{
		"eventType": result.EventType,
		"action":    result.Action,
	}
	if result.Plan != "" {
		payload["plan"] = result.Plan
	}
	response.SuccessWithMessage(c, result.Message, payload)
}

// flattenForm 取表单与查询参数的第一个值
func flattenForm(c *gin.Context) map[string]string {
	fields := make(map[string]string, len(c.Request.Form))
	for k, v := range c.Request.Form {
		if len(v) > 0 {
			fields[k] = v[0]
		}
	}
	return fields
}
