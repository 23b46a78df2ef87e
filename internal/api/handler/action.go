package handler

import (
	"encoding/json"

	"github.com/gin-gonic/gin"

	"github.com/mhmpets/mhm_server/internal/api/middleware"
	"github.com/mhmpets/mhm_server/internal/model/dto"
	"github.com/mhmpets/mhm_server/internal/pkg/response"
)

// 单入口 action 名称，与现有 App 客户端一致
const (
	ActionCheckSubscription    = "checkSubscription"
	ActionGetSubscribers       = "getSubscribers"
	ActionRegisterSubscription = "registerSubscription"
	ActionAdminSync            = "adminSync"
	ActionPayPalWebhook        = "paypalWebhook"
	ActionSendVerificationCode = "sendVerificationCode"
	ActionVerifyCode           = "verifyCode"
	ActionLinkEmail            = "linkEmail"
	ActionRecoverAccount       = "recoverAccount"
	ActionGetAccountByEmail    = "getAccountByEmail"
	ActionGetAccountByCloudID  = "getAccountByCloudId"
)

var adminActions = map[string]bool{
	ActionGetSubscribers:       true,
	ActionRegisterSubscription: true,
	ActionAdminSync:            true,
}

type ActionHandler struct {
	subscriptions *SubscriptionHandler
	webhooks      *WebhookHandler
	verification  *VerificationHandler
	adminSecret   string
}

func NewActionHandler(
	subscriptions *SubscriptionHandler,
	webhooks *WebhookHandler,
	verification *VerificationHandler,
	adminSecret string,
) *ActionHandler {
	return &ActionHandler{
		subscriptions: subscriptions,
		webhooks:      webhooks,
		verification:  verification,
		adminSecret:   adminSecret,
	}
}

// Exec 按 action 分发
// GET|POST /exec
func (h *ActionHandler) Exec(c *gin.Context) {
	var req dto.ActionRequest
	var raw []byte

	if c.Request.Method == "POST" {
		switch c.ContentType() {
		case gin.MIMEPOSTForm, gin.MIMEMultipartPOSTForm:
			if err := c.Request.ParseForm(); err != nil {
				response.Error(c, "Invalid form data")
				return
			}
			// 没有 action 的表单 POST 视为旧版 IPN
			if c.Request.Form.Get("action") == "" {
				h.webhooks.ipn(c, flattenForm(c))
				return
			}
			bindFormAction(c, &req)
		default:
			var err error
			if raw, err = c.GetRawData(); err != nil {
				response.Error(c, "No data received")
				return
			}
			// webhook 原文交给 WebhookService，先落日志再解析
			if peekAction(c, raw) == ActionPayPalWebhook {
				h.webhooks.paypal(c, raw)
				return
			}
			if len(raw) == 0 {
				response.Error(c, "No data received")
				return
			}
			if err := json.Unmarshal(raw, &req); err != nil {
				response.Error(c, "Invalid JSON body")
				return
			}
		}
	}
	fillFromQuery(c, &req)

	if adminActions[req.Action] && !middleware.IsAdmin(c, h.adminSecret) {
		response.Error(c, "Unauthorized")
		return
	}

	switch req.Action {
	case ActionCheckSubscription:
		h.subscriptions.check(c, req.Email, req.CloudID)
	case ActionGetSubscribers:
		h.subscriptions.List(c)
	case ActionRegisterSubscription:
		h.subscriptions.register(c, &dto.RegisterSubscriptionRequest{
			Email:   req.Email,
			CloudID: req.CloudID,
			Plan:    req.Plan,
			TxnID:   req.TxnID,
		})
	case ActionAdminSync:
		h.subscriptions.sync(c, req.Subscribers)
	case ActionPayPalWebhook:
		// GET 或表单带 paypalWebhook 时没有 JSON 原文
		h.webhooks.paypal(c, raw)
	case ActionSendVerificationCode:
		h.verification.sendCode(c, req.Email, req.CloudID)
	case ActionVerifyCode:
		h.verification.verify(c, &dto.VerifyCodeRequest{Email: req.Email, Code: req.Code, CloudID: req.CloudID})
	case ActionLinkEmail:
		h.verification.link(c, req.Email, req.CloudID)
	case ActionRecoverAccount:
		h.verification.recover(c, req.Email)
	case ActionGetAccountByEmail:
		h.verification.accountByEmail(c, req.Email)
	case ActionGetAccountByCloudID:
		h.verification.accountByCloudID(c, req.CloudID)
	default:
		response.Error(c, "Action not found")
	}
}

// peekAction 查询参数优先，其次只解析 body 中的 action 字段
func peekAction(c *gin.Context, raw []byte) string {
	if action := c.Query("action"); action != "" {
		return action
	}
	var head struct {
		Action string `json:"action"`
	}
	if err := json.Unmarshal(raw, &head); err != nil {
		return ""
	}
	return head.Action
}

func bindFormAction(c *gin.Context, req *dto.ActionRequest) {
	form := c.Request.Form
	req.Action = form.Get("action")
	req.Email = form.Get("email")
	req.CloudID = form.Get("cloudId")
	req.Code = dto.FlexString(form.Get("code"))
	req.Plan = form.Get("plan")
	req.TxnID = form.Get("txnId")
}

// fillFromQuery 请求体缺失的字段从查询参数补齐
func fillFromQuery(c *gin.Context, req *dto.ActionRequest) {
	fill := func(dst *string, key string) {
		if *dst == "" {
			*dst = c.Query(key)
		}
	}
	fill(&req.Action, "action")
	fill(&req.Email, "email")
	fill(&req.CloudID, "cloudId")
	fill(&req.Plan, "plan")
	fill(&req.TxnID, "txnId")
	if req.Code == "" {
		req.Code = dto.FlexString(c.Query("code"))
	}
}
