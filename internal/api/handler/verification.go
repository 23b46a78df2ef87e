package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/mhmpets/mhm_server/internal/model/dto"
	"github.com/mhmpets/mhm_server/internal/pkg/response"
	"github.com/mhmpets/mhm_server/internal/service"
)

type VerificationHandler struct {
	verificationService *service.VerificationService
}

func NewVerificationHandler(verificationService *service.VerificationService) *VerificationHandler {
	return &VerificationHandler{
		verificationService: verificationService,
	}
}

// SendCode 发送验证码
// POST /api/v1/verification/send
func (h *VerificationHandler) SendCode(c *gin.Context) {
	var req dto.SendVerificationCodeRequest
	if err := c.ShouldBind(&req); err != nil {
		response.Error(c, err.Error())
		return
	}
	h.sendCode(c, req.Email, req.CloudID)
}

func (h *VerificationHandler) sendCode(c *gin.Context, email, cloudID string) {
	resp, err := h.verificationService.IssueCode(c.Request.Context(), email, cloudID)
	if err != nil {
		respondError(c, "sendVerificationCode", err)
		return
	}
	response.SuccessWithMessage(c, "Code sent", gin.H{"expiresAt": resp.ExpiresAt})
}

// Verify 校验验证码
// POST /api/v1/verification/verify
func (h *VerificationHandler) Verify(c *gin.Context) {
	var req dto.VerifyCodeRequest
	if err := c.ShouldBind(&req); err != nil {
		response.Error(c, err.Error())
		return
	}
	h.verify(c, &req)
}

func (h *VerificationHandler) verify(c *gin.Context, req *dto.VerifyCodeRequest) {
	resp, err := h.verificationService.VerifyCode(c.Request.Context(), req.Email, string(req.Code), req.CloudID)
	if err != nil {
		respondError(c, "verifyCode", err)
		return
	}
	response.SuccessWithMessage(c, "Code verified", gin.H{
		"verified": resp.Verified,
		"cloudId":  resp.CloudID,
		"linked":   resp.Linked,
	})
}

// Link 绑定邮箱与 Cloud ID
// POST /api/v1/accounts/link
func (h *VerificationHandler) Link(c *gin.Context) {
	var req dto.LinkEmailRequest
	if err := c.ShouldBind(&req); err != nil {
		response.Error(c, err.Error())
		return
	}
	h.link(c, req.Email, req.CloudID)
}

var linkMessages = map[string]string{
	dto.LinkCreated:   "Email linked",
	dto.LinkRefreshed: "Link refreshed",
	dto.LinkRepointed: "Email updated",
}

func (h *VerificationHandler) link(c *gin.Context, email, cloudID string) {
	res, err := h.verificationService.LinkEmail(c.Request.Context(), email, cloudID)
	if err != nil {
		respondError(c, "linkEmail", err)
		return
	}
	response.SuccessWithMessage(c, linkMessages[res.Outcome], gin.H{"cloudId": res.CloudID})
}

// Recover 通过邮件找回 Cloud ID
// POST /api/v1/accounts/recover
func (h *VerificationHandler) Recover(c *gin.Context) {
	var req dto.RecoverAccountRequest
	if err := c.ShouldBind(&req); err != nil {
		response.Error(c, err.Error())
		return
	}
	h.recover(c, req.Email)
}

func (h *VerificationHandler) recover(c *gin.Context, email string) {
	if err := h.verificationService.RecoverAccount(c.Request.Context(), email); err != nil {
		respondError(c, "recoverAccount", err)
		return
	}
	response.SuccessWithMessage(c, "Cloud ID sent to your email", nil)
}

// GetByEmail 按邮箱查询绑定
// GET /api/v1/accounts/by-email?email=
func (h *VerificationHandler) GetByEmail(c *gin.Context) {
	h.accountByEmail(c, c.Query("email"))
}

func (h *VerificationHandler) accountByEmail(c *gin.Context, email string) {
	account, err := h.verificationService.GetAccountByEmail(c.Request.Context(), email)
	writeAccount(c, "getAccountByEmail", account, err)
}

// GetByCloudID 按 Cloud ID 查询绑定
// GET /api/v1/accounts/by-cloud-id?cloudId=
func (h *VerificationHandler) GetByCloudID(c *gin.Context) {
	h.accountByCloudID(c, c.Query("cloudId"))
}

func (h *VerificationHandler) accountByCloudID(c *gin.Context, cloudID string) {
	account, err := h.verificationService.GetAccountByCloudID(c.Request.Context(), cloudID)
	writeAccount(c, "getAccountByCloudId", account, err)
}

// writeAccount 查询无结果时返回 not_found 而不是 error
func writeAccount(c *gin.Context, op string, account *dto.AccountInfo, err error) {
	if err != nil {
		if errors.Is(err, service.ErrAccountNotFound) {
			response.NotFound(c, "Account not found")
			return
		}
		respondError(c, op, err)
		return
	}
	response.Success(c, gin.H{"account": account})
}
