package handler

import (
	"errors"
	"log"

	"github.com/gin-gonic/gin"

	"github.com/mhmpets/mhm_server/internal/api/middleware"
	"github.com/mhmpets/mhm_server/internal/pkg/response"
	"github.com/mhmpets/mhm_server/internal/service"
)

// respondError 业务错误统一转换为 error 信封，存储错误不透出细节
func respondError(c *gin.Context, op string, err error) {
	switch {
	case errors.Is(err, service.ErrValidation),
		errors.Is(err, service.ErrInvalidCode),
		errors.Is(err, service.ErrExpiredCode),
		errors.Is(err, service.ErrAlreadyLinked),
		errors.Is(err, service.ErrAccountNotFound):
		response.Error(c, err.Error())
	case errors.Is(err, service.ErrNotification):
		response.Error(c, service.ErrNotification.Error())
	case errors.Is(err, service.ErrStore):
		log.Printf("[%s] %s: %v", middleware.GetRequestID(c), op, err)
		response.Error(c, service.ErrStore.Error())
	default:
		log.Printf("[%s] %s: unexpected error: %v", middleware.GetRequestID(c), op, err)
		response.Error(c, "internal error")
	}
}
