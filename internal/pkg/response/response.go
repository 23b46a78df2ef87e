package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// 状态定义，客户端按 status 判断结果
const (
	StatusSuccess  = "success"
	StatusError    = "error"
	StatusNotFound = "not_found"
)

// 状态对应的默认消息
var statusMessages = map[string]string{
	StatusError:    "Request failed",
	StatusNotFound: "Not found",
}

// Envelope 统一响应结构：status、可选 message，payload 字段平铺在同一层
type Envelope map[string]interface{}

func build(status, message string, payload gin.H) Envelope {
	env := make(Envelope, len(payload)+2)
	for k, v := range payload {
		env[k] = v
	}
	env["status"] = status
	if message != "" {
		env["message"] = message
	}
	return env
}

// Success 成功响应
func Success(c *gin.Context, payload gin.H) {
	c.JSON(http.StatusOK, build(StatusSuccess, "", payload))
}

// SuccessWithMessage 带自定义消息的成功响应
func SuccessWithMessage(c *gin.Context, message string, payload gin.H) {
	c.JSON(http.StatusOK, build(StatusSuccess, message, payload))
}

// Error 错误响应，HTTP 状态码始终为 200
func Error(c *gin.Context, message string) {
	if message == "" {
		message = statusMessages[StatusError]
	}
	c.JSON(http.StatusOK, build(StatusError, message, nil))
}

// NotFound 查询无结果
func NotFound(c *gin.Context, message string) {
	if message == "" {
		message = statusMessages[StatusNotFound]
	}
	c.JSON(http.StatusOK, build(StatusNotFound, message, nil))
}

// Abort 中断后续 handler 并返回错误
func Abort(c *gin.Context, message string) {
	Error(c, message)
	c.Abort()
}
