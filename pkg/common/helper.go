package common

import (
	"errors"
	"net/http"

	"datahouse.com/pkg/logger"
	"datahouse.com/pkg/xerr"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// 定义http返回格式
type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data"`
}

func Success(ctx *gin.Context, data interface{}) {
	ctx.JSON(http.StatusOK, Response{
		Code:    http.StatusOK,
		Message: http.StatusText(http.StatusOK),
		Data:    data,
	})
}

// Accepted 异步受理，例如手动触发一次运行
func Accepted(ctx *gin.Context, data interface{}) {
	ctx.JSON(http.StatusAccepted, Response{
		Code:    http.StatusAccepted,
		Message: http.StatusText(http.StatusAccepted),
		Data:    data,
	})
}

func Fail(c *gin.Context, httpStatus int, code int, message string) {
	c.JSON(httpStatus, Response{
		Code:    code,
		Message: message,
		Data:    nil,
	})
}

// FailErr 按 xerr 错误码映射 HTTP 状态；对外只给固定文案，原始错误进日志
func FailErr(c *gin.Context, err error) {
	code := xerr.CodeOf(err)
	httpStatus := mapCodeToHTTP(code)
	var ce *xerr.CodeError
	msg := xerr.MapErrMsg(code)
	if errors.As(err, &ce) && code == xerr.FatalConfiguration && ce.Msg != "" {
		// 配置类错误是调用方的问题，给出具体原因
		msg = ce.Msg
	}
	logger.Warn(c, "http error",
		zap.String("request_id", RequestIDFromGin(c)),
		zap.String("method", c.Request.Method),
		zap.String("path", c.Request.URL.Path),
		zap.Int("biz_code", code),
		zap.Error(err),
	)
	Fail(c, httpStatus, code, msg)
}

func mapCodeToHTTP(code int) int {
	switch code {
	case xerr.FatalConfiguration:
		return http.StatusBadRequest
	case xerr.DataValidation:
		return http.StatusUnprocessableEntity
	case xerr.Transient:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
