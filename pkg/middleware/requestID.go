package middleware

import (
	"datahouse.com/pkg/common"
	"datahouse.com/pkg/logger"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ReqId 透传或生成 X-Request-Id，并挂到日志字段上
func ReqId() gin.HandlerFunc {
	return func(c *gin.Context) {
		rid := c.GetHeader(common.HeaderRequestID)
		if rid == "" {
			rid = common.New()
		}
		c.Set(common.CtxKeyRequestID, rid)
		c.Header(common.HeaderRequestID, rid)
		ctx := logger.With(c.Request.Context(), zap.String(common.CtxKeyRequestID, rid))
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
