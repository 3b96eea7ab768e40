package common

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"traderhub.com/pkg/logger"
	"traderhub.com/pkg/xerr"
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

func Fail(c *gin.Context, httpStatus int, code int, message string) {
	c.JSON(httpStatus, Response{
		Code:    code,
		Message: message,
		Data:    nil,
	})
}

// FailErr 把 xerr.CodeError 映射成响应；其它错误一律 500，细节只进日志
func FailErr(c *gin.Context, err error) {
	ce, ok := xerr.As(err)
	if !ok {
		ce = &xerr.CodeError{Code: xerr.ServerCommonError, Msg: xerr.MapErrMsg(xerr.ServerCommonError), Cause: err}
	}
	logger.Warn(c.Request.Context(), "http error",
		zap.String("request_id", RequestIDFromGin(c)),
		zap.String("method", c.Request.Method),
		zap.String("path", c.Request.URL.Path),
		zap.Int("biz_code", ce.Code),
		zap.String("message", ce.Msg),
		zap.Error(ce.Cause),
	)
	Fail(c, ce.HTTPStatus(), ce.Code, ce.Msg)
}
