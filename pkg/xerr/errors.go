package xerr

import (
	"errors"
	"fmt"
	"net/http"
)

// 业务错误码：前三位对齐 HTTP 状态，方便网关直接映射
const (
	OK                 = 200
	RequestParamsError = 400
	RecordNotFound     = 404
	TooManyRequests    = 429
	ServerCommonError  = 500
	ServiceUnavailable = 503
)

type CodeError struct {
	Code  int    `json:"code"`
	Msg   string `json:"msg"`
	Cause error  `json:"-"`
}

func (e *CodeError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("ErrCode:%d, Msg:%s, Cause:%v", e.Code, e.Msg, e.Cause)
	}
	return fmt.Sprintf("ErrCode:%d, Msg:%s", e.Code, e.Msg)
}

func (e *CodeError) Unwrap() error { return e.Cause }

// HTTPStatus 业务码 -> HTTP 状态码
func (e *CodeError) HTTPStatus() int {
	if e.Code >= 400 && e.Code < 600 {
		return e.Code
	}
	return http.StatusInternalServerError
}

func New(code int, msg string) error {
	return &CodeError{Code: code, Msg: msg}
}

func NewErrCode(code int) error {
	return &CodeError{Code: code, Msg: MapErrMsg(code)}
}

// Wrap 保留底层错误，对外只暴露 code/msg
func Wrap(err error, code int, msg string) error {
	if err == nil {
		return nil
	}
	return &CodeError{Code: code, Msg: msg, Cause: err}
}

func As(err error) (*CodeError, bool) {
	var ce *CodeError
	if errors.As(err, &ce) {
		return ce, true
	}
	return nil, false
}

func MapErrMsg(code int) string {
	switch code {
	case RequestParamsError:
		return "invalid request parameters"
	case RecordNotFound:
		return "not found"
	case TooManyRequests:
		return "too many requests"
	case ServiceUnavailable:
		return "upstream data unavailable"
	case ServerCommonError:
		return "internal error"
	default:
		return "unknown error"
	}
}
