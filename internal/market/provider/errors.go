package provider

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	ErrProviderTimeout       = errors.New("provider timeout")
	ErrMalformedResponse     = errors.New("provider malformed response")
	ErrEmptyResult           = errors.New("provider empty result")
	ErrAllProvidersExhausted = errors.New("all providers exhausted")

	// 熔断打开、被限流、没配 key 之类：没有真正发请求
	ErrProviderUnavailable = errors.New("provider unavailable")
	// 网络错误、非 2xx 等
	ErrProviderFailed = errors.New("provider failed")
)

// AttemptError 一次 provider 尝试的失败；errors.Is 可以匹配 Kind
type AttemptError struct {
	Provider string
	Kind     error
	Err      error
	Elapsed  time.Duration
}

func (e *AttemptError) Error() string {
	if e.Err == nil || e.Err == e.Kind {
		return fmt.Sprintf("%s: %v", e.Provider, e.Kind)
	}
	return fmt.Sprintf("%s: %v: %v", e.Provider, e.Kind, e.Err)
}

func (e *AttemptError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func Malformed(err error) error {
	return fmt.Errorf("%w: %v", ErrMalformedResponse, err)
}

func Unavailable(reason string) error {
	return fmt.Errorf("%w: %s", ErrProviderUnavailable, reason)
}

func StatusError(code int) error {
	return fmt.Errorf("%w: http status %d", ErrProviderFailed, code)
}

// Kind 把任意错误归到分类里
func Kind(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrProviderTimeout), errors.Is(err, context.DeadlineExceeded):
		return ErrProviderTimeout
	case errors.Is(err, ErrMalformedResponse):
		return ErrMalformedResponse
	case errors.Is(err, ErrEmptyResult):
		return ErrEmptyResult
	case errors.Is(err, ErrProviderUnavailable):
		return ErrProviderUnavailable
	default:
		return ErrProviderFailed
	}
}

func outcome(kind error) string {
	switch kind {
	case nil:
		return "ok"
	case ErrProviderTimeout:
		return "timeout"
	case ErrMalformedResponse:
		return "malformed"
	case ErrEmptyResult:
		return "empty"
	case ErrProviderUnavailable:
		return "unavailable"
	default:
		return "failed"
	}
}
