package safe

import (
	"context"
	"fmt"
	"runtime/debug"

	"go.uber.org/zap"
	"traderhub.com/pkg/logger"
)

// PanicError 是 Run 把 panic 转出来的错误
type PanicError struct {
	Name  string
	Value any
	Stack string
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("%s: panic: %v", e.Name, e.Value)
}

// Go 安全启动协程
func Go(fn func()) {
	GoCtx(context.Background(), func(context.Context) { fn() })
}

// GoCtx 安全启动携带 context 的协程，日志里保留 trace 信息
func GoCtx(ctx context.Context, fn func(ctx context.Context)) {
	if ctx == nil {
		ctx = context.Background()
	}
	go func() {
		_ = Run(ctx, "goroutine", fn)
	}()
}

// Run 同步执行 fn，panic 被记录并作为 *PanicError 返回，不会把进程带崩
func Run(ctx context.Context, name string, fn func(ctx context.Context)) (err error) {
	defer func() {
		if r := recover(); r != nil {
			pe := &PanicError{Name: name, Value: r, Stack: string(debug.Stack())}
			logger.Error(ctx, "panic recovered",
				zap.String("name", name),
				zap.Any("panic", r),
				zap.String("stack", pe.Stack),
			)
			err = pe
		}
	}()
	fn(ctx)
	return nil
}
