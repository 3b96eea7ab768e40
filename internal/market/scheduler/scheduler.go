package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
	"traderhub.com/pkg/logger"
	"traderhub.com/pkg/metrics"
	"traderhub.com/pkg/safe"
)

type State string

const (
	StateIdle     State = "idle"
	StateFetching State = "fetching"
)

var (
	ErrDuplicateJob = errors.New("duplicate job class")
	ErrBadInterval  = errors.New("job interval must be positive")
	ErrStarted      = errors.New("scheduler already started")
)

// Job 一类数据的周期任务；Run 返回的错误只记日志
type Job struct {
	Class      string
	Interval   time.Duration
	RunOnStart bool
	Run        func(ctx context.Context) error
}

type job struct {
	Job
	inflight atomic.Bool
}

// Scheduler 每个 class 一个独立 ticker；同一 class 上一轮没跑完时，新的 tick 直接跳过
type Scheduler struct {
	clock clockwork.Clock

	mu      sync.Mutex
	jobs    map[string]*job
	order   []string
	started bool
	cancel  context.CancelFunc

	loops sync.WaitGroup
	runs  sync.WaitGroup
}

func New(clock clockwork.Clock) *Scheduler {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Scheduler{clock: clock, jobs: make(map[string]*job)}
}

func (s *Scheduler) Add(j Job) error {
	if j.Interval <= 0 {
		return fmt.Errorf("%w: %s", ErrBadInterval, j.Class)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return ErrStarted
	}
	if _, ok := s.jobs[j.Class]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateJob, j.Class)
	}
	s.jobs[j.Class] = &job{Job: j}
	s.order = append(s.order, j.Class)
	return nil
}

// Start 非阻塞；ctx 取消或 Stop 后所有 ticker 停止
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return ErrStarted
	}
	s.started = true
	ctx, s.cancel = context.WithCancel(ctx)

	for _, class := range s.order {
		j := s.jobs[class]
		s.loops.Add(1)
		go s.loop(ctx, j)
	}
	logger.Info(ctx, "scheduler started", zap.Strings("jobs", s.order))
	return nil
}

// Stop 停掉 ticker 并等正在跑的任务退出
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	s.loops.Wait()
	s.runs.Wait()
}

func (s *Scheduler) State(class string) State {
	s.mu.Lock()
	j, ok := s.jobs[class]
	s.mu.Unlock()
	if ok && j.inflight.Load() {
		return StateFetching
	}
	return StateIdle
}

// States 所有任务当前状态，给健康检查用
func (s *Scheduler) States() map[string]State {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]State, len(s.jobs))
	for _, class := range s.order {
		st := StateIdle
		if s.jobs[class].inflight.Load() {
			st = StateFetching
		}
		out[class] = st
	}
	return out
}

func (s *Scheduler) loop(ctx context.Context, j *job) {
	defer s.loops.Done()

	ticker := s.clock.NewTicker(j.Interval)
	defer ticker.Stop()

	if j.RunOnStart {
		s.trigger(ctx, j)
	}
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			s.trigger(ctx, j)
		}
	}
}

// trigger Idle -> Fetching，已经在 Fetching 就跳过这一拍
func (s *Scheduler) trigger(ctx context.Context, j *job) {
	if !j.inflight.CompareAndSwap(false, true) {
		metrics.SchedulerSkippedTotal.WithLabelValues(j.Class).Inc()
		logger.Debug(ctx, "tick skipped, previous run in flight", zap.String("class", j.Class))
		return
	}

	s.runs.Add(1)
	go func() {
		defer s.runs.Done()
		defer j.inflight.Store(false)

		var runErr error
		panicErr := safe.Run(ctx, "scheduler:"+j.Class, func(ctx context.Context) {
			runErr = j.Run(ctx)
		})
		if err := errors.Join(runErr, panicErr); err != nil && ctx.Err() == nil {
			logger.Warn(ctx, "scheduled run failed", zap.String("class", j.Class), zap.Error(err))
		}
	}()
}
