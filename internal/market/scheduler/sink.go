package scheduler

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"traderhub.com/internal/market/hub"
	"traderhub.com/internal/market/model"
	"traderhub.com/internal/market/snapshot"
	"traderhub.com/pkg/logger"
)

// Mirror 快照的外部副本（redis）
type Mirror interface {
	Save(ctx context.Context, cat model.Category, payload any, src model.DataSource, at time.Time) error
}

// Sink 写快照 + 广播 按分类串行，订阅者看到的顺序和 store 里的替换顺序一致。
// 不同分类互不阻塞；镜像写在锁外异步进行，每个分类只保留最新的一份待写。
type Sink struct {
	locksMu sync.Mutex
	locks   map[model.Category]*sync.Mutex

	store  *snapshot.Store
	hub    *hub.Hub
	mirror Mirror

	mirrorTimeout time.Duration
	pendMu        sync.Mutex
	pending       map[model.Category]mirrorWrite
	saving        map[model.Category]bool
	wg            sync.WaitGroup
}

type mirrorWrite struct {
	ctx     context.Context
	payload any
	src     model.DataSource
	at      time.Time
}

func NewSink(store *snapshot.Store, h *hub.Hub, mirror Mirror) *Sink {
	return &Sink{
		locks:         make(map[model.Category]*sync.Mutex),
		store:         store,
		hub:           h,
		mirror:        mirror,
		mirrorTimeout: 2 * time.Second,
		pending:       make(map[model.Category]mirrorWrite),
		saving:        make(map[model.Category]bool),
	}
}

func (s *Sink) lock(cat model.Category) *sync.Mutex {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()
	mu, ok := s.locks[cat]
	if !ok {
		mu = &sync.Mutex{}
		s.locks[cat] = mu
	}
	return mu
}

// Apply 整类替换后广播；替换失败（比如空值）什么都不发
func (s *Sink) Apply(ctx context.Context, cat model.Category, value any, src model.DataSource) error {
	mu := s.lock(cat)
	mu.Lock()
	defer mu.Unlock()
	return s.applyLocked(ctx, cat, value, src)
}

// Mutate 基于当前值算出新值再替换，同一分类的读和写之间不会插进别的写
func (s *Sink) Mutate(ctx context.Context, cat model.Category, fn func(cur any) (any, model.DataSource, bool)) error {
	mu := s.lock(cat)
	mu.Lock()
	defer mu.Unlock()

	cur, ok := s.store.Payload(cat)
	if !ok {
		return nil
	}
	next, src, changed := fn(cur)
	if !changed {
		return nil
	}
	return s.applyLocked(ctx, cat, next, src)
}

// Wait 等待已排队的镜像写完成，关停时用
func (s *Sink) Wait() { s.wg.Wait() }

func (s *Sink) applyLocked(ctx context.Context, cat model.Category, value any, src model.DataSource) error {
	if err := s.store.ReplaceCategory(cat, value, src); err != nil {
		return err
	}
	payload, _ := s.store.Payload(cat)
	if s.hub != nil {
		n := s.hub.Publish(cat, payload, src)
		logger.Debug(ctx, "category published", zap.String("category", string(cat)), zap.Int("subscribers", n))
	}
	if s.mirror != nil {
		s.enqueueMirror(cat, mirrorWrite{
			ctx:     context.WithoutCancel(ctx),
			payload: payload,
			src:     s.store.Source(cat),
			at:      s.store.Updated(cat),
		})
	}
	return nil
}

// enqueueMirror 覆盖该分类的待写值；没有在写的 goroutine 就起一个
func (s *Sink) enqueueMirror(cat model.Category, w mirrorWrite) {
	s.pendMu.Lock()
	defer s.pendMu.Unlock()
	s.pending[cat] = w
	if s.saving[cat] {
		return
	}
	s.saving[cat] = true
	s.wg.Add(1)
	go s.drainMirror(cat)
}

func (s *Sink) drainMirror(cat model.Category) {
	defer s.wg.Done()
	for {
		s.pendMu.Lock()
		w, ok := s.pending[cat]
		if !ok {
			s.saving[cat] = false
			s.pendMu.Unlock()
			return
		}
		delete(s.pending, cat)
		s.pendMu.Unlock()

		mctx, cancel := context.WithTimeout(w.ctx, s.mirrorTimeout)
		if err := s.mirror.Save(mctx, cat, w.payload, w.src, w.at); err != nil {
			logger.Warn(w.ctx, "snapshot mirror save failed", zap.String("category", string(cat)), zap.Error(err))
		}
		cancel()
	}
}
