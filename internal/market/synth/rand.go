package synth

import (
	"sync"
	"time"

	"golang.org/x/exp/rand"
)

// Rand 随机源；测试里用固定 seed 保证可复现
type Rand interface {
	Float64() float64
	NormFloat64() float64
}

type lockedRand struct {
	mu sync.Mutex
	r  *rand.Rand
}

// NewRand 并发安全的随机源
func NewRand(seed uint64) Rand {
	return &lockedRand{r: rand.New(rand.NewSource(seed))}
}

// NewTimeRand 以当前时间为 seed
func NewTimeRand() Rand {
	return NewRand(uint64(time.Now().UnixNano()))
}

func (l *lockedRand) Float64() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.r.Float64()
}

func (l *lockedRand) NormFloat64() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.r.NormFloat64()
}
