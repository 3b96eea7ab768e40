package hub

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"traderhub.com/internal/market/model"
	"traderhub.com/pkg/metrics"
)

var (
	// ErrSubscriberDelivery 订阅者缓冲满了，投递失败，随后被踢掉
	ErrSubscriberDelivery = errors.New("subscriber delivery failure")
	ErrHubClosed          = errors.New("hub closed")
)

const DefaultSendBuffer = 256

// SnapshotSource 新订阅者的第一条消息从这里取
type SnapshotSource interface {
	Read() model.MarketSnapshot
}

// Hub 持有所有订阅者。Subscribe/Publish/RelayChat 共用一把锁：
// 每个订阅者看到的顺序就是发布顺序，新订阅者的快照不会和并发的更新交错。
// 投递只做非阻塞 send，锁内不会等任何订阅者。
type Hub struct {
	mu       sync.Mutex
	subs     map[string]*Subscriber
	closed   bool
	lastChat time.Time

	source     SnapshotSource
	clock      clockwork.Clock
	sendBuffer int
}

type HubOption func(*Hub)

func WithClock(c clockwork.Clock) HubOption {
	return func(h *Hub) { h.clock = c }
}

func WithSendBuffer(n int) HubOption {
	return func(h *Hub) {
		if n > 0 {
			h.sendBuffer = n
		}
	}
}

func New(source SnapshotSource, opts ...HubOption) *Hub {
	h := &Hub{
		subs:       make(map[string]*Subscriber, 64),
		source:     source,
		clock:      clockwork.NewRealClock(),
		sendBuffer: DefaultSendBuffer,
	}
	for _, o := range opts {
		o(h)
	}
	return h
}

// Subscriber 一个订阅者的输出队列，由 hub 持有和关闭
type Subscriber struct {
	id      string
	ch      chan Message
	done    chan struct{}
	onJoin  func(*Subscriber)
	onLeave func(*Subscriber, error)
	buffer  int

	// 以下字段由 hub.mu 保护
	removed bool
	err     error
}

type Option func(*Subscriber)

func OnJoin(fn func(*Subscriber)) Option {
	return func(s *Subscriber) { s.onJoin = fn }
}

// OnLeave err 为 nil 表示主动退订
func OnLeave(fn func(*Subscriber, error)) Option {
	return func(s *Subscriber) { s.onLeave = fn }
}

func WithBuffer(n int) Option {
	return func(s *Subscriber) {
		if n > 0 {
			s.buffer = n
		}
	}
}

func WithID(id string) Option {
	return func(s *Subscriber) {
		if id != "" {
			s.id = id
		}
	}
}

func (s *Subscriber) ID() string { return s.id }

// C 消息队列；被移除后关闭
func (s *Subscriber) C() <-chan Message { return s.ch }

// Done 被移除时关闭
func (s *Subscriber) Done() <-chan struct{} { return s.done }

// Subscribe 注册订阅者，队列里的第一条一定是完整快照
func (h *Hub) Subscribe(opts ...Option) *Subscriber {
	s := &Subscriber{id: uuid.NewString(), buffer: h.sendBuffer, done: make(chan struct{})}
	for _, o := range opts {
		o(s)
	}
	s.ch = make(chan Message, s.buffer)

	h.mu.Lock()
	if h.closed {
		s.removed = true
		s.err = ErrHubClosed
		close(s.ch)
		close(s.done)
		h.mu.Unlock()
		return s
	}
	var snap model.MarketSnapshot
	if h.source != nil {
		snap = h.source.Read()
	}
	// 缓冲至少为 1，这里不会阻塞
	s.ch <- newMessage(Message{Kind: KindSnapshot, Snapshot: &snap})
	h.subs[s.id] = s
	metrics.HubSubscribers.Set(float64(len(h.subs)))
	metrics.HubMessagesTotal.WithLabelValues(string(KindSnapshot)).Inc()
	h.mu.Unlock()

	if s.onJoin != nil {
		s.onJoin(s)
	}
	return s
}

// Publish 把某个分类的完整新值发给所有订阅者，返回成功投递数；
// 队列满的订阅者被踢掉，不影响其他人
func (h *Hub) Publish(cat model.Category, payload any, src model.DataSource) int {
	return h.broadcast(newMessage(Message{Kind: KindUpdate, Category: cat, Payload: payload, DataSource: src}))
}

// RelayChat 打上服务端时间戳（单调不减）后广播，返回实际发出的消息
func (h *Hub) RelayChat(msg model.ChatMessage) model.ChatMessage {
	h.mu.Lock()
	now := h.clock.Now()
	if now.Before(h.lastChat) {
		now = h.lastChat
	}
	h.lastChat = now
	msg.Timestamp = now
	evicted, _ := h.deliverLocked(newMessage(Message{Kind: KindChat, Chat: &msg}))
	h.mu.Unlock()

	h.leave(evicted, ErrSubscriberDelivery)
	return msg
}

func (h *Hub) broadcast(m Message) int {
	h.mu.Lock()
	evicted, n := h.deliverLocked(m)
	h.mu.Unlock()

	h.leave(evicted, ErrSubscriberDelivery)
	return n
}

func (h *Hub) deliverLocked(m Message) (evicted []*Subscriber, delivered int) {
	if h.closed {
		return nil, 0
	}
	metrics.HubMessagesTotal.WithLabelValues(string(m.Kind)).Inc()
	for _, s := range h.subs {
		select {
		case s.ch <- m:
			delivered++
		default:
			h.removeLocked(s, ErrSubscriberDelivery)
			evicted = append(evicted, s)
		}
	}
	if len(evicted) > 0 {
		metrics.HubEvictedTotal.Add(float64(len(evicted)))
	}
	return evicted, delivered
}

// Unsubscribe 幂等
func (h *Hub) Unsubscribe(s *Subscriber) {
	h.mu.Lock()
	removed := h.removeLocked(s, nil)
	h.mu.Unlock()

	if removed {
		h.leave([]*Subscriber{s}, nil)
	}
}

// Err 被移除的原因；仍在线或主动退订时为 nil
func (h *Hub) Err(s *Subscriber) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return s.err
}

func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Close 移除所有订阅者，之后的 Publish 什么都不做
func (h *Hub) Close() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	all := make([]*Subscriber, 0, len(h.subs))
	for _, s := range h.subs {
		h.removeLocked(s, ErrHubClosed)
		all = append(all, s)
	}
	h.mu.Unlock()

	h.leave(all, ErrHubClosed)
}

func (h *Hub) removeLocked(s *Subscriber, reason error) bool {
	if s.removed {
		return false
	}
	s.removed = true
	s.err = reason
	delete(h.subs, s.id)
	close(s.ch)
	close(s.done)
	metrics.HubSubscribers.Set(float64(len(h.subs)))
	return true
}

// 回调在锁外执行，回调里可以再调 hub
func (h *Hub) leave(subs []*Subscriber, reason error) {
	for _, s := range subs {
		if s.onLeave != nil {
			s.onLeave(s, reason)
		}
	}
}
