package hub

import (
	"sync"

	"github.com/segmentio/encoding/json"
	"traderhub.com/internal/market/model"
)

type Kind string

const (
	KindSnapshot Kind = "snapshot"
	KindUpdate   Kind = "update"
	KindChat     Kind = "chat"
)

// Message hub 投递给订阅者的消息；Payload 所有订阅者共享，只读
type Message struct {
	Kind       Kind
	Category   model.Category
	Payload    any
	DataSource model.DataSource
	Snapshot   *model.MarketSnapshot
	Chat       *model.ChatMessage

	frame *frame
}

// frame 同一条消息所有订阅者共用一次编码结果
type frame struct {
	once sync.Once
	b    []byte
	err  error
}

func newMessage(m Message) Message {
	m.frame = &frame{}
	return m
}

// Bytes 编码后的 JSON 帧，只编码一次；调用方不要修改返回的切片
func (m Message) Bytes() ([]byte, error) {
	if m.frame == nil {
		return Encode(m)
	}
	m.frame.once.Do(func() {
		m.frame.b, m.frame.err = Encode(m)
	})
	return m.frame.b, m.frame.err
}

// Envelope 线上格式：{"type":"...","data":{...}}
type Envelope struct {
	Type Kind `json:"type"`
	Data any  `json:"data"`
}

type Update struct {
	Category   model.Category   `json:"category"`
	Payload    any              `json:"payload"`
	DataSource model.DataSource `json:"dataSource,omitempty"`
}

func (m Message) Envelope() Envelope {
	switch m.Kind {
	case KindSnapshot:
		return Envelope{Type: KindSnapshot, Data: m.Snapshot}
	case KindChat:
		return Envelope{Type: KindChat, Data: m.Chat}
	default:
		return Envelope{Type: KindUpdate, Data: Update{Category: m.Category, Payload: m.Payload, DataSource: m.DataSource}}
	}
}

// Encode 编码成一帧 JSON
func Encode(m Message) ([]byte, error) {
	return json.Marshal(m.Envelope())
}
