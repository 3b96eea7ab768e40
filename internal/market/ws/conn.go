package ws

import (
	"context"
	"errors"
	"math/rand/v2"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/segmentio/encoding/json"
	"go.uber.org/zap"
	"traderhub.com/internal/market/hub"
	"traderhub.com/internal/market/model"
	"traderhub.com/internal/market/wsmetrics"
	"traderhub.com/pkg/logger"
)

type Conn struct {
	ws  *websocket.Conn
	sub *hub.Subscriber

	// 回给单个连接的错误消息，和广播消息一起由 writePump 写
	direct chan []byte

	closeOnce sync.Once
}

type Server struct {
	Hub      *hub.Hub
	Chat     *hub.ChatRelay
	Upgrader websocket.Upgrader
	ctx      context.Context

	SendBuf    int // 每个订阅者的缓冲，满了会被踢
	PongWait   time.Duration
	PingPeriod time.Duration
	PingJitter time.Duration
	WriteWait  time.Duration
	ReadLimit  int64
}

func NewServer(ctx context.Context, h *hub.Hub, chat *hub.ChatRelay) *Server {
	return &Server{
		Hub:  h,
		Chat: chat,
		ctx:  ctx,
		Upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		SendBuf:    hub.DefaultSendBuffer,
		PongWait:   60 * time.Second,
		PingPeriod: 30 * time.Second,
		PingJitter: 3 * time.Second,
		WriteWait:  5 * time.Second,
		ReadLimit:  4 << 10,
	}
}

func (s *Server) ServeWS(w http.ResponseWriter, r *http.Request) {
	wsConn, err := s.Upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warn(r.Context(), "websocket upgrade failed", zap.Error(err))
		return
	}
	wsmetrics.OnOpen()

	c := &Conn{ws: wsConn, direct: make(chan []byte, 8)}
	c.sub = s.Hub.Subscribe(hub.WithBuffer(s.SendBuf))
	logger.Info(s.ctx, "subscriber joined", zap.String("subscriber", c.sub.ID()), zap.String("remote", r.RemoteAddr))

	go s.writePump(c)
	go s.readPump(c)
}

func (s *Server) close(c *Conn, code int, reason string) {
	c.closeOnce.Do(func() {
		s.Hub.Unsubscribe(c.sub)
		_ = c.ws.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), time.Now().Add(s.WriteWait))
		_ = c.ws.Close()
		wsmetrics.OnClose(code, reason)
		logger.Info(s.ctx, "subscriber left",
			zap.String("subscriber", c.sub.ID()),
			zap.Int("code", code),
			zap.String("reason", reason),
		)
	})
}

func (s *Server) readPump(c *Conn) {
	code, reason := websocket.CloseNormalClosure, "client closed"
	defer func() { s.close(c, code, reason) }()

	c.ws.SetReadLimit(s.ReadLimit)
	_ = c.ws.SetReadDeadline(time.Now().Add(s.PongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(s.PongWait))
	})

	for {
		_, b, err := c.ws.ReadMessage()
		if err != nil {
			var ne net.Error
			switch {
			case errors.As(err, &ne) && ne.Timeout():
				code, reason = websocket.ClosePolicyViolation, "pong timeout"
			case errors.Is(err, websocket.ErrReadLimit):
				code, reason = websocket.CloseMessageTooBig, "message too big"
			}
			return
		}
		var msg ClientMsg
		if json.Unmarshal(b, &msg) != nil {
			s.reply(c, "malformed message")
			continue
		}
		switch msg.Type {
		case "chat":
			if s.Chat == nil {
				continue
			}
			if _, err := s.Chat.Relay(s.ctx, model.ChatSubmit{Content: msg.Content, Username: msg.Username}); err != nil {
				wsmetrics.ChatInTotal.WithLabelValues("rejected").Inc()
				s.reply(c, err.Error())
				continue
			}
			wsmetrics.ChatInTotal.WithLabelValues("ok").Inc()
		default:
			s.reply(c, "unknown message type")
		}
	}
}

func (s *Server) reply(c *Conn, text string) {
	b, err := json.Marshal(ErrorMsg{Type: "error", Error: text})
	if err != nil {
		return
	}
	select {
	case c.direct <- b:
	default:
	}
}

func (s *Server) writePump(c *Conn) {
	code, reason := websocket.CloseNormalClosure, "server shutdown"
	defer func() { s.close(c, code, reason) }()

	// 错开各连接的 ping
	period := s.PingPeriod
	if s.PingJitter > 0 {
		period += rand.N(s.PingJitter)
	}
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	for {
		select {
		case m, ok := <-c.sub.C():
			if !ok {
				// 被 hub 踢掉（写得太慢）或 hub 关闭
				if errors.Is(s.Hub.Err(c.sub), hub.ErrSubscriberDelivery) {
					code, reason = websocket.CloseTryAgainLater, "slow consumer"
				}
				return
			}
			b, err := m.Bytes()
			if err != nil {
				logger.Error(s.ctx, "encode envelope failed", zap.Error(err))
				continue
			}
			if err := s.write(c, string(m.Envelope().Type), b); err != nil {
				code, reason = websocket.CloseAbnormalClosure, "write failed"
				return
			}
		case b := <-c.direct:
			if err := s.write(c, "error", b); err != nil {
				code, reason = websocket.CloseAbnormalClosure, "write failed"
				return
			}
		case <-ticker.C:
			if err := c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(s.WriteWait)); err != nil {
				wsmetrics.PingErrorsTotal.Inc()
				code, reason = websocket.CloseAbnormalClosure, "ping failed"
				return
			}
		case <-s.ctx.Done():
			code, reason = websocket.CloseGoingAway, "server shutdown"
			return
		}
	}
}

func (s *Server) write(c *Conn, kind string, b []byte) error {
	start := time.Now()
	_ = c.ws.SetWriteDeadline(start.Add(s.WriteWait))
	err := c.ws.WriteMessage(websocket.TextMessage, b)
	wsmetrics.ObserveWrite(kind, len(b), time.Since(start), err)
	return err
}
