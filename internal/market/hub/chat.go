package hub

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"traderhub.com/internal/market/model"
	"traderhub.com/pkg/logger"
)

var ErrEmptyChat = errors.New("chat content is empty")

const (
	DefaultUsername = "Anonymous"
	MaxChatRunes    = 500
	maxNameRunes    = 32
)

// ChatRelay 无状态转发：校验、补 id 和用户名，经 hub 打时间戳后广播。不落库。
type ChatRelay struct {
	hub   *Hub
	newID func() string
}

func NewChatRelay(h *Hub) *ChatRelay {
	return &ChatRelay{hub: h, newID: uuid.NewString}
}

func (r *ChatRelay) Relay(ctx context.Context, in model.ChatSubmit) (model.ChatMessage, error) {
	content := truncate(strings.TrimSpace(in.Content), MaxChatRunes)
	if content == "" {
		return model.ChatMessage{}, ErrEmptyChat
	}
	name := truncate(strings.TrimSpace(in.Username), maxNameRunes)
	if name == "" {
		name = DefaultUsername
	}

	msg := r.hub.RelayChat(model.ChatMessage{ID: r.newID(), Username: name, Content: content})
	logger.Debug(ctx, "chat relayed", zap.String("chat_id", msg.ID), zap.String("username", msg.Username))
	return msg, nil
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n])
}
