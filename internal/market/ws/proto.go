package ws

// ClientMsg 客户端上行消息，目前只有聊天
type ClientMsg struct {
	Type     string `json:"type"` // "chat"
	Content  string `json:"content"`
	Username string `json:"username"`
}

// ErrorMsg 上行消息处理失败时回给这个连接
type ErrorMsg struct {
	Type  string `json:"type"` // "error"
	Error string `json:"error"`
}
