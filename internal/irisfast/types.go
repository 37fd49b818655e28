package irisfast

import (
	"encoding/json"
	"strings"
)

// Message is one inbound chat event relayed by Iris over the WebSocket.
type Message struct {
	Msg    string       `json:"msg"`
	Room   string       `json:"room"`
	Sender *string      `json:"sender,omitempty"`
	JSON   *MessageJSON `json:"json,omitempty"`
}

// MessageJSON carries the raw KakaoTalk row fields Iris forwards.
type MessageJSON struct {
	ID         string `json:"_id,omitempty"`
	ChatID     string `json:"chat_id,omitempty"`
	UserID     string `json:"user_id,omitempty"`
	Message    string `json:"message,omitempty"`
	Attachment string `json:"attachment,omitempty"`
	V          string `json:"v,omitempty"`
}

// UserID prefers the numeric Kakao user id and falls back to the display name.
func (m *Message) UserID() string {
	if m == nil {
		return ""
	}
	if m.JSON != nil && strings.TrimSpace(m.JSON.UserID) != "" {
		return strings.TrimSpace(m.JSON.UserID)
	}
	return m.SenderName()
}

func (m *Message) SenderName() string {
	if m == nil || m.Sender == nil {
		return ""
	}
	return strings.TrimSpace(*m.Sender)
}

// MentionIDs lists the user ids of "@" mentions carried in the attachment, in order.
func (m *Message) MentionIDs() []string {
	if m == nil || m.JSON == nil || strings.TrimSpace(m.JSON.Attachment) == "" {
		return nil
	}
	var att struct {
		Mentions []struct {
			UserID json.Number `json:"user_id"`
		} `json:"mentions"`
	}
	if err := json.Unmarshal([]byte(m.JSON.Attachment), &att); err != nil {
		return nil
	}
	out := make([]string, 0, len(att.Mentions))
	for _, mm := range att.Mentions {
		if id := strings.TrimSpace(mm.UserID.String()); id != "" {
			out = append(out, id)
		}
	}
	return out
}

type Config struct {
	BotName           string `json:"bot_name"`
	Port              int    `json:"bot_http_port"`
	WebserverEndpoint string `json:"web_server_endpoint"`
	PollingSpeed      int    `json:"db_polling_rate"`
	MessageRate       int    `json:"message_send_rate"`
	BotID             int64  `json:"bot_id"`
}

type DecryptRequest struct {
	Data string `json:"data"`
}

type DecryptResponse struct {
	Decrypted string `json:"decrypted"`
}

// ReplyRequest is the /reply body; Type is "text" or "image" (base64 PNG in Data).
type ReplyRequest struct {
	Type string `json:"type"`
	Room string `json:"room"`
	Data string `json:"data"`
}

type WebSocketState int

const (
	WSStateDisconnected WebSocketState = iota
	WSStateConnecting
	WSStateConnected
	WSStateReconnecting
	WSStateFailed
)

func (s WebSocketState) String() string {
	switch s {
	case WSStateDisconnected:
		return "disconnected"
	case WSStateConnecting:
		return "connecting"
	case WSStateConnected:
		return "connected"
	case WSStateReconnecting:
		return "reconnecting"
	case WSStateFailed:
		return "failed"
	default:
		return "unknown"
	}
}
