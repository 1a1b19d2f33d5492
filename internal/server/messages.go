package server

import (
	"net/http"
	"time"

	"github.com/classlink/go-classchat/internal/types"
)

type BaseMessage struct {
	Id        int       `json:"id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

type ClientMessage struct {
	BaseMessage
	Register *Register `json:"register,omitempty"`
	Publish  *Publish  `json:"publish,omitempty"`
	Typing   *Typing   `json:"typing,omitempty"`
	client   *Client
}

// Register binds the authenticated user to the sending connection. The user
// identity comes from the session, never from the payload.
type Register struct{}

type Publish struct {
	ReceiverId int    `json:"receiver_id"`
	Body       string `json:"body"`
}

type Typing struct {
	ReceiverId int  `json:"receiver_id"`
	IsTyping   bool `json:"is_typing"`
}

type ServerMessage struct {
	BaseMessage
	Response     *Response      `json:"response,omitempty"`
	Message      *types.Message `json:"message,omitempty"`
	Notification *Notification  `json:"notification,omitempty"`
}

type Response struct {
	ResponseCode int    `json:"response_code"`
	Error        string `json:"error,omitempty"`
	Data         any    `json:"data,omitempty"`
}

type Notification struct {
	OnlineUsers     *OnlineUsers        `json:"online_users,omitempty"`
	Typing          *TypingNotification `json:"typing,omitempty"`
	SessionReplaced *SessionReplaced    `json:"session_replaced,omitempty"`
}

// OnlineUsers carries the full set of registered user ids, sorted. No delta
// computation; every presence change rebroadcasts the whole set.
type OnlineUsers struct {
	Users []int `json:"users"`
}

type TypingNotification struct {
	SenderId int  `json:"sender_id"`
	IsTyping bool `json:"is_typing"`
}

type SessionReplaced struct {
	ConnectionId string `json:"connection_id"`
}

func NoErrOK(id int, data any) *ServerMessage {
	return &ServerMessage{
		BaseMessage: BaseMessage{
			Id:        id,
			Timestamp: Now(),
		},
		Response: &Response{
			ResponseCode: http.StatusOK,
			Data:         data,
		},
	}
}

func NoErrAccepted(id int) *ServerMessage {
	return &ServerMessage{
		BaseMessage: BaseMessage{
			Id:        id,
			Timestamp: Now(),
		},
		Response: &Response{
			ResponseCode: http.StatusAccepted,
		},
	}
}

func ErrNotRegistered(id int) *ServerMessage {
	return &ServerMessage{
		BaseMessage: BaseMessage{
			Id:        id,
			Timestamp: Now(),
		},
		Response: &Response{
			ResponseCode: http.StatusUnauthorized,
			Error:        "connection not registered",
		},
	}
}

func ErrInternalError(id int) *ServerMessage {
	return &ServerMessage{
		BaseMessage: BaseMessage{
			Id:        id,
			Timestamp: Now(),
		},
		Response: &Response{
			ResponseCode: http.StatusInternalServerError,
			Error:        "internal server error",
		},
	}
}

func ErrServiceUnavailable(id int) *ServerMessage {
	return &ServerMessage{
		BaseMessage: BaseMessage{
			Id:        id,
			Timestamp: Now(),
		},
		Response: &Response{
			ResponseCode: http.StatusServiceUnavailable,
			Error:        "service unavailable",
		},
	}
}

func ErrInvalidMessage(id int) *ServerMessage {
	msg := &ServerMessage{
		BaseMessage: BaseMessage{
			Timestamp: Now(),
		},
		Response: &Response{
			ResponseCode: http.StatusBadRequest,
			Error:        "invalid message format",
		},
	}

	if id > 0 {
		msg.Id = id
	}
	return msg
}

func Now() time.Time {
	return time.Now().UTC().Round(time.Millisecond)
}
