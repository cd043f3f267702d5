package controller

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/ratelimit"
	"go.uber.org/zap"

	"go-mentorchat/internal/infrastructure/realtime"
	chat "go-mentorchat/internal/pkg/chat/application/domain"
	"go-mentorchat/internal/pkg/chat/application/usecase"
)

// SocketOptions tune the websocket session.
type SocketOptions struct {
	Options
	ReadTimeout time.Duration
	// InboundRate caps the frames per second read from one connection; 0 disables pacing.
	InboundRate int
}

// ChatSocketController handles the websocket endpoint for realtime chat traffic.
type ChatSocketController struct {
	base
	router      *realtime.Router
	getUC       *usecase.GetConversationUseCase
	enterUC     *usecase.EnterConversationUseCase
	exitUC      *usecase.ExitConversationUseCase
	sendUC      *usecase.SendMessageUseCase
	readTimeout time.Duration
	inboundRate int
}

func NewChatSocketController(svc *usecase.Service, router *realtime.Router, opts SocketOptions) *ChatSocketController {
	ctl := &ChatSocketController{
		base:        newBase(opts.Options),
		router:      router,
		getUC:       svc.GetConversation,
		enterUC:     svc.EnterConversation,
		exitUC:      svc.ExitConversation,
		sendUC:      svc.SendMessage,
		readTimeout: opts.ReadTimeout,
		inboundRate: opts.InboundRate,
	}
	if ctl.readTimeout <= 0 {
		ctl.readTimeout = defaultReadTimeout
	}
	return ctl
}

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// identity comes from the auth proxy headers, not cookies
		return true
	},
}

const (
	frameEnter   = "enter"
	frameExit    = "exit"
	frameMessage = "message"

	defaultReadTimeout = 60 * time.Second
)

type inboundFrame struct {
	Type           string `json:"type"`
	ConversationID int64  `json:"conversationId,omitempty"`
	Text           string `json:"text,omitempty"`
}

type errorFrame struct {
	Type           string `json:"type"`
	Code           string `json:"code"`
	Error          string `json:"error"`
	ConversationID int64  `json:"conversationId,omitempty"`
}

type ackFrame struct {
	Type           string `json:"type"`
	ConversationID int64  `json:"conversationId,omitempty"`
	MessageID      int64  `json:"messageId,omitempty"`
}

// Handle upgrades HTTP connections to websocket and processes frames until the client disconnects.
func (ctl *ChatSocketController) Handle() gin.HandlerFunc {
	return func(c *gin.Context) {
		caller, ok := callerFrom(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "identity is required", "code": "unauthorized"})
			return
		}

		ws, err := wsUpgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			// Upgrade already wrote the response
			ctl.logger.Debug("websocket upgrade failed", zap.Error(err))
			return
		}

		conn := realtime.NewConnection(caller.UserID, ws)
		ctl.router.Attach(conn)
		log := ctl.logger.With(zap.String("conn", conn.ID), zap.Int64("user", caller.UserID))
		log.Debug("websocket connected")
		defer func() {
			ctl.exitAll(caller, ctl.router.Detach(conn), log)
			conn.Close(websocket.CloseNormalClosure, "session closed")
			log.Debug("websocket closed")
		}()

		ws.SetReadLimit(1 << 20) // 1MB payload cap
		_ = ws.SetReadDeadline(time.Now().Add(ctl.readTimeout))
		ws.SetPongHandler(func(string) error {
			return ws.SetReadDeadline(time.Now().Add(ctl.readTimeout))
		})

		ctl.reply(conn, ackFrame{Type: "connected"})

		limiter := ratelimit.NewUnlimited()
		if ctl.inboundRate > 0 {
			limiter = ratelimit.New(ctl.inboundRate, ratelimit.WithoutSlack)
		}

		for {
			_, data, err := ws.ReadMessage()
			if err != nil {
				if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) ||
					errors.Is(err, websocket.ErrCloseSent) {
					return
				}
				log.Debug("websocket read failed", zap.Error(err))
				ctl.replyError(conn, "read_error", err.Error(), 0)
				return
			}
			limiter.Take()
			// a busy client must not time out while it is being paced
			_ = ws.SetReadDeadline(time.Now().Add(ctl.readTimeout))

			var frame inboundFrame
			if err := json.Unmarshal(data, &frame); err != nil {
				ctl.replyError(conn, "bad_request", "invalid payload", 0)
				continue
			}
			if frame.ConversationID <= 0 {
				ctl.replyError(conn, "bad_request", "conversationId is required", 0)
				continue
			}

			switch frame.Type {
			case frameEnter:
				ctl.handleEnter(c, conn, caller, frame)
			case frameExit:
				ctl.handleExit(c, conn, caller, frame)
			case frameMessage:
				ctl.handleMessage(c, conn, caller, frame)
			default:
				ctl.replyError(conn, "unsupported_type", "unknown frame type", frame.ConversationID)
			}
		}
	}
}

// handleEnter checks that the caller is a party before subscribing, then subscribes before
// entering so the connection sees its own ENTER and everything relayed after it.
func (ctl *ChatSocketController) handleEnter(c *gin.Context, conn *realtime.Connection, caller chat.Caller, frame inboundFrame) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), ctl.timeout)
	defer cancel()

	if _, err := ctl.getUC.Execute(ctx, usecase.GetConversationInput{Caller: caller, ConversationID: frame.ConversationID}); err != nil {
		ctl.handleUseCaseError(conn, frame.ConversationID, err)
		return
	}

	topic := chat.Topic(frame.ConversationID)
	if !ctl.router.Subscribe(topic, conn) {
		return
	}
	_, err := ctl.enterUC.Execute(ctx, usecase.EnterConversationInput{Caller: caller, ConversationID: frame.ConversationID})
	if err != nil {
		ctl.router.Unsubscribe(topic, conn)
		ctl.handleUseCaseError(conn, frame.ConversationID, err)
		return
	}
	ctl.reply(conn, ackFrame{Type: "entered", ConversationID: frame.ConversationID})
}

func (ctl *ChatSocketController) handleExit(c *gin.Context, conn *realtime.Connection, caller chat.Caller, frame inboundFrame) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), ctl.timeout)
	defer cancel()

	_, err := ctl.exitUC.Execute(ctx, usecase.ExitConversationInput{Caller: caller, ConversationID: frame.ConversationID})
	ctl.router.Unsubscribe(chat.Topic(frame.ConversationID), conn)
	if err != nil {
		ctl.handleUseCaseError(conn, frame.ConversationID, err)
		return
	}
	ctl.reply(conn, ackFrame{Type: "exited", ConversationID: frame.ConversationID})
}

// handleMessage relies on the room broadcast for delivery; a sender that has not entered gets
// only the ack.
func (ctl *ChatSocketController) handleMessage(c *gin.Context, conn *realtime.Connection, caller chat.Caller, frame inboundFrame) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), ctl.timeout)
	defer cancel()

	msg, err := ctl.sendUC.Execute(ctx, usecase.SendMessageInput{Caller: caller, ConversationID: frame.ConversationID, Text: frame.Text})
	if err != nil {
		ctl.handleUseCaseError(conn, frame.ConversationID, err)
		return
	}
	ctl.reply(conn, ackFrame{Type: "sent", ConversationID: frame.ConversationID, MessageID: msg.ID})
}

// exitAll flips the caller out of every room the closed connection had entered. The request
// context is already done at this point.
func (ctl *ChatSocketController) exitAll(caller chat.Caller, topics []string, log *zap.Logger) {
	for _, topic := range topics {
		id, ok := chat.ParseTopic(topic)
		if !ok {
			continue
		}
		ctx, cancel := context.WithTimeout(context.Background(), ctl.timeout)
		_, err := ctl.exitUC.Execute(ctx, usecase.ExitConversationInput{Caller: caller, ConversationID: id})
		cancel()
		if err != nil {
			log.Warn("exit on disconnect failed", zap.Int64("conversation", id), zap.Error(err))
		}
	}
}

func (ctl *ChatSocketController) handleUseCaseError(conn *realtime.Connection, conversationID int64, err error) {
	status, code := errorStatus(err)
	if status == http.StatusInternalServerError {
		ctl.logger.Error("websocket frame failed", zap.Int64("conversation", conversationID), zap.Error(err))
	}
	ctl.replyError(conn, code, errorMessage(status, err), conversationID)
}

func (ctl *ChatSocketController) replyError(conn *realtime.Connection, code string, message string, conversationID int64) {
	ctl.reply(conn, errorFrame{Type: "error", Code: code, Error: message, ConversationID: conversationID})
}

func (ctl *ChatSocketController) reply(conn *realtime.Connection, frame any) {
	if payload, err := json.Marshal(frame); err == nil {
		_ = conn.Send(payload)
	}
}
