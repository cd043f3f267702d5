package controller

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"go-mentorchat/internal/pkg/chat/application/usecase"
)

// SendMessageController handles the send-message endpoint only (one controller per endpoint).
// The stored message is relayed to the room the same way as a websocket send.
type SendMessageController struct {
	base
	UC *usecase.SendMessageUseCase
}

func NewSendMessageController(uc *usecase.SendMessageUseCase, opts Options) *SendMessageController {
	return &SendMessageController{base: newBase(opts), UC: uc}
}

// sendMessageRequest is the DTO for the HTTP request body
type sendMessageRequest struct {
	Text *string `json:"text" binding:"required"`
}

func (h *SendMessageController) Handle() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := conversationID(c)
		if !ok {
			return
		}

		var req sendMessageRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}

		ctx, cancel, caller, ok := h.begin(c)
		if !ok {
			return
		}
		defer cancel()

		msg, err := h.UC.Execute(ctx, usecase.SendMessageInput{Caller: caller, ConversationID: id, Text: *req.Text})
		if err != nil {
			h.fail(c, err)
			return
		}
		c.JSON(http.StatusCreated, msg)
	}
}
