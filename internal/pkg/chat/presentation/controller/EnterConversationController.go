package controller

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"go-mentorchat/internal/pkg/chat/application/usecase"
)

// EnterConversationController marks the caller's side present over plain HTTP. Clients holding a
// websocket use the enter frame instead, so they also receive the room traffic.
type EnterConversationController struct {
	base
	UC *usecase.EnterConversationUseCase
}

func NewEnterConversationController(uc *usecase.EnterConversationUseCase, opts Options) *EnterConversationController {
	return &EnterConversationController{base: newBase(opts), UC: uc}
}

func (h *EnterConversationController) Handle() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := conversationID(c)
		if !ok {
			return
		}
		ctx, cancel, caller, ok := h.begin(c)
		if !ok {
			return
		}
		defer cancel()

		out, err := h.UC.Execute(ctx, usecase.EnterConversationInput{Caller: caller, ConversationID: id})
		if err != nil {
			h.fail(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"conversation": toConversationResponse(out.Conversation),
			"changed":      out.Changed,
			"markedRead":   out.MarkedRead,
		})
	}
}
