package controller

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"go-mentorchat/internal/pkg/chat/application/usecase"
)

type ExitConversationController struct {
	base
	UC *usecase.ExitConversationUseCase
}

func NewExitConversationController(uc *usecase.ExitConversationUseCase, opts Options) *ExitConversationController {
	return &ExitConversationController{base: newBase(opts), UC: uc}
}

func (h *ExitConversationController) Handle() gin.HandlerFunc {
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

		out, err := h.UC.Execute(ctx, usecase.ExitConversationInput{Caller: caller, ConversationID: id})
		if err != nil {
			h.fail(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"conversation": toConversationResponse(out.Conversation),
			"changed":      out.Changed,
		})
	}
}
