package controller

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"go-mentorchat/internal/pkg/chat/application/usecase"
)

// CloseConversationController ends a conversation on behalf of one of its parties.
type CloseConversationController struct {
	base
	UC *usecase.CloseConversationUseCase
}

func NewCloseConversationController(uc *usecase.CloseConversationUseCase, opts Options) *CloseConversationController {
	return &CloseConversationController{base: newBase(opts), UC: uc}
}

func (h *CloseConversationController) Handle() gin.HandlerFunc {
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

		conv, err := h.UC.Execute(ctx, usecase.CloseConversationInput{Caller: caller, ConversationID: id})
		if err != nil {
			h.fail(c, err)
			return
		}
		c.JSON(http.StatusOK, toConversationResponse(*conv))
	}
}
