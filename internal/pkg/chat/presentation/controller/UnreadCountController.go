package controller

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"go-mentorchat/internal/pkg/chat/application/usecase"
)

type UnreadCountController struct {
	base
	UC *usecase.UnreadCountUseCase
}

func NewUnreadCountController(uc *usecase.UnreadCountUseCase, opts Options) *UnreadCountController {
	return &UnreadCountController{base: newBase(opts), UC: uc}
}

func (h *UnreadCountController) Handle() gin.HandlerFunc {
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

		n, err := h.UC.Execute(ctx, usecase.UnreadCountInput{Caller: caller, ConversationID: id})
		if err != nil {
			h.fail(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"conversationId": id, "unread": n})
	}
}
