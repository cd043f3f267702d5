package controller

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"go-mentorchat/internal/pkg/chat/application/usecase"
)

// GetHistoryController returns one page of a conversation's messages, newest first.
type GetHistoryController struct {
	base
	UC *usecase.GetHistoryUseCase
}

func NewGetHistoryController(uc *usecase.GetHistoryUseCase, opts Options) *GetHistoryController {
	return &GetHistoryController{base: newBase(opts), UC: uc}
}

func (h *GetHistoryController) Handle() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := conversationID(c)
		if !ok {
			return
		}
		page := pageQuery(c)

		ctx, cancel, caller, ok := h.begin(c)
		if !ok {
			return
		}
		defer cancel()

		msgs, err := h.UC.Execute(ctx, usecase.GetHistoryInput{Caller: caller, ConversationID: id, Page: page})
		if err != nil {
			h.fail(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"messages": msgs,
			"page":     page,
			"count":    len(msgs),
		})
	}
}
