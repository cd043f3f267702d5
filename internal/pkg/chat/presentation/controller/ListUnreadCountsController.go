package controller

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"go-mentorchat/internal/pkg/chat/application/usecase"
)

// ListUnreadCountsController answers ?ids=1,2,3 with the caller's unread count per conversation.
// Conversations the caller is not a party of report 0.
type ListUnreadCountsController struct {
	base
	UC *usecase.ListUnreadCountsUseCase
}

func NewListUnreadCountsController(uc *usecase.ListUnreadCountsUseCase, opts Options) *ListUnreadCountsController {
	return &ListUnreadCountsController{base: newBase(opts), UC: uc}
}

func (h *ListUnreadCountsController) Handle() gin.HandlerFunc {
	return func(c *gin.Context) {
		ids, ok := idsQuery(c, "ids")
		if !ok {
			return
		}
		ctx, cancel, caller, ok := h.begin(c)
		if !ok {
			return
		}
		defer cancel()

		counts, err := h.UC.Execute(ctx, usecase.ListUnreadCountsInput{Caller: caller, ConversationIDs: ids})
		if err != nil {
			h.fail(c, err)
			return
		}

		// JSON object keys are strings
		out := make(map[string]int64, len(counts))
		for id, n := range counts {
			out[strconv.FormatInt(id, 10)] = n
		}
		c.JSON(http.StatusOK, gin.H{"unread": out})
	}
}
