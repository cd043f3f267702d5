package controller

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"go-mentorchat/internal/pkg/chat/application/usecase"
)

// MarkAllReadController acknowledges every message the counterpart sent to the caller.
type MarkAllReadController struct {
	base
	UC *usecase.MarkAllReadUseCase
}

func NewMarkAllReadController(uc *usecase.MarkAllReadUseCase, opts Options) *MarkAllReadController {
	return &MarkAllReadController{base: newBase(opts), UC: uc}
}

func (h *MarkAllReadController) Handle() gin.HandlerFunc {
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

		n, err := h.UC.Execute(ctx, usecase.MarkAllReadInput{Caller: caller, ConversationID: id})
		if err != nil {
			h.fail(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"conversationId": id, "marked": n})
	}
}
