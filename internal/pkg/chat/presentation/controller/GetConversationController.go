package controller

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"go-mentorchat/internal/pkg/chat/application/usecase"
)

type GetConversationController struct {
	base
	UC *usecase.GetConversationUseCase
}

func NewGetConversationController(uc *usecase.GetConversationUseCase, opts Options) *GetConversationController {
	return &GetConversationController{base: newBase(opts), UC: uc}
}

func (h *GetConversationController) Handle() gin.HandlerFunc {
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

		conv, err := h.UC.Execute(ctx, usecase.GetConversationInput{Caller: caller, ConversationID: id})
		if err != nil {
			h.fail(c, err)
			return
		}
		c.JSON(http.StatusOK, toConversationResponse(*conv))
	}
}
