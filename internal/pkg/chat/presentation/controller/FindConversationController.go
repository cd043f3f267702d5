package controller

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"go-mentorchat/internal/pkg/chat/application/usecase"
)

// FindConversationController looks up the caller's conversation with :counterpartId without
// creating one.
type FindConversationController struct {
	base
	UC *usecase.FindConversationByPairUseCase
}

func NewFindConversationController(uc *usecase.FindConversationByPairUseCase, opts Options) *FindConversationController {
	return &FindConversationController{base: newBase(opts), UC: uc}
}

func (h *FindConversationController) Handle() gin.HandlerFunc {
	return func(c *gin.Context) {
		counterpart, err := strconv.ParseInt(c.Param("counterpartId"), 10, 64)
		if err != nil || counterpart <= 0 {
			badRequest(c, "counterpartId must be a positive integer")
			return
		}
		ctx, cancel, caller, ok := h.begin(c)
		if !ok {
			return
		}
		defer cancel()

		conv, err := h.UC.Execute(ctx, usecase.FindConversationByPairInput{Caller: caller, CounterpartID: counterpart})
		if err != nil {
			h.fail(c, err)
			return
		}
		c.JSON(http.StatusOK, toConversationResponse(*conv))
	}
}
