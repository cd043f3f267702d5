package controller

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"go-mentorchat/internal/pkg/chat/application/usecase"
)

// CreateConversationController opens, or returns the existing, conversation between the caller
// and a counterpart. One controller per endpoint.
type CreateConversationController struct {
	base
	UC *usecase.GetOrCreateConversationUseCase
}

func NewCreateConversationController(uc *usecase.GetOrCreateConversationUseCase, opts Options) *CreateConversationController {
	return &CreateConversationController{base: newBase(opts), UC: uc}
}

type createConversationRequest struct {
	CounterpartID int64 `json:"counterpartId" binding:"required"`
}

func (h *CreateConversationController) Handle() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req createConversationRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}

		ctx, cancel, caller, ok := h.begin(c)
		if !ok {
			return
		}
		defer cancel()

		out, err := h.UC.Execute(ctx, usecase.GetOrCreateConversationInput{Caller: caller, CounterpartID: req.CounterpartID})
		if err != nil {
			h.fail(c, err)
			return
		}

		status := http.StatusOK
		if out.Created {
			status = http.StatusCreated
		}
		c.JSON(status, toConversationResponse(out.Conversation))
	}
}
