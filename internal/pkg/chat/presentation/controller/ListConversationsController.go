package controller

import (
	"net/http"

	"github.com/gin-gonic/gin"

	chat "go-mentorchat/internal/pkg/chat/application/domain"
	"go-mentorchat/internal/pkg/chat/application/usecase"
)

// ListConversationsController pages through the caller's conversations, most recent first.
type ListConversationsController struct {
	base
	UC *usecase.ListConversationsUseCase
}

func NewListConversationsController(uc *usecase.ListConversationsUseCase, opts Options) *ListConversationsController {
	return &ListConversationsController{base: newBase(opts), UC: uc}
}

type conversationSummaryResponse struct {
	conversationResponse
	CounterpartID int64         `json:"counterpartId"`
	LastMessage   *chat.Message `json:"lastMessage"`
	Unread        int64         `json:"unread"`
}

func (h *ListConversationsController) Handle() gin.HandlerFunc {
	return func(c *gin.Context) {
		page := pageQuery(c)
		ctx, cancel, caller, ok := h.begin(c)
		if !ok {
			return
		}
		defer cancel()

		rows, err := h.UC.Execute(ctx, usecase.ListConversationsInput{Caller: caller, Page: page})
		if err != nil {
			h.fail(c, err)
			return
		}

		out := make([]conversationSummaryResponse, 0, len(rows))
		for _, r := range rows {
			out = append(out, conversationSummaryResponse{
				conversationResponse: toConversationResponse(r.Conversation),
				CounterpartID:        r.CounterpartID,
				LastMessage:          r.LastMessage,
				Unread:               r.Unread,
			})
		}
		c.JSON(http.StatusOK, gin.H{
			"conversations": out,
			"page":          page,
			"count":         len(out),
		})
	}
}
