package controller

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	chat "go-mentorchat/internal/pkg/chat/application/domain"
	"go-mentorchat/internal/pkg/chat/application/usecase"
)

const defaultRequestTimeout = 3 * time.Second

// Options are shared by every controller.
type Options struct {
	RequestTimeout time.Duration
	Logger         *zap.Logger
}

type base struct {
	timeout time.Duration
	logger  *zap.Logger
}

func newBase(opts Options) base {
	b := base{timeout: opts.RequestTimeout, logger: opts.Logger}
	if b.timeout <= 0 {
		b.timeout = defaultRequestTimeout
	}
	if b.logger == nil {
		b.logger = zap.NewNop()
	}
	return b
}

// begin resolves the caller and derives the request context. It writes the response and
// returns ok=false when the request cannot proceed.
func (b base) begin(c *gin.Context) (context.Context, context.CancelFunc, chat.Caller, bool) {
	caller, ok := callerFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "identity is required", "code": "unauthorized"})
		return nil, nil, chat.Caller{}, false
	}
	ctx, cancel := context.WithTimeout(c.Request.Context(), b.timeout)
	return ctx, cancel, caller, true
}

// errorStatus maps use case errors onto an HTTP status and a stable code, shared with the
// websocket error frames.
func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, chat.ErrInvalid):
		return http.StatusBadRequest, "bad_request"
	case errors.Is(err, chat.ErrForbidden):
		return http.StatusForbidden, "forbidden"
	case errors.Is(err, chat.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, chat.ErrConflict):
		return http.StatusConflict, "conflict"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

func errorMessage(status int, err error) string {
	if status == http.StatusInternalServerError {
		if errors.Is(err, usecase.ErrPersistence) {
			return "unexpected persistence error"
		}
		return "internal error"
	}
	return err.Error()
}

func (b base) fail(c *gin.Context, err error) {
	status, code := errorStatus(err)
	if status == http.StatusInternalServerError {
		b.logger.Error("request failed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Error(err))
	}
	c.JSON(status, gin.H{"error": errorMessage(status, err), "code": code})
}

func badRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": message, "code": "bad_request"})
}

// conversationID parses the :conversationId path parameter.
func conversationID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("conversationId"), 10, 64)
	if err != nil || id <= 0 {
		badRequest(c, "conversationId must be a positive integer")
		return 0, false
	}
	return id, true
}

// pageQuery reads ?page=, treating absent or unparsable values as the first page.
func pageQuery(c *gin.Context) int {
	n, err := strconv.Atoi(c.Query("page"))
	if err != nil || n < 1 {
		return 1
	}
	return n
}

// idsQuery parses a comma separated id list such as ?ids=1,2,3.
func idsQuery(c *gin.Context, key string) ([]int64, bool) {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return []int64{}, true
	}
	parts := strings.Split(raw, ",")
	ids := make([]int64, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		id, err := strconv.ParseInt(p, 10, 64)
		if err != nil || id <= 0 {
			badRequest(c, key+" must be a comma separated list of positive integers")
			return nil, false
		}
		ids = append(ids, id)
	}
	return ids, true
}

type conversationResponse struct {
	ID             int64          `json:"conversationId"`
	MentorID       int64          `json:"mentorId"`
	MenteeID       int64          `json:"menteeId"`
	Status         chat.Lifecycle `json:"status"`
	Flagged        bool           `json:"flagged"`
	MentorIn       bool           `json:"mentorIn"`
	MenteeIn       bool           `json:"menteeIn"`
	CreatedAt      time.Time      `json:"createdAt"`
	LastActivityAt time.Time      `json:"lastActivityAt"`
	ClosedAt       *time.Time     `json:"closedAt"`
	FlaggedAt      *time.Time     `json:"flaggedAt"`
}

func toConversationResponse(conv chat.Conversation) conversationResponse {
	return conversationResponse{
		ID:             conv.ID,
		MentorID:       conv.MentorID,
		MenteeID:       conv.MenteeID,
		Status:         conv.Lifecycle(),
		Flagged:        conv.Flagged,
		MentorIn:       conv.MentorIn,
		MenteeIn:       conv.MenteeIn,
		CreatedAt:      conv.CreatedAt,
		LastActivityAt: conv.LastActivityAt,
		ClosedAt:       conv.ClosedAt,
		FlaggedAt:      conv.FlaggedAt,
	}
}
