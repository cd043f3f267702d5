package controller

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	chat "go-mentorchat/internal/pkg/chat/application/domain"
)

const (
	HeaderUserID   = "X-User-Id"
	HeaderUserRole = "X-User-Role"

	callerKey = "chat.caller"
)

// IdentityResolver turns an incoming request into an authenticated caller.
type IdentityResolver interface {
	Resolve(r *http.Request) (chat.Caller, error)
}

// HeaderIdentity trusts the identity headers set by the upstream auth proxy.
type HeaderIdentity struct{}

var _ IdentityResolver = HeaderIdentity{}

func (HeaderIdentity) Resolve(r *http.Request) (chat.Caller, error) {
	raw := strings.TrimSpace(r.Header.Get(HeaderUserID))
	if raw == "" {
		return chat.Caller{}, fmt.Errorf("%w: missing %s", chat.ErrInvalid, HeaderUserID)
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return chat.Caller{}, fmt.Errorf("%w: bad %s", chat.ErrInvalid, HeaderUserID)
	}
	role, err := chat.ParseRole(r.Header.Get(HeaderUserRole))
	if err != nil {
		return chat.Caller{}, err
	}
	return chat.Caller{UserID: id, Role: role}, nil
}

// RequireCaller aborts with 401 unless the resolver accepts the request, and stores the caller
// on the gin context otherwise.
func RequireCaller(resolver IdentityResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		caller, err := resolver.Resolve(c.Request)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": err.Error(), "code": "unauthorized"})
			return
		}
		c.Set(callerKey, caller)
		c.Next()
	}
}

func callerFrom(c *gin.Context) (chat.Caller, bool) {
	v, ok := c.Get(callerKey)
	if !ok {
		return chat.Caller{}, false
	}
	caller, ok := v.(chat.Caller)
	return caller, ok
}
