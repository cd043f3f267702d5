package http

import (
	"github.com/gin-gonic/gin"

	"go-mentorchat/internal/infrastructure/realtime"
	"go-mentorchat/internal/pkg/chat/application/usecase"
	"go-mentorchat/internal/pkg/chat/presentation/controller"
)

// RegisterRoutes registers chat-related HTTP endpoints under the given router group
// It constructs per-endpoint controllers and binds them directly to routes.
func RegisterRoutes(g *gin.RouterGroup, svc *usecase.Service, router *realtime.Router, identity controller.IdentityResolver, opts controller.SocketOptions) {
	g.Use(controller.RequireCaller(identity))
	o := opts.Options

	conversations := g.Group("/conversations")

	// POST /api/v1/conversations -> open (or return) the conversation with a counterpart
	conversations.POST("", controller.NewCreateConversationController(svc.GetOrCreateConversation, o).Handle())

	// GET /api/v1/conversations?page= -> the caller's conversations, most recent first
	conversations.GET("", controller.NewListConversationsController(svc.ListConversations, o).Handle())

	// GET /api/v1/conversations/unread?ids=1,2 -> unread counts for many conversations
	conversations.GET("/unread", controller.NewListUnreadCountsController(svc.ListUnreadCounts, o).Handle())

	// GET /api/v1/conversations/with/:counterpartId -> lookup without creating
	conversations.GET("/with/:counterpartId", controller.NewFindConversationController(svc.FindConversationByPair, o).Handle())

	one := conversations.Group("/:conversationId")
	one.GET("", controller.NewGetConversationController(svc.GetConversation, o).Handle())
	one.GET("/messages", controller.NewGetHistoryController(svc.GetHistory, o).Handle())
	one.POST("/messages", controller.NewSendMessageController(svc.SendMessage, o).Handle())
	one.POST("/enter", controller.NewEnterConversationController(svc.EnterConversation, o).Handle())
	one.POST("/exit", controller.NewExitConversationController(svc.ExitConversation, o).Handle())
	one.POST("/read", controller.NewMarkAllReadController(svc.MarkAllRead, o).Handle())
	one.GET("/unread", controller.NewUnreadCountController(svc.UnreadCount, o).Handle())
	one.POST("/close", controller.NewCloseConversationController(svc.CloseConversation, o).Handle())
	one.POST("/flag", controller.NewFlagConversationController(svc.FlagConversation, o).Handle())

	// GET /api/v1/chat/ws -> websocket endpoint for realtime chat
	g.GET("/chat/ws", controller.NewChatSocketController(svc, router, opts).Handle())
}
