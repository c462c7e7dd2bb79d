package utils

import (
	"context"

	"github.com/luxtick/luxtick_backend/appctx"
)

// Alias the shared context key type so existing code keeps working.
type contextKey = appctx.ContextKey

var (
	ContextKeyUserId         = appctx.ContextKeyUserId
	ContextKeyUserName       = appctx.ContextKeyUserName
	ContextKeyTelegramId     = appctx.ContextKeyTelegramId
	ContextKeyConversationId = appctx.ContextKeyConversationId
	ContextKeyCorrelationId  = appctx.ContextKeyCorrelationId
)

func GetUserIdFromContext(ctx context.Context) (int, bool) {
	return appctx.GetInt(ctx, ContextKeyUserId)
}

func GetUserNameFromContext(ctx context.Context) (string, bool) {
	return appctx.GetString(ctx, ContextKeyUserName)
}

func GetTelegramIdFromContext(ctx context.Context) (int64, bool) {
	return appctx.GetInt64(ctx, ContextKeyTelegramId)
}

func GetConversationIdFromContext(ctx context.Context) (string, bool) {
	return appctx.GetString(ctx, ContextKeyConversationId)
}

func GetCorrelationIdFromContext(ctx context.Context) (string, bool) {
	return appctx.GetString(ctx, ContextKeyCorrelationId)
}

func SetUserIdInContext(ctx context.Context, userId int) context.Context {
	return appctx.Set(ctx, ContextKeyUserId, userId)
}

func SetUserNameInContext(ctx context.Context, userName string) context.Context {
	return appctx.Set(ctx, ContextKeyUserName, userName)
}

func SetTelegramIdInContext(ctx context.Context, telegramId int64) context.Context {
	return appctx.Set(ctx, ContextKeyTelegramId, telegramId)
}

func SetConversationIdInContext(ctx context.Context, conversationId string) context.Context {
	return appctx.Set(ctx, ContextKeyConversationId, conversationId)
}

func SetCorrelationIdInContext(ctx context.Context, correlationId string) context.Context {
	return appctx.Set(ctx, ContextKeyCorrelationId, correlationId)
}
