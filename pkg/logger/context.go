package logger

import (
	"context"

	"github.com/rs/zerolog"
)

type ctxKey string

const (
	traceIDKey   ctxKey = "trace_id"
	requestIDKey ctxKey = "request_id"
	callerIDKey  ctxKey = "caller_id"
	loggerKey    ctxKey = "logger"
)

// WithTraceID кладет trace_id в контекст.
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, traceIDKey, traceID)
}

// TraceIDFromContext возвращает trace_id или пустую строку.
func TraceIDFromContext(ctx context.Context) string {
	v, _ := ctx.Value(traceIDKey).(string)
	return v
}

// WithRequestID кладет X-Request-ID входящего запроса в контекст.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

// RequestIDFromContext возвращает request_id или пустую строку.
func RequestIDFromContext(ctx context.Context) string {
	v, _ := ctx.Value(requestIDKey).(string)
	return v
}

// WithCallerID кладет идентификатор аутентифицированного пользователя в контекст.
func WithCallerID(ctx context.Context, callerID string) context.Context {
	return context.WithValue(ctx, callerIDKey, callerID)
}

// CallerIDFromContext возвращает caller_id или пустую строку.
func CallerIDFromContext(ctx context.Context) string {
	v, _ := ctx.Value(callerIDKey).(string)
	return v
}

// WithLogger кладет настроенный логгер в контекст.
func WithLogger(ctx context.Context, l zerolog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, l)
}

// FromContext возвращает логгер из контекста (или глобальный)
// и дописывает к нему trace_id, request_id и caller_id, если они есть.
func FromContext(ctx context.Context) zerolog.Logger {
	l, ok := ctx.Value(loggerKey).(zerolog.Logger)
	if !ok {
		l = log
	}

	lctx := l.With()
	if id := TraceIDFromContext(ctx); id != "" {
		lctx = lctx.Str("trace_id", id)
	}
	if id := RequestIDFromContext(ctx); id != "" {
		lctx = lctx.Str("request_id", id)
	}
	if id := CallerIDFromContext(ctx); id != "" {
		lctx = lctx.Str("caller_id", id)
	}
	return lctx.Logger()
}

// Ctx - укороченная форма FromContext для цепочек вызовов:
//
//	logger.Ctx(ctx).Info().Str("payment_id", id).Msg("Платеж подтвержден")
func Ctx(ctx context.Context) *zerolog.Logger {
	l := FromContext(ctx)
	return &l
}
