package logger

import (
	"context"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type contextKey int

const (
	loggerKey contextKey = iota
	fieldsKey
)

// scope holds the identifiers attached to every entry logged through L
type scope struct {
	requestID      string
	tenantID       string
	userID         string
	auditSessionID string
}

// WithContext attaches a base logger to ctx
func WithContext(ctx context.Context, l *zap.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, l)
}

// FromContext returns the base logger attached to ctx, or a no-op logger
func FromContext(ctx context.Context) *zap.Logger {
	if l, ok := ctx.Value(loggerKey).(*zap.Logger); ok && l != nil {
		return l
	}
	return zap.NewNop()
}

func scopeFrom(ctx context.Context) scope {
	s, _ := ctx.Value(fieldsKey).(scope)
	return s
}

func withScope(ctx context.Context, update func(*scope)) context.Context {
	s := scopeFrom(ctx)
	update(&s)
	return context.WithValue(ctx, fieldsKey, s)
}

// WithRequestID records the request id for later log entries
func WithRequestID(ctx context.Context, id string) context.Context {
	return withScope(ctx, func(s *scope) { s.requestID = id })
}

// WithTenantID records the tenant id for later log entries
func WithTenantID(ctx context.Context, id string) context.Context {
	return withScope(ctx, func(s *scope) { s.tenantID = id })
}

// WithUserID records the user id for later log entries
func WithUserID(ctx context.Context, id string) context.Context {
	return withScope(ctx, func(s *scope) { s.userID = id })
}

// WithAuditSessionID records the audit session for later log entries
func WithAuditSessionID(ctx context.Context, id string) context.Context {
	return withScope(ctx, func(s *scope) { s.auditSessionID = id })
}

// GetRequestID returns the request id stored in ctx
func GetRequestID(ctx context.Context) string {
	return scopeFrom(ctx).requestID
}

// L returns the context logger enriched with trace and request scoped fields.
//
//	logger.L(ctx).Info("scan recorded", zap.String("asset_id", id))
func L(ctx context.Context) *zap.Logger {
	return Enrich(ctx, FromContext(ctx))
}

// Enrich adds the trace and request scoped fields in ctx to l
func Enrich(ctx context.Context, l *zap.Logger) *zap.Logger {
	fields := make([]zap.Field, 0, 6)
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		fields = append(fields,
			zap.String("trace_id", sc.TraceID().String()),
			zap.String("span_id", sc.SpanID().String()),
		)
	}
	s := scopeFrom(ctx)
	for _, kv := range [...]struct{ key, value string }{
		{"request_id", s.requestID},
		{"tenant_id", s.tenantID},
		{"user_id", s.userID},
		{"audit_session_id", s.auditSessionID},
	} {
		if kv.value != "" {
			fields = append(fields, zap.String(kv.key, kv.value))
		}
	}
	if len(fields) == 0 {
		return l
	}
	return l.With(fields...)
}
