package context

import "context"

type ctxKey string

const (
	requestIDKey ctxKey = "request_id"
	leadIDKey    ctxKey = "lead_id"
)

func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

func RequestIDFromContext(ctx context.Context) string {
	v, _ := ctx.Value(requestIDKey).(string)
	return v
}

// WithLeadID tags the context with the lead being processed so every log line
// in the pipeline carries it.
func WithLeadID(ctx context.Context, leadID string) context.Context {
	return context.WithValue(ctx, leadIDKey, leadID)
}

func LeadIDFromContext(ctx context.Context) string {
	v, _ := ctx.Value(leadIDKey).(string)
	return v
}
