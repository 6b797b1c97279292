package shared

import "context"

// RequestContext carries the authorization facts resolved once per request.
// It is immutable after construction and threaded through context; nothing
// mutates it after the middleware chain builds it.
type RequestContext struct {
	UserID            int64
	CompanyID         int64
	AccessLevel       string
	PrimaryRole       string
	SuperAdmin        bool
	AllowedFactoryIDs []string
	ResolvedCurrent   string
}

type requestContextKey struct{}

// ContextWithRequestContext stores the resolved authorization context.
func ContextWithRequestContext(ctx context.Context, rc *RequestContext) context.Context {
	return context.WithValue(ctx, requestContextKey{}, rc)
}

// RequestContextFrom extracts the resolved authorization context, nil when absent.
func RequestContextFrom(ctx context.Context) *RequestContext {
	rc, _ := ctx.Value(requestContextKey{}).(*RequestContext)
	return rc
}
