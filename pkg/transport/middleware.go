package transport

import "context"

// Middleware decorates an AnswerCreator with cross-cutting behavior.
// The first middleware in a chain is the outermost wrapper.
type Middleware func(AnswerCreator) AnswerCreator

// Chain folds middlewares into one: Chain(a, b, c) yields
// a(b(c(handler))).
func Chain(middlewares ...Middleware) Middleware {
	return func(next AnswerCreator) AnswerCreator {
		for i := len(middlewares) - 1; i >= 0; i-- {
			next = middlewares[i](next)
		}
		return next
	}
}

type requestIDKeyType struct{}

var requestIDKey = requestIDKeyType{}

// RequestIDFromContext returns the request ID carried by the context,
// or "" when none has been assigned.
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// ContextWithRequestID attaches a request ID to the context.
func ContextWithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}
