package transport

import (
	"context"
	"crypto/rand"
	"encoding/hex"

	"github.com/antwort-dev/auskunft/pkg/api"
)

// RequestID ensures every answer request carries an ID. An ID already
// present on the context (the HTTP adapter copies X-Request-ID there)
// is kept; otherwise a fresh one is generated. Retrieve it with
// RequestIDFromContext.
func RequestID() Middleware {
	return func(next AnswerCreator) AnswerCreator {
		return AnswerCreatorFunc(func(ctx context.Context, req *api.CreateAnswerRequest, w AnswerWriter) error {
			if RequestIDFromContext(ctx) == "" {
				ctx = ContextWithRequestID(ctx, newRequestID())
			}
			return next.CreateAnswer(ctx, req, w)
		})
	}
}

func newRequestID() string {
	b := make([]byte, 16)
	rand.Read(b)
	return hex.EncodeToString(b)
}
