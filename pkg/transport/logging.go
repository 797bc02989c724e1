package transport

import (
	"context"
	"log/slog"
	"time"

	"github.com/antwort-dev/auskunft/pkg/api"
)

// Logging returns middleware that emits structured log entries for each
// answer request. The log entry includes the request ID (from context),
// model, collection, streaming flag, duration, and whether the request
// succeeded or failed.
//
// The HTTP method and path are not available at the AnswerCreator level;
// for full HTTP-level logging (including status codes), use HTTP-level
// middleware in the adapter.
func Logging(logger *slog.Logger) Middleware {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next AnswerCreator) AnswerCreator {
		return AnswerCreatorFunc(func(ctx context.Context, req *api.CreateAnswerRequest, w AnswerWriter) error {
			start := time.Now()
			requestID := RequestIDFromContext(ctx)

			err := next.CreateAnswer(ctx, req, w)

			attrs := []slog.Attr{
				slog.String("request_id", requestID),
				slog.String("model", req.Model),
				slog.String("collection", req.Collection),
				slog.Bool("stream", req.Stream),
				slog.Duration("duration", time.Since(start)),
			}

			if err != nil {
				attrs = append(attrs, slog.String("error", err.Error()))
				logger.LogAttrs(ctx, slog.LevelError, "answer request failed", attrs...)
			} else {
				logger.LogAttrs(ctx, slog.LevelInfo, "answer request completed", attrs...)
			}

			return err
		})
	}
}
