package transport

import (
	"context"
	"fmt"

	"github.com/antwort-dev/auskunft/pkg/api"
)

// Recovery converts a panic anywhere below it into a server_error
// response, so one bad request cannot take the process down.
func Recovery() Middleware {
	return func(next AnswerCreator) AnswerCreator {
		return AnswerCreatorFunc(func(ctx context.Context, req *api.CreateAnswerRequest, w AnswerWriter) (retErr error) {
			defer func() {
				if v := recover(); v != nil {
					retErr = api.NewServerError(fmt.Sprintf("internal server error: %v", v))
				}
			}()
			return next.CreateAnswer(ctx, req, w)
		})
	}
}
