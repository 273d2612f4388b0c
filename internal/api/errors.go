package api

import (
	"context"
	"errors"

	"github.com/matheus3301/wgram/internal/feed"
	"github.com/matheus3301/wgram/internal/history"
	"google.golang.org/grpc/codes"
	grpcstatus "google.golang.org/grpc/status"
)

// toStatus maps a projection or feed error to a gRPC status error.
func toStatus(op string, err error) error {
	if err == nil {
		return nil
	}
	var code codes.Code
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		code = codes.DeadlineExceeded
	case errors.Is(err, context.Canceled):
		code = codes.Canceled
	case errors.Is(err, history.ErrNotBound), errors.Is(err, history.ErrRebound):
		code = codes.FailedPrecondition
	case errors.Is(err, history.ErrDiscarded):
		code = codes.Aborted
	default:
		switch feed.CodeOf(err) {
		case feed.CodeInvalidArgument:
			code = codes.InvalidArgument
		case feed.CodeUnauthorized:
			code = codes.Unauthenticated
		case feed.CodeNotFound:
			code = codes.NotFound
		case feed.CodeUnavailable:
			code = codes.Unavailable
		default:
			code = codes.Internal
		}
	}
	return grpcstatus.Errorf(code, "%s: %v", op, err)
}
