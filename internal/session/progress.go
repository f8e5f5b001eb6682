package session

import (
	"context"
	"errors"

	"github.com/alanyoungcy/oddsbot/internal/domain"
)

type progressKey struct{}

// WithProgress returns a context whose turns report interim text, such as
// "Fetching sports list...", to fn before slow collaborator calls.
func WithProgress(ctx context.Context, fn func(text string)) context.Context {
	return context.WithValue(ctx, progressKey{}, fn)
}

func progress(ctx context.Context, text string) {
	if fn, ok := ctx.Value(progressKey{}).(func(string)); ok && fn != nil {
		fn(text)
	}
}

func expected(err error) bool {
	return domain.IsCollaboratorFailure(err) || errors.Is(err, context.DeadlineExceeded)
}
