package official

import (
	"context"
	"errors"
	"sync"

	pkgerrs "github.com/jamesprial/go-reddit-collector/pkg/errors"
)

// bootstrapper runs session initialization until it settles. A success or a
// credential rejection is final and every later caller sees it; any other
// failure is returned once and the next caller tries again. Concurrent
// callers queue behind the attempt in progress.
type bootstrapper struct {
	mu      sync.Mutex
	settled bool
	err     error
}

func (b *bootstrapper) run(ctx context.Context, fn func(context.Context) error) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.settled {
		return b.err
	}

	err := fn(ctx)
	var authErr *pkgerrs.AuthError
	if err == nil || errors.As(err, &authErr) {
		b.settled, b.err = true, err
	}
	return err
}

// done reports whether initialization has settled.
func (b *bootstrapper) done() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.settled
}
