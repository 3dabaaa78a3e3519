package usecase

import (
	"context"
	"log"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/naka-gawa/pr-stats/internal/domain"
)

// EmailSource looks up the public email of an account.
type EmailSource interface {
	FetchUserEmail(ctx context.Context, login string) (string, error)
}

// EmailDirectory resolves contributor emails at most once per identity for the
// lifetime of a run, even when several repositories ask concurrently.
type EmailDirectory struct {
	source EmailSource
	logger *log.Logger

	mu    sync.Mutex
	cache map[string]string
	group singleflight.Group
}

// NewEmailDirectory creates an empty directory backed by source.
func NewEmailDirectory(source EmailSource, logger *log.Logger) *EmailDirectory {
	return &EmailDirectory{
		source: source,
		logger: logger,
		cache:  make(map[string]string),
	}
}

// Lookup returns the email of login, or domain.EmailNotAvailable when it cannot be
// determined. Lookup failures are logged and never returned.
func (d *EmailDirectory) Lookup(ctx context.Context, login string) string {
	if email, ok := d.cached(login); ok {
		return email
	}

	v, _, _ := d.group.Do(login, func() (interface{}, error) {
		if email, ok := d.cached(login); ok {
			return email, nil
		}
		email, err := d.source.FetchUserEmail(ctx, login)
		if err != nil {
			d.logger.Printf("Email lookup for %s failed: %v", login, err)
			email = domain.EmailNotAvailable
		} else if email == "" {
			email = domain.EmailNotAvailable
		}
		d.mu.Lock()
		d.cache[login] = email
		d.mu.Unlock()
		return email, nil
	})
	return v.(string)
}

func (d *EmailDirectory) cached(login string) (string, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	email, ok := d.cache[login]
	return email, ok
}
