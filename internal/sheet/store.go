package sheet

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/flock"

	"warm-outreach/internal/apperr"
	"warm-outreach/internal/domain"
)

type Options struct {
	Path        string
	Sheet       string
	Columns     Columns
	LockTimeout time.Duration
}

// Store guards the shared lead table. Readers take a shared lock, Update
// holds an exclusive lock across read, mutate and commit.
type Store struct {
	opts Options
	mu   sync.Mutex // one flock holder per process
	lock *flock.Flock
}

func NewStore(opts Options) (*Store, error) {
	opts.Path = strings.TrimSpace(opts.Path)
	if opts.Path == "" {
		return nil, errors.New("store path is required")
	}
	if opts.Sheet == "" {
		opts.Sheet = "Sheet1"
	}
	if opts.Columns == (Columns{}) {
		opts.Columns = DefaultColumns()
	}
	if opts.LockTimeout <= 0 {
		opts.LockTimeout = 10 * time.Second
	}
	return &Store{opts: opts, lock: flock.New(opts.Path + ".lock")}, nil
}

func (s *Store) Path() string { return s.opts.Path }

// Read returns a fresh full scan of the table.
func (s *Store) Read(ctx context.Context) ([]domain.Lead, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	unlock, err := s.acquire(ctx, false)
	if err != nil {
		return nil, err
	}
	defer unlock()

	t, err := openTable(s.opts.Path, s.opts.Sheet, s.opts.Columns)
	if err != nil {
		return nil, err
	}
	defer t.Close()
	return t.ReadAll(), nil
}

// Update runs fn against a freshly opened table under the exclusive lock and
// commits once if fn succeeds. If fn fails nothing is written.
func (s *Store) Update(ctx context.Context, fn func(*Table) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	unlock, err := s.acquire(ctx, true)
	if err != nil {
		return err
	}
	defer unlock()

	t, err := openTable(s.opts.Path, s.opts.Sheet, s.opts.Columns)
	if err != nil {
		return err
	}
	defer t.Close()

	if err := fn(t); err != nil {
		return err
	}
	return t.Commit()
}

func (s *Store) acquire(ctx context.Context, exclusive bool) (func(), error) {
	ctx, cancel := context.WithTimeout(ctx, s.opts.LockTimeout)
	defer cancel()

	var (
		ok  bool
		err error
	)
	if exclusive {
		ok, err = s.lock.TryLockContext(ctx, 50*time.Millisecond)
	} else {
		ok, err = s.lock.TryRLockContext(ctx, 50*time.Millisecond)
	}
	if err != nil || !ok {
		if err == nil {
			err = errors.New("lock not acquired")
		}
		return nil, apperr.StoreUnavailable(fmt.Sprintf("lock %s", s.lock.Path()), err)
	}
	return func() {
		if err := s.lock.Unlock(); err != nil {
			log.Printf("[sheet] unlock %s: %v", s.lock.Path(), err)
		}
	}, nil
}
