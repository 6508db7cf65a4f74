// Package lockfile implements per-path cross-process mutual exclusion using
// a sidecar ".lock" file, with timestamp-based stale-lock reclamation.
package lockfile

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/yethikrishna/levelcode-sub001/internal/logging"
)

var log = logging.New("lockfile")

// DefaultStaleAfter is how old a lock sidecar's timestamp must be before the
// next acquirer may reclaim it.
const DefaultStaleAfter = 10 * time.Second

// DefaultPollInterval is how often Acquire retries while waiting.
const DefaultPollInterval = 50 * time.Millisecond

// ErrTimeout is returned when Acquire could not obtain the lock before its
// deadline.
type ErrTimeout struct {
	Path string
}

func (e *ErrTimeout) Error() string {
	return fmt.Sprintf("Timed out waiting for lock on %s", e.Path)
}

// Handle represents an acquired lock. Release is idempotent.
type Handle struct {
	sidecarPath string
	released    bool
}

// Options configures acquisition behavior; the zero value uses the defaults.
type Options struct {
	StaleAfter   time.Duration
	PollInterval time.Duration
}

func (o Options) withDefaults() Options {
	if o.StaleAfter <= 0 {
		o.StaleAfter = DefaultStaleAfter
	}
	if o.PollInterval <= 0 {
		o.PollInterval = DefaultPollInterval
	}
	return o
}

func sidecarFor(path string) string {
	return path + ".lock"
}

// Acquire obtains an exclusive lock on path, retrying until timeout elapses.
// The sidecar file <path>.lock contains the millisecond epoch timestamp at
// which it was created; a sidecar older than StaleAfter is reclaimed by the
// next acquirer.
func Acquire(path string, timeout time.Duration) (*Handle, error) {
	return AcquireWithOptions(path, timeout, Options{})
}

// AcquireWithOptions is Acquire with explicit stale/poll tuning.
func AcquireWithOptions(path string, timeout time.Duration, opts Options) (*Handle, error) {
	opts = opts.withDefaults()
	sidecar := sidecarFor(path)

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("lockfile: create parent dir for %s: %w", path, err)
	}

	deadline := time.Now().Add(timeout)
	for {
		ok, err := tryCreate(sidecar)
		if err != nil {
			return nil, fmt.Errorf("lockfile: acquire %s: %w", path, err)
		}
		if ok {
			return &Handle{sidecarPath: sidecar}, nil
		}

		if reclaimIfStale(sidecar, opts.StaleAfter) {
			// Stale lock removed; retry immediately without sleeping.
			continue
		}

		if time.Now().After(deadline) {
			return nil, &ErrTimeout{Path: path}
		}
		time.Sleep(opts.PollInterval)
	}
}

// AcquireContext is Acquire honoring ctx cancellation in addition to timeout.
func AcquireContext(ctx context.Context, path string, timeout time.Duration) (*Handle, error) {
	opts := Options{}.withDefaults()
	sidecar := sidecarFor(path)

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("lockfile: create parent dir for %s: %w", path, err)
	}

	deadline := time.Now().Add(timeout)
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		ok, err := tryCreate(sidecar)
		if err != nil {
			return nil, fmt.Errorf("lockfile: acquire %s: %w", path, err)
		}
		if ok {
			return &Handle{sidecarPath: sidecar}, nil
		}

		if reclaimIfStale(sidecar, opts.StaleAfter) {
			continue
		}

		if time.Now().After(deadline) {
			return nil, &ErrTimeout{Path: path}
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(opts.PollInterval):
		}
	}
}

// tryCreate attempts an exclusive create of the sidecar file, writing the
// current millisecond epoch as its body.
func tryCreate(sidecar string) (bool, error) {
	f, err := platformExclusiveCreate(sidecar)
	if err != nil {
		if os.IsExist(err) {
			return false, nil
		}
		return false, err
	}
	defer f.Close()

	_, err = f.WriteString(strconv.FormatInt(time.Now().UnixMilli(), 10))
	return err == nil, err
}

// reclaimIfStale removes sidecar if its recorded timestamp is older than
// staleAfter. It reports whether the caller should retry the create
// immediately (the sidecar was reclaimed or had already vanished) rather
// than sleeping out a poll interval first.
func reclaimIfStale(sidecar string, staleAfter time.Duration) bool {
	data, err := os.ReadFile(sidecar)
	if err != nil {
		if os.IsNotExist(err) {
			// The holder released between our create attempt and this read;
			// retry the create immediately.
			return true
		}
		// Transient read failure while the holder writes it: treat as held.
		return false
	}

	body := strings.TrimSpace(string(data))
	ts, err := strconv.ParseInt(body, 10, 64)
	if err != nil {
		// Unparseable but present: conservatively treat as held. Maintenance
		// sweeps remove corrupted sidecars.
		return false
	}

	age := time.Since(time.UnixMilli(ts))
	if age <= staleAfter {
		return false
	}

	log.Warn("reclaiming stale lock", "path", sidecar, "age_ms", age.Milliseconds())
	_ = os.Remove(sidecar)
	return true
}

// Release unlinks the sidecar. Double-release and "already removed" (e.g.
// reclaimed as stale by another process) are no-ops.
func (h *Handle) Release() error {
	if h == nil || h.released {
		return nil
	}
	h.released = true

	if err := os.Remove(h.sidecarPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("lockfile: release %s: %w", h.sidecarPath, err)
	}
	return nil
}

// WithLock runs fn under a lock on path, releasing it on every exit path
// including panics.
func WithLock(path string, timeout time.Duration, fn func() error) (err error) {
	h, err := Acquire(path, timeout)
	if err != nil {
		return err
	}
	defer func() {
		if relErr := h.Release(); relErr != nil && err == nil {
			err = relErr
		}
	}()

	return fn()
}
