package credit

import (
	"context"
	"path/filepath"
	"time"

	"github.com/yethikrishna/levelcode-sub001/internal/lockfile"
)

// FileAdvisoryLock implements AdvisoryLocker on top of internal/lockfile's
// sidecar-file mutual exclusion, keyed by principal under a dedicated
// directory so it never collides with team store locks.
type FileAdvisoryLock struct {
	dir     string
	timeout time.Duration
}

// NewFileAdvisoryLock creates a FileAdvisoryLock rooted at dir (teamctl
// passes <config-root>/locks).
func NewFileAdvisoryLock(dir string) *FileAdvisoryLock {
	return &FileAdvisoryLock{dir: dir, timeout: 10 * time.Second}
}

// WithAdvisoryLock implements AdvisoryLocker. ctx cancellation is honored in
// addition to the fixed acquisition timeout.
func (f *FileAdvisoryLock) WithAdvisoryLock(ctx context.Context, lockKey string, fn func() error) error {
	path := filepath.Join(f.dir, sanitizeLockKey(lockKey)+".json")
	h, err := lockfile.AcquireContext(ctx, path, f.timeout)
	if err != nil {
		return err
	}
	defer h.Release()
	return fn()
}

// sanitizeLockKey replaces path-unsafe characters in a lock key
// ("user:123" / "org:456") so it can be used as a filename.
func sanitizeLockKey(key string) string {
	out := make([]rune, 0, len(key))
	for _, r := range key {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			out = append(out, r)
		default:
			out = append(out, '_')
		}
	}
	return string(out)
}
