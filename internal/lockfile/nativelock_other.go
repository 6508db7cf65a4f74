//go:build !windows

package lockfile

import "os"

// platformExclusiveCreate opens sidecar with POSIX O_CREAT|O_EXCL, which is
// already atomic on every non-Windows filesystem this package targets.
func platformExclusiveCreate(sidecar string) (*os.File, error) {
	return os.OpenFile(sidecar, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
}
