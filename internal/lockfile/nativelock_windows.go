//go:build windows

package lockfile

import (
	"os"
	"syscall"

	"golang.org/x/sys/windows"
)

// platformExclusiveCreate opens sidecar with share mode 0 so no other
// process can open the same handle while it is held, even across the NTFS
// edge cases where a bare O_EXCL can race.
func platformExclusiveCreate(sidecar string) (*os.File, error) {
	pathPtr, err := syscall.UTF16PtrFromString(sidecar)
	if err != nil {
		return nil, err
	}

	handle, err := windows.CreateFile(
		pathPtr,
		windows.GENERIC_READ|windows.GENERIC_WRITE,
		0, // share mode 0: exclusive access
		nil,
		windows.CREATE_NEW,
		windows.FILE_ATTRIBUTE_NORMAL,
		0,
	)
	if err != nil {
		if err == windows.ERROR_FILE_EXISTS {
			return nil, os.ErrExist
		}
		return nil, err
	}
	return os.NewFile(uintptr(handle), sidecar), nil
}
