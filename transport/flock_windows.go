//go:build windows

package transport

import (
	"fmt"
	"os"
)

const lockFile = ".lock"

// Windows stub: a Dir is safe within one process via its mutex but not
// across processes.

func acquireLock(path string) (*os.File, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0600)
	if err != nil {
		return nil, fmt.Errorf("open lock file: %w", err)
	}
	return f, nil
}

func releaseLock(f *os.File) {
	if f == nil {
		return
	}
	_ = f.Close()
}
