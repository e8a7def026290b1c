package orchestrator

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// AcquireRunLock guards against a second concurrent pipeline instance,
// which would race the ledger's load-modify-store cycle. The lock is a
// best-effort exclusive file holding the owner's pid; the returned release
// removes it.
func AcquireRunLock(path string) (func(), error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("error preparing run lock directory: %w", err)
		}
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("another sync instance appears to be running (lock file %s exists)", path)
		}
		return nil, fmt.Errorf("error acquiring run lock: %w", err)
	}
	fmt.Fprintf(f, "%d\n", os.Getpid())
	f.Close()

	return func() { os.Remove(path) }, nil
}
