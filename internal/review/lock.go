package review

import (
	"fmt"

	"github.com/gofrs/flock"
)

// withFileLock holds an exclusive advisory lock on path+".lock" while fn runs.
func withFileLock(path string, fn func() error) error {
	lock := flock.New(path + ".lock")
	if err := lock.Lock(); err != nil {
		return fmt.Errorf("acquire lock for %s: %w", path, err)
	}
	defer func() {
		_ = lock.Unlock()
	}()
	return fn()
}
