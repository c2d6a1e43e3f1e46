// Package guard forces test mode before any package init that might start
// runtime side effects.
package guard

import (
	"os"
	"sync"
)

var once sync.Once

func init() {
	once.Do(func() {
		if os.Getenv("MODGATE_TEST_MODE") == "" {
			_ = os.Setenv("MODGATE_TEST_MODE", "1")
		}
	})
}
