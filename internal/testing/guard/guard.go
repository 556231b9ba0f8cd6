// Package guard forces STOCKSYNC_TEST_MODE for test binaries that import it,
// so entrypoints return before dialling Redis, Postgres or the remote service.
package guard

import (
	"os"
	"sync"
)

const envTestMode = "STOCKSYNC_TEST_MODE"

var once sync.Once

func init() {
	once.Do(func() {
		if os.Getenv(envTestMode) == "" {
			_ = os.Setenv(envTestMode, "1")
		}
	})
}
