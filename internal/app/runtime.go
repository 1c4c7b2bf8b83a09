package app

import (
	"os"
	"strconv"
	"sync"
)

const testModeEnv = "BACKOFFICE_TEST_MODE"

// InTestMode reports whether binaries should skip connecting to Postgres,
// Redis and the receipts backend. The environment is read once.
var InTestMode = sync.OnceValue(func() bool {
	return testModeFrom(os.Getenv)
})

func testModeFrom(getenv func(string) string) bool {
	on, err := strconv.ParseBool(getenv(testModeEnv))
	return err == nil && on
}
