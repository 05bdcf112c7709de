package app

import (
	"os"
	"sync"
	"sync/atomic"
)

// testModeEnv short-circuits the binaries when set to "1" so go test can load
// package main without starting servers or workers.
const testModeEnv = "BRIGHTBOOKS_TEST_MODE"

var (
	testMode     atomic.Bool
	testModeInit sync.Once
)

// InTestMode reports whether runtime startup should be skipped.
func InTestMode() bool {
	testModeInit.Do(func() { testMode.Store(os.Getenv(testModeEnv) == "1") })
	return testMode.Load()
}

// RefreshTestMode re-reads the environment, for tests that toggle the flag.
func RefreshTestMode() {
	testMode.Store(os.Getenv(testModeEnv) == "1")
}
