package tests

import (
	"kwil-client/util/log"
	"os"
)

func init() {
	log.Init(true, os.TempDir()+"/kwil-client-tests")
}

// GetTestProvider gets the test node url from environment variable.
func GetTestProvider() string {
	return os.Getenv("KWIL_CLIENT_TEST_PROVIDER")
}
