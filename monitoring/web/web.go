// Package web provides the default page of the progress server.
package web

import (
	_ "embed"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

//go:embed index.html
var index []byte

// Index returns the default viewer page. In development mode, the page is
// read from the source directory on every call.
func Index() ([]byte, error) {
	if !isDevelopmentMode() {
		return index, nil
	}

	_, source, _, ok := runtime.Caller(0)
	if !ok {
		return nil, errors.New("cannot locate web assets")
	}

	return os.ReadFile(filepath.Join(filepath.Dir(source), "index.html"))
}

// isDevelopmentMode returns true if environment variable PROGRESS_MONITOR_DEV
// is set.
func isDevelopmentMode() bool {
	evValue, exist := os.LookupEnv("PROGRESS_MONITOR_DEV")
	if !exist {
		return false
	}

	if strings.ToLower(evValue) == "true" || evValue == "1" {
		return true
	}

	return false
}
