// Convenience utilities for testing.
package testutils

import (
	"io"
	"os"
	"path/filepath"
	"runtime"

	"github.com/stretchr/testify/require"
	"go.crawlkit.dev/infra/go/skerr"
	"go.crawlkit.dev/infra/go/sktest"
)

// TestDataDir returns the path to the caller's testdata directory, which
// is assumed to be "<path to caller dir>/testdata".
func TestDataDir() (string, error) {
	_, thisFile, _, ok := runtime.Caller(0)
	if !ok {
		return "", skerr.Fmt("Could not find test data dir: runtime.Caller() failed.")
	}
	for skip := 0; ; skip++ {
		_, file, _, ok := runtime.Caller(skip)
		if !ok {
			return "", skerr.Fmt("Could not find test data dir: runtime.Caller() failed.")
		}
		if file != thisFile {
			return filepath.Join(filepath.Dir(file), "testdata"), nil
		}
	}
}

// ReadFile reads a file from the caller's testdata directory.
func ReadFile(filename string) (string, error) {
	dir, err := TestDataDir()
	if err != nil {
		return "", skerr.Wrapf(err, "reading %s", filename)
	}
	b, err := os.ReadFile(filepath.Join(dir, filename))
	if err != nil {
		return "", skerr.Wrapf(err, "reading %s", filename)
	}
	return string(b), nil
}

// MustReadFile reads a file from the caller's testdata directory and panics on
// error.
func MustReadFile(filename string) string {
	s, err := ReadFile(filename)
	if err != nil {
		panic(err)
	}
	return s
}

// TestDataPath returns the absolute path of a file in the caller's testdata
// directory.
func TestDataPath(t sktest.TestingT, filename string) string {
	dir, err := TestDataDir()
	require.NoError(t, err)
	return filepath.Join(dir, filename)
}

// CloseInTest takes an ioutil.Closer and Closes it, reporting any error.
func CloseInTest(t sktest.TestingT, c io.Closer) {
	require.NoError(t, c.Close())
}
