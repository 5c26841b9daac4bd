package main

/*
	This program runs all unit tests in the repository.
*/

import (
	"flag"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"slices"
	"strings"
	"sync"

	"go.crawlkit.dev/infra/go/metrics2"
	"go.crawlkit.dev/infra/go/skerr"
	"go.crawlkit.dev/infra/go/sklog"
	"go.crawlkit.dev/infra/go/testutils/unittest"
	"go.crawlkit.dev/infra/go/workerpool"
)

const (
	// This gets filled out and printed when a test fails.
	TEST_FAILURE = `
============================= TEST FAILURE =============================
Test: %s

Command: %s

Error:
%s

Full output:
------------------------------------------------------------------------
%s
------------------------------------------------------------------------
`

	TIMEOUT_SMALL  = "4m"
	TIMEOUT_MEDIUM = "15m"
	TIMEOUT_LARGE  = "60m"
)

var (
	// Error message shown when a required executable is not installed.
	ERR_NEED_INSTALL = "%s failed to run! Is it installed? Error: %v"

	// Directories with these names are skipped when searching for tests.
	NO_CRAWL_DIR_NAMES = []string{
		".git",
		"testdata",
	}

	parallel = flag.Int("parallel", runtime.NumCPU(), "Number of test commands to run at once.")
)

// cmdTest returns a test which runs a command and fails if the command fails.
func cmdTest(cmd []string, cwd, name, testType string) *test {
	return &test{
		Name: name,
		Cmd:  strings.Join(cmd, " "),
		run: func() (error, string) {
			command := exec.Command(cmd[0], cmd[1:]...)
			if cwd != "" {
				command.Dir = cwd
			}
			output, err := command.CombinedOutput()
			if err != nil {
				if _, err2 := exec.LookPath(cmd[0]); err2 != nil {
					return skerr.Fmt(ERR_NEED_INSTALL, cmd[0], err), string(output)
				}
			}
			return err, string(output)
		},
		Type: testType,
	}
}

// goTest returns a test which runs `go test` on the packages under the given
// product's go directory.
func goTest(rootDir, product, testType string, args ...string) *test {
	pkgs := "./" + filepath.ToSlash(filepath.Join(product, "go")) + "/..."
	cmd := []string{"go", "test", pkgs}
	cmd = append(cmd, args...)
	return cmdTest(cmd, rootDir, fmt.Sprintf("go tests (%s) in %s", testType, pkgs), testType)
}

// goTests returns the small, medium and large test runs for one product.
func goTests(rootDir, product string) []*test {
	return []*test{
		goTest(rootDir, product, unittest.SMALL_TEST, "--small", "--timeout", TIMEOUT_SMALL),
		goTest(rootDir, product, unittest.MEDIUM_TEST, "--medium", "--timeout", TIMEOUT_MEDIUM),
		goTest(rootDir, product, unittest.LARGE_TEST, "--large", "--timeout", TIMEOUT_LARGE),
	}
}

// test is a struct which represents a single test to run.
type test struct {
	Name string
	Cmd  string
	run  func() (error, string)
	Type string
}

// Run executes the function for the given test and returns an error if it fails.
func (t test) Run() error {
	if !slices.Contains(unittest.TEST_TYPES, t.Type) {
		sklog.Fatalf("Test %q has invalid type %q", t.Name, t.Type)
	}
	if !unittest.ShouldRun(t.Type) {
		sklog.Infof("Not running %s tests; skipping %q", t.Type, t.Name)
		return nil
	}

	timer := metrics2.NewTimer("run_unittests", map[string]string{"test": t.Name})
	err, output := t.run()
	sklog.Infof("%s took %s", t.Name, timer.Stop())
	if err != nil {
		return fmt.Errorf(TEST_FAILURE, t.Name, t.Cmd, err, output)
	}
	return nil
}

// findProducts returns the directories, relative to rootDir, which hold a go
// directory, e.g. "." for the shared go/ packages and "perdiff".
func findProducts(rootDir string) ([]string, error) {
	products := []string{}
	err := filepath.WalkDir(rootDir, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		basename := d.Name()
		// The go tool ignores directories starting with "_" or ".".
		if p != rootDir && (strings.HasPrefix(basename, "_") || strings.HasPrefix(basename, ".")) {
			return filepath.SkipDir
		}
		if slices.Contains(NO_CRAWL_DIR_NAMES, basename) {
			return filepath.SkipDir
		}
		if basename == "go" {
			rel, err := filepath.Rel(rootDir, filepath.Dir(p))
			if err != nil {
				return err
			}
			products = append(products, rel)
			// Nested go directories are covered by "./<product>/go/...".
			return filepath.SkipDir
		}
		return nil
	})
	return products, skerr.Wrap(err)
}

// Find and run tests.
func main() {
	flag.Parse()

	// Ensure that we're actually going to run something.
	ok := false
	for _, tt := range unittest.TEST_TYPES {
		if unittest.ShouldRun(tt) {
			ok = true
		}
	}
	if !ok {
		sklog.Fatal("No test types selected; pass --small, --medium and/or --large.")
	}

	total := metrics2.NewTimer("run_unittests_total")

	_, filename, _, _ := runtime.Caller(0)
	rootDir := filepath.Dir(filename)

	// Gather all of the tests to run.
	sklog.Info("Searching for tests.")
	products, err := findProducts(rootDir)
	if err != nil {
		sklog.Fatal(err)
	}
	tests := []*test{}
	for _, product := range products {
		tests = append(tests, goTests(rootDir, product)...)
	}

	// Other tests.
	tests = append(tests, cmdTest([]string{"go", "vet", "./..."}, rootDir, "go vet", unittest.SMALL_TEST))

	// Run the tests.
	sklog.Infof("Found %d tests.", len(tests))
	var mutex sync.Mutex
	errors := map[string]error{}
	pool := workerpool.New(*parallel)
	for _, t := range tests {
		t := t
		pool.Go(func() {
			if err := t.Run(); err != nil {
				mutex.Lock()
				errors[t.Name] = err
				mutex.Unlock()
			}
		})
	}
	pool.Wait()
	sklog.Infof("Finished in %s", total.Stop())
	if len(errors) > 0 {
		for _, e := range errors {
			sklog.Error(e)
		}
		sklog.Flush()
		os.Exit(1)
	}
	sklog.Info("All tests succeeded.")
}
