package tests

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

type walkFunc func(string) error

// Walk calls wf on every non-test Go file under baseDir, relative to the
// repository root. Paths starting with one of excludes are skipped.
func Walk(t *testing.T, baseDir string, excludes []string, wf walkFunc) {
	root := filepath.Join("..", baseDir)

	err := filepath.Walk(root, func(path string, f os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		rel := filepath.ToSlash(strings.TrimPrefix(path, ".."+string(filepath.Separator)))
		if f.IsDir() {
			if f.Name() == ".git" || excluded(rel+"/", excludes) {
				return filepath.SkipDir
			}
			return nil
		}

		if filepath.Ext(path) != ".go" || strings.HasSuffix(path, "_test.go") {
			return nil
		}
		if excluded(rel, excludes) {
			return nil
		}

		return wf(path)
	})
	if err != nil {
		t.Fatal(err)
	}
}

func excluded(path string, excludes []string) bool {
	for _, exclude := range excludes {
		if strings.HasPrefix(path, exclude) {
			return true
		}
	}
	return false
}

// ReadFile reads code file from disk.
func ReadFile(path string) []string {
	codeBytes, err := os.ReadFile(path)
	if err != nil {
		panic(err)
	}

	return strings.Split(string(codeBytes), "\n")
}
