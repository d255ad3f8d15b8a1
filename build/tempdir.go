package build

import (
	"os"
	"path/filepath"
)

// TempDir joins a package name and test name into a path suitable for
// scratch test data, rooted under the OS temp directory. Tests are
// responsible for creating and removing it.
func TempDir(pkg string, names ...string) string {
	parts := append([]string{os.TempDir(), "chunkserver-testing", pkg}, names...)
	return filepath.Join(parts...)
}
