package util

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/afero"
)

// ErrNotRegularFile is returned by CheckFile for directories and other
// non-regular files.
var ErrNotRegularFile = errors.New("not a regular file")

// CheckDirectory reports whether path exists and whether it is a directory.
func CheckDirectory(fs afero.Fs, path string) (exists bool, isDir bool, err error) {
	info, err := fs.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, false, nil
		}
		return false, false, err
	}
	return true, info.IsDir(), nil
}

// CheckFile makes sure path names an existing regular file and returns its
// size.
func CheckFile(fs afero.Fs, path string) (int64, error) {
	info, err := fs.Stat(path)
	if err != nil {
		return 0, err
	}
	if !info.Mode().IsRegular() {
		return 0, fmt.Errorf("%s: %w", path, ErrNotRegularFile)
	}
	return info.Size(), nil
}
