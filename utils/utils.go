// Package utils provides helpers shared by the kitten-tts-server commands.
package utils

import (
	"os"
	"path/filepath"

	"github.com/mitchellh/go-homedir"
)

// ExpandPath expands tilde and all environment variables from the given path.
func ExpandPath(path string) string {
	s, err := homedir.Expand(path)
	if err == nil {
		return os.ExpandEnv(s)
	}
	return os.ExpandEnv(path)
}

// EnsureDir creates dir and its parents if they do not exist yet.
func EnsureDir(dir string) error {
	return os.MkdirAll(filepath.Clean(dir), 0o755) //nolint:gosec
}
