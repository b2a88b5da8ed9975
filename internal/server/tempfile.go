package server

import (
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
)

// createTempFile creates a uniquely named WAV file in dir. The caller must
// pass the name to removeTempFile once the file is no longer needed.
func createTempFile(dir string) (*os.File, error) {
	if dir == "" {
		dir = os.TempDir()
	}
	id := uuid.New()
	name := filepath.Join(dir, "tts_"+hex.EncodeToString(id[:])+".wav")

	f, err := os.OpenFile(name, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, fmt.Errorf("unable to create temp file: %w", err)
	}
	return f, nil
}

// removeTempFile deletes path. Failures are not reported to the client.
func removeTempFile(path string) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		log.Debug("Could not remove temp file", "path", path, "error", err)
	}
}
