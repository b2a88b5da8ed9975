package hub

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// WeightsExt is the extension of the model graph file every model ships.
const WeightsExt = ".onnx"

// Dir returns the directory holding the weights of modelID under root.
// "KittenML/kitten-tts-mini-0.8" maps to "<root>/KittenML--kitten-tts-mini-0.8".
func Dir(root, modelID string) string {
	return filepath.Join(root, strings.ReplaceAll(modelID, "/", "--"))
}

// FindWeights returns the path of the first weights file in dir.
func FindWeights(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return "", fmt.Errorf("model directory %s: %w", dir, fs.ErrNotExist)
	}
	if err != nil {
		return "", fmt.Errorf("unable to read model directory: %w", err)
	}
	for _, e := range entries {
		if !e.IsDir() && filepath.Ext(e.Name()) == WeightsExt {
			return filepath.Join(dir, e.Name()), nil
		}
	}
	return "", fmt.Errorf("no %s file in %s: %w", WeightsExt, dir, fs.ErrNotExist)
}

// Present reports which of the given models have weights under root.
func Present(root string, modelIDs []string) map[string]bool {
	out := make(map[string]bool, len(modelIDs))
	for _, id := range modelIDs {
		_, err := FindWeights(Dir(root, id))
		out[id] = err == nil
	}
	return out
}
