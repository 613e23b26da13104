package checkpoint

import (
	"path/filepath"
	"strconv"
	"strings"
)

// FinalName is the checkpoint written when training completes.
const FinalName = "final"

// ValidateName checks that name is safe for use in file paths and keys.
// It rejects names containing path separators, path traversal sequences, or null bytes.
func ValidateName(name string) error {
	if name == "" {
		return ErrInvalidName
	}
	if strings.Contains(name, "..") {
		return ErrInvalidName
	}
	if strings.ContainsAny(name, `/\`) {
		return ErrInvalidName
	}
	// Null bytes can truncate paths on some systems
	if strings.ContainsRune(name, '\x00') {
		return ErrInvalidName
	}
	return nil
}

// ParseName extracts the epoch from "epoch_<n>" and "epoch_<n>_partial".
// Other names report epoch 0.
func ParseName(name string) (epoch int, partial bool) {
	rest, ok := strings.CutPrefix(name, "epoch_")
	if !ok {
		return 0, false
	}
	rest, partial = strings.CutSuffix(rest, "_partial")
	n, err := strconv.Atoi(rest)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, partial
}

// isPathWithinDirectory checks that the resolved path is within the expected directory.
func isPathWithinDirectory(path, directory string) bool {
	cleanPath := filepath.Clean(path)
	cleanDir := filepath.Clean(directory)

	if !strings.HasSuffix(cleanDir, string(filepath.Separator)) {
		cleanDir += string(filepath.Separator)
	}
	return strings.HasPrefix(cleanPath, cleanDir) || cleanPath == filepath.Clean(directory)
}
