package utils

import (
	"fmt"
	"os"
	"path/filepath"
)

// GetDefaultDatabasePath returns the default path for the index database file
func GetDefaultDatabasePath() string {
	// Get the executable path
	exePath, err := os.Executable()
	if err != nil {
		// Fallback to current directory if executable path can't be determined
		return "garments.db"
	}

	// Return the default database path next to the executable
	return filepath.Join(filepath.Dir(exePath), "garments.db")
}

// ValidateThreshold checks that a similarity threshold is in [0,1]
func ValidateThreshold(threshold float64) error {
	if threshold < 0 || threshold > 1 {
		return fmt.Errorf("threshold must be between 0.0 and 1.0, got %v", threshold)
	}
	return nil
}
