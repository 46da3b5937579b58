package dirs

import (
	"fmt"
	"os"
	"path/filepath"
)

const appName = "vidsniff"

// GetDataDir returns the path to the data directory, creating it if it doesn't exist.
func GetDataDir() (string, error) {
	dataDir := dataDirPath()
	if dataDir == "" {
		return "", fmt.Errorf("failed to find data directory path")
	}

	err := os.MkdirAll(dataDir, 0755)
	if err != nil {
		return "", fmt.Errorf("failed to create data directory: %w", err)
	}

	return dataDir, nil
}

func dataDirPath() string {
	configDir, err := os.UserConfigDir()
	if err == nil {
		return filepath.Join(configDir, appName)
	}
	// Fallback to executable location
	exePath, err := os.Executable()
	if err == nil {
		return filepath.Join(filepath.Dir(exePath), appName+"-data")
	}
	return ""
}

// ConfigSearchPaths lists the directories a config file is looked up in,
// most specific first. Nothing is created.
func ConfigSearchPaths() []string {
	paths := []string{"."}
	if dataDir := dataDirPath(); dataDir != "" {
		paths = append(paths, dataDir)
	}
	return paths
}

// GetSaveDirectory returns the directory where files should be saved.
func GetSaveDirectory(customSaveDirectory string) (string, error) {
	if customSaveDirectory != "" {
		return customSaveDirectory, nil
	}
	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("failed to get current working directory: %w", err)
	}
	return cwd, nil
}
