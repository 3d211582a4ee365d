package config

import (
	"os"
	"path/filepath"
)

const appDirName = ".yui"

// DataDir returns the base data directory for the client.
func DataDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, appDirName), nil
}

// ConfigPath returns the path to the TOML configuration file.
func ConfigPath() (string, error) {
	return dataFile("config.toml")
}

// StorePath returns the default path of the bbolt session store.
func StorePath() (string, error) {
	return dataFile("sessions.db")
}

// StoreFilePath returns the default path of the JSON session store.
func StoreFilePath() (string, error) {
	return dataFile("sessions.json")
}

// UILogPath returns the log file used while the terminal UI owns the screen.
func UILogPath() (string, error) {
	return dataFile("ui.log")
}

// StreamLogPath returns the log file for per-frame stream diagnostics.
func StreamLogPath() (string, error) {
	return dataFile("stream.log")
}

func dataFile(name string) (string, error) {
	dataDir, err := DataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dataDir, name), nil
}
