package session

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	// DirName is the per-user state directory under $HOME.
	DirName = ".taote"

	// StateDBFileName is the SQLite snapshot database.
	StateDBFileName = "state.db"

	// CrashDumpFileName receives the log ring buffer on SIGUSR1.
	CrashDumpFileName = "crash-dump.jsonl"
)

// GetTaoteDir returns the state directory: $TAOTE_HOME when set, else
// ~/.taote.
func GetTaoteDir() (string, error) {
	if dir := os.Getenv("TAOTE_HOME"); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, DirName), nil
}

// GetStateDBPath returns the snapshot database path.
func GetStateDBPath() (string, error) {
	dir, err := GetTaoteDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, StateDBFileName), nil
}

// GetCrashDumpPath returns where SIGUSR1 dumps recent log lines.
func GetCrashDumpPath() (string, error) {
	dir, err := GetTaoteDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, CrashDumpFileName), nil
}
