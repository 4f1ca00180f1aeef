// Package platform provides cross-platform utilities for directory paths
// and OS-specific naming.
package platform

import (
	"os"
	"path/filepath"
)

// AppName is the application name used for directory naming
const AppName = "smartcrop"

// AppDisplayName is the display name used on Windows and macOS
const AppDisplayName = "SmartCrop"

// GetDataDir returns the application data directory.
// Windows: %APPDATA%\SmartCrop
// Linux: ~/.local/share/smartcrop
// Falls back to ~/.smartcrop if XDG is not available.
func GetDataDir() string {
	return getDataDir()
}

// GetCacheDir returns the cache directory for downloaded model artifacts.
// Windows: %APPDATA%\SmartCrop
// Linux: ~/.cache/smartcrop
func GetCacheDir() string {
	return getCacheDir()
}

// SharedLibExtension returns the shared library extension for the current platform.
// Windows: ".dll"
// Linux: ".so"
func SharedLibExtension() string {
	return sharedLibExtension()
}

// UserHomeDir returns the user's home directory with proper fallbacks.
func UserHomeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}

// JoinPath is a convenience wrapper around filepath.Join
func JoinPath(elem ...string) string {
	return filepath.Join(elem...)
}
