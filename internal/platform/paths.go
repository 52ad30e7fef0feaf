package platform

import (
	"os"
	"path/filepath"
	"runtime"
)

const (
	osWindows = "windows"
	osDarwin  = "darwin"

	appName      = "ampstream"
	appNameTitle = "AMPStream"
)

type dirKind int

const (
	dirData dirKind = iota
	dirCache
	dirConfig
)

// GetDataDir returns the platform-specific data directory, where the
// library database lives.
func GetDataDir() (string, error) {
	return appDir(dirData)
}

// GetCacheDir returns the platform-specific cache directory, used for
// downloaded streams.
func GetCacheDir() (string, error) {
	return appDir(dirCache)
}

// GetConfigDir returns the platform-specific configuration directory.
func GetConfigDir() (string, error) {
	return appDir(dirConfig)
}

func appDir(kind dirKind) (string, error) {
	switch runtime.GOOS {
	case osWindows:
		return windowsDir(kind), nil
	case osDarwin:
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		sub := map[dirKind]string{
			dirData:   "Application Support",
			dirCache:  "Caches",
			dirConfig: "Preferences",
		}[kind]
		return filepath.Join(home, "Library", sub, appNameTitle), nil
	default:
		return xdgDir(kind)
	}
}

func windowsDir(kind dirKind) string {
	if kind == dirCache {
		if local := os.Getenv("LOCALAPPDATA"); local != "" {
			return filepath.Join(local, appNameTitle, "Cache")
		}
		return filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Local", appNameTitle, "Cache")
	}
	if appData := os.Getenv("APPDATA"); appData != "" {
		return filepath.Join(appData, appNameTitle)
	}
	return filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming", appNameTitle)
}

func xdgDir(kind dirKind) (string, error) {
	env, fallback := "XDG_DATA_HOME", []string{".local", "share"}
	switch kind {
	case dirCache:
		env, fallback = "XDG_CACHE_HOME", []string{".cache"}
	case dirConfig:
		env, fallback = "XDG_CONFIG_HOME", []string{".config"}
	}

	if base := os.Getenv(env); base != "" {
		return filepath.Join(base, appName), nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(append(append([]string{home}, fallback...), appName)...), nil
}
