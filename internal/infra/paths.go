package infra

import (
	"os"
	"os/user"
	"path/filepath"
)

const (
	// AppName is the binary and data directory name.
	AppName = "sitefocus"

	// LaunchdLabel identifies the autostart LaunchAgent.
	LaunchdLabel = "com.focusd.sitefocus"
)

// Paths holds the per-user locations sitefocus reads and writes.
type Paths struct {
	Home       string
	DataDir    string // store, encryption key, host registry
	ConfigPath string
	EnvPath    string
	LogPath    string
	PlistDir   string
	PlistPath  string
}

// DefaultPaths returns paths rooted at the invoking user's home directory.
func DefaultPaths() *Paths {
	return PathsFor(GetRealUserHome())
}

// PathsFor returns paths rooted at home.
func PathsFor(home string) *Paths {
	dataDir := filepath.Join(home, "."+AppName)
	plistDir := filepath.Join(home, "Library", "LaunchAgents")
	return &Paths{
		Home:       home,
		DataDir:    dataDir,
		ConfigPath: filepath.Join(dataDir, "config.yaml"),
		EnvPath:    filepath.Join(dataDir, ".env"),
		LogPath:    filepath.Join(dataDir, "logs", AppName+".log"),
		PlistDir:   plistDir,
		PlistPath:  filepath.Join(plistDir, LaunchdLabel+".plist"),
	}
}

// GetRealUserHome returns the real user's home directory, even when running under sudo.
// Under sudo, os.UserHomeDir() returns /var/root, so we use SUDO_USER to find the real user.
func GetRealUserHome() string {
	if sudoUser := os.Getenv("SUDO_USER"); sudoUser != "" {
		if u, err := user.Lookup(sudoUser); err == nil {
			return u.HomeDir
		}
	}
	home, _ := os.UserHomeDir()
	return home
}

// ExpandHome replaces a leading "~/" with the user's home directory.
func ExpandHome(path string) string {
	if path == "~" {
		return GetRealUserHome()
	}
	if len(path) > 1 && path[0] == '~' && path[1] == '/' {
		return filepath.Join(GetRealUserHome(), path[2:])
	}
	return path
}
