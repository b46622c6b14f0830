package config

import (
	"os"
	"path/filepath"
	"strings"
)

// ProfileInfo describes one named config profile found in the config dir.
type ProfileInfo struct {
	Name string `json:"name"`
	Path string `json:"path"`
}

// DefaultConfigDir returns the directory scanned for named config profiles.
// CLIPWATCH_CONFIG_DIR overrides the built-in /etc path.
func DefaultConfigDir() string {
	if dir := os.Getenv("CLIPWATCH_CONFIG_DIR"); dir != "" {
		return dir
	}
	return "/etc/clipwatch"
}

// ListProfiles returns every .toml file in dir as a selectable profile,
// sorted by the order the filesystem reports.
func ListProfiles(dir string) ([]ProfileInfo, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var profiles []ProfileInfo
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".toml") {
			continue
		}
		profiles = append(profiles, ProfileInfo{
			Name: strings.TrimSuffix(e.Name(), ".toml"),
			Path: filepath.Join(dir, e.Name()),
		})
	}
	return profiles, nil
}
