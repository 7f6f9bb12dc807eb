package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/adrg/xdg"
)

var configExts = []string{".yaml", ".yml", ".json"}

// Candidates lists the config locations in lookup order:
// $XDG_CONFIG_HOME/jautolock/config.*, ~/.jautolock.*,
// $XDG_CONFIG_DIRS/*/jautolock/config.*, /etc/jautolock.*.
func Candidates() []string {
	var out []string
	withExts := func(base string) {
		for _, ext := range configExts {
			out = append(out, base+ext)
		}
	}
	withExts(filepath.Join(xdg.ConfigHome, "jautolock", "config"))
	if xdg.Home != "" {
		withExts(filepath.Join(xdg.Home, ".jautolock"))
	}
	for _, dir := range xdg.ConfigDirs {
		withExts(filepath.Join(dir, "jautolock", "config"))
	}
	withExts("/etc/jautolock")
	return out
}

// Discover returns the first existing candidate, or "" when there is none.
func Discover() (string, error) {
	for _, p := range Candidates() {
		st, err := os.Stat(p)
		if err == nil {
			if st.IsDir() {
				continue
			}
			return p, nil
		}
		if !errors.Is(err, fs.ErrNotExist) && !errors.Is(err, fs.ErrPermission) {
			return "", err
		}
	}
	return "", nil
}
