package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

// settingsFile is the persisted layer of the configuration: one flat JSON
// object keyed by dotted config keys. Secrets are never written to it.
type settingsFile struct {
	path   string
	values map[string]any
}

// configFilePath honours BOOKTALK_CONFIG_FILE, then $XDG_CONFIG_HOME, then
// ~/.config.
func configFilePath() string {
	if p := os.Getenv("BOOKTALK_CONFIG_FILE"); p != "" {
		return p
	}
	dir := os.Getenv("XDG_CONFIG_HOME")
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return filepath.Join(".", "booktalk.json")
		}
		dir = filepath.Join(home, ".config")
	}
	return filepath.Join(dir, "booktalk", "config.json")
}

// openSettings reads path. A missing file is an empty layer; an unreadable
// or invalid one is reported and then ignored so defaults still apply.
func openSettings(path string) *settingsFile {
	f := &settingsFile{path: path, values: map[string]any{}}

	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
	case err != nil:
		fmt.Fprintf(os.Stderr, "[WARN] could not read config file %s: %v. Using default values.\n", path, err)
	default:
		if err := json.Unmarshal(data, &f.values); err != nil {
			f.values = map[string]any{}
			fmt.Fprintf(os.Stderr, "[WARN] could not parse config file %s: %v. Using default values.\n", path, err)
		}
	}
	return f
}

// raw returns the stored value for key in the same textual form an
// environment variable would carry.
func (f *settingsFile) raw(key string) (string, bool) {
	v, ok := f.values[key]
	if !ok || v == nil {
		return "", false
	}
	switch val := v.(type) {
	case string:
		return val, true
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64), true
	default:
		return fmt.Sprint(val), true
	}
}

// set stores v under key and rewrites the file through a temp file so a
// crash never leaves it half-written.
func (f *settingsFile) set(key string, v any) error {
	f.values[key] = v

	if err := os.MkdirAll(filepath.Dir(f.path), 0o700); err != nil {
		return fmt.Errorf("creating config dir: %w", err)
	}
	data, err := json.MarshalIndent(f.values, "", "  ")
	if err != nil {
		return err
	}

	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	if err := os.Rename(tmp, f.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("replacing config file: %w", err)
	}
	return nil
}
