package store

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

const (
	// DefaultFilename is the primary configuration file looked up in the working directory.
	DefaultFilename = ".brancho"
	// LocalFilename is the machine-local override stored next to the primary file.
	LocalFilename = ".brancho.local"

	KeyResolver = "resolver"
	KeyFilters  = "filters"
	KeyCommit   = "commit"
)

// Config is a decoded configuration document. Top-level keys are either
// reserved (resolver, filters, commit) or per-resolver sections.
type Config map[string]any

// Resolver returns the name of the resolver variant to activate.
func (c Config) Resolver() string {
	s, _ := c[KeyResolver].(string)
	return s
}

// Filters returns the ordered filter names.
func (c Config) Filters() []string {
	return toStrings(c[KeyFilters])
}

// Section returns a namespaced section, if present and shaped like a mapping.
func (c Config) Section(name string) (map[string]any, bool) {
	switch v := c[name].(type) {
	case map[string]any:
		return v, true
	case Config:
		return v, true
	}
	return nil, false
}

// Has reports whether a top-level section exists.
func (c Config) Has(name string) bool {
	_, ok := c.Section(name)
	return ok
}

// String looks up a scalar inside a section. Missing keys yield "".
func (c Config) String(section, key string) string {
	sec, ok := c.Section(section)
	if !ok {
		return ""
	}
	switch v := sec[key].(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		return fmt.Sprint(v)
	}
}

// Strings looks up a list of scalars inside a section.
func (c Config) Strings(section, key string) []string {
	sec, ok := c.Section(section)
	if !ok {
		return nil
	}
	return toStrings(sec[key])
}

// CommitMessages returns the canned commit messages offered by `brancho commit`.
func (c Config) CommitMessages() []string {
	return c.Strings(KeyCommit, "messages")
}

// Merge returns a new Config holding c overlaid with other. The merge is
// shallow: a top-level key in other replaces the whole value in c.
func (c Config) Merge(other Config) Config {
	out := make(Config, len(c)+len(other))
	for k, v := range c {
		out[k] = v
	}
	for k, v := range other {
		out[k] = v
	}
	return out
}

func toStrings(v any) []string {
	switch list := v.(type) {
	case []string:
		return append([]string(nil), list...)
	case []any:
		out := make([]string, 0, len(list))
		for _, item := range list {
			if item == nil {
				continue
			}
			if s, ok := item.(string); ok {
				out = append(out, s)
				continue
			}
			out = append(out, fmt.Sprint(item))
		}
		return out
	}
	return nil
}

// Store is a loaded configuration: the primary file merged with its local override.
type Store struct {
	Path   string
	Config Config
}

// Issue represents a health check finding.
type Issue struct {
	Severity string // "warning" or "error"
	Message  string
}

// DefaultPath returns the primary configuration path inside workDir.
func DefaultPath(workDir string) string {
	return filepath.Join(workDir, DefaultFilename)
}

// LocalPath returns the override path that belongs to a primary config path.
func LocalPath(primary string) string {
	return filepath.Join(filepath.Dir(primary), LocalFilename)
}

// Load reads the primary configuration at path and merges the local override
// next to it on top. The primary file must exist; the override is optional.
func Load(path string) (*Store, error) {
	primary, err := readDocument(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("configuration file not found at %s", path)
		}
		return nil, err
	}

	local, err := readDocument(LocalPath(path))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}

	return &Store{Path: path, Config: primary.Merge(local)}, nil
}

// Dir returns the directory holding the configuration files.
func (s *Store) Dir() string {
	return filepath.Dir(s.Path)
}

// LocalPath returns this store's override file path.
func (s *Store) LocalPath() string {
	return LocalPath(s.Path)
}

// WriteLocal merges section into the override file in dir and rewrites it in
// full. The file is created when absent; keys in section win on conflict.
func WriteLocal(dir string, section Config) error {
	path := filepath.Join(dir, LocalFilename)

	existing, err := readDocument(path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}

	data, err := yaml.Marshal(existing.Merge(section))
	if err != nil {
		return fmt.Errorf("failed to marshal local config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write local config: %w", err)
	}
	// WriteFile applies the mode only on create.
	if err := os.Chmod(path, 0600); err != nil {
		return fmt.Errorf("failed to restrict local config: %w", err)
	}
	return nil
}

func readDocument(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := Config{}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// CheckHealth verifies that the primary and local files parse as YAML mappings.
func CheckHealth(path string) []Issue {
	var issues []Issue

	if _, err := os.Stat(path); err != nil {
		issues = append(issues, Issue{"error", fmt.Sprintf("missing configuration file: %s", path)})
	} else if _, err := readDocument(path); err != nil {
		issues = append(issues, Issue{"error", err.Error()})
	}

	local := LocalPath(path)
	if _, err := os.Stat(local); err == nil {
		if _, err := readDocument(local); err != nil {
			issues = append(issues, Issue{"error", err.Error()})
		}
	}

	return issues
}
