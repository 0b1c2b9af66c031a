package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrUnknownEnvironment is returned when a name or index does not match a catalog entry.
var ErrUnknownEnvironment = errors.New("unknown environment")

// UnknownEnvironmentError names the selection that failed to resolve.
type UnknownEnvironmentError struct {
	Name  string
	Index int
}

func (e *UnknownEnvironmentError) Error() string {
	if e.Name != "" {
		return fmt.Sprintf("unknown environment %q", e.Name)
	}
	return fmt.Sprintf("unknown environment #%d", e.Index)
}

func (e *UnknownEnvironmentError) Unwrap() error { return ErrUnknownEnvironment }

// Environment groups used for the selection screen, in display order.
var Groups = []string{"PROD", "QA", "TEST", "DEV"}

// EnvironmentProfile holds connection details for one management runtime.
type EnvironmentProfile struct {
	Name       string `yaml:"name"`
	Group      string `yaml:"group,omitempty"`
	Endpoint   string `yaml:"url"`
	Username   string `yaml:"username"`
	Credential string `yaml:"credential"` // env:VAR, file:/path or a bare variable name
	Insecure   bool   `yaml:"insecure,omitempty"`
}

type catalogFile struct {
	Environments []EnvironmentProfile `yaml:"environments"`
}

// Catalog is the ordered, read-only list of known environments.
type Catalog struct {
	profiles []EnvironmentProfile
}

// NewCatalog validates profiles and builds a catalog that keeps their order.
func NewCatalog(profiles []EnvironmentProfile) (*Catalog, error) {
	seen := make(map[string]bool, len(profiles))
	out := make([]EnvironmentProfile, 0, len(profiles))
	for i, p := range profiles {
		p.Name = strings.TrimSpace(p.Name)
		p.Group = strings.ToUpper(strings.TrimSpace(p.Group))
		if err := validateProfile(p); err != nil {
			return nil, fmt.Errorf("environment #%d: %w", i, err)
		}
		if seen[p.Name] {
			return nil, fmt.Errorf("environment #%d: duplicate name %q", i, p.Name)
		}
		seen[p.Name] = true
		out = append(out, p)
	}
	return &Catalog{profiles: out}, nil
}

func validateProfile(p EnvironmentProfile) error {
	if p.Name == "" {
		return fmt.Errorf("'name' is required")
	}
	if !strings.HasPrefix(p.Endpoint, "http://") && !strings.HasPrefix(p.Endpoint, "https://") {
		return fmt.Errorf("%s: 'url' must start with http:// or https://", p.Name)
	}
	if p.Username == "" {
		return fmt.Errorf("%s: 'username' is required", p.Name)
	}
	if p.Credential == "" {
		return fmt.Errorf("%s: 'credential' is required", p.Name)
	}
	return nil
}

// LoadCatalog reads and validates the environments file.
func LoadCatalog(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	var f catalogFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("cannot parse %s: %w", path, err)
	}
	if len(f.Environments) == 0 {
		return nil, fmt.Errorf("%s: at least one environment is required", path)
	}

	cat, err := NewCatalog(f.Environments)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cat, nil
}

// SaveCatalog writes profiles to path, creating the parent directory.
func SaveCatalog(path string, profiles []EnvironmentProfile) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	data, err := yaml.Marshal(catalogFile{Environments: profiles})
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0600)
}

// List returns the profiles in catalog order.
func (c *Catalog) List() []EnvironmentProfile {
	out := make([]EnvironmentProfile, len(c.profiles))
	copy(out, c.profiles)
	return out
}

// Resolve returns the profile with the given name.
func (c *Catalog) Resolve(name string) (EnvironmentProfile, error) {
	name = strings.TrimSpace(name)
	for _, p := range c.profiles {
		if p.Name == name {
			return p, nil
		}
	}
	return EnvironmentProfile{}, &UnknownEnvironmentError{Name: name, Index: -1}
}

// Index returns the position of the named profile in List().
func (c *Catalog) Index(name string) (int, error) {
	name = strings.TrimSpace(name)
	for i, p := range c.profiles {
		if p.Name == name {
			return i, nil
		}
	}
	return -1, &UnknownEnvironmentError{Name: name, Index: -1}
}

// At returns the profile at index i of List().
func (c *Catalog) At(i int) (EnvironmentProfile, error) {
	if i < 0 || i >= len(c.profiles) {
		return EnvironmentProfile{}, &UnknownEnvironmentError{Index: i}
	}
	return c.profiles[i], nil
}

// Grouped arranges environment names into rows with one column per entry of Groups.
// Names inside a group are sorted; profiles without a known group are left out.
func (c *Catalog) Grouped() [][]string {
	byGroup := make(map[string][]string, len(Groups))
	longest := 0
	for _, p := range c.profiles {
		byGroup[p.Group] = append(byGroup[p.Group], p.Name)
	}
	for _, g := range Groups {
		sort.Strings(byGroup[g])
		if n := len(byGroup[g]); n > longest {
			longest = n
		}
	}

	rows := make([][]string, longest)
	for i := range rows {
		row := make([]string, len(Groups))
		for j, g := range Groups {
			if i < len(byGroup[g]) {
				row[j] = byGroup[g][i]
			}
		}
		rows[i] = row
	}
	return rows
}
