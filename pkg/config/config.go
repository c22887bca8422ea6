// Package config loads the run profile (YAML) and applies environment
// overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Registry backends.
const (
	BackendFile     = "file"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
)

// Config is the full run configuration.
type Config struct {
	LogLevel     string       `yaml:"log_level"`
	DataDir      string       `yaml:"data_dir"`
	DatabaseURL  string       `yaml:"-"`
	OTLPEndpoint string       `yaml:"otlp_endpoint"`
	Registry     Registry     `yaml:"registry"`
	Inputs       Inputs       `yaml:"inputs"`
	Departments  []Department `yaml:"departments"`
	Report       Report       `yaml:"report"`

	// Dir is the directory relative paths were resolved against.
	Dir string `yaml:"-"`
}

// Registry selects where the canonical registry lives.
type Registry struct {
	Backend string `yaml:"backend"` // file | sqlite | postgres
	Path    string `yaml:"path"`
}

// Inputs locates the static JSON inputs.
type Inputs struct {
	Universe     string `yaml:"universe"`
	Requirements string `yaml:"requirements"`
	Obligations  string `yaml:"obligations"`
	Controls     string `yaml:"controls"`
}

// Department is one department baseline source.
type Department struct {
	Code    string              `yaml:"code"`
	Path    string              `yaml:"path"`
	Sheets  []string            `yaml:"sheets,omitempty"`
	Folder  string              `yaml:"folder,omitempty"`
	Headers map[string][]string `yaml:"headers,omitempty"`
}

// Report configures the derived outputs.
type Report struct {
	Out    string `yaml:"out"`
	JSON   string `yaml:"json,omitempty"`
	Filter string `yaml:"filter,omitempty"`
}

// Default returns the configuration used when no profile is given.
func Default() *Config {
	return &Config{
		LogLevel: "INFO",
		DataDir:  "data",
		Registry: Registry{Backend: BackendFile, Path: filepath.Join("data", "registry.json")},
		Inputs: Inputs{
			Universe:     filepath.Join("data", "regulatory_universe.json"),
			Requirements: filepath.Join("data", "required_documents.json"),
			Obligations:  filepath.Join("data", "obligations.json"),
			Controls:     filepath.Join("data", "controls.json"),
		},
		Report: Report{Out: filepath.Join("reports", "compliance_report.xlsx")},
	}
}

// Load reads the YAML profile at path (when non-empty) over the defaults,
// resolves relative paths against the profile's directory and applies
// environment overrides.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path) //nolint:gosec // operator-supplied config path
		if err != nil {
			return nil, fmt.Errorf("load config %q: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %q: %w", path, err)
		}
		cfg.Dir = filepath.Dir(path)
		cfg.resolvePaths()
	}
	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv("DATA_DIR"); v != "" {
		c.DataDir = v
	}
	if v := os.Getenv("DOCREG_REGISTRY"); v != "" {
		c.Registry.Path = v
	}
	if v := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"); v != "" {
		c.OTLPEndpoint = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		c.DatabaseURL = v
		c.Registry.Backend = BackendPostgres
	}
}

func (c *Config) resolvePaths() {
	abs := func(p *string) {
		if *p != "" && !filepath.IsAbs(*p) {
			*p = filepath.Join(c.Dir, *p)
		}
	}
	abs(&c.DataDir)
	abs(&c.Registry.Path)
	abs(&c.Inputs.Universe)
	abs(&c.Inputs.Requirements)
	abs(&c.Inputs.Obligations)
	abs(&c.Inputs.Controls)
	abs(&c.Report.Out)
	abs(&c.Report.JSON)
	for i := range c.Departments {
		abs(&c.Departments[i].Path)
	}
}

// Validate checks the backend name and department list.
func (c *Config) Validate() error {
	switch c.Registry.Backend {
	case "":
		c.Registry.Backend = BackendFile
	case BackendFile, BackendSQLite, BackendPostgres:
	default:
		return fmt.Errorf("unknown registry backend %q", c.Registry.Backend)
	}
	if c.Registry.Backend == BackendPostgres && c.DatabaseURL == "" {
		return fmt.Errorf("registry backend postgres requires DATABASE_URL")
	}
	seen := make(map[string]struct{}, len(c.Departments))
	for i, d := range c.Departments {
		if strings.TrimSpace(d.Code) == "" {
			return fmt.Errorf("department %d: empty code", i)
		}
		if d.Path == "" {
			return fmt.Errorf("department %s: empty path", d.Code)
		}
		if _, dup := seen[d.Code]; dup {
			return fmt.Errorf("department %s listed twice", d.Code)
		}
		seen[d.Code] = struct{}{}
	}
	return nil
}

// SQLitePath is the database file used by the sqlite backend.
func (c *Config) SQLitePath() string {
	if c.Registry.Path != "" && strings.HasSuffix(c.Registry.Path, ".db") {
		return c.Registry.Path
	}
	return filepath.Join(c.DataDir, "docreg.db")
}

// Department returns the configured source for code.
func (c *Config) Department(code string) (Department, bool) {
	for _, d := range c.Departments {
		if d.Code == code {
			return d, true
		}
	}
	return Department{}, false
}
