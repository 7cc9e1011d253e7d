package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclsimple"
	"github.com/zclconf/go-cty/cty"
)

// File is the conventional configuration file name inside a store root.
const File = "store.hcl"

// raw mirrors the HCL attribute surface of store.hcl. Pointers distinguish
// "absent" from zero values so defaults only fill real gaps.
type raw struct {
	AppsDir              *string  `hcl:"apps_dir,optional"`
	StateFile            *string  `hcl:"state_file,optional"`
	SeedFile             *string  `hcl:"seed_file,optional"`
	RegistryFile         *string  `hcl:"registry_file,optional"`
	Workers              *int     `hcl:"workers,optional"`
	ScriptTimeout        *string  `hcl:"script_timeout,optional"`
	ExternalServices     []string `hcl:"external_services,optional"`
	EnforceSyscallFilter *bool    `hcl:"enforce_syscall_filter,optional"`
}

// Config is the resolved configuration handed to the application. All paths
// are absolute.
type Config struct {
	Root         string
	AppsDir      string
	StateFile    string
	SeedFile     string
	RegistryFile string

	Workers       int
	ScriptTimeout time.Duration

	// ExternalServices are service ids considered installed even though no
	// app directory provides them (a host-level reverse proxy, for example).
	ExternalServices []string

	// EnforceSyscallFilter controls the script sandbox's syscall policy. It
	// defaults to true and only takes effect on platforms with filter
	// support.
	EnforceSyscallFilter bool
}

// Default returns the configuration used when no store.hcl exists.
func Default(root string) *Config {
	return &Config{
		Root:                 root,
		AppsDir:              filepath.Join(root, "apps"),
		StateFile:            filepath.Join(root, "state.json"),
		SeedFile:             filepath.Join(root, "seed"),
		RegistryFile:         filepath.Join(root, "apps", "registry.json"),
		Workers:              4,
		ScriptTimeout:        2 * time.Second,
		EnforceSyscallFilter: true,
	}
}

// Load reads the store.hcl at path. A missing file is not an error; the
// defaults for the file's directory apply instead.
func Load(path string) (*Config, error) {
	root, err := filepath.Abs(filepath.Dir(path))
	if err != nil {
		return nil, err
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return Default(root), nil
	} else if err != nil {
		return nil, fmt.Errorf("reading config %q: %w", path, err)
	}

	evalCtx := &hcl.EvalContext{
		Variables: map[string]cty.Value{
			"root": cty.StringVal(root),
		},
	}
	var decoded raw
	if err := hclsimple.DecodeFile(path, evalCtx, &decoded); err != nil {
		return nil, fmt.Errorf("decoding config %q: %w", path, err)
	}

	cfg := Default(root)
	if decoded.AppsDir != nil {
		cfg.AppsDir = absolute(root, *decoded.AppsDir)
		cfg.RegistryFile = filepath.Join(cfg.AppsDir, "registry.json")
	}
	if decoded.StateFile != nil {
		cfg.StateFile = absolute(root, *decoded.StateFile)
	}
	if decoded.SeedFile != nil {
		cfg.SeedFile = absolute(root, *decoded.SeedFile)
	}
	if decoded.RegistryFile != nil {
		cfg.RegistryFile = absolute(root, *decoded.RegistryFile)
	}
	if decoded.Workers != nil {
		if *decoded.Workers < 1 {
			return nil, fmt.Errorf("config %q: workers must be at least 1", path)
		}
		cfg.Workers = *decoded.Workers
	}
	if decoded.ScriptTimeout != nil {
		timeout, err := time.ParseDuration(*decoded.ScriptTimeout)
		if err != nil {
			return nil, fmt.Errorf("config %q: invalid script_timeout: %w", path, err)
		}
		if timeout <= 0 {
			return nil, fmt.Errorf("config %q: script_timeout must be positive", path)
		}
		cfg.ScriptTimeout = timeout
	}
	cfg.ExternalServices = decoded.ExternalServices
	if decoded.EnforceSyscallFilter != nil {
		cfg.EnforceSyscallFilter = *decoded.EnforceSyscallFilter
	}
	return cfg, nil
}

func absolute(root, path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(root, path)
}
