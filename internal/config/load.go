package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sort"
	"time"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/pflag"
)

// Loader resolves a Config with precedence: CLI flags > environment >
// config file > defaults. It can be called again on file change; flags
// and environment keep winning over the file.
type Loader struct {
	// Path is the TOML file. An empty path skips the file.
	Path string

	// Required makes a missing file an error. The default file is optional.
	Required bool

	// Flags holds the parsed command line. Only flags explicitly set override.
	Flags *pflag.FlagSet

	// LookupEnv defaults to os.LookupEnv.
	LookupEnv func(string) (string, bool)
}

// NewLoader builds a loader from a parsed flag set registered with BindFlags.
// An explicitly set --config file must exist.
func NewLoader(flags *pflag.FlagSet) *Loader {
	l := &Loader{Path: DefaultFile, Flags: flags}
	if flags == nil {
		return l
	}
	if f := flags.Lookup("config"); f != nil {
		l.Path = f.Value.String()
		l.Required = f.Changed
	}
	return l
}

// Load resolves and validates the configuration.
func (l *Loader) Load() (*Config, error) {
	cfg := DefaultConfig()

	if l.Path != "" {
		loaded, err := LoadFile(cfg, l.Path)
		switch {
		case err == nil:
			if loaded {
				cfg.File = l.Path
			}
		case errors.Is(err, fs.ErrNotExist) && !l.Required:
		default:
			return nil, err
		}
	}

	lookup := l.LookupEnv
	if lookup == nil {
		lookup = os.LookupEnv
	}
	if err := ApplyEnv(cfg, lookup); err != nil {
		return nil, err
	}

	if err := ApplyFlags(cfg, l.Flags); err != nil {
		return nil, err
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFile overlays the keys present in the TOML file at path onto cfg.
// Unknown keys are rejected. Returns false when the file does not exist.
func LoadFile(cfg *Config, path string) (bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, fmt.Errorf("config file %s: %w", path, err)
		}
		return false, fmt.Errorf("read config file %s: %w", path, err)
	}
	if err := Decode(cfg, data); err != nil {
		return false, fmt.Errorf("config file %s: %w", path, err)
	}
	return true, nil
}

// Decode overlays TOML document data onto cfg.
func Decode(cfg *Config, data []byte) error {
	var raw map[string]any
	if err := toml.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("failed to parse TOML config: %w", err)
	}

	keys := make([]string, 0, len(raw))
	for k := range raw {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var errs []error
	for _, k := range keys {
		s, ok := lookupKey(k)
		if !ok {
			errs = append(errs, fmt.Errorf("unknown key %q", k))
			continue
		}
		if err := s.setValue(cfg, raw[k]); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// ApplyEnv overlays SCREENREC_* variables onto cfg.
func ApplyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	var errs []error
	for _, s := range settings {
		v, ok := lookup(envName(s.key))
		if !ok {
			continue
		}
		if err := s.setString(cfg, v); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", envName(s.key), err))
		}
	}
	return errors.Join(errs...)
}

// ApplyFlags overlays flags explicitly set on the command line onto cfg.
func ApplyFlags(cfg *Config, flags *pflag.FlagSet) error {
	if flags == nil {
		return nil
	}
	var errs []error
	for _, s := range settings {
		f := flags.Lookup(s.flag)
		if f == nil || !f.Changed {
			continue
		}
		if err := s.setString(cfg, f.Value.String()); err != nil {
			errs = append(errs, fmt.Errorf("--%s: %w", s.flag, err))
		}
	}
	return errors.Join(errs...)
}

// Encode renders cfg as a TOML document.
func Encode(cfg *Config) ([]byte, error) {
	doc := make(map[string]any, len(settings))
	for _, s := range settings {
		switch p := s.field(cfg).(type) {
		case *string:
			doc[s.key] = *p
		case *int:
			doc[s.key] = int64(*p)
		case *bool:
			doc[s.key] = *p
		case *time.Duration:
			doc[s.key] = p.String()
		}
	}
	return toml.Marshal(doc)
}
