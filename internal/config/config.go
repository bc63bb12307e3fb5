package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-ini/ini"
	"github.com/spf13/pflag"

	"dirwatch/internal/log"
	"dirwatch/internal/storage"
)

// EnvConfigFile names the environment variable that points at an INI file.
const EnvConfigFile = "DIRWATCH_CONFIG"

// Config captures runtime configuration for one invocation.
type Config struct {
	// Dir is the tracked (or archived) directory.
	Dir string

	// StoreName is the reserved file name of the snapshot store inside Dir.
	StoreName string

	// Verbosity and LogFormat configure internal/log.
	Verbosity int
	LogFormat string

	// Trace exports OpenTelemetry spans to stderr.
	Trace bool

	// ShowChanged prints every path that made a run report changes.
	ShowChanged bool

	// Exclude lists bare file names the archive command leaves out.
	Exclude []string

	// File is the optional INI file layered under command-line flags.
	File string
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		StoreName: storage.DefaultStoreName,
		Verbosity: log.VerbosityWarn,
		LogFormat: "text",
		File:      os.Getenv(EnvConfigFile),
	}
}

// BindFlags registers the flags shared by every command.
func (c *Config) BindFlags(fs *pflag.FlagSet) {
	fs.IntVarP(&c.Verbosity, "verbosity", "v", c.Verbosity,
		"Verbosity level (0=error, 1=warn, 2=info, 3=debug, 4=trace)")
	fs.StringVar(&c.LogFormat, "log-format", c.LogFormat, "Log format (text, json)")
	fs.BoolVar(&c.Trace, "trace", c.Trace, "Export trace spans to stderr")
	fs.StringVar(&c.File, "config", c.File, "INI configuration file (default $"+EnvConfigFile+")")
}

// BindTrackFlags registers the flags of the change tracking command.
func (c *Config) BindTrackFlags(fs *pflag.FlagSet) {
	c.BindFlags(fs)
	fs.StringVar(&c.StoreName, "store-name", c.StoreName, "File name of the snapshot store inside the directory")
	fs.BoolVar(&c.ShowChanged, "show-changed", c.ShowChanged, "List the paths behind a change verdict")
}

// BindArchiveFlags registers the flags of the archive command.
func (c *Config) BindArchiveFlags(fs *pflag.FlagSet) {
	c.BindFlags(fs)
	fs.StringSliceVar(&c.Exclude, "exclude", c.Exclude, "File names to leave out of the archive")
}

// ApplyFile overlays values from the INI file at c.File. Settings whose flag
// was given explicitly on fs keep the flag value. A missing c.File is a no-op.
func (c *Config) ApplyFile(fs *pflag.FlagSet) error {
	if strings.TrimSpace(c.File) == "" {
		return nil
	}

	file, err := ini.Load(c.File)
	if err != nil {
		return fmt.Errorf("load config file %s: %w", c.File, err)
	}

	explicit := func(name string) bool {
		return fs != nil && fs.Changed(name)
	}

	logSection := file.Section("log")
	if logSection.HasKey("verbosity") && !explicit("verbosity") {
		v, err := logSection.Key("verbosity").Int()
		if err != nil {
			return fmt.Errorf("config [log] verbosity: %w", err)
		}
		c.Verbosity = v
	}
	if logSection.HasKey("format") && !explicit("log-format") {
		c.LogFormat = logSection.Key("format").String()
	}

	if section := file.Section("store"); section.HasKey("name") && !explicit("store-name") {
		c.StoreName = section.Key("name").String()
	}

	if section := file.Section("trace"); section.HasKey("enabled") && !explicit("trace") {
		enabled, err := section.Key("enabled").Bool()
		if err != nil {
			return fmt.Errorf("config [trace] enabled: %w", err)
		}
		c.Trace = enabled
	}

	if section := file.Section("archive"); section.HasKey("exclude") && !explicit("exclude") {
		c.Exclude = normalizeNames(section.Key("exclude").Strings(","))
	}

	return nil
}

// Normalize validates the configuration and resolves Dir to a clean absolute
// path.
func (c *Config) Normalize() error {
	if strings.TrimSpace(c.Dir) == "" {
		return errors.New("directory path cannot be empty")
	}

	abs, err := filepath.Abs(c.Dir)
	if err != nil {
		return fmt.Errorf("resolve directory %q: %w", c.Dir, err)
	}
	c.Dir = filepath.Clean(abs)

	info, err := os.Stat(c.Dir)
	if err != nil {
		return fmt.Errorf("stat directory: %w", storage.WrapIO(err))
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", c.Dir)
	}

	if c.StoreName == "" {
		c.StoreName = storage.DefaultStoreName
	}
	if strings.ContainsAny(c.StoreName, `/\`) || c.StoreName == "." || c.StoreName == ".." {
		return fmt.Errorf("store name %q must be a bare file name", c.StoreName)
	}

	switch c.LogFormat {
	case "", "text":
		c.LogFormat = "text"
	case "json":
	default:
		return fmt.Errorf("unknown log format %q", c.LogFormat)
	}

	c.Exclude = normalizeNames(c.Exclude)
	return nil
}

// ExcludeSet returns Exclude as a lookup set.
func (c Config) ExcludeSet() map[string]struct{} {
	set := make(map[string]struct{}, len(c.Exclude))
	for _, name := range c.Exclude {
		set[name] = struct{}{}
	}
	return set
}

func normalizeNames(raw []string) []string {
	names := make([]string, 0, len(raw))
	for _, part := range raw {
		trimmed := strings.TrimSpace(part)
		if trimmed == "" {
			continue
		}
		names = append(names, trimmed)
	}
	return names
}
