// SPDX-License-Identifier: MPL-2.0

package config

import (
	"context"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"xtcmod/internal/issue"
	"xtcmod/pkg/cueutil"

	"github.com/spf13/viper"
)

const (
	// AppName is the application name.
	AppName = "xtcmod"
	// ConfigFileName is the name of the config file (without extension).
	ConfigFileName = "config"
	// ConfigFileExt is the config file extension.
	ConfigFileExt = "cue"
	// EnvPrefix prefixes the environment variables that override config keys.
	EnvPrefix = "XTCMOD"
)

//go:embed config_schema.cue
var configSchema []byte

// ConfigDir returns the xtcmod configuration directory using platform-specific
// conventions: Windows uses %APPDATA%, macOS uses ~/Library/Application Support,
// and Linux/others use $XDG_CONFIG_HOME (defaulting to ~/.config).
//
//nolint:revive // ConfigDir is more descriptive than Dir for external callers
func ConfigDir() (string, error) {
	if configDirOverride != "" {
		return configDirOverride, nil
	}
	return platformDir("APPDATA", "Roaming", "XDG_CONFIG_HOME", ".config")
}

// DataDir returns the directory holding xtcmod data such as the default
// module repository: %LOCALAPPDATA% on Windows, ~/Library/Application Support
// on macOS and $XDG_DATA_HOME (defaulting to ~/.local/share) elsewhere.
func DataDir() (string, error) {
	return platformDir("LOCALAPPDATA", "Local", "XDG_DATA_HOME", filepath.Join(".local", "share"))
}

// DefaultRepositoryDir is the repository used when repository.path is empty.
func DefaultRepositoryDir() (string, error) {
	dir, err := DataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "repository"), nil
}

// RepositoryDir resolves the repository directory of cfg.
func RepositoryDir(cfg *Config) (string, error) {
	if cfg != nil && cfg.Repository.Path != "" {
		return cfg.Repository.Path, nil
	}
	return DefaultRepositoryDir()
}

func platformDir(windowsEnv, windowsDefault, xdgEnv, xdgDefault string) (string, error) {
	var dir string
	switch runtime.GOOS {
	case "windows":
		dir = os.Getenv(windowsEnv)
		if dir == "" {
			dir = filepath.Join(os.Getenv("USERPROFILE"), "AppData", windowsDefault)
		}
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		dir = filepath.Join(home, "Library", "Application Support")
	default:
		dir = os.Getenv(xdgEnv)
		if dir == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", fmt.Errorf("failed to get home directory: %w", err)
			}
			dir = filepath.Join(home, xdgDefault)
		}
	}
	return filepath.Join(dir, AppName), nil
}

// loadWithOptions performs option-driven config loading without mutating
// package-level state. It returns the path of the file that was read, or ""
// when only defaults and the environment apply.
func loadWithOptions(ctx context.Context, opts LoadOptions) (*Config, string, error) {
	select {
	case <-ctx.Done():
		return nil, "", fmt.Errorf("load config canceled: %w", ctx.Err())
	default:
	}

	v := viper.New()
	setDefaults(v, DefaultConfig())
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	path, err := resolvePath(opts)
	if err != nil {
		return nil, "", err
	}
	if path != "" {
		if err := loadCUEIntoViper(v, path); err != nil {
			return nil, "", issue.NewErrorContext().
				WithOperation("load configuration").
				WithResource(path).
				WithSuggestion("Check that the file contains valid CUE syntax").
				WithSuggestion("Verify the configuration values match the expected schema").
				WithIssue(issue.ConfigLoadFailedId).
				Wrap(err).
				BuildError()
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, "", fmt.Errorf("failed to parse config: %w", err)
	}
	if valid, errs := cfg.IsValid(); !valid {
		return nil, "", issue.NewErrorContext().
			WithOperation("validate configuration").
			WithResource(path).
			WithSuggestion("Check " + EnvPrefix + "_* environment variables for typos").
			WithIssue(issue.ConfigLoadFailedId).
			Wrap(errs[0]).
			BuildError()
	}
	return &cfg, path, nil
}

func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("repository.path", d.Repository.Path)
	v.SetDefault("repository.compression", d.Repository.Compression)
	v.SetDefault("file.lazy_children", d.File.LazyChildren)
	v.SetDefault("file.optimize", d.File.Optimize)
	v.SetDefault("diagnostics.max_errors", d.Diagnostics.MaxErrors)
	v.SetDefault("linker.profile", d.Linker.Profile)
	v.SetDefault("linker.defines", d.Linker.Defines)
	v.SetDefault("ui.color_scheme", d.UI.ColorScheme)
	v.SetDefault("ui.verbose", d.UI.Verbose)
}

// resolvePath picks the config file: an explicit path must exist; otherwise
// the config directory is searched, then the working directory.
func resolvePath(opts LoadOptions) (string, error) {
	if opts.ConfigFilePath != "" {
		if !fileExists(opts.ConfigFilePath) {
			return "", issue.NewErrorContext().
				WithOperation("load configuration").
				WithResource(opts.ConfigFilePath).
				WithSuggestion("Verify the file path is correct").
				WithSuggestion("Use 'xtcmod config show' to see the default configuration").
				WithIssue(issue.FileNotFoundId).
				Wrap(fmt.Errorf("config file not found: %s", opts.ConfigFilePath)).
				BuildError()
		}
		return opts.ConfigFilePath, nil
	}

	cfgDir, err := configDirWithOverride(opts.ConfigDirPath)
	if err != nil {
		return "", err
	}
	for _, candidate := range []string{
		filepath.Join(cfgDir, ConfigFileName+"."+ConfigFileExt),
		ConfigFileName + "." + ConfigFileExt,
	} {
		if fileExists(candidate) {
			return candidate, nil
		}
	}
	return "", nil
}

// configDirWithOverride resolves the configuration directory, honoring
// explicit provider options before platform defaults.
func configDirWithOverride(configDirPath string) (string, error) {
	if configDirPath != "" {
		return configDirPath, nil
	}
	return ConfigDir()
}

// loadCUEIntoViper validates a CUE file against #Config and merges it into
// v. Fields are optional, so the document is decoded non-concretely into a
// map that viper layers over its defaults.
func loadCUEIntoViper(v *viper.Viper, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	res, err := cueutil.ParseAndDecode[map[string]any](configSchema, data, "#Config",
		cueutil.WithFilename(path),
		cueutil.WithConcrete(false),
	)
	if err != nil {
		return err
	}
	if err := v.MergeConfigMap(*res.Value); err != nil {
		return fmt.Errorf("failed to merge config: %w", err)
	}
	return nil
}

// fileExists checks if a file exists and is not a directory
func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// EnsureConfigDir creates the config directory if it doesn't exist
func EnsureConfigDir() error {
	cfgDir, err := ConfigDir()
	if err != nil {
		return err
	}
	return os.MkdirAll(cfgDir, 0o755)
}

// CreateDefaultConfig writes the default configuration unless a config file
// already exists. It returns the path of the file.
func CreateDefaultConfig() (string, error) {
	cfgDir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	cfgPath := filepath.Join(cfgDir, ConfigFileName+"."+ConfigFileExt)
	if fileExists(cfgPath) {
		return cfgPath, nil
	}
	return cfgPath, writeConfig(cfgDir, cfgPath, DefaultConfig())
}

// Save writes cfg to the config file in the config directory.
func Save(cfg *Config) error {
	cfgDir, err := ConfigDir()
	if err != nil {
		return err
	}
	return writeConfig(cfgDir, filepath.Join(cfgDir, ConfigFileName+"."+ConfigFileExt), cfg)
}

func writeConfig(dir, path string, cfg *Config) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(GenerateCUE(cfg)), 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// GenerateCUE generates a CUE representation of the configuration
func GenerateCUE(cfg *Config) string {
	var sb strings.Builder

	sb.WriteString("// xtcmod configuration file\n\n")

	sb.WriteString("repository: {\n")
	if cfg.Repository.Path != "" {
		fmt.Fprintf(&sb, "\tpath: %q\n", cfg.Repository.Path)
	}
	fmt.Fprintf(&sb, "\tcompression: %q\n", cfg.Repository.Compression)
	sb.WriteString("}\n")

	sb.WriteString("\nfile: {\n")
	fmt.Fprintf(&sb, "\tlazy_children: %v\n", cfg.File.LazyChildren)
	fmt.Fprintf(&sb, "\toptimize: %v\n", cfg.File.Optimize)
	sb.WriteString("}\n")

	sb.WriteString("\ndiagnostics: {\n")
	fmt.Fprintf(&sb, "\tmax_errors: %d\n", cfg.Diagnostics.MaxErrors)
	sb.WriteString("}\n")

	if cfg.Linker.Profile != "" || len(cfg.Linker.Defines) > 0 {
		sb.WriteString("\nlinker: {\n")
		if cfg.Linker.Profile != "" {
			fmt.Fprintf(&sb, "\tprofile: %q\n", cfg.Linker.Profile)
		}
		if len(cfg.Linker.Defines) > 0 {
			quoted := make([]string, len(cfg.Linker.Defines))
			for i, d := range cfg.Linker.Defines {
				quoted[i] = fmt.Sprintf("%q", d)
			}
			fmt.Fprintf(&sb, "\tdefines: [%s]\n", strings.Join(quoted, ", "))
		}
		sb.WriteString("}\n")
	}

	sb.WriteString("\nui: {\n")
	fmt.Fprintf(&sb, "\tcolor_scheme: %q\n", cfg.UI.ColorScheme)
	fmt.Fprintf(&sb, "\tverbose: %v\n", cfg.UI.Verbose)
	sb.WriteString("}\n")

	return sb.String()
}
