package config

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"clusterdash/pkg/models"

	"gopkg.in/yaml.v3"
)

const (
	EnvDatabaseURI     = "DATABASE_URI"
	EnvSecretKey       = "SECRET_KEY"
	EnvListenAddr      = "LISTEN_ADDR"
	EnvRefreshInterval = "REFRESH_INTERVAL"
	EnvReadTimeout     = "READ_TIMEOUT"
	EnvClusters        = "CLUSTERS"
	EnvDebug           = "DEBUG"
	EnvLogJSON         = "LOG_JSON"
)

var (
	// ErrStartupConfiguration is returned when a required setting is missing or invalid.
	// The process must not start serving.
	ErrStartupConfiguration = errors.New("startup configuration error")

	// ErrHelpRequested is returned when -h or -help is passed.
	ErrHelpRequested = errors.New("help requested")
)

// Config holds everything the server needs at startup.
type Config struct {
	DatabaseURI     string               `yaml:"database_uri"`
	SecretKey       string               `yaml:"secret_key"`
	ListenAddr      string               `yaml:"listen_addr"`
	RefreshInterval time.Duration        `yaml:"refresh_interval"`
	ReadTimeout     time.Duration        `yaml:"read_timeout"`
	Clusters        []models.ClusterName `yaml:"clusters"`
	Debug           bool                 `yaml:"debug"`
	LogJSON         bool                 `yaml:"log_json"`
}

func defaultConfig() Config {
	return Config{
		ListenAddr:      ":8050",
		RefreshInterval: 5 * time.Minute,
		ReadTimeout:     10 * time.Second,
		Clusters:        append([]models.ClusterName(nil), models.DefaultClusters...),
	}
}

// flagValues collects raw flag input so that "not passed" can be told apart from defaults.
type flagValues struct {
	configFile string
	addr       string
	refresh    string
	timeout    string
	clusters   string
	debug      bool
	logJSON    bool
}

func newFlagSet(values *flagValues) *flag.FlagSet {
	fs := flag.NewFlagSet("clusterdash", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.StringVar(&values.configFile, "config", "", "optional YAML configuration file")
	fs.StringVar(&values.addr, "addr", "", "listen address (default :8050, env "+EnvListenAddr+")")
	fs.StringVar(&values.refresh, "refresh", "", "refresh interval (default 5m, env "+EnvRefreshInterval+")")
	fs.StringVar(&values.timeout, "read-timeout", "", "timeout of a single snapshot read (default 10s, env "+EnvReadTimeout+")")
	fs.StringVar(&values.clusters, "clusters", "", "comma-separated tracked clusters (default smp,gpu,mpi,htc, env "+EnvClusters+")")
	fs.BoolVar(&values.debug, "debug", false, "enable debug logging (env "+EnvDebug+")")
	fs.BoolVar(&values.logJSON, "log-json", false, "log JSON lines instead of console output (env "+EnvLogJSON+")")

	return fs
}

// Usage returns the flag help text.
func Usage() string {
	var values flagValues
	fs := newFlagSet(&values)

	var b strings.Builder
	b.WriteString("clusterdash: live cluster utilization dashboard\n\n")
	b.WriteString("Required environment:\n")
	b.WriteString("  " + EnvDatabaseURI + "  status database connection string\n")
	b.WriteString("  " + EnvSecretKey + "    process secret\n\n")
	b.WriteString("Flags:\n")
	fs.SetOutput(&b)
	fs.PrintDefaults()
	return b.String()
}

// Load resolves the configuration. Precedence is flag, then environment,
// then the YAML file named by -config, then defaults.
func Load(args []string, getenv func(string) string) (Config, error) {
	var values flagValues
	fs := newFlagSet(&values)
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return Config{}, ErrHelpRequested
		}
		return Config{}, fmt.Errorf("%w: %w", ErrStartupConfiguration, err)
	}
	if fs.NArg() > 0 {
		return Config{}, fmt.Errorf("%w: unexpected arguments %v", ErrStartupConfiguration, fs.Args())
	}

	cfg := defaultConfig()
	if values.configFile != "" {
		if err := loadFile(values.configFile, &cfg); err != nil {
			return Config{}, err
		}
	}

	if err := applyEnv(&cfg, getenv); err != nil {
		return Config{}, err
	}
	if err := applyFlags(&cfg, fs, &values); err != nil {
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("%w: read config file: %w", ErrStartupConfiguration, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("%w: parse config file %s: %w", ErrStartupConfiguration, path, err)
	}
	return nil
}

func applyEnv(cfg *Config, getenv func(string) string) error {
	if v := strings.TrimSpace(getenv(EnvDatabaseURI)); v != "" {
		cfg.DatabaseURI = v
	}
	if v := getenv(EnvSecretKey); v != "" {
		cfg.SecretKey = v
	}
	if v := strings.TrimSpace(getenv(EnvListenAddr)); v != "" {
		cfg.ListenAddr = v
	}
	if v := strings.TrimSpace(getenv(EnvRefreshInterval)); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%w: %s: %w", ErrStartupConfiguration, EnvRefreshInterval, err)
		}
		cfg.RefreshInterval = d
	}
	if v := strings.TrimSpace(getenv(EnvReadTimeout)); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%w: %s: %w", ErrStartupConfiguration, EnvReadTimeout, err)
		}
		cfg.ReadTimeout = d
	}
	if v := strings.TrimSpace(getenv(EnvClusters)); v != "" {
		cfg.Clusters = ParseClusters(v)
	}
	if v := strings.TrimSpace(getenv(EnvDebug)); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%w: %s: %w", ErrStartupConfiguration, EnvDebug, err)
		}
		cfg.Debug = b
	}
	if v := strings.TrimSpace(getenv(EnvLogJSON)); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%w: %s: %w", ErrStartupConfiguration, EnvLogJSON, err)
		}
		cfg.LogJSON = b
	}
	return nil
}

func applyFlags(cfg *Config, fs *flag.FlagSet, values *flagValues) error {
	var err error
	fs.Visit(func(f *flag.Flag) {
		if err != nil {
			return
		}
		switch f.Name {
		case "addr":
			cfg.ListenAddr = values.addr
		case "refresh":
			cfg.RefreshInterval, err = time.ParseDuration(values.refresh)
		case "read-timeout":
			cfg.ReadTimeout, err = time.ParseDuration(values.timeout)
		case "clusters":
			cfg.Clusters = ParseClusters(values.clusters)
		case "debug":
			cfg.Debug = values.debug
		case "log-json":
			cfg.LogJSON = values.logJSON
		}
		if err != nil {
			err = fmt.Errorf("%w: -%s: %w", ErrStartupConfiguration, f.Name, err)
		}
	})
	return err
}

// ParseClusters splits a comma-separated list, lower-casing and dropping blanks and duplicates.
func ParseClusters(raw string) []models.ClusterName {
	seen := make(map[models.ClusterName]bool)
	var clusters []models.ClusterName
	for _, part := range strings.Split(raw, ",") {
		name := models.ClusterName(strings.ToLower(strings.TrimSpace(part)))
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		clusters = append(clusters, name)
	}
	return clusters
}

// Validate checks required settings and value ranges.
func (c Config) Validate() error {
	var missing []string
	if c.DatabaseURI == "" {
		missing = append(missing, EnvDatabaseURI)
	}
	if c.SecretKey == "" {
		missing = append(missing, EnvSecretKey)
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing required setting(s) %s", ErrStartupConfiguration, strings.Join(missing, ", "))
	}

	if c.ListenAddr == "" {
		return fmt.Errorf("%w: listen address is empty", ErrStartupConfiguration)
	}
	if c.RefreshInterval <= 0 {
		return fmt.Errorf("%w: refresh interval must be positive, got %s", ErrStartupConfiguration, c.RefreshInterval)
	}
	if c.ReadTimeout <= 0 {
		return fmt.Errorf("%w: read timeout must be positive, got %s", ErrStartupConfiguration, c.ReadTimeout)
	}
	if len(c.Clusters) == 0 {
		return fmt.Errorf("%w: no clusters to track", ErrStartupConfiguration)
	}
	return nil
}
