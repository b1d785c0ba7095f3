package cmd

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/nilcar/leads-console/internal/api"
	"github.com/nilcar/leads-console/internal/bus"
	"github.com/nilcar/leads-console/internal/lead"
	"github.com/nilcar/leads-console/internal/session"
)

var (
	cfgFile string
	verbose bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "leads-console",
	Short: "Terminal console for the dealership lead backend",
	Long: `leads-console is a terminal-first admin console for vehicle dealership leads.

Features:
- Paginated, filterable and sortable lead list with a detail view
- Login, password recovery and session persistence across restarts
- User administration and registration for administrators
- Internal chat assistant and WhatsApp template messages
- A local development backend with demo data and lead import

Running leads-console without a subcommand opens the TUI.`,
	RunE: runTUI,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.leads-console.yaml)")
	rootCmd.PersistentFlags().String("api", "http://localhost:8091/api", "Base URL of the leads API")
	rootCmd.PersistentFlags().String("session-backend", "sqlite", "Session storage: sqlite, redis or memory")
	rootCmd.PersistentFlags().String("session-path", "data/session.db", "SQLite file for the session")
	rootCmd.PersistentFlags().String("redis", "", "Redis URL for session events between consoles (empty disables)")
	rootCmd.PersistentFlags().String("db", "data/devapi.db", "Development database file (serve, seed, ingest, reset)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose logging")

	// Bind flags to viper
	viper.BindPFlag("api.base_url", rootCmd.PersistentFlags().Lookup("api"))
	viper.BindPFlag("session.backend", rootCmd.PersistentFlags().Lookup("session-backend"))
	viper.BindPFlag("session.path", rootCmd.PersistentFlags().Lookup("session-path"))
	viper.BindPFlag("events.redis_url", rootCmd.PersistentFlags().Lookup("redis"))
	viper.BindPFlag("devapi.db", rootCmd.PersistentFlags().Lookup("db"))
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)

		// Search config in home directory and the working directory with name ".leads-console".
		viper.AddConfigPath(home)
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName(".leads-console")
	}

	// LEADS_API_BASE_URL overrides api.base_url, and so on.
	viper.SetEnvPrefix("LEADS")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil && verbose {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}

	viper.SetDefault("api.base_url", "http://localhost:8091/api")
	viper.SetDefault("api.timeout", 15*time.Second)
	viper.SetDefault("session.backend", session.BackendSQLite)
	viper.SetDefault("session.path", "data/session.db")
	viper.SetDefault("session.redis_url", "redis://localhost:6379")
	viper.SetDefault("session.redis_prefix", "leads-console:")
	viper.SetDefault("leads.page_size", 10)
	viper.SetDefault("leads.debounce", 500*time.Millisecond)
	viper.SetDefault("leads.sort", lead.DefaultSort.String())
	viper.SetDefault("ui.theme", "dark")
	viper.SetDefault("events.redis_url", "")
	viper.SetDefault("events.prefix", bus.DefaultPrefix)
	viper.SetDefault("devapi.bind", ":8091")
	viper.SetDefault("devapi.db", "data/devapi.db")
	viper.SetDefault("devapi.jwt_secret", "")
	viper.SetDefault("devapi.token_ttl", 24*time.Hour)
	viper.SetDefault("devapi.reset_ttl", time.Hour)
	viper.SetDefault("devapi.import_rps", 5)
	viper.SetDefault("metrics.bind", "")
	viper.SetDefault("assistant.provider", "local")
	viper.SetDefault("assistant.endpoint", "")
	viper.SetDefault("assistant.model", "")
	viper.SetDefault("assistant.api_key", "")
}

// GetConfig returns the current configuration values
func GetConfig() Config {
	return Config{
		API: APIConfig{
			BaseURL: viper.GetString("api.base_url"),
			Timeout: viper.GetDuration("api.timeout"),
		},
		Session: SessionConfig{
			Backend:     viper.GetString("session.backend"),
			Path:        viper.GetString("session.path"),
			RedisURL:    viper.GetString("session.redis_url"),
			RedisPrefix: viper.GetString("session.redis_prefix"),
		},
		Leads: LeadsConfig{
			PageSize: viper.GetInt("leads.page_size"),
			Debounce: viper.GetDuration("leads.debounce"),
			Sort:     viper.GetString("leads.sort"),
		},
		UI: UIConfig{
			Theme: viper.GetString("ui.theme"),
		},
		Events: EventsConfig{
			RedisURL: viper.GetString("events.redis_url"),
			Prefix:   viper.GetString("events.prefix"),
		},
		DevAPI: DevAPIConfig{
			Bind:      viper.GetString("devapi.bind"),
			DB:        viper.GetString("devapi.db"),
			JWTSecret: viper.GetString("devapi.jwt_secret"),
			TokenTTL:  viper.GetDuration("devapi.token_ttl"),
			ResetTTL:  viper.GetDuration("devapi.reset_ttl"),
			ImportRPS: viper.GetInt("devapi.import_rps"),
		},
		Metrics: MetricsConfig{
			Bind: viper.GetString("metrics.bind"),
		},
		Assistant: AssistantConfig{
			Provider: viper.GetString("assistant.provider"),
			Endpoint: viper.GetString("assistant.endpoint"),
			Model:    viper.GetString("assistant.model"),
			APIKey:   viper.GetString("assistant.api_key"),
		},
	}
}

// Config represents the application configuration
type Config struct {
	API       APIConfig       `mapstructure:"api"`
	Session   SessionConfig   `mapstructure:"session"`
	Leads     LeadsConfig     `mapstructure:"leads"`
	UI        UIConfig        `mapstructure:"ui"`
	Events    EventsConfig    `mapstructure:"events"`
	DevAPI    DevAPIConfig    `mapstructure:"devapi"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	Assistant AssistantConfig `mapstructure:"assistant"`
}

type APIConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type SessionConfig struct {
	Backend     string `mapstructure:"backend"`
	Path        string `mapstructure:"path"`
	RedisURL    string `mapstructure:"redis_url"`
	RedisPrefix string `mapstructure:"redis_prefix"`
}

type LeadsConfig struct {
	PageSize int           `mapstructure:"page_size"`
	Debounce time.Duration `mapstructure:"debounce"`
	Sort     string        `mapstructure:"sort"`
}

type UIConfig struct {
	Theme string `mapstructure:"theme"`
}

type EventsConfig struct {
	RedisURL string `mapstructure:"redis_url"`
	Prefix   string `mapstructure:"prefix"`
}

type DevAPIConfig struct {
	Bind      string        `mapstructure:"bind"`
	DB        string        `mapstructure:"db"`
	JWTSecret string        `mapstructure:"jwt_secret"`
	TokenTTL  time.Duration `mapstructure:"token_ttl"`
	ResetTTL  time.Duration `mapstructure:"reset_ttl"`
	ImportRPS int           `mapstructure:"import_rps"`
}

type MetricsConfig struct {
	Bind string `mapstructure:"bind"`
}

type AssistantConfig struct {
	Provider string `mapstructure:"provider"`
	Endpoint string `mapstructure:"endpoint"`
	Model    string `mapstructure:"model"`
	APIKey   string `mapstructure:"api_key"`
}

// newLogger writes to w with the component prefix; --verbose adds file:line.
func newLogger(w io.Writer, prefix string) *log.Logger {
	flags := log.LstdFlags
	if verbose {
		flags |= log.Lshortfile
	}
	return log.New(w, prefix, flags)
}

// openSession opens the configured storage and restores the stored session.
func openSession(ctx context.Context, config Config, logger *log.Logger) (*session.Session, error) {
	storage, backend := session.NewStorage(session.StorageConfig{
		Backend:     config.Session.Backend,
		Path:        resolvePathRelativeToBase(getWorkingDir(), config.Session.Path),
		RedisURL:    config.Session.RedisURL,
		RedisPrefix: config.Session.RedisPrefix,
	}, logger)
	logger.Printf("session storage: %s", backend)

	sess := session.New(storage, logger)
	if err := sess.Initialize(ctx); err != nil {
		sess.Close()
		return nil, fmt.Errorf("failed to initialize session: %w", err)
	}
	return sess, nil
}

// newClient builds an API client whose bearer token is read from the session.
func newClient(config Config, sess *session.Session, logger *log.Logger) *api.Client {
	return api.NewClient(config.API.BaseURL, sess, logger, api.WithTimeout(config.API.Timeout))
}

// openBus connects the console to the shared event stream. Without a Redis
// URL events stay local to the process.
func openBus(config Config, logger *log.Logger) bus.Bus {
	return bus.NewBus(config.Events.RedisURL, config.Events.Prefix, logger)
}

// leadsSort parses leads.sort, falling back to the default order.
func leadsSort(config Config, logger *log.Logger) lead.Sort {
	s, err := lead.ParseSort(config.Leads.Sort)
	if err != nil {
		logger.Printf("invalid leads.sort %q, using %s: %v", config.Leads.Sort, lead.DefaultSort, err)
		return lead.DefaultSort
	}
	return s
}

// getExecutableDir returns the directory of the running executable.
// Falls back to current directory on error.
func getExecutableDir() string {
	exe, err := os.Executable()
	if err != nil {
		return "."
	}
	return filepath.Dir(exe)
}

// getWorkingDir returns the current working directory.
// Falls back to executable directory if os.Getwd fails.
func getWorkingDir() string {
	if wd, err := os.Getwd(); err == nil && wd != "" {
		return wd
	}
	return getExecutableDir()
}

// resolvePathRelativeToBase resolves a possibly relative path against a base directory.
// Absolute paths and ":memory:" are returned unchanged.
func resolvePathRelativeToBase(base, p string) string {
	if p == "" || p == ":memory:" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(base, strings.TrimPrefix(p, "./"))
}
