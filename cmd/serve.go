package cmd

import (
	"context"
	"fmt"
	"log"
	"os"
	"sync"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/nilcar/leads-console/internal/assistant"
	"github.com/nilcar/leads-console/internal/devapi"
	"github.com/nilcar/leads-console/internal/metrics"
	"github.com/nilcar/leads-console/internal/store"
)

var serveFlags struct {
	seed       bool
	seedLeads  int
	requestLog bool
}

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the local development API",
	Long: `Run the local development backend the console talks to. It serves:

1. Login, token validation, signup and password recovery
2. The paginated lead list with filters, search and sort
3. User administration, internal chat and WhatsApp template sends
4. Lead import (POST /api/leads/import) and the audit trail

Data lives in the SQLite file at devapi.db. Lead imports are announced on the
events stream when events.redis_url is set, so open consoles refresh.

Examples:
  # Start with demo users and 50 generated leads
  leads-console serve --seed

  # Custom bind address and a Prometheus endpoint
  leads-console serve --bind 127.0.0.1:9000 --metrics-bind 127.0.0.1:9100`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("bind", ":8091", "Listen address")
	serveCmd.Flags().String("metrics-bind", "", "Prometheus /metrics listen address (empty disables)")
	serveCmd.Flags().BoolVar(&serveFlags.seed, "seed", false, "Create demo users and leads before serving")
	serveCmd.Flags().IntVar(&serveFlags.seedLeads, "seed-leads", 50, "Leads generated by --seed")
	serveCmd.Flags().BoolVar(&serveFlags.requestLog, "request-log", false, "Log every request")

	viper.BindPFlag("devapi.bind", serveCmd.Flags().Lookup("bind"))
	viper.BindPFlag("metrics.bind", serveCmd.Flags().Lookup("metrics-bind"))
}

// openDevStore opens the development database at devapi.db.
func openDevStore(config Config, logger *log.Logger) (*store.Store, error) {
	path := resolvePathRelativeToBase(getWorkingDir(), config.DevAPI.DB)
	logger.Printf("Using database at %s", path)
	st, err := store.NewStore(path)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize store: %w", err)
	}
	return st, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()
	config := GetConfig()
	logger := newLogger(os.Stderr, "[serve] ")

	st, err := openDevStore(config, logger)
	if err != nil {
		return err
	}
	defer st.Close()

	if serveFlags.seed {
		res, err := devapi.Seed(ctx, st, devapi.SeedOptions{Leads: serveFlags.seedLeads})
		if err != nil {
			return fmt.Errorf("failed to seed: %w", err)
		}
		logger.Printf("Seeded %d users and %d leads (password %q for new users)",
			res.UsersCreated, res.LeadsCreated, devapi.DefaultSeedPassword)
	}

	responder, err := assistant.Build(assistant.ProviderConfig{
		Provider: config.Assistant.Provider,
		Endpoint: config.Assistant.Endpoint,
		Model:    config.Assistant.Model,
		APIKey:   config.Assistant.APIKey,
	}, st, logger)
	if err != nil {
		logger.Printf("Assistant provider %q unavailable, using the local assistant: %v", config.Assistant.Provider, err)
		responder = assistant.NewLocal(st, logger)
	}

	eventBus := openBus(config, logger)
	defer eventBus.Close()

	server := devapi.New(st, devapi.Config{
		Bind:       config.DevAPI.Bind,
		JWTSecret:  config.DevAPI.JWTSecret,
		TokenTTL:   config.DevAPI.TokenTTL,
		ResetTTL:   config.DevAPI.ResetTTL,
		ImportRPS:  config.DevAPI.ImportRPS,
		RequestLog: serveFlags.requestLog,
	}, devapi.Options{
		Responder: responder,
		Bus:       eventBus,
		Logger:    logger,
	})

	var wg sync.WaitGroup
	if config.Metrics.Bind != "" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := metrics.Serve(ctx, config.Metrics.Bind, logger); err != nil {
				logger.Printf("metrics server stopped: %v", err)
			}
		}()
	}

	err = server.Run(ctx)
	cancel()
	wg.Wait()
	if err != nil {
		return fmt.Errorf("dev API: %w", err)
	}
	logger.Println("Dev API stopped")
	return nil
}
