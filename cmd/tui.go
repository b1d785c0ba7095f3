package cmd

import (
	"fmt"
	"io"
	"log"
	"os"

	"github.com/spf13/cobra"

	"github.com/nilcar/leads-console/internal/metrics"
	"github.com/nilcar/leads-console/internal/ui"
)

var forceTUI bool

// tuiCmd represents the tui command
var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Open the interactive console",
	Long: `Open the terminal user interface.

The console starts on the Leads screen. Without a stored session, or when the
backend rejects the stored token, the login screen is shown first and the
console returns to the requested screen after a successful login.

Logs are written to logs/leads-console-ui.log so the screen stays clean.

Examples:
  # Against the local development backend
  leads-console serve --seed &
  leads-console tui

  # Against another backend, sharing logout between consoles through Redis
  leads-console tui --api https://leads.example.com/api --redis redis://localhost:6379`,
	RunE: runTUI,
}

func init() {
	rootCmd.AddCommand(tuiCmd)
	rootCmd.PersistentFlags().BoolVar(&forceTUI, "force-tui", false, "Force TUI mode even in unsupported terminals")
	tuiCmd.Flags().String("theme", "", "Color theme: dark or light")
}

func runTUI(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	config := GetConfig()
	if theme, _ := cmd.Flags().GetString("theme"); theme != "" {
		config.UI.Theme = theme
	}

	if !forceTUI && !canInitializeTUI() {
		if needsPseudoTTY() {
			return runWithPseudoTTY(args)
		}
		fmt.Fprintln(os.Stderr, "TUI cannot be initialized in this terminal environment.")
		fmt.Fprintf(os.Stderr, "Terminal info: %s\n", probeTerminal())
		fmt.Fprintln(os.Stderr, "Use the CLI commands instead, e.g. `leads-console list`.")
		return fmt.Errorf("no usable terminal")
	}

	// Logs go to a file; errors are still echoed to stderr.
	var logger *log.Logger
	logFile, logPath := setupFileLogger("leads-console-ui.log")
	if logFile != nil {
		defer logFile.Close()
		logger = newLogger(io.MultiWriter(logFile, &errorFilterWriter{os.Stderr}), "[UI] ")
		logger.Printf("UI logger initialized (path=%s)", logPath)
	} else {
		logger = newLogger(io.Discard, "[UI] ")
	}
	logger.Printf("Terminal info: %s", probeTerminal())

	sess, err := openSession(ctx, config, logger)
	if err != nil {
		return err
	}
	defer sess.Close()

	eventBus := openBus(config, logger)
	defer eventBus.Close()
	sess.SetPublisher(eventBus)

	go func() {
		if err := metrics.Serve(ctx, config.Metrics.Bind, logger); err != nil {
			logger.Printf("metrics server error: %v", err)
		}
	}()

	console := ui.NewUI(ctx, ui.Options{
		Backend:  newClient(config, sess, logger),
		Session:  sess,
		Bus:      eventBus,
		Logger:   logger,
		PageSize: config.Leads.PageSize,
		Debounce: config.Leads.Debounce,
		Sort:     leadsSort(config, logger),
		Theme:    config.UI.Theme,
	})
	if err := console.Start(ctx); err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}
	logger.Println("TUI exited")
	return nil
}
