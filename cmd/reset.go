package cmd

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nilcar/leads-console/internal/session"
)

var (
	confirmReset bool
	resetSession bool
	resetDB      bool
)

// resetCmd represents the reset command
var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Reset the stored session and/or the development database",
	Long: `Reset clears the stored console session and/or every table of the
development database.

By default both are reset. Use --session-only or --db-only to pick one.
With the redis session backend every key under session.redis_prefix is removed.

WARNING: This operation is irreversible.

Examples:
  # Reset both (asks for confirmation)
  leads-console reset

  # Reset without asking
  leads-console reset --yes

  # Only log out this machine's consoles
  leads-console reset --session-only`,
	RunE: runReset,
}

func init() {
	rootCmd.AddCommand(resetCmd)

	resetCmd.Flags().BoolVarP(&confirmReset, "yes", "y", false, "Automatically confirm reset operation")
	resetCmd.Flags().BoolVar(&resetSession, "session-only", false, "Reset only the stored session")
	resetCmd.Flags().BoolVar(&resetDB, "db-only", false, "Reset only the development database")
}

func runReset(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	config := GetConfig()
	logger := cliLogger("[reset] ")
	out := cmd.OutOrStdout()

	doSession, doDB := resetSession, resetDB
	if !doSession && !doDB {
		doSession, doDB = true, true
	}

	var targets []string
	if doSession {
		targets = append(targets, "the stored session ("+config.Session.Backend+")")
	}
	if doDB {
		targets = append(targets, "the development database ("+config.DevAPI.DB+")")
	}
	fmt.Fprintf(out, "This will permanently delete: %s\n", strings.Join(targets, " and "))

	if !confirmReset && !confirm(cmd.InOrStdin(), out, "Are you sure you want to continue? (y/N): ") {
		fmt.Fprintln(out, "Reset operation cancelled.")
		return nil
	}

	if doSession {
		if err := clearSession(cmd, config); err != nil {
			if !doDB {
				return err
			}
			fmt.Fprintf(out, "Warning: %v\n", err)
		}
	}

	if doDB {
		st, err := openDevStore(config, logger)
		if err != nil {
			return err
		}
		defer st.Close()
		// The session lives in its own file unless both point at the same database.
		sharedKV := doSession && config.Session.Backend == session.BackendSQLite &&
			resolvePathRelativeToBase(getWorkingDir(), config.Session.Path) == resolvePathRelativeToBase(getWorkingDir(), config.DevAPI.DB)
		if err := st.Truncate(ctx, sharedKV); err != nil {
			return fmt.Errorf("failed to reset database: %w", err)
		}
		fmt.Fprintln(out, "✓ Database cleared successfully")
	}

	fmt.Fprintln(out, "Reset operation completed successfully!")
	return nil
}

// clearSession logs out through the configured storage. The redis backend
// also drops any other keys under its prefix.
func clearSession(cmd *cobra.Command, config Config) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()
	logger := cliLogger("[reset] ")

	if config.Session.Backend == session.BackendRedis {
		rs, err := session.NewRedisStorage(config.Session.RedisURL, config.Session.RedisPrefix, logger)
		if err != nil {
			return fmt.Errorf("failed to reset Redis session: %w", err)
		}
		defer rs.Close()
		n, err := rs.Clear(ctx)
		if err != nil {
			return fmt.Errorf("failed to reset Redis session: %w", err)
		}
		fmt.Fprintf(out, "✓ Removed %d Redis session keys\n", n)
	}

	sess, err := openSession(ctx, config, logger)
	if err != nil {
		return err
	}
	defer sess.Close()
	eventBus := openBus(config, logger)
	defer eventBus.Close()
	sess.SetPublisher(eventBus)

	if err := sess.Logout(ctx); err != nil {
		return fmt.Errorf("failed to clear session: %w", err)
	}
	fmt.Fprintln(out, "✓ Session cleared successfully")
	return nil
}

func confirm(in io.Reader, out io.Writer, question string) bool {
	fmt.Fprint(out, question)
	line, _ := bufio.NewReader(in).ReadString('\n')
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	}
	return false
}
