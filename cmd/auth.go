package cmd

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/nilcar/leads-console/internal/api"
	"github.com/nilcar/leads-console/internal/validate"
)

var (
	loginIdentifier string
	loginPassword   string
	whoamiCheck     bool
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Log in and store the session",
	Long: `Log in with a username, email or phone number. The token is stored in the
configured session storage and shared with the TUI.

Examples:
  leads-console login -u admin
  LEADS_PASSWORD=... leads-console login -u admin@leads.local`,
	RunE: runLogin,
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Clear the stored session",
	Long: `Clear the stored session. With an events Redis configured, consoles sharing
the session storage are sent back to their login screen.`,
	RunE: runLogout,
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the stored session",
	RunE:  runWhoami,
}

func init() {
	rootCmd.AddCommand(loginCmd, logoutCmd, whoamiCmd)

	loginCmd.Flags().StringVarP(&loginIdentifier, "user", "u", "", "Username, email or phone")
	loginCmd.Flags().StringVarP(&loginPassword, "password", "p", "", "Password (prompted when omitted; LEADS_PASSWORD also works)")
	whoamiCmd.Flags().BoolVar(&whoamiCheck, "check", false, "Ask the backend whether the token is still accepted")
}

func runLogin(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	config := GetConfig()
	logger := cliLogger("[login] ")

	password := loginPassword
	if password == "" {
		password = os.Getenv("LEADS_PASSWORD")
	}
	identifier := strings.TrimSpace(loginIdentifier)
	if identifier == "" {
		v, err := prompt(cmd, "Usuário, e-mail ou telefone: ", false)
		if err != nil {
			return err
		}
		identifier = v
	}
	if password == "" {
		v, err := prompt(cmd, "Senha: ", true)
		if err != nil {
			return err
		}
		password = v
	}
	if err := validate.Login(identifier, password); err != nil {
		return err
	}

	sess, err := openSession(ctx, config, logger)
	if err != nil {
		return err
	}
	defer sess.Close()
	eventBus := openBus(config, logger)
	defer eventBus.Close()
	sess.SetPublisher(eventBus)

	client := newClient(config, sess, logger)
	token, err := client.Login(ctx, api.Credentials{Identifier: identifier, Password: password})
	if err != nil {
		if api.IsUnauthorized(err) {
			return fmt.Errorf("Usuário ou senha inválidos.")
		}
		return fmt.Errorf("login failed: %s", api.Message(err))
	}
	claims, err := sess.LoginWithToken(ctx, token)
	if err != nil {
		return fmt.Errorf("failed to store session: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Logged in as %s (%s)\n", claims.Subject, claims.Role)
	return nil
}

// prompt reads one line from stdin, without echo for secrets on a terminal.
func prompt(cmd *cobra.Command, label string, secret bool) (string, error) {
	fmt.Fprint(cmd.ErrOrStderr(), label)
	fd := int(os.Stdin.Fd())
	if secret && term.IsTerminal(fd) {
		b, err := term.ReadPassword(fd)
		fmt.Fprintln(cmd.ErrOrStderr())
		if err != nil {
			return "", fmt.Errorf("failed to read password: %w", err)
		}
		return string(b), nil
	}
	line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", fmt.Errorf("failed to read input: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func runLogout(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	config := GetConfig()
	logger := cliLogger("[logout] ")

	sess, err := openSession(ctx, config, logger)
	if err != nil {
		return err
	}
	defer sess.Close()
	eventBus := openBus(config, logger)
	defer eventBus.Close()
	sess.SetPublisher(eventBus)

	if !sess.LoggedIn(ctx) {
		fmt.Fprintln(cmd.OutOrStdout(), "Not logged in.")
		return nil
	}
	if err := sess.Logout(ctx); err != nil {
		return fmt.Errorf("failed to clear session: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), "Logged out.")
	return nil
}

func runWhoami(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	config := GetConfig()
	logger := cliLogger("[whoami] ")
	out := cmd.OutOrStdout()

	sess, err := openSession(ctx, config, logger)
	if err != nil {
		return err
	}
	defer sess.Close()

	if !sess.LoggedIn(ctx) {
		fmt.Fprintln(out, "Not logged in.")
		return nil
	}
	role, _ := sess.Role(ctx)
	claims, err := sess.Claims(ctx)
	if err != nil {
		fmt.Fprintf(out, "Role: %s\n", validate.NormalizeRole(role))
		fmt.Fprintf(out, "Token: unreadable (%v)\n", err)
	} else {
		fmt.Fprintf(out, "User: %s\n", claims.Subject)
		fmt.Fprintf(out, "Role: %s\n", validate.NormalizeRole(role))
		if !claims.ExpiresAt.IsZero() {
			state := "valid"
			if claims.Expired(time.Now()) {
				state = "expired"
			}
			fmt.Fprintf(out, "Expires: %s (%s)\n", claims.ExpiresAt.Local().Format("2006-01-02 15:04:05"), state)
		}
	}

	if whoamiCheck {
		if err := newClient(config, sess, logger).Validate(ctx); err != nil {
			fmt.Fprintf(out, "Backend: rejected (%s)\n", api.Message(err))
			return nil
		}
		fmt.Fprintln(out, "Backend: accepted")
	}
	return nil
}
