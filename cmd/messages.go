package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nilcar/leads-console/internal/api"
)

var chatCmd = &cobra.Command{
	Use:   "chat <message...>",
	Short: "Ask the internal assistant one question",
	Long: `Send one message to the internal assistant and print its reply.

Example:
  leads-console chat quantos leads quentes temos hoje?`,
	Args: cobra.MinimumNArgs(1),
	RunE: runChat,
}

var sendFlags struct {
	to       string
	template string
	vars     []string
}

var sendCmd = &cobra.Command{
	Use:   "send",
	Short: "Send a WhatsApp template message",
	Long: `Send a pre-approved WhatsApp template to a phone number.

Example:
  leads-console send --to 5511999990000 --template HX123 --var 1=Ana --var 2=Onix`,
	RunE: runSend,
}

func init() {
	rootCmd.AddCommand(chatCmd, sendCmd)

	sendCmd.Flags().StringVar(&sendFlags.to, "to", "", "Destination phone number")
	sendCmd.Flags().StringVar(&sendFlags.template, "template", "", "Template SID")
	sendCmd.Flags().StringArrayVar(&sendFlags.vars, "var", nil, "Template variable as key=value (repeatable)")
}

func runChat(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	config := GetConfig()
	logger := cliLogger("[chat] ")

	message := strings.TrimSpace(strings.Join(args, " "))
	if message == "" {
		return fmt.Errorf("message is empty")
	}

	sess, err := openSession(ctx, config, logger)
	if err != nil {
		return err
	}
	defer sess.Close()

	reply, err := newClient(config, sess, logger).InternalChat(ctx, message)
	if err != nil {
		return fmt.Errorf("assistant unavailable: %s", api.Message(err))
	}
	fmt.Fprintln(cmd.OutOrStdout(), reply)
	return nil
}

// parseVarFlags turns repeated key=value flags into a variables map.
func parseVarFlags(pairs []string) (map[string]string, error) {
	vars := make(map[string]string, len(pairs))
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		k = strings.TrimSpace(k)
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid --var %q (want key=value)", p)
		}
		vars[k] = strings.TrimSpace(v)
	}
	return vars, nil
}

func runSend(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	config := GetConfig()
	logger := cliLogger("[send] ")

	vars, err := parseVarFlags(sendFlags.vars)
	if err != nil {
		return err
	}

	sess, err := openSession(ctx, config, logger)
	if err != nil {
		return err
	}
	defer sess.Close()

	msg := api.TemplateMessage{To: sendFlags.to, TemplateSID: sendFlags.template, Variables: vars}
	if err := newClient(config, sess, logger).SendTemplate(ctx, msg); err != nil {
		return fmt.Errorf("send failed: %s", api.Message(err))
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Template %s sent to %s.\n", strings.TrimSpace(sendFlags.template), sendFlags.to)
	return nil
}
