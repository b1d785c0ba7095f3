package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/nilcar/leads-console/internal/api"
	"github.com/nilcar/leads-console/internal/lead"
	"github.com/nilcar/leads-console/internal/validate"
)

// listCmd represents the list command
var listCmd = &cobra.Command{
	Use:   "list [leads|users]",
	Short: "List leads or users",
	Long: `List leads (default) or users from the backend in a simple text format.
This command works in any terminal environment and provides an alternative
to the TUI when terminal capabilities are limited.

Filter values accept a code, a symbolic name or a label.

Examples:
  # First page, newest first
  leads-console list

  # Hot leads waiting for contact, sorted by name
  leads-console list --status WAITING_CONTACT --temperature Quente --sort name,asc

  # Third page as JSON
  leads-console list --page 2 --output json

  # Users (administrators only)
  leads-console list users`,
	Args: cobra.MaximumNArgs(1),
	RunE: runList,
}

var listFlags struct {
	search      string
	status      string
	temperature string
	portal      string
	subject     string
	sort        string
	page        int
	size        int
	output      string
}

func init() {
	rootCmd.AddCommand(listCmd)

	listCmd.Flags().StringVar(&listFlags.search, "search", "", "Free text search")
	listCmd.Flags().StringVar(&listFlags.status, "status", "", "Status filter")
	listCmd.Flags().StringVar(&listFlags.temperature, "temperature", "", "Temperature filter")
	listCmd.Flags().StringVar(&listFlags.portal, "portal", "", "Portal filter")
	listCmd.Flags().StringVar(&listFlags.subject, "subject", "", "Subject filter")
	listCmd.Flags().StringVar(&listFlags.sort, "sort", "", "Sort as field,direction (default from leads.sort)")
	listCmd.Flags().IntVar(&listFlags.page, "page", 0, "Zero-based page index")
	listCmd.Flags().IntVar(&listFlags.size, "size", 0, "Page size (default from leads.page_size)")
	listCmd.Flags().StringVarP(&listFlags.output, "output", "o", "table", "Output format: table or json")
}

// cliLogger is silent unless --verbose.
func cliLogger(prefix string) *log.Logger {
	if verbose {
		return newLogger(os.Stderr, prefix)
	}
	return newLogger(io.Discard, prefix)
}

func runList(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	config := GetConfig()
	logger := cliLogger("[list] ")

	sess, err := openSession(ctx, config, logger)
	if err != nil {
		return err
	}
	defer sess.Close()
	client := newClient(config, sess, logger)

	target := "leads"
	if len(args) > 0 {
		target = strings.ToLower(args[0])
	}
	out := cmd.OutOrStdout()
	switch target {
	case "leads":
		q, err := buildListQuery(config, logger)
		if err != nil {
			return err
		}
		return listLeads(ctx, client, q, out)
	case "users":
		return listUsers(ctx, client, out)
	default:
		return fmt.Errorf("unknown list type: %s (use 'leads' or 'users')", target)
	}
}

// buildListQuery turns the flags into a query, resolving filter values on their axes.
func buildListQuery(config Config, logger *log.Logger) (lead.Query, error) {
	q := lead.Query{
		Filters: lead.Filters{SearchText: strings.TrimSpace(listFlags.search)},
		Sort:    leadsSort(config, logger),
		Page:    listFlags.page,
		Size:    config.Leads.PageSize,
	}
	if listFlags.size > 0 {
		q.Size = listFlags.size
	}
	if q.Size <= 0 {
		q.Size = 10
	}
	if q.Size > lead.MaxPageSize {
		return q, fmt.Errorf("page size must be at most %d", lead.MaxPageSize)
	}
	if q.Page < 0 {
		return q, fmt.Errorf("--page must not be negative")
	}
	if listFlags.sort != "" {
		s, err := lead.ParseSort(listFlags.sort)
		if err != nil {
			return q, fmt.Errorf("invalid --sort: %w", err)
		}
		q.Sort = s
	}
	for field, value := range map[lead.Field]string{
		lead.FieldStatus:      listFlags.status,
		lead.FieldTemperature: listFlags.temperature,
		lead.FieldPortal:      listFlags.portal,
		lead.FieldSubject:     listFlags.subject,
	} {
		if strings.TrimSpace(value) == "" {
			continue
		}
		code, err := field.Axis().Parse(value)
		if err != nil {
			return q, fmt.Errorf("invalid --%s: %w", field, err)
		}
		q.Filters = q.Filters.With(field, code)
	}
	return q, nil
}

func listLeads(ctx context.Context, client *api.Client, q lead.Query, out io.Writer) error {
	page, err := client.ListLeads(ctx, q)
	if err != nil {
		return fmt.Errorf("failed to list leads: %s", api.Message(err))
	}

	if listFlags.output == "json" {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(page)
	}

	if len(page.Content) == 0 {
		fmt.Fprintln(out, "Nenhum lead encontrado.")
		return nil
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNOME\tVEÍCULO\tDATA\tTEMPERATURA\tSTATUS")
	for _, l := range page.Content {
		vehicle := l.Vehicle
		if strings.TrimSpace(vehicle) == "" {
			vehicle = "Não especificado"
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\n",
			l.ID, l.Name, vehicle,
			l.SendDate.Format("02/01/2006 15:04"),
			lead.Temperature.Label(l.Temperature),
			lead.Status.Label(l.Status))
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	total := int64(len(page.Content))
	if page.Page != nil {
		total = page.Page.TotalElements
	}
	pages := page.TotalPages()
	if pages < 1 {
		pages = 1
	}
	fmt.Fprintf(out, "\nPágina %d de %d · %d leads\n", q.Page+1, pages, total)
	return nil
}

func listUsers(ctx context.Context, client *api.Client, out io.Writer) error {
	users, err := client.ListUsers(ctx)
	if err != nil {
		return fmt.Errorf("failed to list users: %s", api.Message(err))
	}
	if listFlags.output == "json" {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(users)
	}
	if len(users) == 0 {
		fmt.Fprintln(out, "No users found.")
		return nil
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tUSUÁRIO\tE-MAIL\tTELEFONE\tPERFIL")
	for _, u := range users {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n", u.ID, u.Username, u.Email, u.PhoneNumber, validate.NormalizeRole(u.Role))
	}
	return tw.Flush()
}
