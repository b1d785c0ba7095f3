package cmd

import (
	"fmt"
	"log"

	"github.com/spf13/cobra"

	"github.com/nilcar/leads-console/internal/devapi"
	"github.com/nilcar/leads-console/internal/ingest"
)

var seedFlags struct {
	leads         int
	adminPassword string
	userPassword  string
	randSeed      int64
}

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed demo users and leads into the development database",
	Long: `Create the "admin" and "user" accounts when missing and add generated leads
to the development database. This is useful for local testing with an empty
database. Existing accounts keep their passwords.`,
	RunE: runSeed,
}

func init() {
	rootCmd.AddCommand(seedCmd)

	seedCmd.Flags().IntVar(&seedFlags.leads, "leads", 50, "Number of leads to generate")
	seedCmd.Flags().StringVar(&seedFlags.adminPassword, "admin-password", "", "Password for a new admin account (default "+devapi.DefaultSeedPassword+")")
	seedCmd.Flags().StringVar(&seedFlags.userPassword, "user-password", "", "Password for a new user account (default "+devapi.DefaultSeedPassword+")")
	seedCmd.Flags().Int64Var(&seedFlags.randSeed, "rand-seed", 1, "Seed for the lead generator")
}

func runSeed(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	config := GetConfig()

	logger := log.New(cmd.OutOrStdout(), "[seed] ", log.LstdFlags)
	logger.Println("Seeding sample data...")

	st, err := openDevStore(config, logger)
	if err != nil {
		return err
	}
	defer st.Close()

	res, err := devapi.Seed(ctx, st, devapi.SeedOptions{
		AdminPassword: seedFlags.adminPassword,
		UserPassword:  seedFlags.userPassword,
	})
	if err != nil {
		return fmt.Errorf("failed to seed users: %w", err)
	}
	logger.Printf("Created %d users", res.UsersCreated)

	if seedFlags.leads > 0 {
		eventBus := openBus(config, logger)
		defer eventBus.Close()

		importer := ingest.NewImporter(ingest.NewParser(), st, eventBus, logger)
		out := importer.ImportLeads(ctx, ingest.NewGenerator(seedFlags.randSeed).Leads(seedFlags.leads))
		for _, e := range out.Errors {
			logger.Printf("Failed to save sample lead: %s", e)
		}
		logger.Printf("Created %d leads", out.Ingested)
	}

	logger.Println("Seeding completed")
	return nil
}
