// Command import-groups loads team groups from a CSV file, assigning team numbers in file order.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/desafio-dunas/registration-api/internal/config"
	"github.com/desafio-dunas/registration-api/internal/logging"
	"github.com/desafio-dunas/registration-api/internal/models"
	"github.com/desafio-dunas/registration-api/internal/services"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var (
		file    string
		dryRun  bool
		timeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "import-groups",
		Short: "Import team groups from a CSV file",
		Long: `Reads a CSV with the columns name, channel, contact and optionally
contact_email and contact_phone. Each new group gets the next team number.
Groups whose name already exists are skipped.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.OutOrStdout(), file, dryRun, timeout)
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "CSV file with the groups")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Parse and print the groups without writing")
	cmd.Flags().DurationVar(&timeout, "timeout", 5*time.Minute, "Time allowed for the whole import")
	_ = cmd.MarkFlagRequired("file")

	return cmd
}

func run(out io.Writer, file string, dryRun bool, timeout time.Duration) error {
	if err := config.LoadConfig(); err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := logging.InitLogger(); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer func() { _ = logging.Logger.Sync() }()

	f, err := os.Open(file)
	if err != nil {
		return fmt.Errorf("failed to open group file: %w", err)
	}
	defer f.Close()

	groups, err := services.ParseGroupCSV(f)
	if err != nil {
		return fmt.Errorf("failed to parse %s: %w", file, err)
	}

	if dryRun {
		return printJSON(out, groups)
	}

	config.InitMongoDB()
	config.InitRedis()
	defer func() { _ = config.Redis.Close() }()

	cfg := config.AppConfig
	db := config.MongoDB

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	allocator := services.NewSequenceAllocator(db.Collection(cfg.CounterCollection), logging.Logger)
	groupsCollection := db.Collection(cfg.TeamGroupCollection)
	if _, err := allocator.Seed(ctx, models.TeamNumberCounter, groupsCollection, "team_number"); err != nil {
		return fmt.Errorf("failed to seed team number counter: %w", err)
	}

	groupService := services.NewTeamGroupService(groupsCollection, allocator, config.Redis, cfg.GroupCacheTTL, logging.Logger)

	result, err := services.ImportGroups(ctx, groupService, groups, logging.Logger)
	if err != nil {
		return fmt.Errorf("group import interrupted: %w", err)
	}
	if err := printJSON(out, result); err != nil {
		return err
	}

	if len(result.Failed) > 0 {
		logging.Logger.Warn("group import finished with failures", zap.Int("failed", len(result.Failed)))
		return fmt.Errorf("%d groups failed to import", len(result.Failed))
	}
	return nil
}

func printJSON(out io.Writer, v interface{}) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
