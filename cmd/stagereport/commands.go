package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/verustcode/stagereport/internal/api/handler"
	"github.com/verustcode/stagereport/internal/config"
	"github.com/verustcode/stagereport/internal/database"
	"github.com/verustcode/stagereport/internal/seed"
	"github.com/verustcode/stagereport/internal/store"
)

// seedCmd loads projects, stages and users from YAML
var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Load users, projects and stages from a YAML file",
	Long: `Load users, projects and stages into the database.

Rows are matched by id, so the same file can be loaded again after editing:
  stagereport seed --file config/seed.yaml`,
	RunE: runSeed,
}

// tokenCmd issues an API token for a user
var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Issue an API token for a user",
	RunE:  runToken,
}

func init() {
	seedCmd.Flags().String("file", "config/seed.yaml", "seed data file")

	tokenCmd.Flags().Uint("user", 0, "user id the token is issued for")
	tokenCmd.Flags().Duration("ttl", 0, "token lifetime (default: auth.token_expiry hours)")
	_ = tokenCmd.MarkFlagRequired("user")
}

func runSeed(cmd *cobra.Command, args []string) error {
	path, _ := cmd.Flags().GetString("file")

	data, err := seed.Load(path)
	if err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	s, closeDB, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer closeDB()

	counts, err := seed.Apply(s, data)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Loaded %d users, %d projects, %d stages from %s\n",
		counts.Users, counts.Projects, counts.Stages, path)
	return nil
}

func runToken(cmd *cobra.Command, args []string) error {
	userID, _ := cmd.Flags().GetUint("user")
	ttl, _ := cmd.Flags().GetDuration("ttl")

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := config.ValidateAuthConfig(&cfg.Auth); err != nil {
		return err
	}

	s, closeDB, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer closeDB()

	exists, err := s.User().Exists(userID)
	if err != nil {
		return fmt.Errorf("failed to look up user: %w", err)
	}
	if !exists {
		return fmt.Errorf("user %d not found", userID)
	}

	token, expiresAt, err := handler.NewAuthHandler(cfg.Auth, s).IssueToken(userID, ttl)
	if err != nil {
		return fmt.Errorf("failed to issue token: %w", err)
	}

	fmt.Fprintln(cmd.OutOrStdout(), token)
	fmt.Fprintf(cmd.ErrOrStderr(), "expires at %s\n", expiresAt.UTC().Format(time.RFC3339))
	return nil
}

// openStore opens the configured database for a one-shot command
func openStore(cfg *config.BootstrapConfig) (store.Store, func(), error) {
	if err := database.InitWithPath(cfg.Database.Path); err != nil {
		return nil, nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	return store.NewStore(database.Get()), func() { database.Close() }, nil
}
