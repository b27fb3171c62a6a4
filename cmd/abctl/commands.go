package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"pushnami/api/config"
	"pushnami/api/database"
	"pushnami/api/logger"
	"pushnami/api/services"
	"pushnami/api/store"
)

var (
	commandTimeout time.Duration
	migrateTarget  int
	adminEmail     string
	adminPassword  string

	rootCmd = &cobra.Command{
		Use:           "abctl",
		Short:         "Operator tooling for the A/B testing API",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	migrateCmd = &cobra.Command{
		Use:   "migrate",
		Short: "Manage the PostgreSQL schema",
	}
	migrateUpCmd = &cobra.Command{
		Use:   "up",
		Short: "Apply every pending migration",
		RunE:  runMigrateUp,
	}
	migrateDownCmd = &cobra.Command{
		Use:   "down",
		Short: "Roll back migrations down to --to",
		RunE:  runMigrateDown,
	}
	migrateStatusCmd = &cobra.Command{
		Use:   "status",
		Short: "Print the applied schema version",
		RunE:  runMigrateStatus,
	}

	seedCmd = &cobra.Command{
		Use:   "seed",
		Short: "Insert the default feature toggles that do not exist yet",
		RunE:  runSeed,
	}

	adminCmd = &cobra.Command{
		Use:   "admin",
		Short: "Manage admin accounts",
	}
	adminCreateCmd = &cobra.Command{
		Use:   "create",
		Short: "Create an admin account",
		RunE:  runAdminCreate,
	}
)

func init() {
	rootCmd.PersistentFlags().DurationVar(&commandTimeout, "timeout", 30*time.Second, "overall timeout for the command")

	migrateDownCmd.Flags().IntVar(&migrateTarget, "to", 0, "schema version to roll back to")
	migrateCmd.AddCommand(migrateUpCmd, migrateDownCmd, migrateStatusCmd)

	adminCreateCmd.Flags().StringVar(&adminEmail, "email", "", "admin email address")
	adminCreateCmd.Flags().StringVar(&adminPassword, "password", "", "admin password (defaults to $ABCTL_ADMIN_PASSWORD)")
	_ = adminCreateCmd.MarkFlagRequired("email")
	adminCmd.AddCommand(adminCreateCmd)

	rootCmd.AddCommand(migrateCmd, seedCmd, adminCmd)
}

// session opens the database named by the environment for one command.
type session struct {
	cfg *config.Config
	log *logger.Logger
	db  *database.DBClient
}

func openSession() (*session, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	log, err := logger.New(cfg.AppEnv)
	if err != nil {
		return nil, err
	}
	if cfg.StoreDriver != "postgres" {
		return nil, fmt.Errorf("abctl requires STORE_DRIVER=postgres, got %q", cfg.StoreDriver)
	}
	db, err := database.NewPostgresDB(cfg, log)
	if err != nil {
		return nil, err
	}
	return &session{cfg: cfg, log: log, db: db}, nil
}

func (s *session) close() {
	s.db.Close()
	s.log.Sync()
}

func withSession(cmd *cobra.Command, fn func(ctx context.Context, s *session) error) error {
	s, err := openSession()
	if err != nil {
		return err
	}
	defer s.close()

	ctx, cancel := context.WithTimeout(cmd.Context(), commandTimeout)
	defer cancel()
	return fn(ctx, s)
}

func runMigrateUp(cmd *cobra.Command, _ []string) error {
	return withSession(cmd, func(ctx context.Context, s *session) error {
		version, err := database.MigrateUp(ctx, s.db.DB, s.log)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "schema at version %d\n", version)
		return nil
	})
}

func runMigrateDown(cmd *cobra.Command, _ []string) error {
	if migrateTarget < 0 {
		return fmt.Errorf("--to must not be negative")
	}
	return withSession(cmd, func(ctx context.Context, s *session) error {
		version, err := database.MigrateDown(ctx, s.db.DB, migrateTarget, s.log)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "schema at version %d\n", version)
		return nil
	})
}

func runMigrateStatus(cmd *cobra.Command, _ []string) error {
	return withSession(cmd, func(ctx context.Context, s *session) error {
		version, err := database.CurrentVersion(ctx, s.db.DB)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "schema at version %d\n", version)
		return nil
	})
}

func runSeed(cmd *cobra.Command, _ []string) error {
	return withSession(cmd, func(ctx context.Context, s *session) error {
		toggles := services.NewToggles(store.NewToggleStore(s.db.DB), s.log)
		created, err := toggles.Seed(ctx, services.DefaultToggles)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "seeded %d of %d toggles\n", created, len(services.DefaultToggles))
		return nil
	})
}

func runAdminCreate(cmd *cobra.Command, _ []string) error {
	password := adminPassword
	if password == "" {
		password = os.Getenv("ABCTL_ADMIN_PASSWORD")
	}
	return withSession(cmd, func(ctx context.Context, s *session) error {
		auth := services.NewAuth(store.NewAdminStore(s.db.DB), s.cfg.JWTSecret, s.cfg.JWTTTL, s.log)
		admin, err := auth.CreateAdmin(ctx, adminEmail, password)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "created admin %s (%s)\n", admin.Email, admin.ID)
		return nil
	})
}
