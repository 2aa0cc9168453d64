package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/ZeremItay/autohub/internal/config"
	"github.com/ZeremItay/autohub/internal/models"
	"github.com/ZeremItay/autohub/internal/services"
	"github.com/ZeremItay/autohub/internal/utils"
	"github.com/ZeremItay/autohub/pkg/logger"
	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

const configFlag = "config"

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "autohub-admin",
		Short:         "Maintenance commands for the AutoHub backend",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().String(configFlag, "", "Path to config.yaml (defaults to $CONFIG_PATH or ./config.yaml)")

	root.AddCommand(
		newMigrateCommand(),
		newCreateAdminCommand(),
		newResetPasswordCommand(),
		newGrantPointsCommand(),
		newInitConfigCommand(),
	)
	return root
}

// env is the configuration and open database shared by the commands.
type env struct {
	cfg *config.Config
	db  *gorm.DB
}

func (e *env) close() {
	if sqlDB, err := e.db.DB(); err == nil {
		sqlDB.Close()
	}
}

func openEnv(cmd *cobra.Command) (*env, error) {
	path, _ := cmd.Flags().GetString(configFlag)
	if path == "" {
		path = configPathFromEnv()
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logger.Init(cfg.Log.Level)
	utils.SetJWTSecret(cfg.JWT.Secret)

	if err := models.InitDB(&cfg.Database, cfg.Log.Level); err != nil {
		return nil, err
	}
	return &env{cfg: cfg, db: models.GetDB()}, nil
}

func newMigrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update tables and seed default roles, forums, points rules and settings",
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := openEnv(cmd)
			if err != nil {
				return err
			}
			defer e.close()

			if err := models.Migrate(e.db); err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
			if err := models.Seed(e.db); err != nil {
				return fmt.Errorf("seed: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "database migrated")
			return nil
		},
	}
}

func newCreateAdminCommand() *cobra.Command {
	var email, password, name string
	cmd := &cobra.Command{
		Use:   "create-admin",
		Short: "Create an administrator, or promote the member with that email",
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := openEnv(cmd)
			if err != nil {
				return err
			}
			defer e.close()

			profile, err := newAuthService(e).CreateAdmin(cmd.Context(), email, password, name)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "admin %s ready (id %d)\n", profile.Email, profile.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "Administrator email")
	cmd.Flags().StringVar(&password, "password", "", "Password, at least 8 characters")
	cmd.Flags().StringVar(&name, "name", "Administrator", "Display name")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func newResetPasswordCommand() *cobra.Command {
	var email, password string
	cmd := &cobra.Command{
		Use:   "reset-password",
		Short: "Set a new password and sign the member out everywhere",
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := openEnv(cmd)
			if err != nil {
				return err
			}
			defer e.close()

			if err := newAuthService(e).ResetPassword(cmd.Context(), email, password); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "password reset for %s\n", email)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "Member email")
	cmd.Flags().StringVar(&password, "password", "", "New password, at least 8 characters")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func newGrantPointsCommand() *cobra.Command {
	var email, reason string
	var points int
	cmd := &cobra.Command{
		Use:   "grant-points",
		Short: "Add points to a member, or remove them with a negative value",
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := openEnv(cmd)
			if err != nil {
				return err
			}
			defer e.close()

			var profile models.Profile
			if err := e.db.Where("email = ?", strings.ToLower(strings.TrimSpace(email))).First(&profile).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return fmt.Errorf("no member with email %s", email)
				}
				return err
			}

			// The member notification runs in process so it lands before exit.
			queue := services.NewSyncQueue()
			configSvc := services.NewSystemConfigService(e.db)
			pointsSvc := services.NewGamificationService(e.db, configSvc, queue)
			mail := services.NewMailService(services.NewMailer(&e.cfg.Mail, configSvc), services.NewEmailPreferenceService(e.db))
			jobs := services.NewJobs(mail, pointsSvc,
				services.NewNotificationService(e.db, services.GetSSEHub(), queue, configSvc),
				services.NewActivityService(e.db, services.GetSSEHub()))
			queue.SetProcessor(jobs.Process)
			defer queue.Close()

			entry, err := pointsSvc.Grant(cmd.Context(), &services.GrantPointsRequest{
				ProfileID: profile.ID,
				Points:    points,
				Reason:    reason,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%+d points for %s (transaction %d)\n", entry.Points, profile.Email, entry.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "Member email")
	cmd.Flags().IntVar(&points, "points", 0, "Points to add (negative to remove)")
	cmd.Flags().StringVar(&reason, "reason", "", "Reason shown in the member's history")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("points")
	_ = cmd.MarkFlagRequired("reason")
	return cmd
}

func newInitConfigCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "init-config",
		Short: "Write the default configuration, with environment overrides applied",
		RunE: func(cmd *cobra.Command, _ []string) error {
			path, _ := cmd.Flags().GetString(configFlag)
			if path == "" {
				path = configPathFromEnv()
			}
			if path == "" {
				path = "config.yaml"
			}
			cfg, err := config.Load(path)
			if err != nil {
				return err
			}
			if err := cfg.Save(path); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "config written to %s\n", path)
			return nil
		},
	}
}

func configPathFromEnv() string {
	return os.Getenv("CONFIG_PATH")
}

func newAuthService(e *env) *services.AuthService {
	configSvc := services.NewSystemConfigService(e.db)
	return services.NewAuthService(e.db, &e.cfg.JWT, services.NewLDAPService(&e.cfg.LDAP), configSvc, nil)
}
