package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/noah-isme/civic-portal-api/internal/models"
	"github.com/noah-isme/civic-portal-api/internal/repository"
	"github.com/noah-isme/civic-portal-api/internal/service"
	"github.com/noah-isme/civic-portal-api/pkg/config"
	"github.com/noah-isme/civic-portal-api/pkg/database"
	"github.com/noah-isme/civic-portal-api/pkg/logger"
	"github.com/noah-isme/civic-portal-api/pkg/version"
)

const appName = "portalctl"

// env opens the configured database and logger for one command run.
type env struct {
	cfg    *config.Config
	db     *sqlx.DB
	logger *zap.Logger
}

type envOpener func(ctx context.Context) (*env, func(), error)

func openEnv(ctx context.Context) (*env, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	logr, err := logger.New(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("init logger: %w", err)
	}
	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		return nil, nil, fmt.Errorf("connect postgres: %w", err)
	}
	closeFn := func() {
		_ = db.Close()
		_ = logr.Sync()
	}
	return &env{cfg: cfg, db: db, logger: logr}, closeFn, nil
}

func rootCmd() *cobra.Command {
	return newRootCmd(openEnv)
}

func newRootCmd(open envOpener) *cobra.Command {
	cmd := &cobra.Command{
		Use:           appName,
		Short:         "Operator tooling for the civic portal API",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.AddCommand(versionCmd(), migrateCmd(open), createUserCmd(open))
	return cmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "%s version %s (commit: %s)\n", appName, version.Version, version.Commit)
		},
	}
}

// runMigrations is swapped in tests.
var runMigrations = database.Migrate

func migrateCmd(open envOpener) *cobra.Command {
	var timeout time.Duration
	cmd := &cobra.Command{
		Use:   "migrate [up|down|status|version|redo|up-to|down-to] [version]",
		Short: "Run schema migrations (default: up)",
		Args:  cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			command := "up"
			if len(args) > 0 {
				command = args[0]
				args = args[1:]
			}

			e, closeFn, err := open(cmd.Context())
			if err != nil {
				return err
			}
			defer closeFn()

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()
			if err := runMigrations(ctx, e.db.DB, e.logger, command, args...); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "migrate %s: done\n", command)
			return nil
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", 2*time.Minute, "Overall migration timeout")
	return cmd
}

type createUserOptions struct {
	email    string
	fullName string
	role     string
	password string
	phone    string
	district string
}

func (o createUserOptions) request() service.CreateUserRequest {
	req := service.CreateUserRequest{
		Email:    o.email,
		FullName: o.fullName,
		Role:     models.UserRole(strings.ToUpper(strings.TrimSpace(o.role))),
		Password: o.password,
		Active:   true,
	}
	if o.phone != "" {
		req.Phone = &o.phone
	}
	if o.district != "" {
		req.District = &o.district
	}
	return req
}

func createUserCmd(open envOpener) *cobra.Command {
	var opts createUserOptions
	cmd := &cobra.Command{
		Use:   "create-user",
		Short: "Provision a staff account (the first ADMIN is created this way)",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, closeFn, err := open(cmd.Context())
			if err != nil {
				return err
			}
			defer closeFn()

			users := service.NewUserService(repository.NewUserRepository(e.db), repository.NewAuditRepository(e.db), nil, e.logger)
			user, err := users.Create(cmd.Context(), opts.request(), "", models.RequestMeta{UserAgent: appName})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created %s %s (%s)\n", user.Role, user.Email, user.ID)
			return nil
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&opts.email, "email", "", "Login email")
	flags.StringVar(&opts.fullName, "name", "", "Full name")
	flags.StringVar(&opts.role, "role", string(models.RoleAdmin), "Role: ADMIN, MLA, PA or PUBLIC")
	flags.StringVar(&opts.password, "password", "", "Initial password (min 8 characters)")
	flags.StringVar(&opts.phone, "phone", "", "Contact phone")
	flags.StringVar(&opts.district, "district", "", "District")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}
