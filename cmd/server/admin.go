package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"ainet/internal/auth"
	"ainet/internal/database"
	"ainet/internal/store"
)

// openStore opens the configured database (migrating it) for one-shot commands.
func openStore(ctx context.Context) (*sql.DB, *store.SQLStore, zerolog.Logger, error) {
	cfg, logger, err := bootstrap()
	if err != nil {
		return nil, nil, logger, err
	}
	db, _, err := database.Open(ctx, cfg)
	if err != nil {
		return nil, nil, logger, err
	}
	return db, store.New(db, logger), logger, nil
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, _, logger, err := openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer db.Close()
			logger.Info().Msg("schema is up to date")
			return nil
		},
	}
}

func tokenCmd() *cobra.Command {
	var (
		userID int64
		ttl    time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue an access token for a user (development)",
		RunE: func(cmd *cobra.Command, args []string) error {
			if userID <= 0 {
				return errors.New("--user-id is required")
			}
			cfg, logger, err := bootstrap()
			if err != nil {
				return err
			}
			if ttl == 0 {
				ttl = cfg.AccessTokenTTL
			}

			// 署名のみ行うのでユーザー検索は不要
			token, err := auth.NewAuthenticator(cfg.JWTSecret, nil, logger).Issue(userID, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	cmd.Flags().Int64Var(&userID, "user-id", 0, "user id to put in the token")
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "token lifetime (default ACCESS_TOKEN_TTL)")
	return cmd
}

func userCmd() *cobra.Command {
	var username, email string

	create := &cobra.Command{
		Use:   "create",
		Short: "Register a user account",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, st, _, err := openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer db.Close()

			u, err := st.CreateUser(cmd.Context(), username, email)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created user %d (%s)\n", u.ID, u.Username)
			return nil
		},
	}
	create.Flags().StringVar(&username, "username", "", "3-30 letters, digits or underscores")
	create.Flags().StringVar(&email, "email", "", "email address")
	create.MarkFlagRequired("username")
	create.MarkFlagRequired("email")

	cmd := &cobra.Command{Use: "user", Short: "Manage users"}
	cmd.AddCommand(create)
	return cmd
}

func agentCmd() *cobra.Command {
	var name, field, avatarURL string

	create := &cobra.Command{
		Use:   "create",
		Short: "Register an agent profile",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, st, _, err := openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer db.Close()

			a, err := st.CreateAgent(cmd.Context(), name, field, avatarURL)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created agent %d (%s)\n", a.ID, a.Name)
			return nil
		},
	}
	create.Flags().StringVar(&name, "name", "", "display name")
	create.Flags().StringVar(&field, "field", "", "field of expertise")
	create.Flags().StringVar(&avatarURL, "avatar-url", "", "avatar image URL")
	create.MarkFlagRequired("name")

	cmd := &cobra.Command{Use: "agent", Short: "Manage agent profiles"}
	cmd.AddCommand(create)
	return cmd
}
