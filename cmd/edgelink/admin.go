package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nerrad567/edgelink-core/internal/auth"
	"github.com/nerrad567/edgelink-core/internal/edge"
	"github.com/nerrad567/edgelink-core/internal/infrastructure/config"
	"github.com/nerrad567/edgelink-core/internal/infrastructure/database"
)

// withDatabase loads the configuration, opens the migrated database and
// runs fn against it.
func withDatabase(ctx context.Context, fn func(db *database.DB) error) error {
	cfg, err := config.Load(getConfigPath())
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	db, _, err := openDatabase(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close() //nolint:errcheck // Read-mostly command, nothing to recover
	return fn(db)
}

func newUserCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage user accounts",
	}
	cmd.AddCommand(newUserAddCmd())
	return cmd
}

func newUserAddCmd() *cobra.Command {
	var (
		password string
		roleName string
		edgeID   string
	)
	cmd := &cobra.Command{
		Use:   "add <username>",
		Short: "Create a user; --edge binds the account to an edge controller",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			username := args[0]
			if !auth.IsValidUsername(username) {
				return fmt.Errorf("invalid username %q", username)
			}
			if password == "" {
				return fmt.Errorf("--password is required")
			}
			role, err := auth.ParseRole(roleName)
			if err != nil {
				return err
			}
			hash, err := auth.HashPassword(password)
			if err != nil {
				return err
			}

			return withDatabase(cmd.Context(), func(db *database.DB) error {
				u := &auth.User{
					Username:     username,
					PasswordHash: hash,
					Role:         role,
					EdgeID:       edgeID,
					IsActive:     true,
				}
				if err := auth.NewUserRepository(db.DB).Create(cmd.Context(), u); err != nil {
					return fmt.Errorf("creating user: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "created user %s (%s) role=%s\n", u.Username, u.ID, u.Role)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&password, "password", "", "account password")
	cmd.Flags().StringVar(&roleName, "role", auth.RoleOwner.String(), "guest, owner, installer or admin")
	cmd.Flags().StringVar(&edgeID, "edge", "", "edge id the account authenticates as")
	return cmd
}

func newEdgeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "edge",
		Short: "Manage edge controllers",
	}
	cmd.AddCommand(newEdgeAddCmd(), newEdgeListCmd())
	return cmd
}

func newEdgeAddCmd() *cobra.Command {
	var name string
	cmd := &cobra.Command{
		Use:   "add <id>",
		Short: "Register an edge controller",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := args[0]
			if name == "" {
				name = id
			}
			return withDatabase(cmd.Context(), func(db *database.DB) error {
				if err := edge.NewSQLiteRepository(db.DB).Create(cmd.Context(), id, name); err != nil {
					return fmt.Errorf("creating edge: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "created edge %s\n", id)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "display name (default: the id)")
	return cmd
}

func newEdgeListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List registered edge controllers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withDatabase(cmd.Context(), func(db *database.DB) error {
				states, err := edge.NewSQLiteRepository(db.DB).List(cmd.Context())
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				for _, s := range states {
					soc := "-"
					if s.Soc != nil {
						soc = fmt.Sprintf("%d%%", *s.Soc)
					}
					fmt.Fprintf(out, "%s\t%s\tsoc=%s\tip=%s\tversion=%s\n", s.ID, s.Name, soc, s.IPv4, s.Version)
				}
				return nil
			})
		},
	}
}
