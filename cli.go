package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/nmsalvatore/go-blog/internal/config"
)

var configPath string

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "blog",
		Short:         "A small personal blog with autosaving drafts",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to a YAML config file (default ./blog.yaml if present)")

	root.AddCommand(newServeCmd())
	root.AddCommand(newUserCmd())
	root.AddCommand(newConfigCmd())
	return root
}

// Execute runs the root command
func Execute() error {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return err
	}
	return nil
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the web server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			return serve(cfg)
		},
	}
}

func serve(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := openAccounts(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := bootstrapAdmin(db, cfg.Auth.AdminUser, cfg.Auth.AdminPass); err != nil {
		return err
	}

	posts, closeStore, err := openPostStore(ctx, db, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	blog, err := NewBlog(db, posts, cfg)
	if err != nil {
		return fmt.Errorf("creating blog: %w", err)
	}

	return blog.Serve(ctx, cfg.Server.Addr, cfg)
}

func openAccounts(cfg *config.Config) (*sql.DB, error) {
	db, err := openDB(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := initDB(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing database: %w", err)
	}
	return db, nil
}

func newUserCmd() *cobra.Command {
	user := &cobra.Command{
		Use:   "user",
		Short: "Manage accounts",
	}

	var password string
	add := &cobra.Command{
		Use:   "add <username>",
		Short: "Create an account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			db, err := openAccounts(cfg)
			if err != nil {
				return err
			}
			defer db.Close()

			u, err := createUser(db, args[0], password)
			if err != nil {
				return fmt.Errorf("adding user: %w", err)
			}
			log.Printf("created user %q (%s)", u.Username, u.ID)
			return nil
		},
	}
	add.Flags().StringVarP(&password, "password", "p", "", "password for the new account")
	add.MarkFlagRequired("password")

	user.AddCommand(add)
	return user
}

func newConfigCmd() *cobra.Command {
	cfgCmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect configuration",
	}
	cfgCmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show merged configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}

			data, err := yaml.Marshal(cfg)
			if err != nil {
				return fmt.Errorf("marshaling config: %w", err)
			}

			fmt.Fprintln(cmd.OutOrStdout(), "# Merged configuration (defaults + file + environment)")
			fmt.Fprint(cmd.OutOrStdout(), string(data))
			return nil
		},
	})
	return cfgCmd
}
