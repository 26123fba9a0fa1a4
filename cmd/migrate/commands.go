package main

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/golang-migrate/migrate/v4"
	"github.com/spf13/cobra"

	"accountx/internal/infrastructure/config"
	"accountx/internal/infrastructure/postgres"
	"accountx/internal/ports"
)

type migrator interface {
	Up() error
	Steps(n int) error
	Migrate(version uint) error
	Version() (version uint, dirty bool, err error)
	Force(version int) error
	Close() (source error, database error)
}

type opener func(dsn string) (migrator, error)

func openMigrator(dsn string) (migrator, error) {
	m, err := postgres.NewMigrator(dsn)
	if err != nil {
		return nil, err
	}
	return m, nil
}

type cli struct {
	open   opener
	logger ports.Logger
	env    string
	dsn    string
}

func newRootCmd(open opener, logger ports.Logger) *cobra.Command {
	c := &cli{open: open, logger: logger}
	root := &cobra.Command{
		Use:               "migrate",
		Short:             "Database migration tool for the accountx postgres store",
		SilenceUsage:      true,
		PersistentPreRunE: c.loadConfig,
	}
	root.PersistentFlags().StringVarP(&c.env, "env", "e", "dev", "Environment to use (dev, test, prod)")
	root.PersistentFlags().StringVar(&c.dsn, "dsn", "", "Database URL; overrides DATABASE_URL and DB_*")

	root.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply all pending migrations",
			Args:  cobra.NoArgs,
			RunE:  c.runUp,
		},
		&cobra.Command{
			Use:   "down [steps]",
			Short: "Roll back migrations (default: 1)",
			Args:  cobra.MaximumNArgs(1),
			RunE:  c.runDown,
		},
		&cobra.Command{
			Use:   "goto <version>",
			Short: "Migrate to a specific version",
			Args:  cobra.ExactArgs(1),
			RunE:  c.runGoto,
		},
		&cobra.Command{
			Use:   "version",
			Short: "Show the current migration version",
			Args:  cobra.NoArgs,
			RunE:  c.runVersion,
		},
		&cobra.Command{
			Use:   "force <version>",
			Short: "Force the migration version without running migrations",
			Args:  cobra.ExactArgs(1),
			RunE:  c.runForce,
		},
	)
	return root
}

func (c *cli) loadConfig(cmd *cobra.Command, _ []string) error {
	if c.dsn != "" {
		return nil
	}
	cfg, err := config.Load(c.env)
	if err != nil {
		return err
	}
	c.dsn = cfg.Database.ConnectionString()
	return nil
}

func (c *cli) withMigrator(cmd *cobra.Command, fn func(m migrator) error) error {
	m, err := c.open(c.dsn)
	if err != nil {
		return err
	}
	defer m.Close()
	return fn(m)
}

func (c *cli) runUp(cmd *cobra.Command, _ []string) error {
	return c.withMigrator(cmd, func(m migrator) error {
		err := m.Up()
		switch {
		case errors.Is(err, migrate.ErrNoChange):
			c.logger.Info(cmd.Context(), "no migrations to apply")
		case err != nil:
			return fmt.Errorf("migration up failed: %w", err)
		default:
			c.logger.Info(cmd.Context(), "migration up completed")
		}
		return nil
	})
}

func (c *cli) runDown(cmd *cobra.Command, args []string) error {
	steps := 1
	if len(args) > 0 {
		n, err := strconv.Atoi(args[0])
		if err != nil || n < 1 {
			return fmt.Errorf("invalid step count %q", args[0])
		}
		steps = n
	}
	return c.withMigrator(cmd, func(m migrator) error {
		err := m.Steps(-steps)
		switch {
		case errors.Is(err, migrate.ErrNoChange):
			c.logger.Info(cmd.Context(), "no migrations to roll back")
		case err != nil:
			return fmt.Errorf("migration down failed: %w", err)
		default:
			c.logger.Info(cmd.Context(), "migration down completed", "steps", steps)
		}
		return nil
	})
}

func (c *cli) runGoto(cmd *cobra.Command, args []string) error {
	version, err := strconv.ParseUint(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid version %q", args[0])
	}
	return c.withMigrator(cmd, func(m migrator) error {
		err := m.Migrate(uint(version))
		if err != nil && !errors.Is(err, migrate.ErrNoChange) {
			return fmt.Errorf("migration goto failed: %w", err)
		}
		c.logger.Info(cmd.Context(), "migrated", "version", version)
		return nil
	})
}

func (c *cli) runVersion(cmd *cobra.Command, _ []string) error {
	return c.withMigrator(cmd, func(m migrator) error {
		version, dirty, err := m.Version()
		if errors.Is(err, migrate.ErrNilVersion) {
			cmd.Println("no migrations applied yet")
			return nil
		}
		if err != nil {
			return fmt.Errorf("read version: %w", err)
		}
		if dirty {
			cmd.Printf("%d (dirty)\n", version)
		} else {
			cmd.Printf("%d\n", version)
		}
		return nil
	})
}

func (c *cli) runForce(cmd *cobra.Command, args []string) error {
	version, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("invalid version %q", args[0])
	}
	return c.withMigrator(cmd, func(m migrator) error {
		if err := m.Force(version); err != nil {
			return fmt.Errorf("migration force failed: %w", err)
		}
		c.logger.Info(cmd.Context(), "migration version forced", "version", version)
		return nil
	})
}
