package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"

	"github.com/dukerupert/prepper/internal/config"
	"github.com/dukerupert/prepper/internal/database"
	"github.com/dukerupert/prepper/internal/logging"
)

// app carries what every subcommand needs. It is filled in by the root
// command's PersistentPreRunE.
type app struct {
	dbPath string
	cfg    *config.Config
	logger *slog.Logger
	db     *sqlx.DB
	stdin  *bufio.Reader
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "prepperadmin",
		Short:         "Operator tool for a prepper database",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Read()
			if err != nil {
				return err
			}
			a.cfg = cfg
			if a.dbPath == "" {
				a.dbPath = cfg.DBPath
			}
			a.logger = logging.New(cmd.ErrOrStderr(), cfg.LogLevel, cfg.LogFormat)
			a.stdin = bufio.NewReader(cmd.InOrStdin())
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if a.db != nil {
				return a.db.Close()
			}
			return nil
		},
	}
	root.PersistentFlags().StringVar(&a.dbPath, "db", "", "database path (default from config)")

	root.AddCommand(newUsersCmd(a))
	root.AddCommand(newBackupCmd(a))
	root.AddCommand(newMigrateCmd(a))
	return root
}

// open opens the database once, applying pending migrations.
func (a *app) open() (*sqlx.DB, error) {
	if a.db != nil {
		return a.db, nil
	}
	db, err := database.Open(a.dbPath)
	if err != nil {
		return nil, err
	}
	a.db = db
	return db, nil
}

// readPassword reads one line from stdin, prompting on out.
func (a *app) readPassword(out io.Writer, prompt string) (string, error) {
	fmt.Fprint(out, prompt)
	line, err := a.stdin.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read password: %w", err)
	}
	password := strings.TrimRight(line, "\r\n")
	if password == "" {
		return "", errors.New("no password given")
	}
	return password, nil
}
