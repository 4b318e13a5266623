// Command steward runs budget-bounded autonomous task pipelines and
// inspects the audit trail they leave behind.
package main

import (
	"database/sql"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"

	"github.com/stewardrun/steward/pkg/config"
	"github.com/stewardrun/steward/pkg/ledger"

	_ "github.com/lib/pq" // Postgres driver
)

func main() {
	os.Exit(Run(os.Args, os.Stdout, os.Stderr))
}

// Run is the entrypoint for testing.
func Run(args []string, stdout, stderr io.Writer) int {
	if len(args) < 2 {
		usage(stderr)
		return 2
	}

	switch args[1] {
	case "run":
		return runCmd(args[2:], stdout, stderr)
	case "replay":
		return replayCmd(args[2:], stdout, stderr)
	case "export":
		return exportCmd(args[2:], stdout, stderr)
	case "help", "-h", "--help":
		usage(stdout)
		return 0
	default:
		_, _ = fmt.Fprintf(stderr, "steward: unknown command %q\n", args[1])
		usage(stderr)
		return 2
	}
}

func usage(w io.Writer) {
	_, _ = fmt.Fprintln(w, `Usage: steward <command> [flags]

Commands:
  run      execute an objective under policy and budget limits
  replay   rebuild and verify the audit trail from its store
  export   bundle the audit trail into an evidence pack`)
}

func newLogger(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(os.Stderr).With().Timestamp().Logger().Level(lvl)
}

// openStore selects the ledger backend from config. The caller owns the
// returned store and must Close it.
func openStore(cfg *config.Config) (ledger.Store, error) {
	switch cfg.Ledger.Backend {
	case "", "memory":
		return ledger.NewMemoryStore(), nil
	case "sqlite":
		path := cfg.Ledger.SQLitePath
		if path == "" {
			path = "steward.db"
		}
		return ledger.NewSQLiteStore(path)
	case "postgres":
		db, err := sql.Open("postgres", cfg.Ledger.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		store := ledger.NewPostgresStore(db)
		if err := store.Migrate(); err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown ledger backend %q", cfg.Ledger.Backend)
	}
}
