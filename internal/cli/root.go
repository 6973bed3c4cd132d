// Package cli implements the tvtime device commands.
package cli

import (
	"database/sql"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/dukerupert/tvtime/internal/database"
	"github.com/dukerupert/tvtime/internal/gateway"
	"github.com/dukerupert/tvtime/internal/logging"
	"github.com/dukerupert/tvtime/internal/store"
)

var (
	dbPath     string
	formatFlag string
)

// RootCmd is the top-level command.
var RootCmd = &cobra.Command{
	Use:   "tvtime",
	Short: "Household screen-time tracker",
	Long:  "Tracks each child's screen-time balance, adds a daily bonus and syncs the family across devices.",
}

func init() {
	RootCmd.PersistentFlags().StringVarP(&dbPath, "db", "d", "", "Database path (default: $TVTIME_DB_PATH or tvtime.db)")
	RootCmd.PersistentFlags().StringVarP(&formatFlag, "format", "f", "text", "Output format: json or text")
}

func getDBPath() string {
	if dbPath != "" {
		return dbPath
	}
	if env := os.Getenv("TVTIME_DB_PATH"); env != "" {
		return env
	}
	return "tvtime.db"
}

// openLocal opens the device database behind a gateway with no remote
// document, for commands that only touch local state.
func openLocal() (*sql.DB, *gateway.Gateway, error) {
	db, err := database.Open(getDBPath())
	if err != nil {
		return nil, nil, err
	}
	logger := logging.New(os.Stderr, os.Getenv("TVTIME_LOG_LEVEL"), os.Getenv("TVTIME_LOG_FORMAT"))
	return db, gateway.New(store.NewKVStore(db), nil, nil, logger), nil
}

func exitErr(msg string, err error) {
	fmt.Fprintf(os.Stderr, "error: %s: %v\n", msg, err)
	os.Exit(1)
}
