package cli

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/dukerupert/tvtime/internal/backup"
	"github.com/dukerupert/tvtime/internal/config"
	"github.com/dukerupert/tvtime/internal/database"
	"github.com/dukerupert/tvtime/internal/gateway"
	"github.com/dukerupert/tvtime/internal/logging"
	"github.com/dukerupert/tvtime/internal/store"
)

var keepFlag int

func init() {
	backupCmd := &cobra.Command{
		Use:   "backup",
		Short: "Encrypted database backups to S3-compatible storage",
		Long:  "Backups are sealed with $TVTIME_BACKUP_PASSPHRASE and stored under the family id in $TVTIME_S3_BUCKET.",
	}

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Upload a backup of the device database",
		Run:   runBackupRun,
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List this family's backups",
		Run:   runBackupList,
	}

	restoreCmd := &cobra.Command{
		Use:   "restore <key>",
		Short: "Replace the device database with a backup (stop the device first)",
		Args:  cobra.ExactArgs(1),
		Run:   runBackupRestore,
	}

	pruneCmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete all but the newest backups",
		Run:   runBackupPrune,
	}
	pruneCmd.Flags().IntVar(&keepFlag, "keep", -1, "Backups to keep (default: $TVTIME_BACKUP_KEEP or 14)")

	backupCmd.AddCommand(runCmd, listCmd, restoreCmd, pruneCmd)
	RootCmd.AddCommand(backupCmd)
}

func openBackup() (*sql.DB, *backup.Manager, *config.Config) {
	cfg, err := config.Load()
	if err != nil {
		exitErr("load config", err)
	}
	if !(backup.S3Config{Bucket: cfg.Backup.Bucket, AccessKey: cfg.Backup.AccessKey, SecretKey: cfg.Backup.SecretKey}).Enabled() {
		exitErr("backup", backup.ErrNotConfigured)
	}

	db, err := database.Open(getDBPath())
	if err != nil {
		exitErr("open database", err)
	}
	familyID, err := gateway.EnsureFamilyID(store.NewKVStore(db))
	if err != nil {
		db.Close()
		exitErr("family id", err)
	}

	client := backup.NewS3Client(backup.S3Config{
		Endpoint:  cfg.Backup.Endpoint,
		Bucket:    cfg.Backup.Bucket,
		Region:    cfg.Backup.Region,
		AccessKey: cfg.Backup.AccessKey,
		SecretKey: cfg.Backup.SecretKey,
	})
	logger := logging.New(os.Stderr, cfg.LogLevel, cfg.LogFormat)
	return db, backup.NewManager(client, cfg.Backup.Bucket, familyID, db, logger), cfg
}

func runBackupRun(cmd *cobra.Command, args []string) {
	db, m, cfg := openBackup()
	defer db.Close()

	key, err := m.Run(context.Background(), cfg.Backup.Passphrase)
	if err != nil {
		exitErr("backup", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), key)
}

func runBackupList(cmd *cobra.Command, args []string) {
	db, m, _ := openBackup()
	defer db.Close()

	objects, err := m.List(context.Background())
	if err != nil {
		exitErr("list backups", err)
	}

	out := cmd.OutOrStdout()
	if formatFlag == "json" {
		b, _ := json.MarshalIndent(objects, "", "  ")
		fmt.Fprintln(out, string(b))
		return
	}
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "KEY\tBYTES\tUPLOADED")
	for _, o := range objects {
		fmt.Fprintf(w, "%s\t%d\t%s\n", o.Key, o.Size, o.At.Format("2006-01-02 15:04"))
	}
	w.Flush()
}

func runBackupRestore(cmd *cobra.Command, args []string) {
	db, m, cfg := openBackup()
	defer db.Close()

	if err := m.Restore(context.Background(), args[0], cfg.Backup.Passphrase, getDBPath()); err != nil {
		exitErr("restore", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "restored %s\n", args[0])
}

func runBackupPrune(cmd *cobra.Command, args []string) {
	db, m, cfg := openBackup()
	defer db.Close()

	keep := keepFlag
	if keep < 0 {
		keep = cfg.Backup.Keep
	}
	removed, err := m.Prune(context.Background(), keep)
	if err != nil {
		exitErr("prune backups", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "removed %d backups\n", removed)
}
