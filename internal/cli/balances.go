package cli

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/dukerupert/tvtime/internal/ledger"
)

func init() {
	cmd := &cobra.Command{
		Use:   "balances",
		Short: "Print each child's stored balance",
		Run:   runBalances,
	}

	RootCmd.AddCommand(cmd)
}

type balance struct {
	Name      string `json:"name"`
	Minutes   int    `json:"minutes"`
	Formatted string `json:"formatted"`
}

func runBalances(cmd *cobra.Command, args []string) {
	db, gw, err := openLocal()
	if err != nil {
		exitErr("open database", err)
	}
	defer db.Close()

	snap, err := gw.Load()
	if err != nil {
		exitErr("load", err)
	}

	rows := make([]balance, 0, len(snap.Children))
	for _, p := range snap.Children {
		rows = append(rows, balance{Name: p.Name, Minutes: p.TimeBalance, Formatted: ledger.FormatDuration(p.TimeBalance)})
	}

	out := cmd.OutOrStdout()
	if formatFlag == "json" {
		b, _ := json.MarshalIndent(rows, "", "  ")
		fmt.Fprintln(out, string(b))
		return
	}
	if len(rows) == 0 {
		fmt.Fprintln(out, "no children")
		return
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	for _, r := range rows {
		fmt.Fprintf(tw, "%s\t%s\n", r.Name, r.Formatted)
	}
	tw.Flush()
	if snap.LastMidnightCheck != "" {
		fmt.Fprintf(out, "bonus applied through %s\n", snap.LastMidnightCheck)
	}
}
