package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	familyCmd := &cobra.Command{
		Use:   "family",
		Short: "Family document management",
	}

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Print this device's family id",
		Run:   runFamilyShow,
	}

	joinCmd := &cobra.Command{
		Use:   "join <family-id>",
		Short: "Sync with another device's family on next start",
		Args:  cobra.ExactArgs(1),
		Run:   runFamilyJoin,
	}

	familyCmd.AddCommand(showCmd, joinCmd)
	RootCmd.AddCommand(familyCmd)
}

func runFamilyShow(cmd *cobra.Command, args []string) {
	db, gw, err := openLocal()
	if err != nil {
		exitErr("open database", err)
	}
	defer db.Close()

	id, err := gw.FamilyID()
	if err != nil {
		exitErr("family id", err)
	}

	out := cmd.OutOrStdout()
	if formatFlag == "json" {
		b, _ := json.MarshalIndent(map[string]string{"family_id": id}, "", "  ")
		fmt.Fprintln(out, string(b))
		return
	}
	fmt.Fprintln(out, id)
}

func runFamilyJoin(cmd *cobra.Command, args []string) {
	db, gw, err := openLocal()
	if err != nil {
		exitErr("open database", err)
	}
	defer db.Close()

	if err := gw.SetFamilyID(args[0]); err != nil {
		exitErr("join family", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "joined family %s; restart the device to sync it\n", args[0])
}
