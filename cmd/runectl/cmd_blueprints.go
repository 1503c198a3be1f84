package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ahrav/go-rune/internal/application"
)

var blueprintsCmd = &cobra.Command{
	Use:   "blueprints",
	Short: "List the registered blueprints and their configurations",
	Args:  cobra.NoArgs,
	RunE:  runBlueprints,
}

func runBlueprints(cmd *cobra.Command, _ []string) error {
	registry := application.NewDefaultRegistry()
	out := cmd.OutOrStdout()

	for _, id := range registry.IDs() {
		bp, err := registry.Lookup(id)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%s\n", id)
		for i, cfg := range bp.Configurations() {
			fmt.Fprintf(out, "  [%d] %s\n", i, cfg)
		}
	}
	return nil
}
