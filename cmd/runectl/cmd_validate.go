package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ahrav/go-rune/internal/application"
	"github.com/ahrav/go-rune/internal/domain"
)

var validateCmd = &cobra.Command{
	Use:   "validate <chain-file>...",
	Short: "Compile chain files and print their resolved nodes",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runValidate,
}

func runValidate(cmd *cobra.Command, args []string) error {
	loader, err := application.NewChainLoader[*domain.RuneExecutionContext](application.NewDefaultRegistry())
	if err != nil {
		return fmt.Errorf("create loader: %w", err)
	}

	out := cmd.OutOrStdout()
	var errs []error
	for _, path := range args {
		loaded, err := loader.LoadFromFile(cmd.Context(), path)
		if err != nil {
			fmt.Fprintf(out, "%s: invalid\n", path)
			errs = append(errs, fmt.Errorf("%s: %w", path, err))
			continue
		}

		tmpl := loaded.Template
		fmt.Fprintf(out, "%s: chain %s ok (%d nodes, %d links)\n", path, tmpl.ID(), len(tmpl.NodeIDs()), len(tmpl.Links()))
		for _, id := range tmpl.NodeIDs() {
			cfg, _ := tmpl.Configuration(id)
			fmt.Fprintf(out, "  %s %s\n", id, cfg)
		}
		for _, l := range tmpl.Links() {
			fmt.Fprintf(out, "  %s\n", l)
		}
	}
	return errors.Join(errs...)
}
