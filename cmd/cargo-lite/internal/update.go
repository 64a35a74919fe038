package internal

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"cargolite/internal/build"
)

var updateCmd = &cobra.Command{
	Use:   "update [package]",
	Short: "Re-fetch and rebuild an installed package",
	Long: `Update pulls fresh sources for an already-fetched package and
rebuilds it. With no argument the package named after the current directory
is updated.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runUpdate,
}

func init() {
	rootCmd.AddCommand(updateCmd)
}

func runUpdate(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	builder, err := newBuilder(ctx)
	if err != nil {
		return err
	}
	defer builder.Close()

	name := flagPkgname
	if len(args) > 0 {
		name = args[0]
	}
	if name == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return err
		}
		name = build.InferName(cwd)
	}

	artifacts, err := builder.Update(ctx, name, buildOptions(false))
	if err != nil {
		return err
	}
	if err := builder.Store.Save(); err != nil {
		return err
	}
	notice(fmt.Sprintf("Updated %s (%d artifact(s)).", name, len(artifacts)))
	return nil
}
