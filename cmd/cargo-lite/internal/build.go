package internal

import (
	"context"
	"path/filepath"

	"github.com/spf13/cobra"

	"cargolite/internal/build"
)

var buildCmd = &cobra.Command{
	Use:   "build [path]",
	Short: "Build a package in place",
	Long: `Build compiles the package rooted at the given path (or the
current directory), leaving artifacts next to the sources instead of
installing them.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runBuild,
}

func init() {
	rootCmd.AddCommand(buildCmd)
}

func runBuild(cmd *cobra.Command, args []string) error {
	dir := "."
	if len(args) > 0 {
		dir = args[0]
	}
	dir, err := filepath.Abs(dir)
	if err != nil {
		return err
	}

	ctx := context.Background()
	builder, err := newBuilder(ctx)
	if err != nil {
		return err
	}
	defer builder.Close()

	name := flagPkgname
	if name == "" {
		name = build.InferName(dir)
	}
	if _, err := builder.Build(ctx, dir, name, buildOptions(true)); err != nil {
		return err
	}
	if err := builder.Store.Save(); err != nil {
		return err
	}
	notice("Build of " + name + " complete.")
	return nil
}
