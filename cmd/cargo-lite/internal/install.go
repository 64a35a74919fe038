package internal

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"cargolite/internal/build"
)

var installCmd = &cobra.Command{
	Use:   "install [path]",
	Short: "Fetch, build and install a package",
	Long: `Install fetches a package's source tree, installs its declared
dependencies, builds it, and copies the produced artifacts into the library
directory. With no path the package in the current directory is installed.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runInstall,
}

func init() {
	rootCmd.AddCommand(installCmd)
}

func runInstall(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	builder, err := newBuilder(ctx)
	if err != nil {
		return err
	}
	defer builder.Close()

	req := build.InstallRequest{
		Name:   flagPkgname,
		Method: methodFromFlags(),
	}
	if len(args) > 0 {
		req.Origin = args[0]
	}

	artifacts, err := builder.Install(ctx, req, buildOptions(false))
	if err != nil {
		return err
	}
	if err := builder.Store.Save(); err != nil {
		return err
	}
	notice(fmt.Sprintf("Installed %d artifact(s).", len(artifacts)))
	return nil
}
