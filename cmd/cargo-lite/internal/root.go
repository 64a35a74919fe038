package internal

import (
	"os"

	"github.com/charmbracelet/log"
	"github.com/gookit/color"
	"github.com/spf13/cobra"
)

const version = "0.2.0"

var (
	colArrow   = color.HEX("#FFEB3B")
	colSuccess = color.HEX("#1976D2")
)

// Flags shared by install, build and update.
var (
	flagGit     bool
	flagHg      bool
	flagLocal   bool
	flagPkgname string
	flagForce   bool
	flagNoOpt   bool
	flagDebug   bool
	flagLTO     bool
	flagDB      string
)

var rootCmd = &cobra.Command{
	Use:     "cargo-lite",
	Short:   "cargo-lite is a minimal source package manager for Rust",
	Long:    `cargo-lite fetches package sources, builds them and their declared dependencies, and installs the produced artifacts into a shared library directory. Builds are cached by source fingerprint and toolchain version.`,
	Version: version,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if os.Getenv("CARGO_LITE_DEBUG") == "1" {
			log.SetLevel(log.DebugLevel)
		}
	},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.BoolVar(&flagGit, "git", false, "Fetch source using git")
	pf.BoolVar(&flagHg, "hg", false, "Fetch source using mercurial")
	pf.BoolVar(&flagLocal, "local", false, "Copy source from a local directory")
	pf.StringVar(&flagPkgname, "pkgname", "", "Override the inferred package name")
	pf.BoolVar(&flagForce, "force", false, "Rebuild even when fingerprint and toolchain are unchanged")
	pf.BoolVar(&flagNoOpt, "no-opt", false, "Disable optimization")
	pf.BoolVar(&flagDebug, "debug", false, "Emit debug info")
	pf.BoolVar(&flagLTO, "lto", false, "Enable link-time optimization")
	pf.StringVar(&flagDB, "db", "", "Path to the package database")
	rootCmd.MarkFlagsMutuallyExclusive("git", "hg", "local")
	rootCmd.SilenceUsage = true
}

// Execute runs the resolved command. Any fatal condition has already been
// printed by cobra; exit non-zero.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// notice prints the completion message for a successful action.
func notice(msg string) {
	colArrow.Print("-> ")
	colSuccess.Println(msg)
}
