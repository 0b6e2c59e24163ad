package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command for linkharvest.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "linkharvest",
		Short: "Crawler for link directories with obfuscated outbound links",
		Long: `linkharvest crawls link-directory sites and collects outbound target links.

It follows same-origin pages breadth-first, drives the sites' "load more"
endpoints the way their own client-side loaders do, and resolves links hidden
behind countdown-redirect gateway pages.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags that apply to all commands
	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")

	// Add subcommands
	cmd.AddCommand(NewCrawlCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
