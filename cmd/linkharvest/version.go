package main

import (
	"fmt"
	"runtime/debug"

	"github.com/spf13/cobra"
)

// Overridable at build time:
//
//	go build -ldflags "-X main.version=v1.0.0 -X main.commit=... -X main.date=..."
var (
	version = ""
	commit  = ""
	date    = ""
)

// getVersion resolves the release version, preferring the ldflags value and
// falling back to the module version stamped by the Go toolchain.
func getVersion() string {
	if version != "" {
		return version
	}
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		return info.Main.Version
	}
	return "(devel)"
}

// buildSetting returns one of the VCS settings recorded in the build info,
// or "" when the binary was built outside a checkout.
func buildSetting(key string) string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return ""
	}
	for _, s := range info.Settings {
		if s.Key == key {
			return s.Value
		}
	}
	return ""
}

func getCommit() string {
	if commit != "" {
		return commit
	}
	if rev := buildSetting("vcs.revision"); rev != "" {
		if len(rev) > 7 {
			return rev[:7]
		}
		return rev
	}
	return "unknown"
}

func getDate() string {
	if date != "" {
		return date
	}
	if ts := buildSetting("vcs.time"); ts != "" {
		return ts
	}
	return "unknown"
}

// NewVersionCmd creates the version command.
func NewVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Long:  `Print the version, commit hash, and build date of linkharvest.`,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "linkharvest version %s\n", getVersion())
			fmt.Fprintf(cmd.OutOrStdout(), "  commit: %s\n", getCommit())
			fmt.Fprintf(cmd.OutOrStdout(), "  built:  %s\n", getDate())
		},
	}
}
