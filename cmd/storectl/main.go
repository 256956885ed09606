/*
Command storectl is the operator-facing CLI for StoreSpec manifests.
Grounded on the teacher's cmd/warren root command structure (a bare
cobra.Command with persistent log flags and subcommands registered via
init()), generalized to a manifest-only tool: SPEC_FULL.md's §1 puts the
endpoint/peering/transport layer out of scope, so there is no manager to
dial the way the teacher's applyCmd dials one over gRPC. storectl instead
validates and resolves manifests locally, the way a CLI built against an
embeddable library (rather than a network service) idiomatically would.
*/
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/cuemby/storebroker/pkg/log"
)

var Version = "dev"

var rootCmd = &cobra.Command{
	Use:     "storectl",
	Short:   "storectl inspects and validates StoreSpec manifests",
	Version: Version,
}

func init() {
	rootCmd.PersistentFlags().String("log-level", "warn", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-json", false, "Output logs in JSON format")
	cobra.OnInitialize(initLogging)
}

func initLogging() {
	level, _ := rootCmd.PersistentFlags().GetString("log-level")
	jsonOut, _ := rootCmd.PersistentFlags().GetBool("log-json")
	log.Init(log.Config{Level: log.Level(level), JSONOutput: jsonOut})
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
