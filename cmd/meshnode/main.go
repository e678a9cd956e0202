// Command meshnode runs a single overlay peer: ephemeral identity, dual
// direct/relay transport, gossip and resonance propagation, health and
// metrics endpoints, and a local control socket for the whisper/resonate
// subcommands below to reach a node already running in another process.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "meshnode",
	Short: "Ephemeral peer-to-peer overlay node",
	Long: `meshnode runs and drives a single node of the overlay mesh: ephemeral
key agreement, direct/relay dual transport, gossip propagation, and
resonance-based message routing.`,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	// Subcommands register themselves in their own files:
	// - run.go: runCmd
	// - keygen.go: keygenCmd
	// - whisper.go: whisperCmd
	// - resonate.go: resonateCmd
}
