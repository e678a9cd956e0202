package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/whispurrnet/overlay/control"
)

var resonateControlAddr string

var resonateCmd = &cobra.Command{
	Use:   "resonate <intent> <strength>",
	Short: "Ask a running node to broadcast a Resonance record",
	Args:  cobra.ExactArgs(2),
	RunE:  runResonate,
}

func init() {
	rootCmd.AddCommand(resonateCmd)
	resonateCmd.Flags().StringVar(&resonateControlAddr, "control-addr", "127.0.0.1:7777", "control socket address of the running node")
}

func runResonate(cmd *cobra.Command, args []string) error {
	strength, err := strconv.ParseFloat(args[1], 64)
	if err != nil {
		return fmt.Errorf("resonate: invalid strength %q: %w", args[1], err)
	}

	client := control.NewClient(resonateControlAddr)
	accepted, err := client.Resonate(context.Background(), args[0], strength)
	if err != nil {
		return fmt.Errorf("resonate: %w", err)
	}
	fmt.Printf("accepted by %d peer(s)\n", accepted)
	return nil
}
