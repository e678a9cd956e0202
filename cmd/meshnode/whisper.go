package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/whispurrnet/overlay/control"
)

var (
	whisperControlAddr string
	whisperIntent      string
)

var whisperCmd = &cobra.Command{
	Use:   "whisper <peer_id> <content>",
	Short: "Ask a running node to send a Whisper to one peer",
	Args:  cobra.ExactArgs(2),
	RunE:  runWhisper,
}

func init() {
	rootCmd.AddCommand(whisperCmd)
	whisperCmd.Flags().StringVar(&whisperControlAddr, "control-addr", "127.0.0.1:7777", "control socket address of the running node")
	whisperCmd.Flags().StringVar(&whisperIntent, "intent", "default", "intent tag attached to the message")
}

func runWhisper(cmd *cobra.Command, args []string) error {
	client := control.NewClient(whisperControlAddr)
	delivered, err := client.Whisper(context.Background(), args[0], args[1], whisperIntent)
	if err != nil {
		return fmt.Errorf("whisper: %w", err)
	}
	if !delivered {
		return fmt.Errorf("whisper: peer %s did not accept delivery", args[0])
	}
	fmt.Println("delivered")
	return nil
}
