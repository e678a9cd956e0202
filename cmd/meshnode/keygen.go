package main

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/whispurrnet/overlay/identity"
)

var keygenCmd = &cobra.Command{
	Use:   "keygen",
	Short: "Generate a fresh ephemeral identity and print it",
	Long: `Generates a node id and X25519/Ed25519 key pair the way a node does
at startup, and prints them for out-of-band exchange with a peer (e.g.
pasting a public key into the other side's seed-peer configuration).
Nothing printed here is ever persisted by meshnode itself.`,
	RunE: runKeygen,
}

func init() {
	rootCmd.AddCommand(keygenCmd)
}

type keygenOutput struct {
	NodeID        string `json:"node_id"`
	PublicKey     string `json:"public_key"`
	SigningPublic string `json:"signing_public_key"`
}

func runKeygen(cmd *cobra.Command, args []string) error {
	nodeID, err := identity.GenerateNodeID()
	if err != nil {
		return fmt.Errorf("generate node id: %w", err)
	}
	keys, err := identity.GenerateKeyPair()
	if err != nil {
		return fmt.Errorf("generate key pair: %w", err)
	}

	out := keygenOutput{
		NodeID:        nodeID,
		PublicKey:     hex.EncodeToString(keys.PublicBytes()),
		SigningPublic: hex.EncodeToString(keys.SigningPublicKey()),
	}
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal identity: %w", err)
	}
	_, err = os.Stdout.Write(append(data, '\n'))
	return err
}
