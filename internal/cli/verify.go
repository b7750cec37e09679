package cli

import (
	"errors"
	"fmt"

	"github.com/example/msf-auditor/internal/report"
	"github.com/spf13/cobra"
)

func newVerifyCmd() *cobra.Command {
	var sigPath string
	var keyringPath string

	cmd := &cobra.Command{
		Use:   "verify <report>",
		Short: "Verify a report's checksum sidecar and optionally a detached PGP signature",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]

			if err := report.VerifyChecksum(path); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✓ Checksum OK: %s\n", path)

			if sigPath == "" {
				return nil
			}
			if keyringPath == "" {
				return errors.New("--keyring is required when --signature is given")
			}

			signer, err := report.VerifySignature(path, sigPath, keyringPath)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✓ Signature OK: signed by %s\n", signer)
			return nil
		},
	}

	cmd.Flags().StringVar(&sigPath, "signature", "", "Detached PGP signature file (armored or binary)")
	cmd.Flags().StringVar(&keyringPath, "keyring", "", "Keyring file holding the signer's public key")

	return cmd
}
