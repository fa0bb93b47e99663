package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/teemow/calconnect/internal/store"
)

func newKeygenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "keygen",
		Short: "Print a new token encryption key",
		Long: `Print a random base64 encoded 32 byte key suitable for
CALCONNECT_TOKEN_ENCRYPTION_KEY.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := store.GenerateKey()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), key)
			return nil
		},
	}
}
