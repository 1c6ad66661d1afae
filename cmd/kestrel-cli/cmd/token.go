package cmd

import (
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/kestrelchat/kestrel/internal/token"
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Work with relay access tokens",
}

var tokenInspectCmd = &cobra.Command{
	Use:   "inspect [token]",
	Short: "Decode a token and print its claims",
	Long: `Decode a token and print its claims without verifying the tag.

The token is read from the first argument, or from stdin when no
argument is given. Verification requires the issuing server's key, so
this command only reports what the token claims about itself.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		raw, err := readToken(args)
		if err != nil {
			return err
		}

		t, err := token.Decode(raw)
		if err != nil {
			return err
		}

		expires := time.Unix(t.ExpirationTime, 0).UTC()
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Username:   %s\n", t.Username)
		fmt.Fprintf(out, "Expires:    %s", expires.Format(time.RFC3339))
		if time.Now().After(expires) {
			fmt.Fprint(out, " (expired)")
		}
		fmt.Fprintln(out)
		fmt.Fprintf(out, "Nonce:      %s\n", hex.EncodeToString(t.Nonce))
		fmt.Fprintf(out, "MAC:        %s\n", hex.EncodeToString(t.MAC))
		return nil
	},
}

func readToken(args []string) (string, error) {
	if len(args) == 1 {
		return args[0], nil
	}
	raw, err := io.ReadAll(os.Stdin)
	if err != nil {
		return "", fmt.Errorf("failed to read token from stdin: %w", err)
	}
	s := strings.TrimSpace(string(raw))
	if s == "" {
		return "", fmt.Errorf("no token provided")
	}
	return s, nil
}

func init() {
	tokenCmd.AddCommand(tokenInspectCmd)
	rootCmd.AddCommand(tokenCmd)
}
