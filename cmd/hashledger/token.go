package main

import (
	"errors"
	"fmt"

	"github.com/jmerrifield20/hashledger/internal/auth"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var tokenCmd = &cobra.Command{
	Use:   "token <subject>",
	Short: "Mint a writer token for POST /api/v1/ledger/records",
	Long: `Token signs a bearer token carrying the ledger:append scope with
auth.writer_secret (env HASHLEDGER_AUTH_WRITER_SECRET).`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		secret := viper.GetString("auth.writer_secret")
		if secret == "" {
			return errors.New("auth.writer_secret is not set")
		}
		tokens := auth.NewTokenIssuer([]byte(secret), viper.GetString("auth.issuer"), viper.GetDuration("auth.token_ttl"))
		tok, err := tokens.Issue(args[0])
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), tok)
		return nil
	},
}
