package main

import (
	"encoding/json"
	"fmt"

	"github.com/jmerrifield20/hashledger/internal/client"
	"github.com/spf13/cobra"
)

var (
	appendURL   string
	appendToken string
)

var appendCmd = &cobra.Command{
	Use:   "append <payload>",
	Short: "Append a record to a running server",
	Long: `Append posts one payload to a hashledger server and prints the record
it created as JSON.

  hashledger append --url http://localhost:8080 --token "$(hashledger token ops)" "payload"`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := []client.Option{}
		if appendToken != "" {
			opts = append(opts, client.WithBearerToken(appendToken))
		}
		c, err := client.New(appendURL, opts...)
		if err != nil {
			return err
		}

		rec, err := c.Append(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		if err := enc.Encode(rec); err != nil {
			return fmt.Errorf("encode record: %w", err)
		}
		return nil
	},
}

func init() {
	appendCmd.Flags().StringVar(&appendURL, "url", "http://localhost:8080", "hashledger server base URL")
	appendCmd.Flags().StringVar(&appendToken, "token", "", "writer bearer token")
}
