package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/jmerrifield20/hashledger/internal/client"
	"github.com/jmerrifield20/hashledger/internal/ledger"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// errChainBroken makes the process exit non-zero after the result is printed.
var errChainBroken = errors.New("ledger failed verification")

var verifyURL string

var verifyCmd = &cobra.Command{
	Use:   "verify [file|-]",
	Short: "Verify an exported or served ledger",
	Long: `Verify recomputes every digest and link of a ledger.

With --url it downloads the records from a running server and audits them
locally. Otherwise it reads a JSON array of records, as served by
GET /api/v1/ledger/records, from the file argument or standard input.

  hashledger verify --url http://localhost:8080
  curl -s localhost:8080/api/v1/ledger/records | hashledger verify`,
	Args: cobra.MaximumNArgs(1),
	RunE: runVerify,
}

func init() {
	verifyCmd.Flags().StringVar(&verifyURL, "url", "", "hashledger server base URL to audit")
}

func runVerify(cmd *cobra.Command, args []string) error {
	records, err := loadRecords(cmd, args)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	err = ledger.AuditRecords(records)
	fmt.Fprintf(out, "Is ledger valid? %t\n", err == nil)
	if err != nil {
		logger.Warn("ledger verification failed", zap.Int("records", len(records)), zap.Error(err))
		fmt.Fprintln(out, err)
		return errChainBroken
	}
	return nil
}

func loadRecords(cmd *cobra.Command, args []string) ([]ledger.Record, error) {
	if verifyURL != "" {
		if len(args) > 0 {
			return nil, errors.New("--url and a file argument are mutually exclusive")
		}
		c, err := client.New(verifyURL)
		if err != nil {
			return nil, err
		}
		return c.Records(cmd.Context())
	}

	var r io.Reader = cmd.InOrStdin()
	if len(args) == 1 && args[0] != "-" {
		f, err := os.Open(args[0])
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", args[0], err)
		}
		defer f.Close()
		r = f
	}

	var records []ledger.Record
	if err := json.NewDecoder(r).Decode(&records); err != nil {
		return nil, fmt.Errorf("decode records: %w", err)
	}
	return records, nil
}
