package main

import (
	"fmt"
	"os"

	"github.com/jmerrifield20/hashledger/internal/ledger"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// version is overridden via -ldflags "-X main.version=...".
var version = "dev"

var (
	cfgFile string
	logger  = zap.NewNop()
)

// demoPayloads are appended after genesis by the demo.
var demoPayloads = []string{
	"First block after genesis",
	"Second block after genesis",
	"Third block after genesis",
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "hashledger",
	Short: "Hash-linked append-only ledger",
	Long: `hashledger maintains an in-memory, hash-linked, append-only ledger.

Run without a subcommand to build a demonstration ledger, print it and
report whether it validates.`,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
	PersistentPostRun: func(*cobra.Command, []string) { _ = logger.Sync() },
	RunE:              runDemo,
}

var demoTamper bool

var demoCmd = &cobra.Command{
	Use:   "demo",
	Short: "Build a demonstration ledger and validate it",
	Long: `Demo creates a ledger, appends three records, prints every record and
the validity result.

With --tamper it then alters the payload of record 2 in an exported copy,
without recomputing its digest, and validates that copy as well.`,
	Args: cobra.NoArgs,
	RunE: runDemo,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, _ []string) {
		fmt.Fprintln(cmd.OutOrStdout(), "hashledger", version)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ./configs/hashledger.yaml or ./hashledger.yaml)")
	demoCmd.Flags().BoolVar(&demoTamper, "tamper", false, "also validate a copy with record 2's payload altered")

	rootCmd.AddCommand(demoCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(verifyCmd)
	rootCmd.AddCommand(appendCmd)
	rootCmd.AddCommand(tokenCmd)
	rootCmd.AddCommand(versionCmd)
}

func runDemo(cmd *cobra.Command, _ []string) error {
	out := cmd.OutOrStdout()

	l := ledger.New(ledger.WithLogger(logger))
	for _, p := range demoPayloads {
		l.Append(p)
	}

	fmt.Fprintln(out, l)
	fmt.Fprintf(out, "Is ledger valid? %t\n", l.IsValid())

	if demoTamper {
		records := l.Records()
		records[2].Payload = "Tampered block"
		err := ledger.AuditRecords(records)
		if err != nil {
			logger.Debug("tampered copy rejected", zap.Error(err))
		}
		fmt.Fprintf(out, "Is tampered copy valid? %t\n", err == nil)
	}
	return nil
}
