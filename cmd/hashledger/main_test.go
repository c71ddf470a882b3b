package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/jmerrifield20/hashledger/internal/auth"
	"github.com/jmerrifield20/hashledger/internal/ledger"
	"github.com/jmerrifield20/hashledger/internal/server"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// execute runs the root command with args and returns its stdout.
func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	viper.Reset()
	demoTamper = false
	cfgFile = ""
	verifyURL = ""
	appendToken = ""

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&bytes.Buffer{})
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestDemo_default(t *testing.T) {
	out, err := execute(t, "")
	if err != nil {
		t.Fatalf("Execute(): %v", err)
	}

	if !strings.HasSuffix(out, "Is ledger valid? true\n") {
		t.Errorf("missing validity line:\n%s", out)
	}
	for _, p := range append([]string{ledger.GenesisPayload}, demoPayloads...) {
		if !strings.Contains(out, p) {
			t.Errorf("output missing payload %q", p)
		}
	}
	if n := strings.Count(out, "Record {"); n != 4 {
		t.Errorf("expected 4 rendered records, got %d", n)
	}
}

func TestDemo_tamper(t *testing.T) {
	out, err := execute(t, "", "demo", "--tamper")
	if err != nil {
		t.Fatalf("Execute(): %v", err)
	}
	if !strings.Contains(out, "Is ledger valid? true") {
		t.Errorf("expected original ledger to be valid:\n%s", out)
	}
	if !strings.Contains(out, "Is tampered copy valid? false") {
		t.Errorf("expected tampered copy to be invalid:\n%s", out)
	}
}

func exportedRecords(t *testing.T) []ledger.Record {
	t.Helper()
	l := ledger.New()
	for _, p := range demoPayloads {
		l.Append(p)
	}
	return l.Records()
}

func TestVerify_stdinValid(t *testing.T) {
	data, _ := json.Marshal(exportedRecords(t))

	out, err := execute(t, string(data), "verify")
	if err != nil {
		t.Fatalf("Execute(): %v", err)
	}
	if out != "Is ledger valid? true\n" {
		t.Errorf("unexpected output %q", out)
	}
}

func TestVerify_fileBroken(t *testing.T) {
	records := exportedRecords(t)
	records[2].Payload = "Tampered block"
	data, _ := json.Marshal(records)

	path := filepath.Join(t.TempDir(), "records.json")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatal(err)
	}

	out, err := execute(t, "", "verify", path)
	if !errors.Is(err, errChainBroken) {
		t.Fatalf("expected errChainBroken, got %v", err)
	}
	if !strings.HasPrefix(out, "Is ledger valid? false\n") {
		t.Errorf("unexpected output %q", out)
	}
	if !strings.Contains(out, "position 2") {
		t.Errorf("expected failing position in output %q", out)
	}
}

func TestVerify_badJSON(t *testing.T) {
	if _, err := execute(t, "not json", "verify", "-"); err == nil {
		t.Error("expected decode error")
	}
}

func TestVerify_rejectsMalformedExports(t *testing.T) {
	genesis := ledger.NewRecordAt(7, 1, ledger.GenesisPayload, "forged-sentinel")
	forged, _ := json.Marshal([]ledger.Record{
		genesis,
		ledger.NewRecordAt(42, 2, "next", genesis.Digest),
	})

	records := exportedRecords(t)
	records[3] = ledger.NewRecordAt(9, records[3].CreatedAt, records[3].Payload, records[2].Digest)
	gap, _ := json.Marshal(records)

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"empty array", "[]", "no records"},
		{"null", "null", "no records"},
		{"forged genesis", string(forged), "bad genesis record at position 0"},
		{"position gap", string(gap), "position gap at position 3"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			out, err := execute(t, tc.input, "verify")
			if !errors.Is(err, errChainBroken) {
				t.Fatalf("expected errChainBroken, got %v", err)
			}
			if !strings.HasPrefix(out, "Is ledger valid? false\n") {
				t.Errorf("unexpected output %q", out)
			}
			if !strings.Contains(out, tc.want) {
				t.Errorf("output %q does not mention %q", out, tc.want)
			}
		})
	}
}

func TestToken_requiresSecret(t *testing.T) {
	t.Setenv("HASHLEDGER_AUTH_WRITER_SECRET", "")
	if _, err := execute(t, "", "token", "ops"); err == nil {
		t.Error("expected error without a writer secret")
	}
}

func TestToken_verifiable(t *testing.T) {
	t.Setenv("HASHLEDGER_AUTH_WRITER_SECRET", "s3cret")

	out, err := execute(t, "", "token", "ops")
	if err != nil {
		t.Fatalf("Execute(): %v", err)
	}

	ti := auth.NewTokenIssuer([]byte("s3cret"), "hashledger", 0)
	claims, err := ti.Verify(strings.TrimSpace(out))
	if err != nil {
		t.Fatalf("minted token does not verify: %v", err)
	}
	if claims.Subject != "ops" {
		t.Errorf("Subject: got %q, want ops", claims.Subject)
	}
}

func TestConfig_badLogLevel(t *testing.T) {
	t.Setenv("HASHLEDGER_LOG_LEVEL", "loud")
	if _, err := execute(t, "", "version"); err == nil {
		t.Error("expected error for invalid log level")
	}
}

func TestConfig_explicitFileMissing(t *testing.T) {
	if _, err := execute(t, "", "--config", filepath.Join(t.TempDir(), "nope.yaml"), "version"); err == nil {
		t.Error("expected error for a missing explicit config file")
	}
}

func TestConfig_fileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hashledger.yaml")
	if err := os.WriteFile(path, []byte("auth:\n  writer_secret: from-file\n  issuer: file-issuer\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	out, err := execute(t, "", "--config", path, "token", "ops")
	if err != nil {
		t.Fatalf("Execute(): %v", err)
	}
	ti := auth.NewTokenIssuer([]byte("from-file"), "file-issuer", 0)
	if _, err := ti.Verify(strings.TrimSpace(out)); err != nil {
		t.Errorf("token not signed with file settings: %v", err)
	}
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "", "version")
	if err != nil {
		t.Fatal(err)
	}
	if out != "hashledger dev\n" {
		t.Errorf("unexpected output %q", out)
	}
}

func TestAppendThenVerifyURL(t *testing.T) {
	gin.SetMode(gin.TestMode)
	l := ledger.New()
	r := gin.New()
	server.NewLedgerHandler(l, nil, zap.NewNop()).Register(r.Group("/api/v1"))
	srv := httptest.NewServer(r)
	defer srv.Close()

	out, err := execute(t, "", "append", "--url", srv.URL, "remote payload")
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	var rec ledger.Record
	if err := json.Unmarshal([]byte(out), &rec); err != nil {
		t.Fatalf("decode append output %q: %v", out, err)
	}
	if rec.Position != 1 || rec.Payload != "remote payload" {
		t.Errorf("unexpected record %+v", rec)
	}

	out, err = execute(t, "", "verify", "--url", srv.URL)
	if err != nil {
		t.Fatalf("verify --url: %v", err)
	}
	if out != "Is ledger valid? true\n" {
		t.Errorf("unexpected output %q", out)
	}
}
