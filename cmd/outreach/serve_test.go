package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/cobra"

	"warm-outreach/internal/config"
	"warm-outreach/internal/sheet"
)

func freePort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()
	return ln.Addr().(*net.TCPAddr).Port
}

// serveFixture writes a data dir with a lead workbook and a config whose
// schedule never fires, and points the CLI flags at it.
func serveFixture(t *testing.T) int {
	t.Helper()
	dir := t.TempDir()
	port := freePort(t)

	cols := sheet.DefaultColumns()
	header := []string{cols.Name, cols.ProfileURL, cols.Recipients, cols.Status}
	if err := sheet.Create(filepath.Join(dir, "leads.xlsx"), "Sheet1", header, nil); err != nil {
		t.Fatal(err)
	}

	cfg := config.Default()
	cfg.App.Port = port
	cfg.App.BaseURL = fmt.Sprintf("http://127.0.0.1:%d", port)
	cfg.SMTP.From = "outreach@example.com"
	cfg.Schedule.Cron = "0 0 31 2 *"
	cfg.Schedule.Weekday = ""
	cfg.Schedule.Time = ""
	path := filepath.Join(dir, "config.yml")
	if err := config.SaveAtomic(path, cfg); err != nil {
		t.Fatal(err)
	}

	oldCfg, oldDir := cfgFile, dataDir
	cfgFile, dataDir = path, dir
	t.Cleanup(func() { cfgFile, dataDir = oldCfg, oldDir })
	return port
}

func TestServeReturnsAfterShutdownRequest(t *testing.T) {
	port := serveFixture(t)
	t.Setenv("OUTREACH_SHUTDOWN_TOKEN", "tok")
	for _, k := range []string{config.EnvDataDir, config.EnvStorePath, config.EnvLedgerDSN, "OUTREACH_BIND"} {
		t.Setenv(k, "")
	}

	cmd := &cobra.Command{}
	cmd.SetContext(context.Background())
	done := make(chan error, 1)
	go func() { done <- runServe(cmd, nil) }()

	base := fmt.Sprintf("http://127.0.0.1:%d", port)
	deadline := time.Now().Add(5 * time.Second)
	for {
		resp, err := http.Get(base + "/health")
		if err == nil {
			resp.Body.Close()
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("server never came up: %v", err)
		}
		time.Sleep(50 * time.Millisecond)
	}

	req, _ := http.NewRequest(http.MethodPost, base+"/shutdown", nil)
	req.Header.Set("X-Shutdown-Token", "tok")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("serve returned error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("serve still running after shutdown")
	}
}
