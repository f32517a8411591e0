//go:build integration

package badger_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/marmos91/dittowopi/pkg/bridge"
	"github.com/marmos91/dittowopi/pkg/config"
	"github.com/marmos91/dittowopi/pkg/storage"
)

// TestBadgerTokens_SurviveRestart verifies that a token granted before a
// restart still opens the file afterwards when tokens.store is badger.
//
// Prerequisites:
//   - None (BadgerDB is embedded, no external services needed)
//   - Run with: go test -tags=integration ./test/integration/badger/...
func TestBadgerTokens_SurviveRestart(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	cfg := config.GetDefaultConfig()
	cfg.Storage = config.StorageConfig{
		Type:       "filesystem",
		Filesystem: map[string]any{"path": filepath.Join(dir, "files")},
	}
	cfg.Tokens.Store = "badger"
	cfg.Tokens.Badger = map[string]any{"db_path": filepath.Join(dir, "tokens")}

	gateway, err := config.CreateGateway(ctx, &cfg.Storage, nil)
	if err != nil {
		t.Fatalf("CreateGateway failed: %v", err)
	}
	if err := gateway.PutContent(ctx, storage.Key("demo.xlsx"), strings.NewReader("ABC"), 3); err != nil {
		t.Fatalf("PutContent failed: %v", err)
	}

	// ========================================================================
	// First run: grant a token, then shut down
	// ========================================================================

	auth, registry, err := config.CreateAuthorizer(ctx, &cfg.Tokens)
	if err != nil {
		t.Fatalf("CreateAuthorizer failed: %v", err)
	}
	tok, err := auth.Grant(ctx, "demo.xlsx")
	if err != nil {
		t.Fatalf("Grant failed: %v", err)
	}
	if err := registry.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	// ========================================================================
	// Second run: the same token still works
	// ========================================================================

	auth, registry, err = config.CreateAuthorizer(ctx, &cfg.Tokens)
	if err != nil {
		t.Fatalf("CreateAuthorizer after restart failed: %v", err)
	}
	defer registry.Close()

	if registry.Len() != 1 {
		t.Errorf("Expected 1 persisted token, got %d", registry.Len())
	}

	handler, err := bridge.New(cfg.ToBridgeConfig(), gateway, auth)
	if err != nil {
		t.Fatalf("bridge.New failed: %v", err)
	}

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/wopi/files/demo.xlsx/contents?access_token="+string(tok), nil))
	if rec.Code != http.StatusOK || rec.Body.String() != "ABC" {
		t.Fatalf("GetFile after restart = %d %q", rec.Code, rec.Body.String())
	}

	// Revocation persists too
	if err := auth.Revoke(ctx, tok); err != nil {
		t.Fatalf("Revoke failed: %v", err)
	}
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/wopi/files/demo.xlsx?access_token="+string(tok), nil))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("Revoked token status = %d, want 401", rec.Code)
	}
}
