//go:build integration

package s3_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/marmos91/dittowopi/pkg/bridge"
	"github.com/marmos91/dittowopi/pkg/config"
)

// setupBucket creates a bucket on Localstack and returns the storage
// options pointing at it.
//
// Returns:
//   - map[string]any: storage.s3 options for config.CreateGateway
//   - cleanup: Function to delete all objects and the bucket
func setupBucket(t *testing.T) (map[string]any, func()) {
	t.Helper()
	ctx := context.Background()

	endpoint := os.Getenv("LOCALSTACK_ENDPOINT")
	if endpoint == "" {
		endpoint = "http://localhost:4566"
	}

	opts := config.S3GatewayOptions{
		Region:          "us-east-1",
		Bucket:          fmt.Sprintf("dittowopi-bridge-%d", time.Now().UnixNano()),
		Endpoint:        endpoint,
		AccessKeyID:     "test",
		SecretAccessKey: "test",
	}

	client, err := config.NewS3Client(ctx, opts)
	if err != nil {
		t.Fatalf("Failed to create S3 client: %v", err)
	}
	if _, err := client.CreateBucket(ctx, &s3.CreateBucketInput{Bucket: aws.String(opts.Bucket)}); err != nil {
		t.Fatalf("Failed to create test bucket: %v", err)
	}

	cleanup := func() {
		listResp, _ := client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{Bucket: aws.String(opts.Bucket)})
		if listResp != nil {
			for _, obj := range listResp.Contents {
				_, _ = client.DeleteObject(ctx, &s3.DeleteObjectInput{Bucket: aws.String(opts.Bucket), Key: obj.Key})
			}
		}
		_, _ = client.DeleteBucket(ctx, &s3.DeleteBucketInput{Bucket: aws.String(opts.Bucket)})
	}

	return map[string]any{
		"region":            opts.Region,
		"bucket":            opts.Bucket,
		"endpoint":          opts.Endpoint,
		"access_key_id":     opts.AccessKeyID,
		"secret_access_key": opts.SecretAccessKey,
		"key_prefix":        "wopi/",
	}, cleanup
}

// TestBridge_S3_Integration walks an editor session against Localstack:
// grant access, save a document, read its metadata, and load it back.
//
// Prerequisites:
//   - Localstack running on localhost:4566
//   - Run with: go test -tags=integration ./test/integration/...
func TestBridge_S3_Integration(t *testing.T) {
	ctx := context.Background()

	// ========================================================================
	// Setup: wire the bridge exactly as the start command does
	// ========================================================================

	s3Options, cleanup := setupBucket(t)
	defer cleanup()

	cfg := config.GetDefaultConfig()
	cfg.Storage = config.StorageConfig{Type: "s3", S3: s3Options}
	cfg.WOPI.HostURL = "https://wopi.example.com"

	gateway, err := config.CreateGateway(ctx, &cfg.Storage, nil)
	if err != nil {
		t.Fatalf("CreateGateway failed: %v", err)
	}
	auth, registry, err := config.CreateAuthorizer(ctx, &cfg.Tokens)
	if err != nil {
		t.Fatalf("CreateAuthorizer failed: %v", err)
	}
	defer registry.Close()

	handler, err := bridge.New(cfg.ToBridgeConfig(), gateway, auth)
	if err != nil {
		t.Fatalf("bridge.New failed: %v", err)
	}
	srv := httptest.NewServer(handler)
	defer srv.Close()

	// ========================================================================
	// Step 1: Grant access
	// ========================================================================

	resp, err := http.Get(srv.URL + "/access?path=" + url.QueryEscape("reports/demo.xlsx"))
	if err != nil {
		t.Fatalf("GET /access failed: %v", err)
	}
	var grant bridge.AccessResponse
	if err := json.NewDecoder(resp.Body).Decode(&grant); err != nil {
		t.Fatalf("Failed to decode grant: %v", err)
	}
	resp.Body.Close()

	launch, err := url.Parse(grant.URL)
	if err != nil {
		t.Fatalf("Invalid launch URL %q: %v", grant.URL, err)
	}
	wopiSrc, err := url.Parse(launch.Query().Get("WOPISrc"))
	if err != nil {
		t.Fatalf("Invalid WOPISrc: %v", err)
	}
	fileURL := srv.URL + wopiSrc.EscapedPath()
	query := "?access_token=" + url.QueryEscape(grant.Token)

	// ========================================================================
	// Step 2: PutFile, CheckFileInfo, GetFile
	// ========================================================================

	resp, err = http.Post(fileURL+"/contents"+query, "application/octet-stream", strings.NewReader("ABC"))
	if err != nil {
		t.Fatalf("PutFile failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("PutFile status = %d", resp.StatusCode)
	}

	resp, err = http.Get(fileURL + query)
	if err != nil {
		t.Fatalf("CheckFileInfo failed: %v", err)
	}
	var info bridge.CheckFileInfoResponse
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		t.Fatalf("Failed to decode CheckFileInfo: %v", err)
	}
	resp.Body.Close()
	if info.BaseFileName != "demo.xlsx" || info.Size != 3 {
		t.Errorf("Unexpected CheckFileInfo: %+v", info)
	}

	resp, err = http.Get(fileURL + "/contents" + query)
	if err != nil {
		t.Fatalf("GetFile failed: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if string(body) != "ABC" {
		t.Errorf("GetFile body = %q, want ABC", body)
	}

	// ========================================================================
	// Step 3: Unknown object maps to 404, not 500
	// ========================================================================

	tok, err := auth.Grant(ctx, "reports/missing.xlsx")
	if err != nil {
		t.Fatalf("Grant failed: %v", err)
	}
	resp, err = http.Get(srv.URL + "/wopi/files/" + url.PathEscape("reports/missing.xlsx") + "?access_token=" + string(tok))
	if err != nil {
		t.Fatalf("CheckFileInfo failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("Missing object status = %d, want 404", resp.StatusCode)
	}
}
