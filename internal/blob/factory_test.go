package blob

import (
	"bytes"
	"context"
	"log"
	"strings"
	"testing"

	appcfg "github.com/valerioformato/nutrition-helper/internal/config"
)

func TestNewBlobStoreLocalForced(t *testing.T) {
	var buf bytes.Buffer
	logger := log.New(&buf, "", 0)
	dir := t.TempDir()

	store, mode, err := NewBlobStore(context.Background(), appcfg.BlobConfig{
		Mode:      appcfg.BlobModeLocal,
		ExportDir: dir,
	}, logger)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if mode != appcfg.BlobModeLocal {
		t.Fatalf("expected mode=local, got %s", mode)
	}
	local, ok := store.(*LocalStore)
	if !ok {
		t.Fatalf("expected *LocalStore, got %T", store)
	}
	if local.Root() != dir {
		t.Fatalf("expected root %s, got %s", dir, local.Root())
	}
	if !strings.Contains(buf.String(), "mode=local (forced)") {
		t.Fatalf("expected local mode log, got: %s", buf.String())
	}
}

func TestNewBlobStoreAutoEmptyS3FallsBackToLocal(t *testing.T) {
	var buf bytes.Buffer
	logger := log.New(&buf, "", 0)

	store, mode, err := NewBlobStore(context.Background(), appcfg.BlobConfig{
		Mode:      appcfg.BlobModeAuto,
		ExportDir: t.TempDir(),
	}, logger)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if mode != appcfg.BlobModeLocal {
		t.Fatalf("expected mode=local fallback, got %s", mode)
	}
	if _, ok := store.(*LocalStore); !ok {
		t.Fatalf("expected *LocalStore on auto fallback, got %T", store)
	}

	logOut := buf.String()
	if !strings.Contains(logOut, "code=s3_not_configured") {
		t.Fatalf("expected s3_not_configured diagnostics, got: %s", logOut)
	}
	if !strings.Contains(logOut, "mode=local (auto, S3 not configured)") {
		t.Fatalf("expected auto fallback to local log, got: %s", logOut)
	}
}

func TestNewBlobStoreAutoPartialS3WarnsAndFallsBack(t *testing.T) {
	var buf bytes.Buffer
	logger := log.New(&buf, "", 0)

	_, mode, err := NewBlobStore(context.Background(), appcfg.BlobConfig{
		Mode:      appcfg.BlobModeAuto,
		ExportDir: t.TempDir(),
		S3:        appcfg.S3Config{Bucket: "meal-exports"},
	}, logger)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if mode != appcfg.BlobModeLocal {
		t.Fatalf("expected mode=local fallback, got %s", mode)
	}
	if !strings.Contains(buf.String(), "WARN blob.s3: code=s3_partial_config") {
		t.Fatalf("expected partial config warning, got: %s", buf.String())
	}
}

func TestNewBlobStoreS3MissingRequiredReturnsError(t *testing.T) {
	var buf bytes.Buffer
	logger := log.New(&buf, "", 0)

	store, mode, err := NewBlobStore(context.Background(), appcfg.BlobConfig{
		Mode: appcfg.BlobModeS3,
		S3: appcfg.S3Config{
			Endpoint: "http://localhost:9000",
		},
	}, logger)
	if err == nil {
		t.Fatal("expected error when mode=s3 and required env are missing")
	}
	if store != nil || mode != "" {
		t.Fatalf("expected nil store and empty mode on error, got store=%v mode=%q", store, mode)
	}
	if !strings.Contains(err.Error(), "missing required config") {
		t.Fatalf("expected missing required config error, got: %v", err)
	}
	if !strings.Contains(buf.String(), "S3_BUCKET") {
		t.Fatalf("expected missing keys in log, got: %s", buf.String())
	}
}

func TestNewBlobStoreS3Configured(t *testing.T) {
	store, mode, err := NewBlobStore(context.Background(), appcfg.BlobConfig{
		Mode: appcfg.BlobModeS3,
		S3: appcfg.S3Config{
			Endpoint:          "http://localhost:9000",
			Region:            "us-east-1",
			Bucket:            "meal-exports",
			AccessKeyID:       "minio",
			SecretAccessKey:   "minio-secret",
			PresignTTLSeconds: 60,
		},
	}, nil)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if mode != appcfg.BlobModeS3 {
		t.Fatalf("expected mode=s3, got %s", mode)
	}

	// Presigning is local computation; no request reaches the endpoint.
	url, err := store.URL(context.Background(), "exports/2024-45/plan.csv")
	if err != nil {
		t.Fatalf("presign failed: %v", err)
	}
	if !strings.Contains(url, "/meal-exports/exports/2024-45/plan.csv") || !strings.Contains(url, "X-Amz-Signature=") {
		t.Fatalf("unexpected presigned url: %s", url)
	}
}

func TestNewBlobStoreUnknownMode(t *testing.T) {
	if _, _, err := NewBlobStore(context.Background(), appcfg.BlobConfig{Mode: "ftp"}, nil); err == nil {
		t.Fatal("expected error for unsupported mode")
	}
}
