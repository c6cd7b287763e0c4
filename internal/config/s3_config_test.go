package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func readyS3() S3Config {
	return S3Config{
		Endpoint:        "https://minio.local:9000",
		Region:          "us-east-1",
		Bucket:          "meal-exports",
		AccessKeyID:     "key",
		SecretAccessKey: "secret",
	}
}

func TestS3MissingRequiredKeepsEnvOrder(t *testing.T) {
	cfg := S3Config{Endpoint: "https://minio.local:9000", Bucket: "meal-exports"}

	assert.Equal(t, []string{"S3_REGION", "S3_ACCESS_KEY_ID", "S3_SECRET_ACCESS_KEY"}, cfg.MissingRequired())
	assert.False(t, cfg.IsConfigured())
	assert.True(t, readyS3().IsConfigured())
	assert.Empty(t, readyS3().MissingRequired())
}

func TestS3Status(t *testing.T) {
	noRegion := readyS3()
	noRegion.Region = "  "

	cases := []struct {
		name  string
		cfg   S3Config
		level string
		code  string
	}{
		{"empty", S3Config{}, "INFO", S3NotConfigured},
		{"endpoint only", S3Config{Endpoint: "https://minio.local:9000"}, "WARN", S3Partial},
		{"blank region", noRegion, "WARN", S3Partial},
		{"ready", readyS3(), "INFO", S3Ready},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			status := tc.cfg.Status()
			assert.Equal(t, tc.level, status.Level)
			assert.Equal(t, tc.code, status.Code)
		})
	}

	assert.Equal(t, "partial config, missing=[S3_REGION]", noRegion.Status().String())
}
