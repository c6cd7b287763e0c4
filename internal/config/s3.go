package config

import (
	"fmt"
	"strings"
)

// S3Config holds the settings of the S3-compatible export bucket.
type S3Config struct {
	Endpoint          string
	Region            string
	Bucket            string
	AccessKeyID       string
	SecretAccessKey   string
	PublicBaseURL     string
	PresignTTLSeconds int
}

// S3 readiness codes reported by Status.
const (
	S3NotConfigured = "s3_not_configured"
	S3Partial       = "s3_partial_config"
	S3Ready         = "s3_ready"
)

// S3Status describes how far the S3 settings are from usable.
type S3Status struct {
	Level   string // INFO | WARN
	Code    string
	Missing []string
}

func (s S3Status) String() string {
	switch s.Code {
	case S3NotConfigured:
		return "not configured (all empty)"
	case S3Partial:
		return fmt.Sprintf("partial config, missing=%v", s.Missing)
	default:
		return "ready"
	}
}

// required pairs each mandatory setting with its env key, in report order.
func (c S3Config) required() [][2]string {
	return [][2]string{
		{"S3_ENDPOINT", c.Endpoint},
		{"S3_REGION", c.Region},
		{"S3_BUCKET", c.Bucket},
		{"S3_ACCESS_KEY_ID", c.AccessKeyID},
		{"S3_SECRET_ACCESS_KEY", c.SecretAccessKey},
	}
}

// MissingRequired lists the env keys an S3 export store still needs.
func (c S3Config) MissingRequired() []string {
	var missing []string
	for _, kv := range c.required() {
		if strings.TrimSpace(kv[1]) == "" {
			missing = append(missing, kv[0])
		}
	}
	return missing
}

func (c S3Config) IsConfigured() bool {
	return len(c.MissingRequired()) == 0
}

func (c S3Config) Status() S3Status {
	missing := c.MissingRequired()
	switch len(missing) {
	case 0:
		return S3Status{Level: "INFO", Code: S3Ready}
	case len(c.required()):
		return S3Status{Level: "INFO", Code: S3NotConfigured, Missing: missing}
	default:
		return S3Status{Level: "WARN", Code: S3Partial, Missing: missing}
	}
}

// Summary renders the settings for logs. Secrets only show as set or not set.
func (c S3Config) Summary() string {
	return fmt.Sprintf("endpoint=%s region=%s bucket=%s public_base_url=%s presign_ttl=%ds access_key_id=%s secret_access_key=%s",
		orDash(c.Endpoint),
		orDash(c.Region),
		orDash(c.Bucket),
		orDash(c.PublicBaseURL),
		c.PresignTTLSeconds,
		setOrNot(c.AccessKeyID),
		setOrNot(c.SecretAccessKey),
	)
}

func orDash(v string) string {
	if v = strings.TrimSpace(v); v == "" {
		return "-"
	}
	return v
}

func setOrNot(v string) string {
	if strings.TrimSpace(v) == "" {
		return "not set"
	}
	return "set"
}
