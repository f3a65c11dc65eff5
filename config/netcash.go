package config

import (
	"errors"
	"os"
	"strings"
	"time"
)

// NetcashConfig carries everything the Netcash integration needs. It is built
// once in main() and passed into the client and the webhook workflow; nothing
// in the integration reads process-wide state directly.
type NetcashConfig struct {
	ServiceKey    string
	VendorKey     string
	SoftwareKey   string
	BaseURL       string
	WebhookSecret string
	HTTPTimeout   time.Duration

	// BatchFileDir is where generated batch files are written before
	// submission. GCSBucket, when set, additionally archives each file.
	BatchFileDir string
	GCSBucket    string
}

// LoadNetcashConfig reads the Netcash settings from the environment.
// NETCASH_SERVICE_KEY and NETCASH_WEBHOOK_SECRET are required; the rest
// have workable defaults.
func LoadNetcashConfig() (NetcashConfig, error) {
	cfg := NetcashConfig{
		ServiceKey:    strings.TrimSpace(os.Getenv("NETCASH_SERVICE_KEY")),
		VendorKey:     strings.TrimSpace(os.Getenv("NETCASH_VENDOR_KEY")),
		SoftwareKey:   strings.TrimSpace(os.Getenv("NETCASH_SOFTWARE_KEY")),
		BaseURL:       strings.TrimSpace(os.Getenv("NETCASH_BASE_URL")),
		WebhookSecret: strings.TrimSpace(os.Getenv("NETCASH_WEBHOOK_SECRET")),
		BatchFileDir:  strings.TrimSpace(os.Getenv("BATCH_FILE_DIR")),
		GCSBucket:     strings.TrimSpace(os.Getenv("GCS_BUCKET")),
	}

	if cfg.ServiceKey == "" {
		return cfg, errors.New("NETCASH_SERVICE_KEY is required")
	}
	if cfg.WebhookSecret == "" {
		return cfg, errors.New("NETCASH_WEBHOOK_SECRET is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://ws.netcash.co.za"
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.BatchFileDir == "" {
		cfg.BatchFileDir = "batchfiles"
	}

	timeoutSec := intFromEnv("NETCASH_HTTP_TIMEOUT_SECONDS", 30)
	cfg.HTTPTimeout = time.Duration(timeoutSec) * time.Second

	return cfg, nil
}
