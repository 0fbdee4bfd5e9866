package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "crawler.conf")
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatalf("os.WriteFile: %v", err)
	}
	return path
}

func TestLoadFileParsesEveryKnownKey(t *testing.T) {
	path := writeConfig(t, `
# a comment
workers = 8
concurrent_requests = 25
request_timeout = 15
seed_url = https://a.example/
seed_url = https://b.example/
data_directory = /var/lib/crawler
default_crawl_delay_ms = 2000
middle_queue.queue_count = 128
middle_queue.url_batch_size = 40
middle_queue.host_url_limit = 300
middle_queue.utilization_target = 0.75
concurrent_robots_requests = 4
metrics_port = 9100
snapshot_period_seconds = 600
global_qps = 12.5
report_period_seconds = 90
`)

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}

	if cfg.Workers != 8 {
		t.Errorf("Workers = %d, want 8", cfg.Workers)
	}
	if cfg.ConcurrentRequests != 25 {
		t.Errorf("ConcurrentRequests = %d, want 25", cfg.ConcurrentRequests)
	}
	if cfg.RequestTimeout != 15*time.Second {
		t.Errorf("RequestTimeout = %v, want 15s", cfg.RequestTimeout)
	}
	if len(cfg.SeedURLs) != 2 || cfg.SeedURLs[0] != "https://a.example/" || cfg.SeedURLs[1] != "https://b.example/" {
		t.Errorf("SeedURLs = %v, want [https://a.example/ https://b.example/]", cfg.SeedURLs)
	}
	if cfg.DataDirectory != "/var/lib/crawler" {
		t.Errorf("DataDirectory = %q", cfg.DataDirectory)
	}
	if cfg.DefaultCrawlDelayMs != 2000 {
		t.Errorf("DefaultCrawlDelayMs = %d, want 2000", cfg.DefaultCrawlDelayMs)
	}
	if cfg.MiddleQueueQueueCount != 128 {
		t.Errorf("MiddleQueueQueueCount = %d, want 128", cfg.MiddleQueueQueueCount)
	}
	if cfg.MiddleQueueURLBatchSize != 40 {
		t.Errorf("MiddleQueueURLBatchSize = %d, want 40", cfg.MiddleQueueURLBatchSize)
	}
	if cfg.MiddleQueueHostURLLimit != 300 {
		t.Errorf("MiddleQueueHostURLLimit = %d, want 300", cfg.MiddleQueueHostURLLimit)
	}
	if cfg.MiddleQueueUtilizationTarget != 0.75 {
		t.Errorf("MiddleQueueUtilizationTarget = %v, want 0.75", cfg.MiddleQueueUtilizationTarget)
	}
	if cfg.ConcurrentRobotsRequests != 4 {
		t.Errorf("ConcurrentRobotsRequests = %d, want 4", cfg.ConcurrentRobotsRequests)
	}
	if cfg.MetricsPort != 9100 {
		t.Errorf("MetricsPort = %d, want 9100", cfg.MetricsPort)
	}
	if cfg.SnapshotPeriodSeconds != 600 {
		t.Errorf("SnapshotPeriodSeconds = %d, want 600", cfg.SnapshotPeriodSeconds)
	}
	if cfg.GlobalQPS != 12.5 {
		t.Errorf("GlobalQPS = %v, want 12.5", cfg.GlobalQPS)
	}
	if cfg.ReportPeriodSeconds != 90 {
		t.Errorf("ReportPeriodSeconds = %d, want 90", cfg.ReportPeriodSeconds)
	}
}

func TestLoadFileRejectsLineWithoutEquals(t *testing.T) {
	path := writeConfig(t, "workers 4\nseed_url = https://a.example/\n")
	if _, err := LoadFile(path); err == nil {
		t.Fatalf("expected an error for a line missing '='")
	}
}

func TestLoadFileRequiresAtLeastOneSeedURL(t *testing.T) {
	path := writeConfig(t, "workers = 4\ndata_directory = /tmp/x\n")
	if _, err := LoadFile(path); err == nil {
		t.Fatalf("expected an error when no seed_url is configured")
	}
}

func TestLoadFileSkipsUnrecognizedKeys(t *testing.T) {
	path := writeConfig(t, "seed_url = https://a.example/\nunknown_future_key = 123\n")
	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if len(cfg.SeedURLs) != 1 {
		t.Fatalf("SeedURLs = %v, want 1 entry", cfg.SeedURLs)
	}
}

func TestDefaultPassesValidate(t *testing.T) {
	cfg := Default()
	cfg.SeedURLs = []string{"https://example.org/"}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Default() config should validate once seeded: %v", err)
	}
}
