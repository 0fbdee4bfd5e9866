// Package config loads the crawler's key=value configuration file
// into a validated Config.
package config

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds every scheduler tunable the config file can set.
type Config struct {
	Workers                      int
	ConcurrentRequests           int
	RequestTimeout               time.Duration
	SeedURLs                     []string
	DataDirectory                string
	DefaultCrawlDelayMs          int64
	MiddleQueueQueueCount        int
	MiddleQueueURLBatchSize      int
	MiddleQueueHostURLLimit      int
	MiddleQueueUtilizationTarget float64
	ConcurrentRobotsRequests     int
	MetricsPort                  int
	SnapshotPeriodSeconds        int
	GlobalQPS                    float64
	ReportPeriodSeconds          int
}

// Default returns sane starting values for every tunable, used before
// a config file is loaded or for any key the file doesn't set.
func Default() *Config {
	return &Config{
		Workers:                      2,
		ConcurrentRequests:           10,
		RequestTimeout:               10 * time.Second,
		DataDirectory:                "data/frontier",
		DefaultCrawlDelayMs:          1000,
		MiddleQueueQueueCount:        64,
		MiddleQueueURLBatchSize:      50,
		MiddleQueueHostURLLimit:      200,
		MiddleQueueUtilizationTarget: 0.5,
		ConcurrentRobotsRequests:     5,
		MetricsPort:                  9090,
		SnapshotPeriodSeconds:        300,
		GlobalQPS:                    20,
		ReportPeriodSeconds:          60,
	}
}

// LoadFile parses a key=value config file: blank lines and lines
// starting with '#' are skipped, every other line must contain '='.
// seed_url is repeatable. Unrecognized keys are silently skipped
// rather than rejected.
func LoadFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %s: %w", path, err)
	}
	defer f.Close()

	cfg := Default()
	scanner := bufio.NewScanner(f)
	lineNumber := 0
	for scanner.Scan() {
		lineNumber++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		eqPos := strings.IndexByte(line, '=')
		if eqPos < 0 {
			return nil, fmt.Errorf("config: line %d: missing '='", lineNumber)
		}
		key := strings.TrimSpace(line[:eqPos])
		value := strings.TrimSpace(line[eqPos+1:])

		if err := cfg.applyKey(key, value); err != nil {
			return nil, fmt.Errorf("config: line %d: %w", lineNumber, err)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

func (c *Config) applyKey(key, value string) error {
	switch key {
	case "workers":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("workers: %w", err)
		}
		c.Workers = n
	case "concurrent_requests":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("concurrent_requests: %w", err)
		}
		c.ConcurrentRequests = n
	case "request_timeout":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("request_timeout: %w", err)
		}
		c.RequestTimeout = time.Duration(n) * time.Second
	case "seed_url":
		if value != "" {
			c.SeedURLs = append(c.SeedURLs, value)
		}
	case "data_directory":
		c.DataDirectory = value
	case "default_crawl_delay_ms":
		n, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return fmt.Errorf("default_crawl_delay_ms: %w", err)
		}
		c.DefaultCrawlDelayMs = n
	case "middle_queue.queue_count":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("middle_queue.queue_count: %w", err)
		}
		c.MiddleQueueQueueCount = n
	case "middle_queue.url_batch_size":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("middle_queue.url_batch_size: %w", err)
		}
		c.MiddleQueueURLBatchSize = n
	case "middle_queue.host_url_limit":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("middle_queue.host_url_limit: %w", err)
		}
		c.MiddleQueueHostURLLimit = n
	case "middle_queue.utilization_target":
		n, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("middle_queue.utilization_target: %w", err)
		}
		c.MiddleQueueUtilizationTarget = n
	case "concurrent_robots_requests":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("concurrent_robots_requests: %w", err)
		}
		c.ConcurrentRobotsRequests = n
	case "metrics_port":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("metrics_port: %w", err)
		}
		c.MetricsPort = n
	case "snapshot_period_seconds":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("snapshot_period_seconds: %w", err)
		}
		c.SnapshotPeriodSeconds = n
	case "global_qps":
		n, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("global_qps: %w", err)
		}
		c.GlobalQPS = n
	case "report_period_seconds":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("report_period_seconds: %w", err)
		}
		c.ReportPeriodSeconds = n
	}
	return nil
}

// Validate checks that the loaded config is usable: at least one seed
// URL, positive worker/request counts.
func (c *Config) Validate() error {
	if c.Workers <= 0 {
		return fmt.Errorf("workers must be > 0")
	}
	if c.ConcurrentRequests <= 0 {
		return fmt.Errorf("concurrent_requests must be > 0")
	}
	if len(c.SeedURLs) == 0 {
		return fmt.Errorf("no seed URLs configured")
	}
	if c.DataDirectory == "" {
		return fmt.Errorf("data_directory must be set")
	}
	if c.MiddleQueueQueueCount <= 0 {
		return fmt.Errorf("middle_queue.queue_count must be > 0")
	}
	if c.MiddleQueueUtilizationTarget < 0 || c.MiddleQueueUtilizationTarget > 1 {
		return fmt.Errorf("middle_queue.utilization_target must be in [0, 1]")
	}
	return nil
}
