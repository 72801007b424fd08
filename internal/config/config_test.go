package config

import (
	"testing"
	"time"
)

func TestLoadConfig_Defaults(t *testing.T) {
	for _, k := range []string{"PORT", "STORAGE_DRIVER", "SIMULATED_LATENCY", "FLUSH_DELAY", "CORS_ALLOWED_ORIGINS"} {
		t.Setenv(k, "")
	}

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Port != "8080" {
		t.Errorf("Port = %q, ожидался 8080", cfg.Port)
	}
	if cfg.StorageDriver != "file" {
		t.Errorf("StorageDriver = %q, ожидался file", cfg.StorageDriver)
	}
	if cfg.Latency() != 200*time.Millisecond {
		t.Errorf("Latency = %v, ожидалось 200ms", cfg.Latency())
	}
	if len(cfg.CorsAllowedOrigins) != 1 || cfg.CorsAllowedOrigins[0] != "*" {
		t.Errorf("CorsAllowedOrigins = %v", cfg.CorsAllowedOrigins)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"memory ok", Config{StorageDriver: "memory", SimulatedLatency: "0s", FlushDelay: "0s", AccessTokenTTL: "1h"}, false},
		{"postgres without host", Config{StorageDriver: "postgres", SimulatedLatency: "0s", FlushDelay: "0s", AccessTokenTTL: "1h"}, true},
		{"redis without addr", Config{StorageDriver: "redis", SimulatedLatency: "0s", FlushDelay: "0s", AccessTokenTTL: "1h"}, true},
		{"unknown driver", Config{StorageDriver: "localstorage", SimulatedLatency: "0s", FlushDelay: "0s", AccessTokenTTL: "1h"}, true},
		{"bad latency", Config{StorageDriver: "file", SimulatedLatency: "soon", FlushDelay: "0s", AccessTokenTTL: "1h"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() err = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidate_WarnsOnEmptySecret(t *testing.T) {
	cfg := Config{StorageDriver: "file", SimulatedLatency: "0s", FlushDelay: "0s", AccessTokenTTL: "1h"}
	warnings, err := cfg.Validate()
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	found := false
	for _, w := range warnings {
		if w == "JWT_SECRET is empty" {
			found = true
		}
	}
	if !found {
		t.Fatalf("ожидалось предупреждение про JWT_SECRET, получено %v", warnings)
	}
}

func TestRateLimitFallback(t *testing.T) {
	cfg := Config{RateLimitRPM: "abc", RateLimitBurst: "-1"}
	rpm, burst := cfg.RateLimit()
	if rpm != 120 || burst != 30 {
		t.Fatalf("RateLimit() = %d,%d", rpm, burst)
	}
}
