package storage

import (
	"testing"

	"github.com/andresuchdata/autoreorder/internal/config"
)

func TestNormalizeEndpoint(t *testing.T) {
	tests := []struct {
		in         string
		useSSL     bool
		wantHost   string
		wantSecure bool
	}{
		{"https://s3.example.com/", false, "s3.example.com", true},
		{"http://minio:9000", true, "minio:9000", false},
		{"minio:9000", false, "minio:9000", false},
		{"//storage.local", true, "storage.local", true},
	}
	for _, tt := range tests {
		host, secure := normalizeEndpoint(tt.in, tt.useSSL)
		if host != tt.wantHost || secure != tt.wantSecure {
			t.Errorf("normalizeEndpoint(%q, %v) = %q, %v; want %q, %v", tt.in, tt.useSSL, host, secure, tt.wantHost, tt.wantSecure)
		}
	}
}

func TestNewMinioClient_Validation(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.StorageConfig
	}{
		{"no endpoint", config.StorageConfig{AccessKey: "a", SecretKey: "b", Bucket: "c"}},
		{"no credentials", config.StorageConfig{Endpoint: "minio:9000", Bucket: "c"}},
		{"no bucket", config.StorageConfig{Endpoint: "minio:9000", AccessKey: "a", SecretKey: "b"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewMinioClient(tt.cfg); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestArchiveKey(t *testing.T) {
	c, err := NewMinioClient(config.StorageConfig{
		Endpoint: "minio:9000", AccessKey: "a", SecretKey: "b", Bucket: "exports", Prefix: "/movements/",
	})
	if err != nil {
		t.Fatal(err)
	}
	got := c.ArchiveKey("/tmp/upload/stock.csv", "0123456789abcdef0123@2024")
	if want := "movements/archive/0123456789abcdef-stock.csv"; got != want {
		t.Errorf("ArchiveKey() = %q, want %q", got, want)
	}
	if c.ArchivePrefix() != "movements/archive" {
		t.Errorf("ArchivePrefix() = %q", c.ArchivePrefix())
	}
	if contentType(got) != "text/csv" {
		t.Errorf("contentType(%q) = %q", got, contentType(got))
	}
}
