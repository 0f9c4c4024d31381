package config

import (
	"log"
	"os"

	"gopkg.in/yaml.v3"
)

type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

type DatabaseConfig struct {
	DSN string `yaml:"dsn"`
}

type RedisConfig struct {
	URL string `yaml:"url"`
}

type AuthConfig struct {
	Enabled         bool   `yaml:"enabled"`
	InitialAdminKey string `yaml:"initialAdminKey"`
}

type RateLimitConfig struct {
	DefaultPerMinute int `yaml:"defaultPerMinute"`
}

// SitegenConfig controls where static site builds are written.
type SitegenConfig struct {
	OutputDir string `yaml:"outputDir"`
}

// CDNConfig points at the CDN deployment service.
type CDNConfig struct {
	BaseURL   string `yaml:"baseURL"`
	TimeoutMs int    `yaml:"timeoutMs"`
}

// SearchIndexConfig points at the search-index service.
type SearchIndexConfig struct {
	BaseURL   string `yaml:"baseURL"`
	TimeoutMs int    `yaml:"timeoutMs"`
}

// DomainConfig points at the domain/DNS service. PlatformDomain is the
// base domain tenants without a custom domain are published under
// (slug.platformDomain).
type DomainConfig struct {
	BaseURL        string `yaml:"baseURL"`
	TimeoutMs      int    `yaml:"timeoutMs"`
	PlatformDomain string `yaml:"platformDomain"`
}

// HostingConfig groups the external services a publish touches.
type HostingConfig struct {
	CDN          CDNConfig         `yaml:"cdn"`
	Search       SearchIndexConfig `yaml:"search"`
	Domain       DomainConfig      `yaml:"domain"`
	AdminBaseURL string            `yaml:"adminBaseURL"`
}

// BrandingConfig controls the branding import fetcher.
type BrandingConfig struct {
	TimeoutMs    int    `yaml:"timeoutMs"`
	UserAgent    string `yaml:"userAgent"`
	MaxBodyBytes int64  `yaml:"maxBodyBytes"`
}

// JobTTLConfig controls per-job-type retention in days.
type JobTTLConfig struct {
	DefaultDays   int `yaml:"defaultDays"`
	CreateDays    int `yaml:"createDays"`
	UpdateDays    int `yaml:"updateDays"`
	DeleteDays    int `yaml:"deleteDays"`
	RepublishDays int `yaml:"republishDays"`
}

// RetentionConfig controls TTL-like deletion of old terminal job
// records so that the database does not grow without bound over time.
type RetentionConfig struct {
	Enabled                bool         `yaml:"enabled"`
	CleanupIntervalMinutes int          `yaml:"cleanupIntervalMinutes"`
	Jobs                   JobTTLConfig `yaml:"jobs"`
}

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	Auth      AuthConfig      `yaml:"auth"`
	RateLimit RateLimitConfig `yaml:"ratelimit"`
	Sitegen   SitegenConfig   `yaml:"sitegen"`
	Hosting   HostingConfig   `yaml:"hosting"`
	Branding  BrandingConfig  `yaml:"branding"`
	Retention RetentionConfig `yaml:"retention"`
}

func Load(path string) *Config {
	f, err := os.Open(path)
	if err != nil {
		log.Fatalf("failed to open config file: %v", err)
	}
	defer f.Close()

	var cfg Config
	if err := yaml.NewDecoder(f).Decode(&cfg); err != nil {
		log.Fatalf("failed to decode config: %v", err)
	}

	return &cfg
}
