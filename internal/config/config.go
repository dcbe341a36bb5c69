// ABOUTME: Environment-driven configuration for the visualizer and the gateway
// ABOUTME: Reads an optional .env file first, then falls back to built-in defaults
package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	DefaultUpstreamURL    = "https://api-v2.soundcloud.com"
	DefaultGatewayPrefix  = "/sc-api"
	DefaultGatewayAddr    = ":8927"
	DefaultStageTimeout   = 10 * time.Second
	DefaultCycleInterval  = 15 * time.Second
	DefaultFrameRate      = 60
	DefaultSampleRate     = 44100
	DefaultShowcasePreset = "Flexi, martin + geiss - dedicated to the sherwin maxawow"
)

// Config holds every tunable of the process
type Config struct {
	// Gateway
	GatewayURL    string // where the resolver sends requests; empty means discover or embed
	GatewayAddr   string
	GatewayPrefix string
	UpstreamURL   string
	WrapErrors    bool
	Advertise     bool // mDNS advertisement and browsing

	// Credentials
	DefaultClientID string
	CredentialFile  string
	RedisAddr       string
	RedisPassword   string
	RedisDB         int

	// Resolver
	StageTimeout time.Duration

	// Render loop
	FrameRate      int
	CycleInterval  time.Duration
	ShowcasePreset string
	RemoteAddr     string // websocket mirror listen address, empty disables

	// Audio
	SampleRate int
	Volume     float64

	// Logging
	LogLevel string
	LogFile  string
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if intVal, err := strconv.Atoi(getEnv(key, "")); err == nil {
		return intVal
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if f, err := strconv.ParseFloat(getEnv(key, ""), 64); err == nil {
		return f
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if b, err := strconv.ParseBool(getEnv(key, "")); err == nil {
		return b
	}
	return fallback
}

// getEnvDuration accepts Go durations ("10s") or bare seconds ("10")
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value := getEnv(key, "")
	if value == "" {
		return fallback
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if secs, err := strconv.ParseFloat(value, 64); err == nil {
		return time.Duration(secs * float64(time.Second))
	}
	return fallback
}

func defaultCredentialFile() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = "."
	}
	return filepath.Join(dir, "visuallock", "credential.json")
}

// Load reads configuration from the environment (and .env if present)
func Load() *Config {
	// A missing .env is the normal case; existing variables are never overridden
	_ = godotenv.Load()

	return &Config{
		GatewayURL:    strings.TrimRight(getEnv("VL_GATEWAY_URL", ""), "/"),
		GatewayAddr:   getEnv("VL_GATEWAY_ADDR", DefaultGatewayAddr),
		GatewayPrefix: "/" + strings.Trim(getEnv("VL_GATEWAY_PREFIX", DefaultGatewayPrefix), "/"),
		UpstreamURL:   strings.TrimRight(getEnv("VL_UPSTREAM_URL", DefaultUpstreamURL), "/"),
		WrapErrors:    getEnvBool("VL_GATEWAY_WRAP_ERRORS", false),
		Advertise:     getEnvBool("VL_MDNS", true),

		DefaultClientID: getEnv("SC_CLIENT_ID", getEnv("VITE_SC_CLIENT_ID", "")),
		CredentialFile:  getEnv("VL_CREDENTIAL_FILE", defaultCredentialFile()),
		RedisAddr:       getEnv("VL_REDIS_ADDR", ""),
		RedisPassword:   os.Getenv("VL_REDIS_PASSWORD"),
		RedisDB:         getEnvInt("VL_REDIS_DB", 0),

		StageTimeout: getEnvDuration("VL_STAGE_TIMEOUT", DefaultStageTimeout),

		FrameRate:      getEnvInt("VL_FRAME_RATE", DefaultFrameRate),
		CycleInterval:  getEnvDuration("VL_CYCLE_INTERVAL", DefaultCycleInterval),
		ShowcasePreset: getEnv("VL_SHOWCASE_PRESET", DefaultShowcasePreset),
		RemoteAddr:     getEnv("VL_REMOTE_ADDR", ""),

		SampleRate: getEnvInt("VL_SAMPLE_RATE", DefaultSampleRate),
		Volume:     getEnvFloat("VL_VOLUME", 0.5),

		LogLevel: getEnv("VL_LOG_LEVEL", "info"),
		LogFile:  getEnv("VL_LOG_FILE", "visuallock.log"),
	}
}

// FrameInterval converts the frame rate into a ticker period
func (c *Config) FrameInterval() time.Duration {
	if c.FrameRate <= 0 {
		return time.Second / DefaultFrameRate
	}
	return time.Second / time.Duration(c.FrameRate)
}
