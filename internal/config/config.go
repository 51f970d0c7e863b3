package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Scan modes.
const (
	ModeContinuous = "continuous"
	ModeSingle     = "single"
)

// Camera sources.
const (
	SourceDevice = "device"
	SourcePush   = "push"
)

// Decoder backends.
const (
	DecoderZXing  = "zxing"
	DecoderOpenCV = "opencv"
	DecoderRemote = "remote"
)

type Config struct {
	Port        int
	CamerasPort int               // UDP port for pushing cameras
	CameraNames map[string]string // IP -> camera name

	CameraSource string
	CameraDevice string
	CameraID     string // Camera to follow when CameraSource is "push"
	CameraWidth  int
	CameraHeight int
	CameraFacing string

	ScanMode       string
	DedupWindow    time.Duration
	FrameSkip      int           // Co którą klatkę analizować (1=każdą, 2=co drugą)
	MaxFrameRate   time.Duration // Minimalny odstęp między próbami dekodowania
	TickInterval   time.Duration
	CaptureTimeout time.Duration

	Decoder        string
	DecoderURL     string
	DecoderFormats []string
	RegionsFile    string

	DatabasePath         string
	ImageDirectory       string
	HistoryBufferLimit   int
	HistoryFlushInterval int // seconds

	LogDirectory    string
	LogLevel        string
	StaticDirectory string // HTML pages and assets of the viewer

	// Password protects the HTTP API; empty disables authentication.
	Password string
}

// Load reads .env (when present) and then the process environment.
func Load() *Config {
	// Missing .env is the normal case in production.
	_ = godotenv.Load()

	return &Config{
		Port:        getEnvAsInt("PORT", 8080),
		CamerasPort: getEnvAsInt("CAMERAS_PORT", 9000),
		CameraNames: getEnvAsMap("CAMERA_NAMES"),

		CameraSource: getEnv("CAMERA_SOURCE", SourceDevice),
		CameraDevice: getEnv("CAMERA_DEVICE", "0"),
		CameraID:     getEnv("CAMERA_ID", ""),
		CameraWidth:  getEnvAsInt("CAMERA_WIDTH", 1280),
		CameraHeight: getEnvAsInt("CAMERA_HEIGHT", 720),
		CameraFacing: getEnv("CAMERA_FACING", "environment"),

		ScanMode:       getEnv("SCAN_MODE", ModeContinuous),
		DedupWindow:    getEnvAsMillis("DEDUP_WINDOW_MS", 2000),
		FrameSkip:      getEnvAsInt("FRAME_SKIP", 2),
		MaxFrameRate:   getEnvAsMillis("MAX_FRAME_RATE_MS", 100),
		TickInterval:   getEnvAsMillis("TICK_INTERVAL_MS", 16),
		CaptureTimeout: getEnvAsMillis("CAPTURE_TIMEOUT_MS", 5000),

		Decoder:        getEnv("DECODER", DecoderZXing),
		DecoderURL:     getEnv("DECODER_URL", ""),
		DecoderFormats: getEnvAsList("DECODER_FORMATS"),
		RegionsFile:    getEnv("REGIONS_FILE", ""),

		DatabasePath:         getEnv("DB_PATH", filepath.Join(".", "data", "scans.db")),
		ImageDirectory:       getEnv("IMAGE_DIR", filepath.Join(".", "images")),
		HistoryBufferLimit:   getEnvAsInt("HISTORY_BUFFER_LIMIT", 100),
		HistoryFlushInterval: getEnvAsInt("HISTORY_FLUSH_INTERVAL", 10),

		LogDirectory: getEnv("LOG_DIR", filepath.Join(".", "logs")),
		LogLevel:     getEnv("LOG_LEVEL", "info"),

		StaticDirectory: getEnv("STATIC_DIR", filepath.Join(".", "static")),

		Password: getEnv("PASSWORD", ""),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsMillis(key string, defaultValue int) time.Duration {
	return time.Duration(getEnvAsInt(key, defaultValue)) * time.Millisecond
}

func getEnvAsList(key string) []string {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// getEnvAsMap parses "10.0.0.5=dock,10.0.0.6=gate".
func getEnvAsMap(key string) map[string]string {
	out := make(map[string]string)
	for _, pair := range getEnvAsList(key) {
		k, v, ok := strings.Cut(pair, "=")
		if !ok {
			continue
		}
		out[strings.TrimSpace(k)] = strings.TrimSpace(v)
	}
	return out
}
