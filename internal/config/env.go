package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port string

	// AI backend
	GeminiAPIKey string
	GenModel     string
	TitleModel   string

	// Upload cache
	CacheDir         string
	CacheTTL         time.Duration
	MaxMediaBytes    int64
	MaxDocumentBytes int64

	// Task store
	TaskRetention time.Duration

	// Transcoding
	FFmpegPath          string
	FFprobePath         string
	EncodeTimeout       time.Duration
	EncodeTargetBytes   int64
	EncodeCeilingBytes  int64
	AudioBitrateMinKbps int
	AudioBitrateMaxKbps int
	VideoBitrateMinKbps int
	VideoBitrateMaxKbps int
	RetryReduction      float64

	// Object storage (artifacts, S3 or compatible)
	AwsAccessKey string
	AwsSecretKey string
	AwsRegion    string
	S3Endpoint   string
	BucketName   string

	// Google Drive (office conversion + saved documents)
	GoogleClientID     string
	GoogleClientSecret string
	GoogleTokenPath    string
	DriveMdFolderID    string
	DrivePdfFolderID   string
}

// LoadConfig loads the environment variables and return config
func LoadConfig() *Config {

	_ = godotenv.Load()

	return &Config{
		Port: getEnv("PORT", "8080"),

		GeminiAPIKey: getEnv("GEMINI_API_KEY", ""),
		GenModel:     getEnv("GEN_MODEL", "gemini-2.5-flash"),
		TitleModel:   getEnv("TITLE_MODEL", "gemini-2.0-flash"),

		CacheDir:         getEnv("CACHE_DIR", os.TempDir()),
		CacheTTL:         getEnvDuration("CACHE_TTL", 15*time.Minute),
		MaxMediaBytes:    getEnvInt64("MAX_MEDIA_SIZE_MB", 100) << 20,
		MaxDocumentBytes: getEnvInt64("MAX_DOCUMENT_SIZE_MB", 50) << 20,

		TaskRetention: getEnvDuration("TASK_RETENTION", 30*time.Minute),

		FFmpegPath:          getEnv("FFMPEG_PATH", "ffmpeg"),
		FFprobePath:         getEnv("FFPROBE_PATH", "ffprobe"),
		EncodeTimeout:       getEnvDuration("ENCODE_TIMEOUT", 5*time.Minute),
		EncodeTargetBytes:   getEnvInt64("ENCODE_TARGET_MB", 95) << 20,
		EncodeCeilingBytes:  getEnvInt64("ENCODE_CEILING_MB", 100) << 20,
		AudioBitrateMinKbps: getEnvInt("AUDIO_BITRATE_MIN_KBPS", 64),
		AudioBitrateMaxKbps: getEnvInt("AUDIO_BITRATE_MAX_KBPS", 320),
		VideoBitrateMinKbps: getEnvInt("VIDEO_BITRATE_MIN_KBPS", 256),
		VideoBitrateMaxKbps: getEnvInt("VIDEO_BITRATE_MAX_KBPS", 8000),
		RetryReduction:      getEnvFloat("ENCODE_RETRY_REDUCTION", 0.85),

		AwsAccessKey: getEnv("AWS_ACCESS_KEY", ""),
		AwsSecretKey: getEnv("AWS_SECRET_KEY", ""),
		AwsRegion:    getEnv("AWS_REGION", "auto"),
		S3Endpoint:   getEnv("S3_ENDPOINT", ""),
		BucketName:   getEnv("BUCKET_NAME", ""),

		GoogleClientID:     getEnv("GOOGLE_CLIENT_ID", ""),
		GoogleClientSecret: getEnv("GOOGLE_CLIENT_SECRET", ""),
		GoogleTokenPath:    getEnv("GOOGLE_TOKEN_PATH", ".google-token.json"),
		DriveMdFolderID:    getEnv("GOOGLE_DRIVE_MD_FOLDER_ID", ""),
		DrivePdfFolderID:   getEnv("GOOGLE_DRIVE_PDF_FOLDER_ID", ""),
	}
}

// Helper to read environment variables with a default fallback
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvInt(key string, def int) int {
	v := getEnv(key, "")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("WARN: %s=%q not an int, using default %d", key, v, def)
		return def
	}
	return n
}

func getEnvInt64(key string, def int64) int64 {
	v := getEnv(key, "")
	if v == "" {
		return def
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		log.Printf("WARN: %s=%q not an int, using default %d", key, v, def)
		return def
	}
	return n
}

func getEnvFloat(key string, def float64) float64 {
	v := getEnv(key, "")
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		log.Printf("WARN: %s=%q not a float, using default %g", key, v, def)
		return def
	}
	return f
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	v := getEnv(key, "")
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		log.Printf("WARN: %s=%q not a duration, using default %s", key, v, def)
		return def
	}
	return d
}
