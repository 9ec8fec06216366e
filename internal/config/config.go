// Package config loads worker configuration from the environment. A .env
// file next to the binary is honored when present so local setups match the
// docker-compose deployment.
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Mongo holds metadata store settings.
type Mongo struct {
	URI    string
	DBName string
}

// Rabbit holds message bus settings.
type Rabbit struct {
	URL               string
	FramesQueue       string
	DetectionsQueue   string
	RecognitionsQueue string
	Prefetch          int
}

// Minio holds object store settings.
type Minio struct {
	Endpoint           string
	AccessKey          string
	SecretKey          string
	UseSSL             bool
	FramesBucket       string
	DetectionsBucket   string
	RecognitionsBucket string
}

// Models holds the external detector/embedder endpoints and tuning.
type Models struct {
	DetectorURL    string
	EmbedderURL    string
	ModelName      string
	MinConfidence  float64
	ModelSelection int
	MatchVoteRatio float64
	PoolSize       int
}

// Capture holds capture worker tuning.
type Capture struct {
	Source    string
	TagVideo  string
	FPS       float64
	FrameSkip int
	Duration  float64 // seconds, 0 = unbounded
	PoolSize  int
}

// Config is the full environment for one worker process. Workers read only
// the sections they need.
type Config struct {
	Mongo   Mongo
	Rabbit  Rabbit
	Minio   Minio
	Models  Models
	Capture Capture
	OpsAddr string
}

// Load reads the environment (plus an optional .env file) into a Config.
func Load() (*Config, error) {
	// Missing .env is fine; explicit environment always wins.
	_ = godotenv.Load()

	cfg := &Config{
		Mongo: Mongo{
			URI:    getEnv("MONGO_URI", "mongodb://localhost:27017"),
			DBName: getEnv("MONGO_DB_NAME", "presenca"),
		},
		Rabbit: Rabbit{
			URL:               getEnv("RABBITMQ_URL", "amqp://guest:guest@"+getEnv("RABBITMQ_HOST", "localhost")+":5672/"),
			FramesQueue:       getEnv("FRAMES_QUEUE", "frames"),
			DetectionsQueue:   getEnv("DETECTIONS_QUEUE", "deteccoes"),
			RecognitionsQueue: getEnv("RECOGNITIONS_QUEUE", "reconhecimentos"),
			Prefetch:          getEnvInt("PREFETCH_COUNT", 10),
		},
		Minio: Minio{
			Endpoint:           getEnv("MINIO_ENDPOINT", "localhost:9000"),
			AccessKey:          getEnv("MINIO_ACCESS_KEY", ""),
			SecretKey:          getEnv("MINIO_SECRET_KEY", ""),
			UseSSL:             getEnv("MINIO_USE_SSL", "false") == "true",
			FramesBucket:       getEnv("FRAMES_BUCKET", "frames"),
			DetectionsBucket:   getEnv("DETECTIONS_BUCKET", "deteccoes"),
			RecognitionsBucket: getEnv("RECOGNITIONS_BUCKET", "reconhecimentos"),
		},
		Models: Models{
			DetectorURL:    getEnv("DETECTOR_URL", "http://localhost:8100"),
			EmbedderURL:    getEnv("EMBEDDER_URL", "http://localhost:8101"),
			ModelName:      getEnv("MODEL_NAME", "Facenet512"),
			MinConfidence:  getEnvFloat("MIN_DETECTION_CONFIDENCE", 0.5),
			ModelSelection: getEnvInt("MODEL_SELECTION", 1),
			MatchVoteRatio: getEnvFloat("MATCH_VOTE_RATIO", 0.20),
			PoolSize:       getEnvInt("CPU_POOL_SIZE", 4),
		},
		Capture: Capture{
			Source:    getEnv("CAPTURE_SOURCE", ""),
			TagVideo:  getEnv("TAG_VIDEO", ""),
			FPS:       getEnvFloat("CAPTURE_FPS", 20),
			FrameSkip: getEnvInt("FRAME_SKIP", 10),
			Duration:  getEnvFloat("CAPTURE_DURATION", 0),
			PoolSize:  getEnvInt("UPLOAD_POOL_SIZE", 4),
		},
		OpsAddr: getEnv("OPS_ADDR", ":8090"),
	}

	if cfg.Rabbit.Prefetch <= 0 {
		return nil, fmt.Errorf("PREFETCH_COUNT must be positive, got %d", cfg.Rabbit.Prefetch)
	}
	if cfg.Capture.FrameSkip <= 0 {
		return nil, fmt.Errorf("FRAME_SKIP must be positive, got %d", cfg.Capture.FrameSkip)
	}
	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}
