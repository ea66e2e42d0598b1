package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

const (
	minWorkers = 1
	maxWorkers = 64
)

type Config struct {
	Port        int
	NatsURL     string
	NatsToken   string
	DatabaseURL string
	LogLevel    string

	InputDir         string
	OutputDir        string
	ScoresPath       string
	OutputFormat     string // json or jsonl
	Workers          int
	SegmentVisits    bool
	ExtractTurns     bool
	FallbackEncoding string // "" or gb18030

	NERSubject string
	ChunkChars int
}

// Load reads configuration from the environment. A .env file in the working
// directory is applied first; variables already set take precedence.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		Port:        envInt("CASENOTE_PORT", 8760),
		NatsURL:     envStr("NATS_URL", ""),
		NatsToken:   envStr("NATS_TOKEN", ""),
		DatabaseURL: envStr("DATABASE_URL", ""),
		LogLevel:    envStr("LOG_LEVEL", "info"),

		InputDir:         envStr("CASENOTE_INPUT_DIR", "data/transcripts"),
		OutputDir:        envStr("CASENOTE_OUTPUT_DIR", "data/output"),
		ScoresPath:       envStr("CASENOTE_SCORES_PATH", ""),
		OutputFormat:     envFormat("CASENOTE_OUTPUT_FORMAT", "json"),
		Workers:          clamp(envInt("CASENOTE_WORKERS", 4), minWorkers, maxWorkers),
		SegmentVisits:    envBool("CASENOTE_SEGMENT_VISITS", true),
		ExtractTurns:     envBool("CASENOTE_EXTRACT_TURNS", true),
		FallbackEncoding: strings.ToLower(envStr("CASENOTE_FALLBACK_ENCODING", "")),

		NERSubject: envStr("CASENOTE_NER_SUBJECT", "clinical.ner.detect"),
		ChunkChars: envInt("CASENOTE_CHUNK_CHARS", 400),
	}
}

// ClampWorkers bounds a worker count to the supported range.
func ClampWorkers(n int) int {
	return clamp(n, minWorkers, maxWorkers)
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envFormat(key, fallback string) string {
	switch v := strings.ToLower(os.Getenv(key)); v {
	case "json", "jsonl":
		return v
	default:
		return fallback
	}
}

func clamp(n, lo, hi int) int {
	if n < lo {
		return lo
	}
	if n > hi {
		return hi
	}
	return n
}
