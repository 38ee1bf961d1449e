package config

import (
	_ "embed"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

//go:embed models.yaml
var modelsYAML []byte

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Models   ModelsConfig
	Match    MatchConfig
	Auth     AuthConfig
	Manifest ModelManifest
}

type ServerConfig struct {
	Host string
	Port int
}

type DatabaseConfig struct {
	URL          string // PostgreSQL connection URL
	MaxOpenConns int    // Maximum open connections (default 25)
	MaxIdleConns int    // Maximum idle connections (default 5)
}

type ModelsConfig struct {
	Dir string // directory holding the model weight files (default "models")
}

// MatchConfig holds the empirically tuned recognition constants. Both were
// literals in early builds; they are environment-tunable so a threshold
// change does not require a rebuild.
type MatchConfig struct {
	Threshold          float64 // max Euclidean distance for an accepted match (default 0.8)
	DetectorConfidence float64 // min detection score for the DNN detector (default 0.5)
	MaxUploadBytes     int64   // multipart upload cap (default 10 MiB)
	MaxImageDim        int     // uploads are downscaled to fit this edge before detection
}

type AuthConfig struct {
	JWTSigningKey string
	JWTIssuer     string
	AccessTTLMin  int
}

// ModelManifest describes the on-disk model artifacts. It is embedded at
// build time; provisioning the files themselves is an operational concern.
type ModelManifest struct {
	Detector DetectorManifest `yaml:"detector"`
	Cascade  CascadeManifest  `yaml:"cascade"`
	Embedder EmbedderManifest `yaml:"embedder"`
}

type DetectorManifest struct {
	Prototxt    string    `yaml:"prototxt"`
	Weights     string    `yaml:"weights"`
	InputWidth  int       `yaml:"input_width"`
	InputHeight int       `yaml:"input_height"`
	Mean        []float64 `yaml:"mean"`
	Scale       float64   `yaml:"scale"`
}

type CascadeManifest struct {
	File string `yaml:"file"`
}

type EmbedderManifest struct {
	Weights   string  `yaml:"weights"`
	InputSize int     `yaml:"input_size"`
	Scale     float64 `yaml:"scale"`
	SwapRB    bool    `yaml:"swap_rb"`
	Dim       int     `yaml:"dim"`
}

// envInt reads an environment variable and parses it as a positive integer.
// Returns the default value if the env var is unset, empty, or invalid.
func envInt(key string, defaultVal int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return n
	}
	return defaultVal
}

// envFloat reads an environment variable and parses it as a positive float.
// Returns the default value if the env var is unset, empty, or invalid.
func envFloat(key string, defaultVal float64) float64 {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && f > 0 {
		return f
	}
	return defaultVal
}

func envString(key, defaultVal string) string {
	if s := os.Getenv(key); s != "" {
		return s
	}
	return defaultVal
}

func Load() *Config {
	var manifest ModelManifest
	if err := yaml.Unmarshal(modelsYAML, &manifest); err != nil {
		// This is an embedded file so this error should never happen in practice
		panic("failed to unmarshal embedded models.yaml: " + err.Error())
	}

	return &Config{
		Server: ServerConfig{
			Host: envString("HTTP_HOST", "0.0.0.0"),
			Port: envInt("HTTP_PORT", 8080),
		},
		Database: DatabaseConfig{
			URL:          os.Getenv("DATABASE_URL"),
			MaxOpenConns: envInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns: envInt("DATABASE_MAX_IDLE_CONNS", 5),
		},
		Models: ModelsConfig{
			Dir: envString("MODELS_DIR", "models"),
		},
		Match: MatchConfig{
			Threshold:          envFloat("FACE_MATCH_THRESHOLD", 0.8),
			DetectorConfidence: envFloat("FACE_DETECTOR_CONFIDENCE", 0.5),
			MaxUploadBytes:     int64(envInt("MAX_UPLOAD_BYTES", 10<<20)),
			MaxImageDim:        envInt("MAX_IMAGE_DIM", 1600),
		},
		Auth: AuthConfig{
			JWTSigningKey: envString("JWT_SIGNING_KEY", "dev-signing-secret-change"),
			JWTIssuer:     envString("JWT_ISSUER", "faceattend"),
			AccessTTLMin:  envInt("ACCESS_TTL_MIN", 60),
		},
		Manifest: manifest,
	}
}
