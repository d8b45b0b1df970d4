package config

import (
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/LdDl/headcount/internal/monitoring"
	"github.com/LdDl/headcount/internal/session"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
)

// Prefix of every environment variable read by LoadConfig
const Prefix = "HEADCOUNT_"

// Config is the service configuration
type Config struct {
	VideoPath   string
	ProofDir    string
	DBPath      string
	HTTPAddr    string
	ModelPath   string
	DetectorURL string

	Seconds        float64
	StartTimeSec   float64
	SubsampleEvery int
	MaxDisappeared int
	Workers        int

	ConfThreshold float64
	ImageSize     int
	ClassID       int
	Label         string

	LogLevel    string
	LogFormat   string
	CountsChart bool
}

// LoadConfig reads optional dotenv files (".env" when none given) and then environment variables.
// Values that can't be parsed are reported as session.ErrInvalidConfiguration.
func LoadConfig(files ...string) (*Config, error) {
	if err := godotenv.Load(files...); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, errors.Wrap(err, "can't load dotenv file")
		}
		monitoring.Logger.Debug("No .env file found, using environment variables only")
	}

	env := envReader{}
	cfg := &Config{
		VideoPath:   env.str("VIDEO_PATH", "data/video.mp4"),
		ProofDir:    env.str("PROOF_DIR", "proofs"),
		DBPath:      env.str("DB_PATH", "headcount.db"),
		HTTPAddr:    env.str("HTTP_ADDR", ":8000"),
		ModelPath:   env.str("MODEL_PATH", "yolov8n.onnx"),
		DetectorURL: env.str("DETECTOR_URL", ""),

		Seconds:        env.number("SECONDS", 5),
		StartTimeSec:   env.number("START_TIME_SEC", 0),
		SubsampleEvery: env.integer("SUBSAMPLE_EVERY", 1),
		MaxDisappeared: env.integer("MAX_DISAPPEARED", 10),
		Workers:        env.integer("WORKERS", 1),

		ConfThreshold: env.number("CONF_THRESHOLD", 0.35),
		ImageSize:     env.integer("IMAGE_SIZE", 640),
		ClassID:       env.integer("CLASS_ID", 0),
		Label:         env.str("LABEL", "persons"),

		LogLevel:    env.str("LOG_LEVEL", "info"),
		LogFormat:   env.str("LOG_FORMAT", "text"),
		CountsChart: env.flag("COUNTS_CHART", false),
	}
	if env.err != nil {
		return nil, env.err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks detector and session settings
func (c *Config) Validate() error {
	if c.ConfThreshold < 0 || c.ConfThreshold > 1 {
		return errors.Wrapf(session.ErrInvalidConfiguration, "confidence threshold %v is out of [0, 1]", c.ConfThreshold)
	}
	if c.ImageSize <= 0 {
		return errors.Wrapf(session.ErrInvalidConfiguration, "image size must be positive, got %d", c.ImageSize)
	}
	if c.ClassID < 0 {
		return errors.Wrapf(session.ErrInvalidConfiguration, "class id must be >= 0, got %d", c.ClassID)
	}
	return c.SessionOptions().Validate()
}

// SessionOptions maps configuration to session tuning
func (c *Config) SessionOptions() session.Options {
	return session.Options{
		MaxDisappeared: c.MaxDisappeared,
		Seconds:        c.Seconds,
		StartTimeSec:   c.StartTimeSec,
		SubsampleEvery: c.SubsampleEvery,
		Workers:        c.Workers,
		Label:          c.Label,
	}
}

// envReader keeps the first parse error so all variables could be read in one pass
type envReader struct {
	err error
}

func (r *envReader) lookup(key string) (string, bool) {
	v, ok := os.LookupEnv(Prefix + key)
	v = strings.TrimSpace(v)
	return v, ok && v != ""
}

func (r *envReader) str(key, defaultVal string) string {
	if v, ok := r.lookup(key); ok {
		return v
	}
	return defaultVal
}

func (r *envReader) integer(key string, defaultVal int) int {
	v, ok := r.lookup(key)
	if !ok {
		return defaultVal
	}
	parsed, err := strconv.Atoi(v)
	if err != nil {
		r.fail(key, v, "integer")
		return defaultVal
	}
	return parsed
}

func (r *envReader) number(key string, defaultVal float64) float64 {
	v, ok := r.lookup(key)
	if !ok {
		return defaultVal
	}
	parsed, err := strconv.ParseFloat(v, 64)
	if err != nil {
		r.fail(key, v, "number")
		return defaultVal
	}
	return parsed
}

func (r *envReader) flag(key string, defaultVal bool) bool {
	v, ok := r.lookup(key)
	if !ok {
		return defaultVal
	}
	parsed, err := strconv.ParseBool(v)
	if err != nil {
		r.fail(key, v, "boolean")
		return defaultVal
	}
	return parsed
}

func (r *envReader) fail(key, value, kind string) {
	if r.err == nil {
		r.err = errors.Wrapf(session.ErrInvalidConfiguration, "%s%s=%q is not a valid %s", Prefix, key, value, kind)
	}
}
