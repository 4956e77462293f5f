package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/bryanwahyu/sonifier/internal/domain/sonify"
)

type Config struct {
	Server struct {
		Port            int               `yaml:"port"`
		ReadTimeoutSec  int               `yaml:"readTimeoutSec"`
		WriteTimeoutSec int               `yaml:"writeTimeoutSec"`
		MaxUploadMB     int               `yaml:"maxUploadMB"`
		CORSOrigins     []string          `yaml:"corsOrigins"`
		APIKeys         map[string]string `yaml:"apiKeys"` // tenant -> key, empty disables auth
		RateLimit       struct {
			Capacity   int `yaml:"capacity"`
			RefillRate int `yaml:"refillRate"`
		} `yaml:"rateLimit"`
	} `yaml:"server"`

	Database struct {
		Driver   string `yaml:"driver"` // mysql | postgres | none
		Host     string `yaml:"host"`
		Port     int    `yaml:"port"`
		User     string `yaml:"user"`
		Password string `yaml:"password"`
		Name     string `yaml:"name"`
		SSLMode  string `yaml:"sslMode"`
		Migrate  bool   `yaml:"migrate"`
	} `yaml:"database"`

	Minio struct {
		Endpoint   string `yaml:"endpoint"`
		AccessKey  string `yaml:"accessKey"`
		SecretKey  string `yaml:"secretKey"`
		BucketName string `yaml:"bucketName"`
		Region     string `yaml:"region"`
		UseSSL     bool   `yaml:"useSSL"`
	} `yaml:"minio"`

	Storage struct {
		LocalDir string `yaml:"localDir"`
	} `yaml:"storage"`

	Models struct {
		Device        string   `yaml:"device"` // auto | cpu | cuda | mps
		OpenAIBaseURL string   `yaml:"openaiBaseURL"`
		OpenAIAPIKey  string   `yaml:"openaiAPIKey"`
		CaptionModel  string   `yaml:"captionModel"`
		MoodModel     string   `yaml:"moodModel"`
		MoodTags      []string `yaml:"moodTags"`
		TopK          int      `yaml:"topK"`
	} `yaml:"models"`

	Audio struct {
		Backend         string `yaml:"backend"` // http | cli
		ServiceURL      string `yaml:"serviceURL"`
		ServiceAPIKey   string `yaml:"serviceAPIKey"`
		MusicgenBin     string `yaml:"musicgenBin"`
		SampleRate      int    `yaml:"sampleRate"`
		DefaultDuration int    `yaml:"defaultDuration"`
		MaxDuration     int    `yaml:"maxDuration"`
	} `yaml:"audio"`

	Pipeline struct {
		MaxConcurrent     int `yaml:"maxConcurrent"`
		CaptionTimeoutSec int `yaml:"captionTimeoutSec"`
		MoodTimeoutSec    int `yaml:"moodTimeoutSec"`
		SynthTimeoutSec   int `yaml:"synthTimeoutSec"`
	} `yaml:"pipeline"`

	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"` // json | text
	} `yaml:"log"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	var c Config
	c.Server.Port = 8000
	c.Server.ReadTimeoutSec = 15
	c.Server.WriteTimeoutSec = 660
	c.Server.MaxUploadMB = 20
	c.Server.CORSOrigins = []string{"*"}
	c.Server.RateLimit.Capacity = 30
	c.Server.RateLimit.RefillRate = 1

	c.Database.Driver = "none"
	c.Database.SSLMode = "disable"

	c.Minio.BucketName = "sonifier"
	c.Storage.LocalDir = "outputs/web_audio"

	c.Models.Device = "auto"
	c.Models.OpenAIBaseURL = "http://localhost:11434/v1"
	c.Models.CaptionModel = "llava"
	c.Models.MoodModel = "llava"
	c.Models.MoodTags = append([]string(nil), sonify.DefaultMoodTags...)
	c.Models.TopK = 3

	c.Audio.Backend = "http"
	c.Audio.ServiceURL = "http://localhost:8001"
	c.Audio.SampleRate = 32000
	c.Audio.DefaultDuration = 10
	c.Audio.MaxDuration = 30

	c.Pipeline.MaxConcurrent = 1
	c.Pipeline.CaptionTimeoutSec = 60
	c.Pipeline.MoodTimeoutSec = 60
	c.Pipeline.SynthTimeoutSec = 240

	c.Log.Level = "info"
	c.Log.Format = "json"
	return &c
}

// Load baca file config.yaml. A missing file yields the defaults; env
// overrides are applied afterwards.
func Load(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return nil, err
	}
	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.Server.Port = envInt("SONIFIER_PORT", c.Server.Port)
	c.Database.Driver = envStr("SONIFIER_DB_DRIVER", c.Database.Driver)
	c.Database.Host = envStr("SONIFIER_DB_HOST", c.Database.Host)
	c.Database.Port = envInt("SONIFIER_DB_PORT", c.Database.Port)
	c.Database.User = envStr("SONIFIER_DB_USER", c.Database.User)
	c.Database.Password = envStr("SONIFIER_DB_PASSWORD", c.Database.Password)
	c.Database.Name = envStr("SONIFIER_DB_NAME", c.Database.Name)
	c.Minio.Endpoint = envStr("SONIFIER_MINIO_ENDPOINT", c.Minio.Endpoint)
	c.Minio.AccessKey = envStr("SONIFIER_MINIO_ACCESS_KEY", c.Minio.AccessKey)
	c.Minio.SecretKey = envStr("SONIFIER_MINIO_SECRET_KEY", c.Minio.SecretKey)
	c.Models.Device = envStr("SONIFIER_DEVICE", c.Models.Device)
	c.Models.OpenAIBaseURL = envStr("SONIFIER_OPENAI_BASE_URL", c.Models.OpenAIBaseURL)
	c.Models.OpenAIAPIKey = envStr("OPENAI_API_KEY", c.Models.OpenAIAPIKey)
	c.Audio.Backend = envStr("SONIFIER_AUDIO_BACKEND", c.Audio.Backend)
	c.Audio.ServiceURL = envStr("SONIFIER_AUDIO_URL", c.Audio.ServiceURL)
	c.Audio.ServiceAPIKey = envStr("SONIFIER_AUDIO_API_KEY", c.Audio.ServiceAPIKey)
	c.Audio.MusicgenBin = envStr("SONIFIER_MUSICGEN_BIN", c.Audio.MusicgenBin)
	c.Audio.MaxDuration = envInt("SONIFIER_MAX_DURATION", c.Audio.MaxDuration)
	c.Log.Level = envStr("SONIFIER_LOG_LEVEL", c.Log.Level)
}

// Validate rejects configurations the pipeline cannot run with.
func (c *Config) Validate() error {
	if c.Audio.MaxDuration < 1 {
		return fmt.Errorf("audio.maxDuration must be >= 1, got %d", c.Audio.MaxDuration)
	}
	if c.Audio.DefaultDuration < 1 || c.Audio.DefaultDuration > c.Audio.MaxDuration {
		return fmt.Errorf("audio.defaultDuration %d outside [1, %d]", c.Audio.DefaultDuration, c.Audio.MaxDuration)
	}
	switch c.Database.Driver {
	case "mysql", "postgres", "none":
	default:
		return fmt.Errorf("unknown database.driver %q", c.Database.Driver)
	}
	switch c.Audio.Backend {
	case "http":
		if c.Audio.ServiceURL == "" {
			return errors.New("audio.serviceURL is required for the http backend")
		}
	case "cli":
		if c.Audio.MusicgenBin == "" {
			return errors.New("audio.musicgenBin is required for the cli backend")
		}
	default:
		return fmt.Errorf("unknown audio.backend %q", c.Audio.Backend)
	}
	if len(c.Models.MoodTags) == 0 {
		return errors.New("models.moodTags must not be empty")
	}
	if c.Models.TopK < 1 {
		return fmt.Errorf("models.topK must be >= 1, got %d", c.Models.TopK)
	}
	// 0 disables the write timeout; otherwise it must outlive a sync request with one synth retry
	if worst := c.WorstCaseSec(); c.Server.WriteTimeoutSec > 0 && c.Server.WriteTimeoutSec < worst {
		return fmt.Errorf("server.writeTimeoutSec %d is shorter than the worst pipeline run (%ds)", c.Server.WriteTimeoutSec, worst)
	}
	if c.Pipeline.MaxConcurrent < 1 {
		return fmt.Errorf("pipeline.maxConcurrent must be >= 1, got %d", c.Pipeline.MaxConcurrent)
	}
	return nil
}

// Helper untuk build DSN MySQL
func (c *Config) MySQLDSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true&charset=utf8mb4&loc=UTC",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Name,
	)
}

// PostgresDSN builds a lib/pq connection string.
func (c *Config) PostgresDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Database.Host,
		c.Database.Port,
		c.Database.User,
		c.Database.Password,
		c.Database.Name,
		c.Database.SSLMode,
	)
}

func (c *Config) ReadTimeout() time.Duration  { return seconds(c.Server.ReadTimeoutSec) }
func (c *Config) WriteTimeout() time.Duration { return seconds(c.Server.WriteTimeoutSec) }
func (c *Config) CaptionTimeout() time.Duration {
	return seconds(c.Pipeline.CaptionTimeoutSec)
}
func (c *Config) MoodTimeout() time.Duration  { return seconds(c.Pipeline.MoodTimeoutSec) }
func (c *Config) SynthTimeout() time.Duration { return seconds(c.Pipeline.SynthTimeoutSec) }

// WorstCaseSec is caption + mood + synthesis + one synthesis retry.
func (c *Config) WorstCaseSec() int {
	p := c.Pipeline
	return p.CaptionTimeoutSec + p.MoodTimeoutSec + 2*p.SynthTimeoutSec
}

func seconds(n int) time.Duration { return time.Duration(n) * time.Second }

func envStr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
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
