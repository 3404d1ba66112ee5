package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config stores runtime configuration for the interview client.
type Config struct {
	Backend BackendConfig `yaml:"backend"`
	Audio   AudioConfig   `yaml:"audio"`
	Session SessionConfig `yaml:"session"`
	Speech  SpeechConfig  `yaml:"speech"`
	Logging LoggingConfig `yaml:"logging"`
	Metrics MetricsConfig `yaml:"metrics"`
}

type BackendConfig struct {
	BaseURL       string `yaml:"base_url"`
	DialTimeoutMS int    `yaml:"dial_timeout_ms"`
}

type AudioConfig struct {
	RecorderCommand  string `yaml:"recorder_command"`
	InputFormat      string `yaml:"input_format"`
	InputDevice      string `yaml:"input_device"`
	SampleRate       int    `yaml:"sample_rate"`
	FrameSamples     int    `yaml:"frame_samples"`
	EchoCancellation bool   `yaml:"echo_cancellation"`
	NoiseSuppression bool   `yaml:"noise_suppression"`
	VideoPreview     bool   `yaml:"video_preview"`
}

type SessionConfig struct {
	ChunkSeconds     int `yaml:"chunk_seconds"`
	AnalyzingDelayMS int `yaml:"analyzing_delay_ms"`
}

type SpeechConfig struct {
	PreferredVoice string  `yaml:"preferred_voice"`
	Language       string  `yaml:"language"`
	Rate           float64 `yaml:"rate"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

// DialTimeout returns the websocket handshake timeout.
func (c BackendConfig) DialTimeout() time.Duration {
	return time.Duration(c.DialTimeoutMS) * time.Millisecond
}

// AnalyzingDelay returns the delay before the "please wait" status.
func (c SessionConfig) AnalyzingDelay() time.Duration {
	return time.Duration(c.AnalyzingDelayMS) * time.Millisecond
}

// Defaults returns the configuration used when nothing is set.
func Defaults() Config {
	return Config{
		Backend: BackendConfig{
			BaseURL:       "ws://localhost:8000",
			DialTimeoutMS: 10000,
		},
		Audio: AudioConfig{
			RecorderCommand:  "ffmpeg",
			InputFormat:      "pulse",
			InputDevice:      "default",
			SampleRate:       16000,
			FrameSamples:     4096,
			EchoCancellation: true,
			NoiseSuppression: true,
			VideoPreview:     true,
		},
		Session: SessionConfig{
			ChunkSeconds:     10,
			AnalyzingDelayMS: 2000,
		},
		Speech: SpeechConfig{
			PreferredVoice: "Alex",
			Language:       "en",
			Rate:           1.2,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load resolves configuration from .env, an optional YAML file named by
// INTERVIEW_CONFIG_FILE, and environment variables, in increasing priority.
func Load() (Config, error) {
	return load(".env")
}

func load(envFiles ...string) (Config, error) {
	for _, file := range envFiles {
		if err := godotenv.Load(file); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("failed to load %s: %w", file, err)
		}
	}

	cfg := Defaults()
	if path := strings.TrimSpace(os.Getenv("INTERVIEW_CONFIG_FILE")); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	cfg.Backend.BaseURL = envOrDefault("INTERVIEW_WS_URL", cfg.Backend.BaseURL)
	cfg.Backend.DialTimeoutMS = envOrDefaultInt("INTERVIEW_DIAL_TIMEOUT_MS", cfg.Backend.DialTimeoutMS)

	cfg.Audio.RecorderCommand = envOrDefault("INTERVIEW_FFMPEG_COMMAND", cfg.Audio.RecorderCommand)
	cfg.Audio.InputFormat = envOrDefault("INTERVIEW_AUDIO_INPUT_FORMAT", cfg.Audio.InputFormat)
	cfg.Audio.InputDevice = envOrDefault("INTERVIEW_AUDIO_INPUT_DEVICE", cfg.Audio.InputDevice)
	cfg.Audio.SampleRate = envOrDefaultInt("INTERVIEW_SAMPLE_RATE", cfg.Audio.SampleRate)
	cfg.Audio.FrameSamples = envOrDefaultInt("INTERVIEW_FRAME_SAMPLES", cfg.Audio.FrameSamples)
	cfg.Audio.EchoCancellation = envOrDefaultBool("INTERVIEW_ECHO_CANCELLATION", cfg.Audio.EchoCancellation)
	cfg.Audio.NoiseSuppression = envOrDefaultBool("INTERVIEW_NOISE_SUPPRESSION", cfg.Audio.NoiseSuppression)
	cfg.Audio.VideoPreview = envOrDefaultBool("INTERVIEW_VIDEO_PREVIEW", cfg.Audio.VideoPreview)

	cfg.Session.ChunkSeconds = envOrDefaultInt("INTERVIEW_CHUNK_SECONDS", cfg.Session.ChunkSeconds)
	cfg.Session.AnalyzingDelayMS = envOrDefaultInt("INTERVIEW_ANALYZING_DELAY_MS", cfg.Session.AnalyzingDelayMS)

	cfg.Speech.PreferredVoice = envOrDefault("INTERVIEW_PREFERRED_VOICE", cfg.Speech.PreferredVoice)
	cfg.Speech.Language = envOrDefault("INTERVIEW_SPEECH_LANGUAGE", cfg.Speech.Language)
	cfg.Speech.Rate = envOrDefaultFloat("INTERVIEW_SPEECH_RATE", cfg.Speech.Rate)

	cfg.Logging.Level = strings.ToLower(envOrDefault("INTERVIEW_LOG_LEVEL", cfg.Logging.Level))
	cfg.Logging.Format = strings.ToLower(envOrDefault("INTERVIEW_LOG_FORMAT", cfg.Logging.Format))

	cfg.Metrics.Addr = envOrDefault("INTERVIEW_METRICS_ADDR", cfg.Metrics.Addr)

	cfg.normalize()
	return cfg, nil
}

// normalize replaces invalid values with defaults.
func (c *Config) normalize() {
	def := Defaults()
	if c.Backend.BaseURL == "" {
		c.Backend.BaseURL = def.Backend.BaseURL
	}
	if c.Backend.DialTimeoutMS <= 0 {
		c.Backend.DialTimeoutMS = def.Backend.DialTimeoutMS
	}
	if c.Audio.RecorderCommand == "" {
		c.Audio.RecorderCommand = def.Audio.RecorderCommand
	}
	if c.Audio.SampleRate <= 0 {
		c.Audio.SampleRate = def.Audio.SampleRate
	}
	if c.Audio.FrameSamples < 256 {
		c.Audio.FrameSamples = def.Audio.FrameSamples
	}
	if c.Session.ChunkSeconds <= 0 {
		c.Session.ChunkSeconds = def.Session.ChunkSeconds
	}
	if c.Session.AnalyzingDelayMS <= 0 {
		c.Session.AnalyzingDelayMS = def.Session.AnalyzingDelayMS
	}
	if c.Speech.Rate <= 0 {
		c.Speech.Rate = def.Speech.Rate
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		c.Logging.Level = def.Logging.Level
	}
	switch c.Logging.Format {
	case "text", "json":
	default:
		c.Logging.Format = def.Logging.Format
	}
}

func envOrDefault(key string, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}

func envOrDefaultInt(key string, fallback int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func envOrDefaultFloat(key string, fallback float64) float64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func envOrDefaultBool(key string, fallback bool) bool {
	value := strings.TrimSpace(strings.ToLower(os.Getenv(key)))
	switch value {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}
