package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"strconv"
	"time"

	"mailtriage/internal/llm"
	"mailtriage/internal/model"
	"mailtriage/pkg/config"
)

// CalendarConfig 日历服务；URL 为空时使用固定预约链接
type CalendarConfig struct {
	URL     string        `yaml:"url"`
	Link    string        `yaml:"link"`
	Timeout time.Duration `yaml:"timeout"`
}

// WorkerConfig 并发和重投
type WorkerConfig struct {
	Concurrency int   `yaml:"concurrency"`
	MaxRetries  int64 `yaml:"max_retries"`
}

type Config struct {
	Debug    bool                `yaml:"debug"`
	Policy   model.Policy        `yaml:"policy"`
	Ollama   llm.OllamaConfig    `yaml:"ollama"`
	Calendar CalendarConfig      `yaml:"calendar"`
	Worker   WorkerConfig        `yaml:"worker"`
	DB       config.DBConfig     `yaml:"db"`
	MQ       config.MQConfig     `yaml:"mq"`
	Redis    config.RedisConfig  `yaml:"redis"`
	JWT      config.JWTConfig    `yaml:"jwt"`
	Server   config.ServerConfig `yaml:"server"`
	OTel     config.OTelConfig   `yaml:"otel"`
}

// Load reads base.yaml plus the env overlay from dir, applies environment
// overrides and fills defaults. Policy keys absent from the files keep
// their defaults; keys set to zero stay zero. The returned config has been
// validated.
func Load(env, dir string) (*Config, error) {
	cfg := Config{Policy: model.DefaultPolicy()}
	if err := config.LoadInto(env, dir, &cfg); err != nil {
		return nil, err
	}

	// 环境变量覆盖
	config.OverrideDBFromEnv(&cfg.DB)
	config.OverrideMQFromEnv(&cfg.MQ)
	config.OverrideRedisFromEnv(&cfg.Redis)
	config.OverrideJWTFromEnv(&cfg.JWT)
	config.OverrideServerFromEnv(&cfg.Server)
	config.OverrideOTelFromEnv(&cfg.OTel)
	if url := os.Getenv("OLLAMA_URL"); url != "" {
		cfg.Ollama.BaseURL = url
	}
	if m := os.Getenv("OLLAMA_MODEL"); m != "" {
		cfg.Ollama.Model = m
	}
	if url := os.Getenv("CALENDAR_URL"); url != "" {
		cfg.Calendar.URL = url
	}
	if v := os.Getenv("TRIAGE_CONCURRENCY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Worker.Concurrency = n
		}
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	c.Policy = c.Policy.WithDefaults()
	if c.Ollama.BaseURL == "" {
		c.Ollama.BaseURL = "http://localhost:11434"
	}
	if c.Ollama.Model == "" {
		c.Ollama.Model = "llama3"
	}
	if c.Ollama.Timeout == 0 {
		c.Ollama.Timeout = c.Policy.ModelTimeout
	}
	if c.Worker.Concurrency <= 0 {
		c.Worker.Concurrency = 4
	}
	if c.Worker.MaxRetries <= 0 {
		c.Worker.MaxRetries = 5
	}
	if c.Server.Port == "" {
		c.Server.Port = ":8080"
	}
}

// Validate rejects values the engine cannot run with.
func (c *Config) Validate() error {
	var errs []error
	p := c.Policy
	if math.IsNaN(p.LowConfidenceThreshold) || p.LowConfidenceThreshold < 0 || p.LowConfidenceThreshold > 1 {
		errs = append(errs, fmt.Errorf("policy.low_confidence_threshold must be in [0,1], got %v", p.LowConfidenceThreshold))
	}
	if p.MaxRedraftAttempts < 0 {
		errs = append(errs, fmt.Errorf("policy.max_redraft_attempts must be >= 0, got %d", p.MaxRedraftAttempts))
	}
	if p.MaxSteps < 1 {
		errs = append(errs, fmt.Errorf("policy.max_steps must be >= 1, got %d", p.MaxSteps))
	}
	if p.ModelTimeout < 0 || p.RetryBackoff < 0 {
		errs = append(errs, errors.New("policy timeouts must not be negative"))
	}
	if p.Guardrails.MinLength < 0 || p.Guardrails.MaxExclamations < 0 {
		errs = append(errs, errors.New("policy.guardrails limits must not be negative"))
	}
	if p.Guardrails.MaxLength > 0 && p.Guardrails.MinLength > p.Guardrails.MaxLength {
		errs = append(errs, errors.New("policy.guardrails.min_length exceeds max_length"))
	}
	if c.Calendar.URL == "" && c.Calendar.Link == "" {
		errs = append(errs, errors.New("calendar.url or calendar.link is required"))
	}
	return errors.Join(errs...)
}
