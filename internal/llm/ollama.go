package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"mailtriage/pkg/circuitbreaker"
	"mailtriage/pkg/metrics"
	"mailtriage/pkg/trace"
)

// OllamaConfig 本地 Ollama 推理服务配置
type OllamaConfig struct {
	BaseURL     string        `yaml:"base_url"`
	Model       string        `yaml:"model"`
	Temperature float64       `yaml:"temperature"`
	Timeout     time.Duration `yaml:"timeout"`
}

// OllamaClient 调用 Ollama /api/generate，带熔断器
type OllamaClient struct {
	baseURL     string
	model       string
	temperature float64
	timeout     time.Duration
	httpClient  *http.Client
	cb          *circuitbreaker.CircuitBreaker
	logger      *zap.Logger
}

type generateRequest struct {
	Model   string         `json:"model"`
	Prompt  string         `json:"prompt"`
	Stream  bool           `json:"stream"`
	Format  string         `json:"format,omitempty"`
	Options map[string]any `json:"options,omitempty"`
}

type generateResponse struct {
	Model    string `json:"model"`
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

func NewOllamaClient(cfg OllamaConfig, logger *zap.Logger) *OllamaClient {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.Model == "" {
		cfg.Model = "llama3.2"
	}

	// 连续失败3次后打开，快速失败
	cbConfig := circuitbreaker.Config{
		FailureThreshold:    3,
		SuccessThreshold:    2,
		Timeout:             30 * time.Second,
		HalfOpenMaxRequests: 2,
		OnStateChange: func(from, to circuitbreaker.State) {
			metrics.RecordBreakerTransition(from.String(), to.String())
			logger.Warn("Model circuit breaker state changed",
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	}

	return &OllamaClient{
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		model:       cfg.Model,
		temperature: cfg.Temperature,
		timeout:     cfg.Timeout,
		// 超时由每次调用的 context 控制
		httpClient: &http.Client{},
		cb:         circuitbreaker.NewCircuitBreaker(cbConfig),
		logger:     logger,
	}
}

// Complete 发送 prompt；hint 为 json 时要求后端输出 JSON
func (c *OllamaClient) Complete(ctx context.Context, prompt string, hint SchemaHint) (Completion, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var out Completion
	err := c.cb.Execute(func() error {
		start := time.Now()
		resp, err := c.generate(ctx, prompt, hint)
		status := "success"
		if err != nil {
			status = "error"
		}
		metrics.RecordModelCallLatency(c.model, status, time.Since(start))
		if err != nil {
			return err
		}
		out = Completion{Text: resp.Response, Model: resp.Model}
		if out.Model == "" {
			out.Model = c.model
		}
		return nil
	})
	if err != nil {
		c.logger.Warn("Model call failed", zap.String("model", c.model), zap.Error(err))
		return Completion{}, classify("llm.Complete", err)
	}
	return out, nil
}

func (c *OllamaClient) generate(ctx context.Context, prompt string, hint SchemaHint) (*generateResponse, error) {
	body := generateRequest{
		Model:   c.model,
		Prompt:  prompt,
		Stream:  false,
		Format:  string(hint),
		Options: map[string]any{"temperature": c.temperature},
	}
	b, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/generate", bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	// 传播 trace_id
	if traceID := trace.FromContext(ctx); traceID != "" {
		req.Header.Set(trace.HeaderName(), traceID)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return nil, fmt.Errorf("model server 5xx: %d", resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("model server error: %d", resp.StatusCode)
	}

	var decoded generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("decode model response: %w", err)
	}
	return &decoded, nil
}

// Ping 检查推理服务是否可达，用于 readiness
func (c *OllamaClient) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/tags", nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("model server error: %d", resp.StatusCode)
	}
	return nil
}
