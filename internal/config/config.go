package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/cloudwego/eino-ext/components/model/ollama"
	"github.com/cloudwego/eino/components/model"
	"github.com/ollama/ollama/api"
)

// ErrConfiguration 标记缺失或非法的配置项，启动阶段遇到时应直接退出。
var ErrConfiguration = errors.New("configuration error")

const (
	ProviderOllama = "ollama"
	ProviderArk    = "ark"

	BackendLocal = "local"
	BackendMinIO = "minio"

	DefaultModel       = "llama3.2"
	DefaultTemperature = 0.7
	DefaultMaxTokens   = 150
)

// Config 聚合整个服务的配置项。
type Config struct {
	Server     ServerConfig
	AI         AIConfig
	Classifier ClassifierConfig
	Upload     UploadConfig
	Knowledge  KnowledgeConfig
	Log        LogConfig
}

// Load 从环境变量加载配置。
func Load() (*Config, error) {
	server, err := loadServerConfig()
	if err != nil {
		return nil, err
	}

	ai, err := loadAIConfig()
	if err != nil {
		return nil, err
	}

	classifier, err := loadClassifierConfig()
	if err != nil {
		return nil, err
	}

	upload, err := loadUploadConfig()
	if err != nil {
		return nil, err
	}

	return &Config{
		Server:     server,
		AI:         ai,
		Classifier: classifier,
		Upload:     upload,
		Knowledge:  KnowledgeConfig{File: strings.TrimSpace(os.Getenv("KNOWLEDGE_FILE"))},
		Log:        loadLogConfig(),
	}, nil
}

// ServerConfig 描述 HTTP 服务配置。
type ServerConfig struct {
	Addr string
}

// loadServerConfig 解析服务器监听地址。
func loadServerConfig() (ServerConfig, error) {
	port := strings.TrimSpace(os.Getenv("PORT"))
	if port == "" {
		port = "8080"
	}

	if strings.Contains(port, ":") {
		// 允许用户直接传入 ":8080" 或 "127.0.0.1:8080"。
		return ServerConfig{Addr: port}, nil
	}

	if strings.Contains(port, " ") {
		return ServerConfig{}, fmt.Errorf("%w: invalid PORT value: %q", ErrConfiguration, port)
	}

	return ServerConfig{Addr: ":" + port}, nil
}

// AIConfig 描述生成式模型相关配置。
type AIConfig struct {
	Provider      string
	Model         string
	Temperature   float64
	MaxTokens     int
	Timeout       time.Duration
	OllamaBaseURL string
	APIKey        string
	AccessKey     string
	SecretKey     string
	BaseURL       string
	Region        string
}

// NewChatModel 使用配置创建一个模型实例。
func (c AIConfig) NewChatModel(ctx context.Context) (model.BaseChatModel, error) {
	temperature := float32(c.Temperature)
	maxTokens := c.MaxTokens

	switch c.Provider {
	case ProviderArk:
		if c.APIKey == "" && (c.AccessKey == "" || c.SecretKey == "") {
			return nil, fmt.Errorf("%w: ark provider requires ARK_API_KEY or ARK_ACCESS_KEY + ARK_SECRET_KEY", ErrConfiguration)
		}
		return ark.NewChatModel(ctx, &ark.ChatModelConfig{
			BaseURL:     c.BaseURL,
			Region:      c.Region,
			APIKey:      c.APIKey,
			AccessKey:   c.AccessKey,
			SecretKey:   c.SecretKey,
			Model:       c.Model,
			MaxTokens:   &maxTokens,
			Temperature: &temperature,
		})
	case ProviderOllama:
		return ollama.NewChatModel(ctx, &ollama.ChatModelConfig{
			BaseURL: c.OllamaBaseURL,
			Timeout: c.Timeout,
			Model:   c.Model,
			Options: &api.Options{
				Temperature: temperature,
				NumPredict:  maxTokens,
			},
		})
	default:
		return nil, fmt.Errorf("%w: unknown AI_PROVIDER %q", ErrConfiguration, c.Provider)
	}
}

func loadAIConfig() (AIConfig, error) {
	provider := strings.ToLower(getEnvOrDefault("AI_PROVIDER", ProviderOllama))
	if provider != ProviderOllama && provider != ProviderArk {
		return AIConfig{}, fmt.Errorf("%w: unknown AI_PROVIDER %q", ErrConfiguration, provider)
	}

	temperature := DefaultTemperature
	if override, err := parseOptionalFloatEnv("AI_TEMPERATURE"); err != nil {
		return AIConfig{}, err
	} else if override != nil {
		temperature = *override
	}
	if temperature < 0 || temperature > 2 {
		return AIConfig{}, fmt.Errorf("%w: AI_TEMPERATURE must be within [0, 2], got %v", ErrConfiguration, temperature)
	}

	maxTokens := DefaultMaxTokens
	if override, err := parseOptionalIntEnv("AI_MAX_TOKENS"); err != nil {
		return AIConfig{}, err
	} else if override != nil {
		maxTokens = *override
	}
	if maxTokens < 1 {
		return AIConfig{}, fmt.Errorf("%w: AI_MAX_TOKENS must be positive, got %d", ErrConfiguration, maxTokens)
	}

	timeout, err := parseDurationEnv("AI_TIMEOUT", 60*time.Second)
	if err != nil {
		return AIConfig{}, err
	}

	return AIConfig{
		Provider:      provider,
		Model:         getEnvOrDefault("AI_MODEL", DefaultModel),
		Temperature:   temperature,
		MaxTokens:     maxTokens,
		Timeout:       timeout,
		OllamaBaseURL: getEnvOrDefault("OLLAMA_BASE_URL", "http://localhost:11434"),
		APIKey:        strings.TrimSpace(os.Getenv("ARK_API_KEY")),
		AccessKey:     strings.TrimSpace(os.Getenv("ARK_ACCESS_KEY")),
		SecretKey:     strings.TrimSpace(os.Getenv("ARK_SECRET_KEY")),
		BaseURL:       getEnvOrDefault("ARK_BASE_URL", "https://ark.cn-beijing.volces.com/api/v3"),
		Region:        getEnvOrDefault("ARK_REGION", "cn-beijing"),
	}, nil
}

// ClassifierConfig 描述图像分类推理服务。
type ClassifierConfig struct {
	URL         string
	WeightsPath string
	Labels      []string
	Timeout     time.Duration
}

func loadClassifierConfig() (ClassifierConfig, error) {
	weights := strings.TrimSpace(os.Getenv("CLASSIFIER_WEIGHTS"))
	if weights == "" {
		return ClassifierConfig{}, fmt.Errorf("%w: CLASSIFIER_WEIGHTS is required", ErrConfiguration)
	}
	info, err := os.Stat(weights)
	if err != nil {
		return ClassifierConfig{}, fmt.Errorf("%w: CLASSIFIER_WEIGHTS %q: %v", ErrConfiguration, weights, err)
	}
	if info.IsDir() {
		return ClassifierConfig{}, fmt.Errorf("%w: CLASSIFIER_WEIGHTS %q is a directory", ErrConfiguration, weights)
	}

	timeout, err := parseDurationEnv("CLASSIFIER_TIMEOUT", 30*time.Second)
	if err != nil {
		return ClassifierConfig{}, err
	}

	labels := splitList(getEnvOrDefault("CLASSIFIER_LABELS", "NORMAL,PNEUMONIA"))
	if len(labels) == 0 {
		return ClassifierConfig{}, fmt.Errorf("%w: CLASSIFIER_LABELS must name at least one label", ErrConfiguration)
	}

	return ClassifierConfig{
		URL:         getEnvOrDefault("CLASSIFIER_URL", "http://localhost:8001/classify"),
		WeightsPath: weights,
		Labels:      labels,
		Timeout:     timeout,
	}, nil
}

// UploadConfig 描述上传图片的存储后端。
type UploadConfig struct {
	Backend string
	Dir     string
	MinIO   MinIOConfig
}

// MinIOConfig 描述对象存储连接参数。
type MinIOConfig struct {
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	BucketName      string
	UseSSL          bool
}

func loadUploadConfig() (UploadConfig, error) {
	backend := strings.ToLower(getEnvOrDefault("UPLOAD_BACKEND", BackendLocal))

	useSSL, err := parseBoolEnv("MINIO_USE_SSL", false)
	if err != nil {
		return UploadConfig{}, err
	}

	cfg := UploadConfig{
		Backend: backend,
		Dir:     getEnvOrDefault("UPLOAD_DIR", "uploads"),
		MinIO: MinIOConfig{
			Endpoint:        strings.TrimSpace(os.Getenv("MINIO_ENDPOINT")),
			AccessKeyID:     strings.TrimSpace(os.Getenv("MINIO_ACCESS_KEY")),
			SecretAccessKey: strings.TrimSpace(os.Getenv("MINIO_SECRET_KEY")),
			BucketName:      getEnvOrDefault("MINIO_BUCKET", "xray-uploads"),
			UseSSL:          useSSL,
		},
	}

	switch backend {
	case BackendLocal:
	case BackendMinIO:
		if cfg.MinIO.Endpoint == "" {
			return UploadConfig{}, fmt.Errorf("%w: MINIO_ENDPOINT is required when UPLOAD_BACKEND=minio", ErrConfiguration)
		}
	default:
		return UploadConfig{}, fmt.Errorf("%w: unknown UPLOAD_BACKEND %q", ErrConfiguration, backend)
	}
	return cfg, nil
}

// KnowledgeConfig 指向可选的知识条目扩展文件。
type KnowledgeConfig struct {
	File string
}

// LogConfig 描述 zap 日志输出。
type LogConfig struct {
	Level     string
	Format    string
	OutputDir string
}

func loadLogConfig() LogConfig {
	return LogConfig{
		Level:     getEnvOrDefault("LOG_LEVEL", "info"),
		Format:    getEnvOrDefault("LOG_FORMAT", "console"),
		OutputDir: strings.TrimSpace(os.Getenv("LOG_OUTPUT_DIR")),
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func parseBoolEnv(key string, defaultValue bool) (bool, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue, nil
	}

	val, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("%w: invalid %s value %q: %v", ErrConfiguration, key, raw, err)
	}
	return val, nil
}

func parseDurationEnv(key string, defaultValue time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue, nil
	}

	val, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: invalid %s value %q: %v", ErrConfiguration, key, raw, err)
	}
	if val <= 0 {
		return 0, fmt.Errorf("%w: %s must be positive, got %s", ErrConfiguration, key, raw)
	}
	return val, nil
}

func parseOptionalFloatEnv(key string) (*float64, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid %s value %q: %v", ErrConfiguration, key, value, err)
	}
	return &val, nil
}

func parseOptionalIntEnv(key string) (*int, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.Atoi(value)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid %s value %q: %v", ErrConfiguration, key, value, err)
	}
	return &val, nil
}
