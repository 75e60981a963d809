package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/betbot/bybit-adapter/pkg/logger"
)

const defaultBaseURL = "https://api.bybit.com"

// ExchangeConfig 交易所与交易对配置
type ExchangeConfig struct {
	BaseURL            string  `yaml:"base_url" json:"base_url"`
	Symbol             string  `yaml:"symbol" json:"symbol"`
	HedgeMode          bool    `yaml:"hedge_mode" json:"hedge_mode"`
	Leverage           float64 `yaml:"leverage" json:"leverage"`
	ContractMultiplier float64 `yaml:"contract_multiplier" json:"contract_multiplier"` // 反向合约面值，默认 1
	RequestTimeout     int     `yaml:"request_timeout" json:"request_timeout"`         // 秒
	InitExchangeConfig bool    `yaml:"init_exchange_config" json:"init_exchange_config"` // 启动时切换全仓
}

// CredentialsConfig API 凭证来源：环境变量优先，其次 secretstore
type CredentialsConfig struct {
	APIKeyEnv         string `yaml:"api_key_env" json:"api_key_env"`
	APISecretEnv      string `yaml:"api_secret_env" json:"api_secret_env"`
	SecretStorePath   string `yaml:"secret_store_path" json:"secret_store_path"`
	SecretStoreKeyEnv string `yaml:"secret_store_key_env" json:"secret_store_key_env"` // 加密密钥所在环境变量
}

// RunnerConfig 轮询与 WS 配置
type RunnerConfig struct {
	ReconcileInterval int  `yaml:"reconcile_interval" json:"reconcile_interval"` // 秒
	TickPollInterval  int  `yaml:"tick_poll_interval" json:"tick_poll_interval"`  // 秒，0 表示不轮询成交
	EnableWebsocket   bool `yaml:"enable_websocket" json:"enable_websocket"`
	WSReconnectDelay  int  `yaml:"ws_reconnect_delay" json:"ws_reconnect_delay"` // 秒

	// StateDir 成交游标持久化目录，空表示不持久化
	StateDir string `yaml:"state_dir" json:"state_dir"`
}

// MetricsConfig expvar/pprof 调试服务
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Listen  string `yaml:"listen" json:"listen"`
}

// Config 应用配置
type Config struct {
	Exchange    ExchangeConfig    `yaml:"exchange" json:"exchange"`
	Credentials CredentialsConfig `yaml:"credentials" json:"credentials"`
	Runner      RunnerConfig      `yaml:"runner" json:"runner"`
	Log         logger.Config     `yaml:"log" json:"log"`
	Metrics     MetricsConfig     `yaml:"metrics" json:"metrics"`
}

// Default 默认配置
func Default() *Config {
	return &Config{
		Exchange: ExchangeConfig{
			BaseURL:            defaultBaseURL,
			Leverage:           1,
			ContractMultiplier: 1,
			RequestTimeout:     15,
		},
		Credentials: CredentialsConfig{
			APIKeyEnv:         "BYBIT_API_KEY",
			APISecretEnv:      "BYBIT_API_SECRET",
			SecretStoreKeyEnv: "SECRETSTORE_KEY",
		},
		Runner: RunnerConfig{
			ReconcileInterval: 10,
			TickPollInterval:  5,
			EnableWebsocket:   true,
			WSReconnectDelay:  5,
		},
		Log: logger.Config{
			Level:      "info",
			MaxSize:    100,
			MaxBackups: 3,
			MaxAge:     7,
		},
		Metrics: MetricsConfig{
			Listen: "127.0.0.1:6060",
		},
	}
}

// LoadFromFile 加载配置（优先级：环境变量 > 配置文件 > 默认值）
// filePath 为空时只使用默认值和环境变量。
func LoadFromFile(filePath string) (*Config, error) {
	cfg := Default()
	if filePath != "" {
		if err := loadConfigFile(filePath, cfg); err != nil {
			return nil, fmt.Errorf("加载配置文件失败 %s: %w", filePath, err)
		}
	}
	applyEnv(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadConfigFile 在默认值之上覆盖文件中出现的字段
func loadConfigFile(filePath string, cfg *Config) error {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return fmt.Errorf("读取配置文件失败: %w", err)
	}
	switch ext := strings.ToLower(filepath.Ext(filePath)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("解析 YAML 配置文件失败: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("解析 JSON 配置文件失败: %w", err)
		}
	default:
		return fmt.Errorf("不支持的配置文件格式: %s (支持 .yaml, .yml, .json)", ext)
	}
	return nil
}

func applyEnv(cfg *Config) {
	cfg.Exchange.BaseURL = getEnv("BYBIT_BASE_URL", cfg.Exchange.BaseURL)
	cfg.Exchange.Symbol = getEnv("BYBIT_SYMBOL", cfg.Exchange.Symbol)
	cfg.Exchange.HedgeMode = parseBoolEnv("BYBIT_HEDGE_MODE", cfg.Exchange.HedgeMode)
	cfg.Exchange.Leverage = parseFloatEnv("BYBIT_LEVERAGE", cfg.Exchange.Leverage)
	cfg.Runner.EnableWebsocket = parseBoolEnv("BYBIT_ENABLE_WS", cfg.Runner.EnableWebsocket)
	cfg.Runner.ReconcileInterval = parseIntEnv("RECONCILE_INTERVAL", cfg.Runner.ReconcileInterval)
	cfg.Runner.StateDir = getEnv("STATE_DIR", cfg.Runner.StateDir)
	cfg.Log.Level = getEnv("LOG_LEVEL", cfg.Log.Level)
	cfg.Log.OutputFile = getEnv("LOG_FILE", cfg.Log.OutputFile)
	cfg.Metrics.Enabled = parseBoolEnv("METRICS_ENABLED", cfg.Metrics.Enabled)
	cfg.Metrics.Listen = getEnv("METRICS_LISTEN", cfg.Metrics.Listen)
}

// Validate 校验配置
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Exchange.Symbol) == "" {
		return fmt.Errorf("exchange.symbol 未配置（或设置 BYBIT_SYMBOL）")
	}
	if c.Exchange.BaseURL == "" {
		return fmt.Errorf("exchange.base_url 不能为空")
	}
	if c.Exchange.Leverage <= 0 {
		return fmt.Errorf("exchange.leverage 必须大于 0")
	}
	if c.Exchange.ContractMultiplier <= 0 {
		return fmt.Errorf("exchange.contract_multiplier 必须大于 0")
	}
	if c.Exchange.RequestTimeout <= 0 {
		return fmt.Errorf("exchange.request_timeout 必须大于 0")
	}
	if c.Runner.ReconcileInterval <= 0 {
		return fmt.Errorf("runner.reconcile_interval 必须大于 0")
	}
	if c.Runner.TickPollInterval < 0 {
		return fmt.Errorf("runner.tick_poll_interval 不能为负数")
	}
	if c.Runner.EnableWebsocket && c.Runner.WSReconnectDelay <= 0 {
		return fmt.Errorf("runner.ws_reconnect_delay 必须大于 0")
	}
	if c.Metrics.Enabled && c.Metrics.Listen == "" {
		return fmt.Errorf("metrics.listen 不能为空")
	}
	return nil
}

func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.Exchange.RequestTimeout) * time.Second
}

func (c *Config) ReconcileInterval() time.Duration {
	return time.Duration(c.Runner.ReconcileInterval) * time.Second
}

func (c *Config) TickPollInterval() time.Duration {
	return time.Duration(c.Runner.TickPollInterval) * time.Second
}

func (c *Config) WSReconnectDelay() time.Duration {
	return time.Duration(c.Runner.WSReconnectDelay) * time.Second
}

// APICredentialsFromEnv 从配置指定的环境变量读取 API 凭证
func (c *Config) APICredentialsFromEnv() (apiKey, secret string) {
	return os.Getenv(c.Credentials.APIKeyEnv), os.Getenv(c.Credentials.APISecretEnv)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// parseIntEnv 解析整数环境变量，格式错误时使用默认值
func parseIntEnv(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return parsed
}

func parseFloatEnv(key string, defaultValue float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return defaultValue
	}
	return parsed
}

func parseBoolEnv(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}
	return parsed
}
