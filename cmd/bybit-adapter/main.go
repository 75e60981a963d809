package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/betbot/bybit-adapter/internal/exchange/bybit"
	"github.com/betbot/bybit-adapter/internal/metrics"
	"github.com/betbot/bybit-adapter/internal/runner"
	"github.com/betbot/bybit-adapter/pkg/config"
	"github.com/betbot/bybit-adapter/pkg/logger"
	"github.com/betbot/bybit-adapter/pkg/marketmath"
	"github.com/betbot/bybit-adapter/pkg/persistence"
	sdkhttp "github.com/betbot/bybit-adapter/pkg/sdk/http"
	"github.com/betbot/bybit-adapter/pkg/sdk/websocket"
	"github.com/betbot/bybit-adapter/pkg/secretstore"
	"github.com/betbot/bybit-adapter/pkg/shutdown"
)

func main() {
	configPath := flag.String("config", "", "配置文件路径（支持 .yaml, .yml, .json）")
	envFile := flag.String("env", ".env", ".env 文件路径（不存在则忽略）")
	flag.Parse()

	if err := godotenv.Load(*envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "加载 %s 失败: %v\n", *envFile, err)
	}

	cfg, err := config.LoadFromFile(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "加载配置失败: %v\n", err)
		os.Exit(1)
	}
	if err := logger.Init(cfg.Log); err != nil {
		fmt.Fprintf(os.Stderr, "初始化日志失败: %v\n", err)
		os.Exit(1)
	}

	if err := run(cfg); err != nil {
		logrus.Errorf("退出: %v", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	apiKey, secret, err := loadCredentials(cfg)
	if err != nil {
		return err
	}

	rootCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	transport := sdkhttp.NewClient(cfg.Exchange.BaseURL, &sdkhttp.Options{Timeout: cfg.RequestTimeout()})
	adapter, err := bybit.New(transport, bybit.Config{
		Symbol:             cfg.Exchange.Symbol,
		HedgeMode:          cfg.Exchange.HedgeMode,
		Leverage:           decimal.NewFromFloat(cfg.Exchange.Leverage),
		ContractMultiplier: decimal.NewFromFloat(cfg.Exchange.ContractMultiplier),
		APIKey:             apiKey,
		Secret:             secret,
	}, marketmath.Pricer{})
	if err != nil {
		return err
	}

	initCtx, cancel := context.WithTimeout(rootCtx, 30*time.Second)
	defer cancel()
	if err := adapter.Initialize(initCtx); err != nil {
		return fmt.Errorf("初始化适配器失败: %w", err)
	}
	if cfg.Exchange.InitExchangeConfig {
		adapter.InitExchangeConfig(initCtx)
	}

	if cfg.Metrics.Enabled {
		if _, err := metrics.StartAsync(rootCtx, cfg.Metrics.Listen); err != nil {
			logrus.Errorf("metrics/pprof 启动失败: %v", err)
		} else {
			logrus.Infof("metrics/pprof 启用: listen=%s (expvar:/debug/vars, pprof:/debug/pprof)", cfg.Metrics.Listen)
		}
	}

	runnerCfg := runner.Config{
		ReconcileInterval: cfg.ReconcileInterval(),
		TickPollInterval:  cfg.TickPollInterval(),
		EnableWebsocket:   cfg.Runner.EnableWebsocket,
		WSReconnectDelay:  cfg.WSReconnectDelay(),
		WSConfig:          websocket.DefaultConfig(),
	}
	if cfg.Runner.StateDir != "" {
		runnerCfg.CursorStore = persistence.NewJSONFileService(cfg.Runner.StateDir).NewStore("cursor", adapter.Symbol(), "ticks")
	}
	handler := runner.NewSnapshotHandler()
	r := runner.New(adapter, runnerCfg, handler, handler)

	sm := shutdown.NewManager()
	sm.OnShutdown("adapter", func(ctx context.Context) { adapter.Close() })
	sm.OnShutdown("snapshot", func(ctx context.Context) {
		if pos, orders := handler.Snapshot(); pos != nil {
			logrus.Infof("最后一次对账: equity=%s open_orders=%d", pos.Equity, len(orders))
		}
	})

	logrus.Infof("启动 %s (%s) hedge_mode=%v", adapter.Symbol(), adapter.MarketType(), adapter.HedgeMode())
	r.Run(rootCtx)

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()
	sm.Shutdown(shutdownCtx)
	return nil
}

// loadCredentials 环境变量优先，缺失时从 secretstore 读取
func loadCredentials(cfg *config.Config) (string, string, error) {
	apiKey, secret := cfg.APICredentialsFromEnv()
	if apiKey != "" && secret != "" {
		return apiKey, secret, nil
	}
	if cfg.Credentials.SecretStorePath == "" {
		return "", "", fmt.Errorf("未配置 API 凭证：设置 %s/%s 或 credentials.secret_store_path",
			cfg.Credentials.APIKeyEnv, cfg.Credentials.APISecretEnv)
	}

	key, err := secretstore.ParseKey(os.Getenv(cfg.Credentials.SecretStoreKeyEnv))
	if err != nil {
		return "", "", fmt.Errorf("解析 secretstore 密钥失败: %w", err)
	}
	store, err := secretstore.Open(secretstore.OpenOptions{
		Path:          cfg.Credentials.SecretStorePath,
		EncryptionKey: key,
		ReadOnly:      true,
	})
	if err != nil {
		return "", "", err
	}
	defer store.Close()
	return store.Credentials()
}
