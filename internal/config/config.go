package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"lighter-grid-bot-go/internal/models"
	"os"
	"strconv"
)

// ErrMissingCredentials 表示缺少必需的账户凭证环境变量
var ErrMissingCredentials = errors.New("missing credentials")

const (
	defaultLiveAPIURL    = "https://mainnet.zklighter.elliot.ai"
	defaultLiveWSURL     = "wss://mainnet.zklighter.elliot.ai/stream"
	defaultTestnetAPIURL = "https://testnet.zklighter.elliot.ai"
	defaultTestnetWSURL  = "wss://testnet.zklighter.elliot.ai/stream"
	defaultSignerURL     = "http://127.0.0.1:8787"

	defaultSafetyMargin     = 1
	defaultPlacementDelayMs = 200
)

// LoadConfig 从指定路径加载JSON配置文件并解析到Config结构体中
func LoadConfig(path string) (*models.Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	decoder := json.NewDecoder(file)
	// 预先填入默认值，这样文件中显式写出的 0 不会被覆盖
	config := &models.Config{
		SafetyMargin:     defaultSafetyMargin,
		PlacementDelayMs: defaultPlacementDelayMs,
	}
	err = decoder.Decode(config)
	if err != nil {
		return nil, err
	}

	ApplyDefaults(config)
	return config, nil
}

// Default 返回一份只包含默认值的配置，用于没有配置文件的情况
func Default() *models.Config {
	cfg := &models.Config{
		Grid: models.GridConfig{
			Token:      "BTC",
			Direction:  models.Neutral,
			Leverage:   10,
			GridCount:  20,
			Investment: 100,
			LowerPrice: 90000,
			UpperPrice: 110000,
		},
		SafetyMargin:     defaultSafetyMargin,
		PlacementDelayMs: defaultPlacementDelayMs,
		LogConfig:        models.LogConfig{Level: "info", Output: "console"},
	}
	ApplyDefaults(cfg)
	return cfg
}

// ApplyDefaults 为未设置的字段填充默认值
func ApplyDefaults(cfg *models.Config) {
	if cfg.LiveAPIURL == "" {
		cfg.LiveAPIURL = defaultLiveAPIURL
	}
	if cfg.LiveWSURL == "" {
		cfg.LiveWSURL = defaultLiveWSURL
	}
	if cfg.TestnetAPIURL == "" {
		cfg.TestnetAPIURL = defaultTestnetAPIURL
	}
	if cfg.TestnetWSURL == "" {
		cfg.TestnetWSURL = defaultTestnetWSURL
	}
	if cfg.SignerURL == "" {
		cfg.SignerURL = defaultSignerURL
	}
	// 无法识别的方向留给 Validate 报错
	if d, err := models.ParseDirection(string(cfg.Grid.Direction)); err == nil {
		cfg.Grid.Direction = d
	}
	if cfg.PollIntervalMs <= 0 {
		cfg.PollIntervalMs = 2000
	}
	if cfg.FillGracePeriodSec <= 0 {
		cfg.FillGracePeriodSec = 10
	}
	if cfg.NonceResyncCycles <= 0 {
		cfg.NonceResyncCycles = 10
	}
	if cfg.SafetyMargin < 0 {
		cfg.SafetyMargin = defaultSafetyMargin
	}
	if cfg.PlacementDelayMs < 0 {
		cfg.PlacementDelayMs = defaultPlacementDelayMs
	}
	if cfg.StatusIntervalSec <= 0 {
		cfg.StatusIntervalSec = 30
	}
	if cfg.LogConfig.Level == "" {
		cfg.LogConfig.Level = "info"
	}
	if cfg.LogConfig.Output == "" {
		cfg.LogConfig.Output = "console"
	}
}

// ApplyEnv 从环境变量读取账户凭证，并根据是否使用测试网设置API地址。
// ACCOUNT_INDEX 与 API_KEY_INDEX 是必需的。
func ApplyEnv(cfg *models.Config) error {
	accountRaw := os.Getenv("ACCOUNT_INDEX")
	apiKeyRaw := os.Getenv("API_KEY_INDEX")
	if accountRaw == "" || apiKeyRaw == "" {
		return fmt.Errorf("%w: ACCOUNT_INDEX and API_KEY_INDEX must be set", ErrMissingCredentials)
	}

	account, err := strconv.ParseInt(accountRaw, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid ACCOUNT_INDEX %q: %w", accountRaw, err)
	}
	apiKey, err := strconv.Atoi(apiKeyRaw)
	if err != nil {
		return fmt.Errorf("invalid API_KEY_INDEX %q: %w", apiKeyRaw, err)
	}
	cfg.AccountIndex = account
	cfg.APIKeyIndex = apiKey

	if signer := os.Getenv("SIGNER_URL"); signer != "" {
		cfg.SignerURL = signer
	}

	if cfg.IsTestnet {
		cfg.BaseURL = cfg.TestnetAPIURL
		cfg.WSBaseURL = cfg.TestnetWSURL
	} else {
		cfg.BaseURL = cfg.LiveAPIURL
		cfg.WSBaseURL = cfg.LiveWSURL
	}
	// BASE_URL 优先级最高，与签名服务保持一致
	if base := os.Getenv("BASE_URL"); base != "" {
		cfg.BaseURL = base
	}
	return nil
}

// Validate 检查网格参数是否满足约束，并把方向规范化为大写常量
func Validate(g *models.GridConfig) error {
	if g.Token == "" {
		return errors.New("grid token must be set")
	}
	d, err := models.ParseDirection(string(g.Direction))
	if err != nil {
		return err
	}
	g.Direction = d
	if g.Leverage <= 0 {
		return fmt.Errorf("leverage must be positive, got %d", g.Leverage)
	}
	if g.GridCount < 2 {
		return fmt.Errorf("grid_count must be at least 2, got %d", g.GridCount)
	}
	if g.Investment <= 0 {
		return fmt.Errorf("investment must be positive, got %.2f", g.Investment)
	}
	if g.LowerPrice <= 0 {
		return fmt.Errorf("lower_price must be positive, got %.4f", g.LowerPrice)
	}
	if g.LowerPrice >= g.UpperPrice {
		return fmt.Errorf("lower_price (%.4f) must be below upper_price (%.4f)", g.LowerPrice, g.UpperPrice)
	}
	return nil
}
