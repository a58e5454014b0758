package models

import (
	"fmt"
	"strings"
)

// Config 结构体定义了机器人的所有配置参数
type Config struct {
	IsTestnet     bool   `json:"is_testnet"` // 是否使用测试网
	DBPath        string `json:"db_path"`    // 成交日志 (badger) 目录，留空则不记录
	LiveAPIURL    string `json:"live_api_url"`
	LiveWSURL     string `json:"live_ws_url"`
	TestnetAPIURL string `json:"testnet_api_url"`
	TestnetWSURL  string `json:"testnet_ws_url"`
	SignerURL     string `json:"signer_url"` // 本地签名服务地址，可被 SIGNER_URL 覆盖

	AccountIndex int64  `json:"account_index"` // 由 ACCOUNT_INDEX 环境变量提供
	APIKeyIndex  int    `json:"api_key_index"` // 由 API_KEY_INDEX 环境变量提供
	UseBookFeed  bool   `json:"use_book_feed"` // 是否通过 WebSocket 维护盘口
	MetricsAddr  string `json:"metrics_addr"`  // Prometheus 监听地址，例如 ":9100"

	Grid   GridConfig             `json:"grid"`
	Tokens map[string]TokenConfig `json:"tokens,omitempty"` // 额外的或覆盖的代币精度表
	// 对于只有市场ID、没有精度表的代币，是否允许使用默认精度和数量乘数
	AllowDefaultSizing bool `json:"allow_default_sizing"`

	PollIntervalMs     int `json:"poll_interval_ms"`      // 对账循环间隔
	FillGracePeriodSec int `json:"fill_grace_period_sec"` // 挂单多久后才把"不在挂单列表中"视为成交
	NonceResyncCycles  int `json:"nonce_resync_cycles"`   // 每隔多少个循环从交易所刷新一次 nonce
	SafetyMargin       int `json:"safety_margin"`         // 活动挂单数超过 grid_count + safety_margin 时跳过本轮；未设置时为 1，可显式设为 0
	PlacementDelayMs   int `json:"placement_delay_ms"`    // 初始挂单之间的间隔；未设置时为 200，可显式设为 0
	StatusIntervalSec  int `json:"status_interval_sec"`   // 状态打印间隔

	PaperStartPrice float64 `json:"paper_start_price,omitempty"` // 模拟模式的起始中间价

	LogConfig LogConfig `json:"log"`

	BaseURL   string `json:"base_url"`    // REST API基础地址 (将由程序动态设置)
	WSBaseURL string `json:"ws_base_url"` // WebSocket基础地址 (将由程序动态设置)
}

// LogConfig 定义了日志相关的配置
type LogConfig struct {
	Level       string `json:"level"`       // 日志级别, e.g., "debug", "info", "warn", "error"
	Output      string `json:"output"`      // 输出模式: "console", "file", "both"
	File        string `json:"file"`        // 日志文件路径
	MaxSize     int    `json:"max_size"`    // 单个日志文件的最大大小 (MB)
	MaxBackups  int    `json:"max_backups"` // 保留的旧日志文件最大数量
	MaxAge      int    `json:"max_age"`     // 旧日志文件的最大保留天数
	Compress    bool   `json:"compress"`    // 是否压缩旧日志文件
	Development bool   `json:"development"` // 开发模式下 DPanic 会直接 panic
}

// TokenConfig 描述一个代币在交易所上的原生表示方式
type TokenConfig struct {
	MarketID       int     `json:"market_id"`
	PricePrecision int32   `json:"price_precision"` // 价格小数位数
	SizeMultiplier float64 `json:"size_multiplier"` // 币数量 -> base_amount 的乘数
}

// Direction 是网格的策略方向
type Direction string

const (
	Neutral Direction = "NEUTRAL"
	Long    Direction = "LONG"
	Short   Direction = "SHORT"
)

// ParseDirection 解析方向字符串（不区分大小写）
func ParseDirection(s string) (Direction, error) {
	switch d := Direction(strings.ToUpper(strings.TrimSpace(s))); d {
	case Neutral, Long, Short:
		return d, nil
	case "":
		return Neutral, nil
	default:
		return "", fmt.Errorf("unknown direction %q (want NEUTRAL, LONG or SHORT)", s)
	}
}

// GridConfig 在启动时确定，运行期间不可变
type GridConfig struct {
	Token      string    `json:"token"`
	Direction  Direction `json:"direction"`
	Leverage   int       `json:"leverage"`
	GridCount  int       `json:"grid_count"`
	Investment float64   `json:"investment"` // 保证金 (USD)
	LowerPrice float64   `json:"lower_price"`
	UpperPrice float64   `json:"upper_price"`
}

// Spacing 返回相邻网格之间的价格间距
func (g GridConfig) Spacing() float64 {
	if g.GridCount < 2 {
		return 0
	}
	return (g.UpperPrice - g.LowerPrice) / float64(g.GridCount-1)
}

// USDPerGrid 返回每个网格分配的保证金
func (g GridConfig) USDPerGrid() float64 {
	if g.GridCount <= 0 {
		return 0
	}
	return g.Investment / float64(g.GridCount)
}

// SideName 把 is_ask 转成可读的方向
func SideName(isAsk bool) string {
	if isAsk {
		return "SELL"
	}
	return "BUY"
}

// TopOfBook 是盘口最优买卖价
type TopOfBook struct {
	BestBid float64
	BestAsk float64
}

// Mid 返回中间价
func (t TopOfBook) Mid() float64 {
	return (t.BestBid + t.BestAsk) / 2
}

// ActiveOrder 是交易所返回的一个活动挂单
type ActiveOrder struct {
	OrderIndex       int64  `json:"order_index"`
	ClientOrderIndex *int64 `json:"client_order_index,omitempty"` // 部分响应不带该字段
	Price            string `json:"price"`                        // 原始价格字符串，由 sizing 统一归一化
	IsAsk            bool   `json:"is_ask"`
}

// OrderRequest 描述一次限价下单
type OrderRequest struct {
	MarketID         int
	ClientOrderIndex int64 // 同时作为本次交易的 nonce
	BaseAmount       int64
	PriceInt         int64
	IsAsk            bool
	ReduceOnly       bool
}

// TxResult 是签名交易提交后的结果
type TxResult struct {
	TxInfo string `json:"tx_info"`
	TxHash string `json:"tx_hash"`
}

// ErrorKind 对交易所错误进行分类，调用方不需要再解析错误文本
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	KindSequenceConflict
	KindEmptyBook
	KindAuth
	KindRejected
	KindTransport
)

func (k ErrorKind) String() string {
	switch k {
	case KindSequenceConflict:
		return "sequence_conflict"
	case KindEmptyBook:
		return "empty_book"
	case KindAuth:
		return "auth"
	case KindRejected:
		return "rejected"
	case KindTransport:
		return "transport"
	default:
		return "unknown"
	}
}

// Error 定义了交易所API返回的错误信息结构
type Error struct {
	Kind ErrorKind `json:"-"`
	Code int       `json:"code"`
	Msg  string    `json:"message"`
}

// Error 方法使得 Error 实现了 error 接口
func (e *Error) Error() string {
	return fmt.Sprintf("API Error: kind=%s, code=%d, msg=%s", e.Kind, e.Code, e.Msg)
}
