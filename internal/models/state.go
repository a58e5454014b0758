package models

import "time"

// TrackedOrder 表示机器人认为在交易所某个网格价位上存在的挂单
type TrackedOrder struct {
	Price            float64   `json:"price"`              // 名义网格价格
	PriceInt         int64     `json:"price_int"`          // 交易所原生整数价格，同时作为网格键
	IsAsk            bool      `json:"is_ask"`             // 卖单为 true
	BaseAmount       int64     `json:"base_amount"`        // 交易所原生整数数量
	ClientOrderIndex int64     `json:"client_order_index"` // 下单时消耗的序列号
	PlacedAt         time.Time `json:"placed_at"`          // 用于成交判定的宽限期
}

// FillRecord 是一笔被检测到的成交，写入成交日志用于审计
type FillRecord struct {
	RunID            string    `json:"run_id"`
	Token            string    `json:"token"`
	Price            float64   `json:"price"`
	IsAsk            bool      `json:"is_ask"`
	BaseAmount       int64     `json:"base_amount"`
	VolumeUSD        float64   `json:"volume_usd"`
	EstimatedProfit  float64   `json:"estimated_profit"`
	ClientOrderIndex int64     `json:"client_order_index"`
	DetectedAt       time.Time `json:"detected_at"`
}

// RunSummary 是一次运行结束时的统计
type RunSummary struct {
	RunID       string    `json:"run_id"`
	Token       string    `json:"token"`
	StartedAt   time.Time `json:"started_at"`
	StoppedAt   time.Time `json:"stopped_at"`
	TradesCount int       `json:"trades_count"`
	TotalVolume float64   `json:"total_volume"`
	TotalProfit float64   `json:"total_profit"` // 估算值，并非逐笔配对的真实盈亏
	OpenOrders  int       `json:"open_orders"`
}
