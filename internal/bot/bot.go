package bot

import (
	"context"
	"fmt"
	"io"
	"lighter-grid-bot-go/internal/config"
	"lighter-grid-bot-go/internal/ctxutil"
	"lighter-grid-bot-go/internal/exchange"
	"lighter-grid-bot-go/internal/gridstate"
	"lighter-grid-bot-go/internal/metrics"
	"lighter-grid-bot-go/internal/models"
	"lighter-grid-bot-go/internal/planner"
	"lighter-grid-bot-go/internal/reporter"
	"lighter-grid-bot-go/internal/sizing"
	"os"
	"time"

	"go.uber.org/zap"
)

// 替换结果，用于日志与监控
const (
	OutcomeReplaced = "REPLACED"
	OutcomeClosed   = "CLOSED"  // 目标价超出区间，链条结束
	OutcomeSkipped  = "SKIPPED" // 目标价已有挂单
	OutcomeFailed   = "FAILED"
)

// 超出 [lower, upper] 多少仍允许挂出替换单
const (
	lowerBoundTolerance = 0.99
	upperBoundTolerance = 1.01
)

// FillJournal 接收检测到的成交与最终统计，用于审计
type FillJournal interface {
	RecordFill(fill models.FillRecord)
	RecordSummary(summary models.RunSummary)
}

// Options 是 GridBot 的可选依赖
type Options struct {
	RunID   string
	Journal FillJournal      // 为 nil 时不记录
	Now     func() time.Time // 为 nil 时使用 time.Now
	Out     io.Writer        // 状态表格输出，为 nil 时使用 os.Stdout
}

// GridBot 是网格机器人的核心结构。所有状态只由 Run 所在的 goroutine 修改。
type GridBot struct {
	cfg      *models.Config
	grid     models.GridConfig
	spec     sizing.TokenSpec
	exchange exchange.Exchange
	logger   *zap.Logger
	journal  FillJournal
	out      io.Writer
	now      func() time.Time
	runID    string

	store      *gridstate.Store
	totals     gridstate.Totals
	seq        int64 // 下一笔订单使用的序列号 (client_order_index)
	spacing    float64
	usdPerGrid float64
	lastMid    float64
	lastActive int
	startedAt  time.Time
	lastStatus time.Time
}

// NewGridTradingBot 创建一个新的网格交易机器人实例
func NewGridTradingBot(cfg *models.Config, spec sizing.TokenSpec, ex exchange.Exchange, logger *zap.Logger, opts Options) *GridBot {
	b := &GridBot{
		cfg:        cfg,
		grid:       cfg.Grid,
		spec:       spec,
		exchange:   ex,
		logger:     logger.With(zap.String("token", spec.Symbol), zap.Int("market", spec.MarketID)),
		journal:    opts.Journal,
		out:        opts.Out,
		now:        opts.Now,
		runID:      opts.RunID,
		store:      gridstate.NewStore(),
		spacing:    cfg.Grid.Spacing(),
		usdPerGrid: cfg.Grid.USDPerGrid(),
	}
	if b.now == nil {
		b.now = time.Now
	}
	if b.out == nil {
		b.out = os.Stdout
	}
	return b
}

// Run 执行完整的生命周期: 准备 -> 初始挂单 -> 对账循环，直到 ctx 被取消。
// 准备阶段的错误会直接返回；循环中的错误只记录日志。
func (b *GridBot) Run(ctx context.Context) (models.RunSummary, error) {
	b.startedAt = b.now()
	if err := config.Validate(&b.grid); err != nil {
		return b.Summary(), fmt.Errorf("网格参数无效: %w", err)
	}

	mid, err := b.setup(ctx)
	if err != nil {
		return b.Summary(), err
	}

	b.seed(ctx, mid)
	b.loop(ctx)

	summary := b.Summary()
	if b.journal != nil {
		b.journal.RecordSummary(summary)
	}
	b.logger.Info("机器人已停止",
		zap.Int("trades", summary.TradesCount),
		zap.Float64("volume", summary.TotalVolume),
		zap.Float64("estimated_profit", summary.TotalProfit))
	return summary, nil
}

// setup 校验客户端、同步序列号、撤销旧挂单，并返回中间价
func (b *GridBot) setup(ctx context.Context) (float64, error) {
	callCtx := context.WithoutCancel(ctx)

	if err := b.exchange.CheckClient(callCtx); err != nil {
		return 0, fmt.Errorf("客户端校验失败: %w", err)
	}
	b.logger.Info("已连接到交易所", zap.Int64("account", b.cfg.AccountIndex))

	n, err := b.exchange.NextNonce(callCtx)
	if err != nil {
		n = b.now().UnixMilli()
		b.logger.Warn("获取 nonce 失败，使用时间戳代替", zap.Error(err), zap.Int64("nonce", n))
	}
	b.seq = n
	b.logger.Info("下一个 nonce", zap.Int64("nonce", b.seq))
	if ctx.Err() != nil {
		return 0, ctx.Err()
	}

	if _, err := CancelAll(ctx, b.exchange, b.spec.MarketID, b.logger); err != nil {
		b.logger.Warn("撤销旧挂单失败，可能需要手动检查", zap.Error(err))
	}
	if ctx.Err() != nil {
		return 0, ctx.Err()
	}

	top, err := b.exchange.FetchTopOfBook(callCtx, b.spec.MarketID)
	if err != nil {
		return 0, fmt.Errorf("获取当前价格失败: %w", err)
	}
	b.lastMid = top.Mid()
	metrics.SetMidPrice(b.lastMid)
	return b.lastMid, nil
}

// seed 按网格计划挂出初始订单，每个价格按自身价格计算数量
func (b *GridBot) seed(ctx context.Context, mid float64) {
	orders, err := planner.Plan(b.grid, mid)
	if err != nil {
		b.logger.Error("计算网格失败", zap.Error(err))
		return
	}

	reporter.PrintPlan(b.out, reporter.GridPlan{
		Token:      b.spec.Symbol,
		Direction:  b.grid.Direction,
		MidPrice:   mid,
		LowerPrice: b.grid.LowerPrice,
		UpperPrice: b.grid.UpperPrice,
		GridCount:  b.grid.GridCount,
		Spacing:    b.spacing,
		USDPerGrid: b.usdPerGrid,
		Leverage:   b.grid.Leverage,
	})

	delay := time.Duration(b.cfg.PlacementDelayMs) * time.Millisecond
	for i, po := range orders {
		if ctx.Err() != nil {
			return
		}
		if i > 0 && !ctxutil.Sleep(ctx, delay) {
			return
		}

		key := b.spec.PriceToInt(po.Price)
		if b.store.Has(key) {
			b.logger.Warn("价格已有挂单，跳过", zap.Float64("price", po.Price))
			continue
		}
		base, err := b.spec.BaseAmount(b.usdPerGrid, b.grid.Leverage, po.Price)
		if err != nil || base <= 0 {
			b.logger.Warn("订单数量为零，跳过该网格", zap.Float64("price", po.Price), zap.Int64("base_amount", base), zap.Error(err))
			continue
		}
		if _, err := b.submit(ctx, po.Price, po.IsAsk, base); err != nil {
			b.logger.Warn("初始挂单失败", zap.String("side", models.SideName(po.IsAsk)), zap.Float64("price", po.Price), zap.Error(err))
			continue
		}
		b.logger.Info("初始挂单成功", zap.String("side", models.SideName(po.IsAsk)), zap.Float64("price", po.Price), zap.Int64("base_amount", base))
	}

	buys, sells := b.store.Counts()
	metrics.SetTrackedOrders(buys, sells)
	b.logger.Info("初始化挂单完成", zap.Int("buy", buys), zap.Int("sell", sells))
}

// loop 是对账主循环
func (b *GridBot) loop(ctx context.Context) {
	ticker := time.NewTicker(time.Duration(b.cfg.PollIntervalMs) * time.Millisecond)
	defer ticker.Stop()

	b.logger.Info("自动补单模式已启动", zap.Int("poll_interval_ms", b.cfg.PollIntervalMs))
	for cycle := 0; ; cycle++ {
		if ctx.Err() != nil {
			return
		}
		b.reconcile(ctx, cycle)
		b.maybePrintStatus()

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// reconcile 执行一轮对账: 同步 nonce、获取盘口与挂单、检测成交并补单
func (b *GridBot) reconcile(ctx context.Context, cycle int) {
	callCtx := context.WithoutCancel(ctx)

	if b.cfg.NonceResyncCycles > 0 && cycle%b.cfg.NonceResyncCycles == 0 {
		b.resyncNonce(callCtx, "periodic")
		if ctx.Err() != nil {
			return
		}
	}

	top, err := b.exchange.FetchTopOfBook(callCtx, b.spec.MarketID)
	if err != nil {
		b.logger.Warn("获取盘口失败，跳过本轮", zap.Error(err))
		metrics.IncCycleSkipped("book")
		return
	}
	b.lastMid = top.Mid()
	metrics.SetMidPrice(b.lastMid)
	b.logger.Debug("当前价格", zap.Float64("mid", b.lastMid))
	if ctx.Err() != nil {
		return
	}

	active, err := b.exchange.FetchActiveOrders(callCtx, b.spec.MarketID)
	if err != nil {
		b.logger.Warn("获取活动挂单失败，跳过本轮", zap.Error(err))
		metrics.IncCycleSkipped("orders")
		return
	}
	b.lastActive = len(active)
	if ctx.Err() != nil {
		return
	}

	if limit := b.grid.GridCount + b.cfg.SafetyMargin; len(active) > limit {
		b.logger.Warn("活动挂单过多，跳过本轮补单",
			zap.Int("active", len(active)), zap.Int("grid_count", b.grid.GridCount), zap.Int("limit", limit))
		metrics.IncCycleSkipped("safety_valve")
		return
	}

	activeKeys := make(map[int64]struct{}, len(active))
	for _, o := range active {
		key, err := b.spec.ParseRemotePrice(o.Price)
		if err != nil {
			b.logger.Warn("无法解析挂单价格", zap.String("price", o.Price), zap.Int64("order_index", o.OrderIndex), zap.Error(err))
			continue
		}
		activeKeys[key] = struct{}{}
	}

	filled := b.detectFills(activeKeys)
	for _, o := range filled {
		b.recordFill(o)
		b.store.Remove(o.PriceInt)
	}
	for _, o := range filled {
		if ctx.Err() != nil {
			return
		}
		b.replace(ctx, o, activeKeys)
	}

	buys, sells := b.store.Counts()
	metrics.SetTrackedOrders(buys, sells)
}

// detectFills 返回不在活动挂单中且已超过宽限期的订单
func (b *GridBot) detectFills(activeKeys map[int64]struct{}) []models.TrackedOrder {
	grace := time.Duration(b.cfg.FillGracePeriodSec) * time.Second
	now := b.now()

	var filled []models.TrackedOrder
	for _, o := range b.store.Snapshot() {
		if _, ok := activeKeys[o.PriceInt]; ok {
			continue
		}
		// 新挂单可能还没出现在查询结果中
		if now.Sub(o.PlacedAt) < grace {
			continue
		}
		filled = append(filled, o)
	}
	return filled
}

func (b *GridBot) recordFill(o models.TrackedOrder) {
	coins := b.spec.CoinAmount(o.BaseAmount)
	volume, profit := b.totals.RecordFill(o.IsAsk, o.Price, coins, b.grid.LowerPrice)
	side := models.SideName(o.IsAsk)

	b.logger.Info("检测到成交",
		zap.String("side", side),
		zap.Float64("price", o.Price),
		zap.Float64("volume_usd", volume),
		zap.Float64("estimated_profit", profit),
		zap.Int("trades", b.totals.TradesCount))
	metrics.ObserveFill(side, volume)
	metrics.SetEstimatedProfit(b.totals.TotalProfit)

	if b.journal != nil {
		b.journal.RecordFill(models.FillRecord{
			RunID:            b.runID,
			Token:            b.spec.Symbol,
			Price:            o.Price,
			IsAsk:            o.IsAsk,
			BaseAmount:       o.BaseAmount,
			VolumeUSD:        volume,
			EstimatedProfit:  profit,
			ClientOrderIndex: o.ClientOrderIndex,
			DetectedAt:       b.now(),
		})
	}
}

// replace 在成交价位的另一侧挂出反向订单
func (b *GridBot) replace(ctx context.Context, filled models.TrackedOrder, activeKeys map[int64]struct{}) {
	target := filled.Price + b.spacing
	isAsk := true
	if filled.IsAsk {
		target = filled.Price - b.spacing
		isAsk = false
	}
	fields := []zap.Field{
		zap.String("filled_side", models.SideName(filled.IsAsk)),
		zap.Float64("filled_price", filled.Price),
		zap.String("side", models.SideName(isAsk)),
		zap.Float64("target", target),
	}

	if target < b.grid.LowerPrice*lowerBoundTolerance || target > b.grid.UpperPrice*upperBoundTolerance {
		b.logOutcome(OutcomeClosed, "目标价超出区间，停止该链条", fields...)
		return
	}

	key := b.spec.PriceToInt(target)
	_, remote := activeKeys[key]
	if remote || b.store.Has(key) {
		b.logOutcome(OutcomeSkipped, "目标价已有挂单，跳过", fields...)
		return
	}

	base, err := b.spec.BaseAmount(b.usdPerGrid, b.grid.Leverage, target)
	if err != nil || base <= 0 {
		b.logOutcome(OutcomeFailed, "补单数量为零", append(fields, zap.Int64("base_amount", base), zap.Error(err))...)
		return
	}

	if _, err := b.submit(ctx, target, isAsk, base); err != nil {
		b.logOutcome(OutcomeFailed, "补单失败", append(fields, zap.Stringer("error_kind", exchange.KindOf(err)), zap.Error(err))...)
		return
	}
	b.logOutcome(OutcomeReplaced, "补单成功", append(fields, zap.Int64("base_amount", base))...)
}

func (b *GridBot) logOutcome(outcome, msg string, fields ...zap.Field) {
	metrics.IncReplacement(outcome)
	fields = append(fields, zap.String("outcome", outcome))
	if outcome == OutcomeFailed {
		b.logger.Error(msg, fields...)
		return
	}
	b.logger.Info(msg, fields...)
}

// submit 是初始挂单与补单共用的下单路径。
// 遇到序列号冲突时刷新一次 nonce 并重试一次。
func (b *GridBot) submit(ctx context.Context, price float64, isAsk bool, base int64) (models.TrackedOrder, error) {
	callCtx := context.WithoutCancel(ctx)
	side := models.SideName(isAsk)
	req := models.OrderRequest{
		MarketID:         b.spec.MarketID,
		ClientOrderIndex: b.seq,
		BaseAmount:       base,
		PriceInt:         b.spec.PriceToInt(price),
		IsAsk:            isAsk,
	}

	_, err := b.exchange.PlaceLimitOrder(callCtx, req)
	if err != nil && exchange.IsSequenceConflict(err) {
		b.logger.Warn("nonce 冲突，重新同步后重试", zap.Int64("nonce", req.ClientOrderIndex), zap.Error(err))
		b.resyncNonce(callCtx, "conflict")
		req.ClientOrderIndex = b.seq
		_, err = b.exchange.PlaceLimitOrder(callCtx, req)
	}
	if err != nil {
		metrics.IncOrderFailed(side)
		return models.TrackedOrder{}, err
	}

	order := models.TrackedOrder{
		Price:            price,
		PriceInt:         req.PriceInt,
		IsAsk:            isAsk,
		BaseAmount:       base,
		ClientOrderIndex: req.ClientOrderIndex,
		PlacedAt:         b.now(),
	}
	if err := b.store.Insert(order); err != nil {
		// 调用方已检查过碰撞，走到这里说明状态已不一致
		b.logger.DPanic("网格状态不一致: 已确认的订单无法写入", zap.Error(err), zap.Int64("price_int", order.PriceInt))
	}
	b.seq++
	metrics.IncOrderPlaced(side)
	return order, nil
}

// resyncNonce 从交易所刷新序列号；失败时保留当前值
func (b *GridBot) resyncNonce(ctx context.Context, reason string) {
	n, err := b.exchange.NextNonce(ctx)
	if err != nil {
		b.logger.Warn("同步 nonce 失败，继续使用本地值", zap.String("reason", reason), zap.Int64("nonce", b.seq), zap.Error(err))
		return
	}
	if n != b.seq {
		b.logger.Debug("nonce 已同步", zap.String("reason", reason), zap.Int64("from", b.seq), zap.Int64("to", n))
	}
	b.seq = n
	metrics.IncNonceResync(reason)
}

func (b *GridBot) maybePrintStatus() {
	interval := time.Duration(b.cfg.StatusIntervalSec) * time.Second
	now := b.now()
	if interval <= 0 || now.Sub(b.lastStatus) < interval {
		return
	}
	b.lastStatus = now
	b.printStatus()
}

// printStatus 打印机器人的当前状态
func (b *GridBot) printStatus() {
	buys, sells := b.store.Counts()
	reporter.PrintStatus(b.out, reporter.Status{
		Token:        b.spec.Symbol,
		MidPrice:     b.lastMid,
		ActiveOrders: b.lastActive,
		Buys:         buys,
		Sells:        sells,
		TradesCount:  b.totals.TradesCount,
		TotalVolume:  b.totals.TotalVolume,
		TotalProfit:  b.totals.TotalProfit,
		Time:         b.now(),
	})
}

// Summary 返回当前的运行统计
func (b *GridBot) Summary() models.RunSummary {
	return models.RunSummary{
		RunID:       b.runID,
		Token:       b.spec.Symbol,
		StartedAt:   b.startedAt,
		StoppedAt:   b.now(),
		TradesCount: b.totals.TradesCount,
		TotalVolume: b.totals.TotalVolume,
		TotalProfit: b.totals.TotalProfit,
		OpenOrders:  b.store.Len(),
	}
}

// CancelAll 撤销账户在该市场上的全部挂单，单笔失败不会中断。
// 返回成功撤销的数量；只有获取挂单列表失败时才返回错误。
func CancelAll(ctx context.Context, ex exchange.Exchange, marketID int, logger *zap.Logger) (int, error) {
	callCtx := context.WithoutCancel(ctx)
	orders, err := ex.FetchActiveOrders(callCtx, marketID)
	if err != nil {
		return 0, err
	}
	if len(orders) == 0 {
		logger.Info("没有需要撤销的挂单")
		return 0, nil
	}

	cancelled := 0
	for i, o := range orders {
		if ctx.Err() != nil {
			break
		}
		if _, err := ex.CancelOrder(callCtx, marketID, o.OrderIndex); err != nil {
			logger.Warn("撤单失败", zap.Int64("order_index", o.OrderIndex), zap.Error(err))
		} else {
			cancelled++
		}
		// 每 5 笔稍作停顿，避免触发限频
		if (i+1)%5 == 0 && !ctxutil.Sleep(ctx, 100*time.Millisecond) {
			break
		}
	}
	logger.Info("已撤销旧挂单", zap.Int("cancelled", cancelled), zap.Int("total", len(orders)))
	return cancelled, nil
}
