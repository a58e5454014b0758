package exchange

import (
	"context"
	"fmt"
	"lighter-grid-bot-go/internal/models"
	"lighter-grid-bot-go/internal/sizing"
	"math"
	"math/rand"
	"sort"
	"sync"
	"time"
)

// Op 标识 PaperExchange 上的一类调用，用于故障注入与调用计数
type Op int

const (
	OpBook Op = iota
	OpActiveOrders
	OpPlace
	OpCancel
	OpNonce
)

// PaperFill 是模拟盘上的一笔成交
type PaperFill struct {
	OrderIndex int64
	PriceInt   int64
	IsAsk      bool
	BaseAmount int64
	Fee        float64
	At         time.Time
}

type paperOrder struct {
	orderIndex       int64
	clientOrderIndex int64
	priceInt         int64
	isAsk            bool
	baseAmount       int64
}

// PaperExchange 实现了 Exchange 接口，在内存中模拟一个单市场的撮合。
// 限价单在盘口穿过挂单价时按挂单价全部成交。
type PaperExchange struct {
	spec         sizing.TokenSpec
	MakerFeeRate float64 // 挂单手续费率
	StrictNonce  bool    // 为 true 时拒绝小于当前 nonce 的下单

	mu          sync.Mutex
	bid, ask    float64
	orders      map[int64]*paperOrder
	nextOrderID int64
	nonce       int64
	failures    map[Op][]error
	calls       map[Op]int
	fills       []PaperFill
	position    int64   // 带符号的 base 数量，多为正
	cash        float64 // 报价货币的现金流
	totalFees   float64
	now         func() time.Time
}

// NewPaperExchange 创建一个新的模拟交易所
func NewPaperExchange(spec sizing.TokenSpec, bid, ask float64) *PaperExchange {
	return &PaperExchange{
		spec:        spec,
		bid:         bid,
		ask:         ask,
		orders:      make(map[int64]*paperOrder),
		nextOrderID: 1,
		nonce:       1,
		failures:    make(map[Op][]error),
		calls:       make(map[Op]int),
		now:         time.Now,
	}
}

// FailNext 让下一次 op 调用返回 err；多次调用会排队
func (e *PaperExchange) FailNext(op Op, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.failures[op] = append(e.failures[op], err)
}

// AdvanceNonce 模拟同一 API key 被其他客户端使用
func (e *PaperExchange) AdvanceNonce(n int64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.nonce += n
}

// Calls 返回某类调用发生的次数
func (e *PaperExchange) Calls(op Op) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls[op]
}

// enter 记录调用并弹出注入的故障。必须在持有锁的情况下调用。
func (e *PaperExchange) enter(op Op) error {
	e.calls[op]++
	if q := e.failures[op]; len(q) > 0 {
		e.failures[op] = q[1:]
		return q[0]
	}
	return nil
}

// SetBook 更新盘口并撮合所有被穿过的挂单
func (e *PaperExchange) SetBook(bid, ask float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.bid, e.ask = bid, ask
	e.matchLocked()
}

// matchLocked 遍历所有挂单 (按 order index 排序)，成交被穿过的订单
func (e *PaperExchange) matchLocked() {
	if e.bid <= 0 || e.ask <= 0 {
		return
	}
	bidInt := e.spec.PriceToInt(e.bid)
	askInt := e.spec.PriceToInt(e.ask)

	ids := make([]int64, 0, len(e.orders))
	for id := range e.orders {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	for _, id := range ids {
		o := e.orders[id]
		if (o.isAsk && bidInt >= o.priceInt) || (!o.isAsk && askInt <= o.priceInt) {
			e.fillLocked(o)
		}
	}
}

func (e *PaperExchange) fillLocked(o *paperOrder) {
	delete(e.orders, o.orderIndex)

	price := e.spec.IntToPrice(o.priceInt)
	notional := e.spec.CoinAmount(o.baseAmount) * price
	fee := notional * e.MakerFeeRate
	if o.isAsk {
		e.position -= o.baseAmount
		e.cash += notional
	} else {
		e.position += o.baseAmount
		e.cash -= notional
	}
	e.cash -= fee
	e.totalFees += fee

	e.fills = append(e.fills, PaperFill{
		OrderIndex: o.orderIndex,
		PriceInt:   o.priceInt,
		IsAsk:      o.isAsk,
		BaseAmount: o.baseAmount,
		Fee:        fee,
		At:         e.now(),
	})
}

// Fills 返回到目前为止的全部成交
func (e *PaperExchange) Fills() []PaperFill {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]PaperFill, len(e.fills))
	copy(out, e.fills)
	return out
}

// Position 返回当前净持仓 (币数量) 与按当前中间价计算的账户权益变化
func (e *PaperExchange) Position() (coins float64, pnl float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	coins = e.spec.CoinAmount(e.position)
	mid := (e.bid + e.ask) / 2
	return coins, e.cash + coins*mid
}

// RandomWalk 以几何随机游走驱动盘口，直到 ctx 被取消。仅用于模拟运行。
func (e *PaperExchange) RandomWalk(ctx context.Context, interval time.Duration, volatility float64, rng *rand.Rand) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	tick := math.Pow(10, -float64(e.spec.PricePrecision))

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.mu.Lock()
			mid := (e.bid + e.ask) / 2
			e.mu.Unlock()

			mid *= 1 + rng.NormFloat64()*volatility
			if mid <= 2*tick {
				continue
			}
			e.SetBook(e.spec.RoundPrice(mid-tick), e.spec.RoundPrice(mid+tick))
		}
	}
}

// --- Exchange 接口实现 ---

func (e *PaperExchange) CheckClient(ctx context.Context) error {
	return nil
}

func (e *PaperExchange) FetchTopOfBook(ctx context.Context, marketID int) (*models.TopOfBook, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.enter(OpBook); err != nil {
		return nil, err
	}
	if e.bid <= 0 || e.ask <= 0 {
		return nil, newError(models.KindEmptyBook, 0, fmt.Sprintf("order book empty for market %d", marketID))
	}
	return &models.TopOfBook{BestBid: e.bid, BestAsk: e.ask}, nil
}

func (e *PaperExchange) FetchActiveOrders(ctx context.Context, marketID int) ([]models.ActiveOrder, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.enter(OpActiveOrders); err != nil {
		return nil, err
	}

	out := make([]models.ActiveOrder, 0, len(e.orders))
	for _, o := range e.orders {
		coi := o.clientOrderIndex
		out = append(out, models.ActiveOrder{
			OrderIndex:       o.orderIndex,
			ClientOrderIndex: &coi,
			Price:            e.spec.FormatPrice(o.priceInt),
			IsAsk:            o.isAsk,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OrderIndex < out[j].OrderIndex })
	return out, nil
}

func (e *PaperExchange) PlaceLimitOrder(ctx context.Context, req models.OrderRequest) (*models.TxResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.enter(OpPlace); err != nil {
		return nil, err
	}
	if e.StrictNonce && req.ClientOrderIndex < e.nonce {
		return nil, newError(models.KindSequenceConflict, 21104, fmt.Sprintf("invalid nonce %d, expected %d", req.ClientOrderIndex, e.nonce))
	}
	if req.BaseAmount <= 0 || req.PriceInt <= 0 {
		return nil, newError(models.KindRejected, 21700, "invalid order size or price")
	}
	if req.ClientOrderIndex >= e.nonce {
		e.nonce = req.ClientOrderIndex + 1
	}

	o := &paperOrder{
		orderIndex:       e.nextOrderID,
		clientOrderIndex: req.ClientOrderIndex,
		priceInt:         req.PriceInt,
		isAsk:            req.IsAsk,
		baseAmount:       req.BaseAmount,
	}
	e.orders[o.orderIndex] = o
	e.nextOrderID++
	// 穿价的限价单立即成交
	e.matchLocked()

	return &models.TxResult{TxInfo: fmt.Sprintf("paper-order-%d", o.orderIndex), TxHash: fmt.Sprintf("%064x", o.orderIndex)}, nil
}

func (e *PaperExchange) CancelOrder(ctx context.Context, marketID int, orderIndex int64) (*models.TxResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.enter(OpCancel); err != nil {
		return nil, err
	}
	if _, ok := e.orders[orderIndex]; !ok {
		return nil, newError(models.KindRejected, 21500, fmt.Sprintf("order %d not found", orderIndex))
	}
	delete(e.orders, orderIndex)
	return &models.TxResult{TxInfo: fmt.Sprintf("paper-cancel-%d", orderIndex)}, nil
}

func (e *PaperExchange) NextNonce(ctx context.Context) (int64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.enter(OpNonce); err != nil {
		return 0, err
	}
	return e.nonce, nil
}

func (e *PaperExchange) Close() error {
	return nil
}
