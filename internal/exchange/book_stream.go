package exchange

import (
	"context"
	"encoding/json"
	"fmt"
	"lighter-grid-bot-go/internal/ctxutil"
	"lighter-grid-bot-go/internal/models"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	pongWait        = 60 * time.Second
	pingPeriod      = (pongWait * 9) / 10 // 必须小于 pongWait
	reconnectDelay  = 5 * time.Second
	defaultStaleFor = 10 * time.Second
)

// BookStream 通过 WebSocket 订阅 order_book/{market}，在内存中维护盘口，
// 使 FetchTopOfBook 不必每轮都请求 REST 接口。
type BookStream struct {
	url      string
	marketID int
	staleFor time.Duration
	logger   *zap.Logger
	dialer   *websocket.Dialer

	mu         sync.RWMutex
	bids       map[string]float64 // price -> size
	asks       map[string]float64
	lastUpdate time.Time
	now        func() time.Time
}

type bookLevel struct {
	Price string `json:"price"`
	Size  string `json:"size"`
}

type bookData struct {
	Asks []bookLevel `json:"asks"`
	Bids []bookLevel `json:"bids"`
}

type bookMessage struct {
	Type      string   `json:"type"`
	Channel   string   `json:"channel"`
	OrderBook bookData `json:"order_book"`
}

// NewBookStream 创建盘口订阅，需要调用 Run 才会真正连接
func NewBookStream(wsURL string, marketID int, logger *zap.Logger) *BookStream {
	return &BookStream{
		url:      wsURL,
		marketID: marketID,
		staleFor: defaultStaleFor,
		logger:   logger,
		dialer:   websocket.DefaultDialer,
		bids:     make(map[string]float64),
		asks:     make(map[string]float64),
		now:      time.Now,
	}
}

// Run 是一个守护循环，负责维持连接并在断开后重连，直到 ctx 被取消
func (s *BookStream) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			s.logger.Info("盘口订阅已停止", zap.Int("market", s.marketID))
			return
		}

		conn, err := s.connect(ctx)
		if err != nil {
			s.logger.Warn("盘口 WebSocket 连接失败，5秒后重试", zap.Error(err))
			if !ctxutil.Sleep(ctx, reconnectDelay) {
				return
			}
			continue
		}

		s.logger.Info("盘口 WebSocket 连接成功", zap.Int("market", s.marketID))
		if err := s.handleMessages(ctx, conn); err != nil && ctx.Err() == nil {
			s.logger.Warn("盘口 WebSocket 处理时发生错误", zap.Error(err))
		}
		conn.Close()
		s.reset()

		if !ctxutil.Sleep(ctx, reconnectDelay) {
			return
		}
	}
}

func (s *BookStream) connect(ctx context.Context) (*websocket.Conn, error) {
	conn, _, err := s.dialer.DialContext(ctx, s.url, nil)
	if err != nil {
		return nil, fmt.Errorf("无法连接到 WebSocket: %w", err)
	}
	sub := map[string]string{"type": "subscribe", "channel": fmt.Sprintf("order_book/%d", s.marketID)}
	if err := conn.WriteJSON(sub); err != nil {
		conn.Close()
		return nil, fmt.Errorf("发送订阅消息失败: %w", err)
	}
	return conn, nil
}

// handleMessages 为一个已建立的连接读取消息，并实现心跳机制
func (s *BookStream) handleMessages(ctx context.Context, conn *websocket.Conn) error {
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	var writeMu sync.Mutex
	done := make(chan struct{})
	defer close(done)

	go func() {
		ticker := time.NewTicker(pingPeriod)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				writeMu.Lock()
				err := conn.WriteMessage(websocket.PingMessage, nil)
				writeMu.Unlock()
				if err != nil {
					return
				}
			case <-ctx.Done():
				// 关闭连接让 ReadMessage 立即返回
				writeMu.Lock()
				conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				writeMu.Unlock()
				conn.Close()
				return
			case <-done:
				return
			}
		}
	}()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("读取消息失败: %w", err)
		}
		conn.SetReadDeadline(time.Now().Add(pongWait))

		var msg bookMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			s.logger.Debug("忽略无法解析的盘口消息", zap.Error(err))
			continue
		}
		if msg.Type == "ping" {
			writeMu.Lock()
			err := conn.WriteJSON(map[string]string{"type": "pong"})
			writeMu.Unlock()
			if err != nil {
				return fmt.Errorf("回复 pong 失败: %w", err)
			}
			continue
		}
		s.apply(msg)
	}
}

// apply 把快照或增量合并进本地盘口。size 为 0 的档位会被删除。
func (s *BookStream) apply(msg bookMessage) {
	switch msg.Type {
	case "subscribed/order_book", "update/order_book":
	default:
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if msg.Type == "subscribed/order_book" {
		s.bids = make(map[string]float64)
		s.asks = make(map[string]float64)
	}
	mergeLevels(s.bids, msg.OrderBook.Bids)
	mergeLevels(s.asks, msg.OrderBook.Asks)
	s.lastUpdate = s.now()
}

func mergeLevels(side map[string]float64, levels []bookLevel) {
	for _, l := range levels {
		size, err := strconv.ParseFloat(l.Size, 64)
		if err != nil {
			continue
		}
		if size == 0 {
			delete(side, l.Price)
			continue
		}
		side[l.Price] = size
	}
}

func (s *BookStream) reset() {
	s.mu.Lock()
	s.bids = make(map[string]float64)
	s.asks = make(map[string]float64)
	s.lastUpdate = time.Time{}
	s.mu.Unlock()
}

// TopOfBook 返回本地盘口的最优买卖价。盘口过期或某一侧为空时 ok 为 false。
func (s *BookStream) TopOfBook() (top models.TopOfBook, ok bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.lastUpdate.IsZero() || s.now().Sub(s.lastUpdate) > s.staleFor {
		return top, false
	}
	bestBid, okBid := bestPrice(s.bids, func(a, b float64) bool { return a > b })
	bestAsk, okAsk := bestPrice(s.asks, func(a, b float64) bool { return a < b })
	if !okBid || !okAsk {
		return top, false
	}
	return models.TopOfBook{BestBid: bestBid, BestAsk: bestAsk}, true
}

func bestPrice(side map[string]float64, better func(a, b float64) bool) (float64, bool) {
	var best float64
	found := false
	for raw := range side {
		p, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			continue
		}
		if !found || better(p, best) {
			best, found = p, true
		}
	}
	return best, found
}
