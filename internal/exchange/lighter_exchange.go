package exchange

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"lighter-grid-bot-go/internal/models"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

// authTokenTTL 是读取活动挂单所用令牌的有效期
const authTokenTTL = time.Hour

// LighterExchange 实现了 Exchange 接口，用于与 Lighter 交易所进行交互。
// 签名由外部的 Signer 完成。
type LighterExchange struct {
	baseURL      string
	accountIndex int64
	apiKeyIndex  int
	httpClient   *http.Client
	signer       Signer
	book         *BookStream // 可选，为 nil 时总是走 REST
	logger       *zap.Logger
}

// NewLighterExchange 创建一个新的 LighterExchange 实例
func NewLighterExchange(baseURL string, accountIndex int64, apiKeyIndex int, signer Signer, logger *zap.Logger) *LighterExchange {
	return &LighterExchange{
		baseURL:      strings.TrimRight(baseURL, "/"),
		accountIndex: accountIndex,
		apiKeyIndex:  apiKeyIndex,
		httpClient:   &http.Client{Timeout: 10 * time.Second},
		signer:       signer,
		logger:       logger,
	}
}

// UseBookStream 让 FetchTopOfBook 优先使用 WebSocket 维护的盘口
func (e *LighterExchange) UseBookStream(s *BookStream) {
	e.book = s
}

// apiResponse 是 Lighter 所有响应共有的字段; 成功时 code 为 200
type apiResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// doRequest 是一个通用的请求处理函数，用于向 Lighter API 发送请求。
// GET 请求的参数放在 query 中，POST 请求使用表单编码。
func (e *LighterExchange) doRequest(ctx context.Context, method, endpoint string, params url.Values) ([]byte, error) {
	fullURL := e.baseURL + endpoint

	var req *http.Request
	var err error
	if method == http.MethodGet {
		if len(params) > 0 {
			fullURL = fmt.Sprintf("%s?%s", fullURL, params.Encode())
		}
		req, err = http.NewRequestWithContext(ctx, method, fullURL, nil)
	} else {
		req, err = http.NewRequestWithContext(ctx, method, fullURL, strings.NewReader(params.Encode()))
		if req != nil {
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		}
	}
	if err != nil {
		return nil, fmt.Errorf("创建请求失败: %w", err)
	}
	e.logger.Debug("发送请求", zap.String("method", method), zap.String("endpoint", endpoint))

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, newError(models.KindTransport, 0, fmt.Sprintf("执行请求失败: %v", err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, newError(models.KindTransport, resp.StatusCode, fmt.Sprintf("读取响应体失败: %v", err))
	}

	var apiErr apiResponse
	if json.Unmarshal(body, &apiErr) == nil && apiErr.Code != 0 && apiErr.Code != http.StatusOK {
		return body, newError(classify(resp.StatusCode, apiErr.Code, apiErr.Message), apiErr.Code, apiErr.Message)
	}

	if resp.StatusCode != http.StatusOK {
		// 把响应体一起返回，便于上层记录详细错误
		msg := fmt.Sprintf("API请求失败, 状态码: %d, 响应: %s", resp.StatusCode, string(body))
		return body, newError(classify(resp.StatusCode, 0, msg), resp.StatusCode, msg)
	}

	return body, nil
}

// --- Exchange 接口实现 ---

// CheckClient 校验签名服务与账户配置
func (e *LighterExchange) CheckClient(ctx context.Context) error {
	if err := e.signer.CheckClient(ctx); err != nil {
		return fmt.Errorf("签名客户端校验失败: %w", err)
	}
	return nil
}

// FetchTopOfBook 获取最优买卖价
func (e *LighterExchange) FetchTopOfBook(ctx context.Context, marketID int) (*models.TopOfBook, error) {
	if e.book != nil && e.book.marketID == marketID {
		if top, ok := e.book.TopOfBook(); ok {
			return &top, nil
		}
	}

	params := url.Values{}
	params.Set("market_id", strconv.Itoa(marketID))
	params.Set("limit", "1")
	data, err := e.doRequest(ctx, http.MethodGet, "/api/v1/orderBookOrders", params)
	if err != nil {
		return nil, err
	}

	var book struct {
		Bids []bookLevel `json:"bids"`
		Asks []bookLevel `json:"asks"`
	}
	if err := json.Unmarshal(data, &book); err != nil {
		return nil, fmt.Errorf("解析盘口失败: %w", err)
	}
	if len(book.Bids) == 0 || len(book.Asks) == 0 {
		return nil, newError(models.KindEmptyBook, 0, fmt.Sprintf("order book empty for market %d", marketID))
	}

	bid, err := strconv.ParseFloat(book.Bids[0].Price, 64)
	if err != nil {
		return nil, fmt.Errorf("解析买一价失败: %w", err)
	}
	ask, err := strconv.ParseFloat(book.Asks[0].Price, 64)
	if err != nil {
		return nil, fmt.Errorf("解析卖一价失败: %w", err)
	}
	return &models.TopOfBook{BestBid: bid, BestAsk: ask}, nil
}

// FetchActiveOrders 获取账户在指定市场上的所有活动挂单
func (e *LighterExchange) FetchActiveOrders(ctx context.Context, marketID int) ([]models.ActiveOrder, error) {
	auth, err := e.signer.CreateAuthToken(ctx, time.Now().Add(authTokenTTL))
	if err != nil {
		return nil, fmt.Errorf("生成认证令牌失败: %w", err)
	}

	params := url.Values{}
	params.Set("account_index", strconv.FormatInt(e.accountIndex, 10))
	params.Set("market_id", strconv.Itoa(marketID))
	params.Set("auth", auth)
	data, err := e.doRequest(ctx, http.MethodGet, "/api/v1/accountActiveOrders", params)
	if err != nil {
		return nil, err
	}

	var resp struct {
		Orders []models.ActiveOrder `json:"orders"`
	}
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("解析活动挂单失败: %w", err)
	}
	if resp.Orders == nil {
		resp.Orders = []models.ActiveOrder{}
	}
	return resp.Orders, nil
}

// PlaceLimitOrder 签名并提交一笔限价单
func (e *LighterExchange) PlaceLimitOrder(ctx context.Context, req models.OrderRequest) (*models.TxResult, error) {
	tx, err := e.signer.SignCreateOrder(ctx, req)
	if err != nil {
		return nil, err
	}
	result, err := e.sendTx(ctx, tx)
	if err != nil {
		e.logger.Warn("下单请求失败，交易所返回错误", zap.Error(err),
			zap.Int64("price_int", req.PriceInt), zap.Int64("client_order_index", req.ClientOrderIndex))
		return nil, err
	}
	return result, nil
}

// CancelOrder 撤销一笔挂单
func (e *LighterExchange) CancelOrder(ctx context.Context, marketID int, orderIndex int64) (*models.TxResult, error) {
	tx, err := e.signer.SignCancelOrder(ctx, marketID, orderIndex)
	if err != nil {
		return nil, err
	}
	return e.sendTx(ctx, tx)
}

func (e *LighterExchange) sendTx(ctx context.Context, tx *SignedTx) (*models.TxResult, error) {
	params := url.Values{}
	params.Set("tx_type", strconv.Itoa(tx.TxType))
	params.Set("tx_info", tx.TxInfo)
	data, err := e.doRequest(ctx, http.MethodPost, "/api/v1/sendTx", params)
	if err != nil {
		return nil, err
	}

	var resp struct {
		TxHash string `json:"tx_hash"`
	}
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("解析交易结果失败: %w", err)
	}
	return &models.TxResult{TxInfo: tx.TxInfo, TxHash: resp.TxHash}, nil
}

// NextNonce 获取账户下一个可用的 nonce
func (e *LighterExchange) NextNonce(ctx context.Context) (int64, error) {
	params := url.Values{}
	params.Set("account_index", strconv.FormatInt(e.accountIndex, 10))
	params.Set("api_key_index", strconv.Itoa(e.apiKeyIndex))
	data, err := e.doRequest(ctx, http.MethodGet, "/api/v1/nextNonce", params)
	if err != nil {
		return 0, err
	}

	var resp struct {
		Nonce int64 `json:"nonce"`
	}
	if err := json.Unmarshal(data, &resp); err != nil {
		return 0, fmt.Errorf("解析 nonce 失败: %w", err)
	}
	return resp.Nonce, nil
}

// Close 释放空闲连接
func (e *LighterExchange) Close() error {
	e.httpClient.CloseIdleConnections()
	return nil
}
