package exchange

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"lighter-grid-bot-go/internal/models"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Lighter 交易类型
const (
	TxTypeCreateOrder = 14
	TxTypeCancelOrder = 15
)

// SignedTx 是一笔已签名、可直接提交到 sendTx 的交易
type SignedTx struct {
	TxType int    `json:"tx_type"`
	TxInfo string `json:"tx_info"`
}

// Signer 负责交易签名与认证令牌。私钥只存在于签名服务中，
// 机器人进程内不持有任何私钥。
type Signer interface {
	CheckClient(ctx context.Context) error
	SignCreateOrder(ctx context.Context, req models.OrderRequest) (*SignedTx, error)
	SignCancelOrder(ctx context.Context, marketID int, orderIndex int64) (*SignedTx, error)
	CreateAuthToken(ctx context.Context, expiry time.Time) (string, error)
}

// HTTPSigner 通过 JSON 调用本地签名服务 (SIGNER_URL)
type HTTPSigner struct {
	baseURL      string
	accountIndex int64
	apiKeyIndex  int
	httpClient   *http.Client
	logger       *zap.Logger
}

// NewHTTPSigner 创建签名服务客户端
func NewHTTPSigner(baseURL string, accountIndex int64, apiKeyIndex int, logger *zap.Logger) *HTTPSigner {
	return &HTTPSigner{
		baseURL:      strings.TrimRight(baseURL, "/"),
		accountIndex: accountIndex,
		apiKeyIndex:  apiKeyIndex,
		httpClient:   &http.Client{Timeout: 10 * time.Second},
		logger:       logger,
	}
}

type signerCheckRequest struct {
	AccountIndex int64 `json:"account_index"`
	APIKeyIndex  int   `json:"api_key_index"`
}

type signerOrderRequest struct {
	AccountIndex     int64  `json:"account_index"`
	APIKeyIndex      int    `json:"api_key_index"`
	MarketIndex      int    `json:"market_index"`
	ClientOrderIndex int64  `json:"client_order_index"`
	BaseAmount       int64  `json:"base_amount"`
	Price            int64  `json:"price"`
	IsAsk            bool   `json:"is_ask"`
	OrderType        string `json:"order_type"`
	TimeInForce      string `json:"time_in_force"`
	ReduceOnly       bool   `json:"reduce_only"`
}

type signerCancelRequest struct {
	AccountIndex int64 `json:"account_index"`
	APIKeyIndex  int   `json:"api_key_index"`
	MarketIndex  int   `json:"market_index"`
	OrderIndex   int64 `json:"order_index"`
}

type signerAuthRequest struct {
	AccountIndex int64 `json:"account_index"`
	APIKeyIndex  int   `json:"api_key_index"`
	Expiry       int64 `json:"expiry"`
}

type signerResponse struct {
	TxType int    `json:"tx_type"`
	TxInfo string `json:"tx_info"`
	Token  string `json:"auth"`
	Error  string `json:"error"`
}

// CheckClient 校验签名服务持有的 API key 与账户是否匹配
func (s *HTTPSigner) CheckClient(ctx context.Context) error {
	_, err := s.post(ctx, "/v1/check", signerCheckRequest{AccountIndex: s.accountIndex, APIKeyIndex: s.apiKeyIndex})
	return err
}

// SignCreateOrder 为一笔 GTT 限价单签名
func (s *HTTPSigner) SignCreateOrder(ctx context.Context, req models.OrderRequest) (*SignedTx, error) {
	resp, err := s.post(ctx, "/v1/sign/create_order", signerOrderRequest{
		AccountIndex:     s.accountIndex,
		APIKeyIndex:      s.apiKeyIndex,
		MarketIndex:      req.MarketID,
		ClientOrderIndex: req.ClientOrderIndex,
		BaseAmount:       req.BaseAmount,
		Price:            req.PriceInt,
		IsAsk:            req.IsAsk,
		OrderType:        "limit",
		TimeInForce:      "good_till_time",
		ReduceOnly:       req.ReduceOnly,
	})
	if err != nil {
		return nil, err
	}
	return &SignedTx{TxType: orDefault(resp.TxType, TxTypeCreateOrder), TxInfo: resp.TxInfo}, nil
}

// SignCancelOrder 为撤单签名
func (s *HTTPSigner) SignCancelOrder(ctx context.Context, marketID int, orderIndex int64) (*SignedTx, error) {
	resp, err := s.post(ctx, "/v1/sign/cancel_order", signerCancelRequest{
		AccountIndex: s.accountIndex,
		APIKeyIndex:  s.apiKeyIndex,
		MarketIndex:  marketID,
		OrderIndex:   orderIndex,
	})
	if err != nil {
		return nil, err
	}
	return &SignedTx{TxType: orDefault(resp.TxType, TxTypeCancelOrder), TxInfo: resp.TxInfo}, nil
}

// CreateAuthToken 生成读取私有数据 (活动挂单) 所需的令牌
func (s *HTTPSigner) CreateAuthToken(ctx context.Context, expiry time.Time) (string, error) {
	resp, err := s.post(ctx, "/v1/auth_token", signerAuthRequest{
		AccountIndex: s.accountIndex,
		APIKeyIndex:  s.apiKeyIndex,
		Expiry:       expiry.Unix(),
	})
	if err != nil {
		return "", err
	}
	if resp.Token == "" {
		return "", newError(models.KindAuth, 0, "signer returned an empty auth token")
	}
	return resp.Token, nil
}

func (s *HTTPSigner) post(ctx context.Context, endpoint string, payload interface{}) (*signerResponse, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("创建签名请求失败: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, newError(models.KindTransport, 0, fmt.Sprintf("signer %s: %v", endpoint, err))
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, newError(models.KindTransport, resp.StatusCode, fmt.Sprintf("读取签名响应失败: %v", err))
	}

	var out signerResponse
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &out); err != nil {
			if resp.StatusCode != http.StatusOK {
				return nil, newError(classify(resp.StatusCode, 0, string(raw)), resp.StatusCode, string(raw))
			}
			return nil, fmt.Errorf("解析签名响应失败: %w, 响应: %s", err, string(raw))
		}
	}
	if out.Error != "" || resp.StatusCode != http.StatusOK {
		msg := out.Error
		if msg == "" {
			msg = string(raw)
		}
		s.logger.Warn("签名服务返回错误", zap.String("endpoint", endpoint), zap.Int("status", resp.StatusCode), zap.String("error", msg))
		return nil, newError(classify(resp.StatusCode, 0, msg), resp.StatusCode, msg)
	}
	return &out, nil
}

func orDefault(v, def int) int {
	if v == 0 {
		return def
	}
	return v
}
