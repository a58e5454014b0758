package exchange

import (
	"context"
	"lighter-grid-bot-go/internal/models"
)

// Exchange 定义了网格机器人需要的全部交易所操作。
// 实盘 (LighterExchange) 与模拟 (PaperExchange) 都实现该接口，
// 机器人只通过它与外部交互。
type Exchange interface {
	// CheckClient 在启动时校验连通性与凭证
	CheckClient(ctx context.Context) error
	FetchTopOfBook(ctx context.Context, marketID int) (*models.TopOfBook, error)
	FetchActiveOrders(ctx context.Context, marketID int) ([]models.ActiveOrder, error)
	PlaceLimitOrder(ctx context.Context, req models.OrderRequest) (*models.TxResult, error)
	CancelOrder(ctx context.Context, marketID int, orderIndex int64) (*models.TxResult, error)
	// NextNonce 返回账户下一个可用的序列号
	NextNonce(ctx context.Context) (int64, error)
	Close() error
}
