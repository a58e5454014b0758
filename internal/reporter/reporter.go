package reporter

import (
	"fmt"
	"io"
	"lighter-grid-bot-go/internal/models"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// Status 是运行中定期打印的状态快照
type Status struct {
	Token        string
	MidPrice     float64
	ActiveOrders int // 交易所返回的活动挂单数量
	Buys         int // 本地跟踪的买单
	Sells        int // 本地跟踪的卖单
	TradesCount  int
	TotalVolume  float64
	TotalProfit  float64
	Time         time.Time
}

// GridPlan 是启动时打印的网格参数
type GridPlan struct {
	Token      string
	Direction  models.Direction
	MidPrice   float64
	LowerPrice float64
	UpperPrice float64
	GridCount  int
	Spacing    float64
	USDPerGrid float64
	Leverage   int
}

func newTable(w io.Writer, title string) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.SetTitle(title)
	t.Style().Title.Align = text.AlignCenter
	return t
}

// PrintPlan 打印网格参数
func PrintPlan(w io.Writer, p GridPlan) {
	t := newTable(w, fmt.Sprintf("%s 网格参数", p.Token))
	t.AppendRows([]table.Row{
		{"方向", p.Direction},
		{"市场价格", fmt.Sprintf("$%.2f", p.MidPrice)},
		{"价格区间", fmt.Sprintf("$%.2f - $%.2f", p.LowerPrice, p.UpperPrice)},
		{"网格数量", p.GridCount},
		{"网格间距", fmt.Sprintf("$%.4f", p.Spacing)},
		{"单格保证金", fmt.Sprintf("$%.2f", p.USDPerGrid)},
		{"杠杆", fmt.Sprintf("%dx", p.Leverage)},
	})
	t.Render()
}

// PrintStatus 打印运行状态
func PrintStatus(w io.Writer, s Status) {
	t := newTable(w, fmt.Sprintf("%s 状态 @ %s", s.Token, s.Time.Format("15:04:05")))
	t.AppendHeader(table.Row{"当前价格", "活动挂单", "买单", "卖单", "成交次数", "成交额", "估算利润"})
	t.AppendRow(table.Row{
		fmt.Sprintf("$%.2f", s.MidPrice),
		s.ActiveOrders,
		s.Buys,
		s.Sells,
		s.TradesCount,
		fmt.Sprintf("$%.2f", s.TotalVolume),
		fmt.Sprintf("$%.2f", s.TotalProfit),
	})
	t.Render()
}

// PrintSummary 打印一次运行的最终统计
func PrintSummary(w io.Writer, s models.RunSummary) {
	t := newTable(w, "最终统计")
	t.AppendRows([]table.Row{
		{"运行ID", s.RunID},
		{"代币", s.Token},
		{"运行时长", s.StoppedAt.Sub(s.StartedAt).Round(time.Second)},
		{"总成交次数", s.TradesCount},
		{"总成交额", fmt.Sprintf("$%.2f", s.TotalVolume)},
		{"估算利润", fmt.Sprintf("$%.2f", s.TotalProfit)},
		{"剩余挂单", s.OpenOrders},
	})
	t.Render()
}

// PrintFills 打印成交日志
func PrintFills(w io.Writer, fills []models.FillRecord) {
	t := newTable(w, "成交记录")
	t.AppendHeader(table.Row{"时间", "方向", "价格", "数量", "成交额", "估算利润"})
	var volume, profit float64
	for _, f := range fills {
		t.AppendRow(table.Row{
			f.DetectedAt.Format("2006-01-02 15:04:05"),
			models.SideName(f.IsAsk),
			fmt.Sprintf("%.4f", f.Price),
			f.BaseAmount,
			fmt.Sprintf("$%.2f", f.VolumeUSD),
			fmt.Sprintf("$%.4f", f.EstimatedProfit),
		})
		volume += f.VolumeUSD
		profit += f.EstimatedProfit
	}
	t.AppendFooter(table.Row{"合计", len(fills), "", "", fmt.Sprintf("$%.2f", volume), fmt.Sprintf("$%.4f", profit)})
	t.Render()
}
