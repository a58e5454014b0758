// Package planner computes the evenly spaced grid levels and decides which side
// each level starts on.
package planner

import (
	"fmt"
	"lighter-grid-bot-go/internal/models"
)

// PlannedOrder 是初始挂单阶段的一个网格
type PlannedOrder struct {
	Index int
	Price float64
	IsAsk bool
}

// Spacing 返回相邻网格之间的间距
func Spacing(lower, upper float64, count int) float64 {
	if count < 2 {
		return 0
	}
	return (upper - lower) / float64(count-1)
}

// ComputeLevels 生成 count 个价格: lower + i*spacing，最后一个固定为 upper，
// 避免浮点累加误差让最高一格落在区间外
func ComputeLevels(lower, upper float64, count int) ([]float64, error) {
	if count < 2 {
		return nil, fmt.Errorf("grid count must be at least 2, got %d", count)
	}
	if lower <= 0 || lower >= upper {
		return nil, fmt.Errorf("invalid price range [%.4f, %.4f]", lower, upper)
	}

	spacing := Spacing(lower, upper, count)
	levels := make([]float64, count)
	for i := 0; i < count; i++ {
		levels[i] = lower + float64(i)*spacing
	}
	levels[count-1] = upper
	return levels, nil
}

// Classify 决定某个网格的初始方向：价格 >= 中间价为卖单，否则为买单。
// keep 表示该方向在当前策略下是否应该挂出。
func Classify(level, mid float64, direction models.Direction) (isAsk bool, keep bool) {
	isAsk = level >= mid
	switch direction {
	case models.Long:
		return isAsk, !isAsk
	case models.Short:
		return isAsk, isAsk
	default:
		return isAsk, true
	}
}

// Plan 计算需要在启动时挂出的全部订单
func Plan(g models.GridConfig, mid float64) ([]PlannedOrder, error) {
	levels, err := ComputeLevels(g.LowerPrice, g.UpperPrice, g.GridCount)
	if err != nil {
		return nil, err
	}

	orders := make([]PlannedOrder, 0, len(levels))
	for i, level := range levels {
		isAsk, keep := Classify(level, mid, g.Direction)
		if !keep {
			continue
		}
		orders = append(orders, PlannedOrder{Index: i, Price: level, IsAsk: isAsk})
	}
	return orders, nil
}
