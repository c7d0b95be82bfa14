// Package analyzer 脉搏读数分析：跳变检测、正常范围校验、跳变审计，以及单条读数的处理流程。
//
// 同一病人的读数按顺序逐条处理：先读旧基线，再比较，最后无条件覆盖为当前值。
// 正确性依赖上游按病人保持时间顺序投递；本包不做重排或缓冲。
// 不同病人的状态互不相关，可以任意顺序或并行处理。
package analyzer

import (
	"math"

	"pulse-monitor/internal/models"
)

// IsJump 判断从 baseline 到 current 是否构成跳变
// 没有基线或基线为 0 时不算跳变；否则 |current-baseline|/baseline > factor（严格大于）
func IsJump(current int, baseline int, hasBaseline bool, factor float64) bool {
	if !hasBaseline || baseline == 0 {
		return false
	}
	return math.Abs(float64(current-baseline))/float64(baseline) > factor
}

// IsOutOfRange 值是否落在正常范围（闭区间）之外；范围为 nil 时跳过校验
func IsOutOfRange(value int, r *models.NormalRange) bool {
	if r == nil {
		return false
	}
	return value < r.Min || value > r.Max
}
