package run

import (
	"time"

	"github.com/John-Robertt/charcards/internal/config"
)

// Observer 用于把“阶段进度”从核心执行流程中解耦出来。
//
// 约束：
// - run 包只负责发事件，不做任何输出（避免污染 stdout 的 JSON 契约）。
// - 事件都在调用 Execute/Build 的 goroutine 上按顺序发出。
type Observer interface {
	// OnStart 在流程开始时调用。
	OnStart(eff config.EffectiveConfig)
	// OnPhaseDone 在阶段结束时调用：fetch / render / write。
	// 获取失败时不会有 render 事件；页面没有构建出来时不会有 write 事件。
	OnPhaseDone(name string, fields map[string]any, dur time.Duration)
}
