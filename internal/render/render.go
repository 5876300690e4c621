package render

import (
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/net/html"

	"github.com/John-Robertt/charcards/internal/domain"
)

// Appender 是挂载点的最小接口：只追加，不替换、不读取。
type Appender interface {
	Append(n *html.Node)
}

// Options 控制一次渲染。
type Options struct {
	// Placeholder 是无图记录使用的图片路径；为空时使用 DefaultPlaceholder。
	Placeholder string
	// Logger 是诊断输出通道；为 nil 时不输出日志（诊断仍会写入 Result）。
	Logger *zap.Logger
}

// Result 汇总一次渲染的结果。
type Result struct {
	Fragments       int
	SequenceKeys    int
	SkippedKeys     int
	InvalidElements int

	Diagnostics []domain.Diagnostic
}

// Render 把 payload 中所有记录渲染为卡片，并按遇到的顺序追加到 mount。
//
// 约束：
// - 不返回错误：任何问题都降级为诊断（记录日志 + 写入 Result），调用方继续执行
// - payload 不是对象：记录一次 invalid_shape，不追加任何节点
// - 非序列的 key 静默跳过（不产生诊断）
// - 每条记录恰好产生一个卡片：不跳过、不去重
func Render(p domain.Payload, mount Appender, opts Options) Result {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}

	var res Result
	if !p.IsObject() {
		d := domain.Diagnostic{
			Kind:    domain.DiagInvalidShape,
			Message: fmt.Sprintf("数据格式无效：期望 JSON 对象，实际是 %s", p.Kind),
		}
		log.Error("数据格式无效",
			zap.String("kind", d.Kind),
			zap.String("payload_kind", string(p.Kind)),
		)
		res.Diagnostics = append(res.Diagnostics, d)
		return res
	}

	for _, e := range p.Entries {
		if e.Kind != domain.ValueSequence {
			res.SkippedKeys++
			log.Debug("跳过非序列字段", zap.String("key", e.Key))
			continue
		}
		res.SequenceKeys++

		for _, rec := range e.Records {
			mount.Append(Node(CardFor(rec, opts.Placeholder)))
			res.Fragments++
		}

		if e.Invalid > 0 {
			res.InvalidElements += e.Invalid
			d := domain.Diagnostic{
				Kind:    domain.DiagInvalidElement,
				Key:     e.Key,
				Message: fmt.Sprintf("%d 个元素不是对象，已忽略", e.Invalid),
			}
			log.Warn("序列中存在非对象元素",
				zap.String("kind", d.Kind),
				zap.String("key", e.Key),
				zap.Int("count", e.Invalid),
			)
			res.Diagnostics = append(res.Diagnostics, d)
		}
	}

	log.Debug("渲染完成",
		zap.Int("fragments", res.Fragments),
		zap.Int("sequence_keys", res.SequenceKeys),
		zap.Int("skipped_keys", res.SkippedKeys),
	)
	return res
}
