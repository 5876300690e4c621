package main

import (
	"fmt"
	"io"
	"net/url"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/charmbracelet/lipgloss"

	"github.com/John-Robertt/charcards/internal/app/run"
	"github.com/John-Robertt/charcards/internal/config"
	"github.com/John-Robertt/charcards/internal/domain"
)

var _ run.Observer = (*progressUI)(nil)

var (
	headStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#5B8DEF"))
	okStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#3FB950"))
	failStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#F85149"))
	dimStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#AAAAAA"))
)

// progressUI 是交互终端下的阶段输出。
//
// 所有过程信息写到 stderr，不污染 stdout 的 JSON 输出契约；run 层只发事件，这里决定如何展示。
type progressUI struct {
	w io.Writer

	mu sync.Mutex
}

func newProgressUI(w io.Writer) *progressUI {
	return &progressUI{w: w}
}

func (p *progressUI) OnStart(eff config.EffectiveConfig) {
	p.mu.Lock()
	defer p.mu.Unlock()

	fmt.Fprintln(p.w, headStyle.Render(fmt.Sprintf("[%s] charcards", time.Now().Format("15:04:05"))))
	fmt.Fprintln(p.w, "配置（生效）:")
	if eff.Input != "" {
		fmt.Fprintf(p.w, "  input: %s\n", eff.Input)
	} else {
		fmt.Fprintf(p.w, "  endpoint: %s\n", truncate(eff.Endpoint, 120))
	}
	fmt.Fprintf(p.w, "  template: %s\n", orDefault(eff.Template, "内置页面"))
	fmt.Fprintf(p.w, "  mount: #%s\n", eff.MountID)
	fmt.Fprintf(p.w, "  placeholder: %s\n", eff.Placeholder)
	fmt.Fprintf(p.w, "  proxy: %s\n", formatProxy(eff.ProxyURL))
	fmt.Fprintf(p.w, "  timeout: %s\n", formatTimeout(eff.Timeout))
	fmt.Fprintln(p.w)
}

func (p *progressUI) OnPhaseDone(name string, fields map[string]any, dur time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch name {
	case run.PhaseFetch:
		status := okStyle.Render("OK")
		if ok, _ := fields["ok"].(bool); !ok {
			status = failStyle.Render("FAIL")
		}
		fmt.Fprintf(p.w, "获取: %s %s (%s)\n", status, truncate(stringField(fields, "source"), 120), formatShortDuration(dur))
	case run.PhaseRender:
		fmt.Fprintf(p.w, "渲染: fragments=%d skipped_keys=%d invalid=%d (%s)\n",
			intField(fields, "fragments"), intField(fields, "skipped_keys"), intField(fields, "invalid"), formatShortDuration(dur),
		)
	case run.PhaseWrite:
		fmt.Fprintf(p.w, "写出: %s failed=%d (%s)\n",
			stringField(fields, "out"), intField(fields, "failed"), formatShortDuration(dur),
		)
	default:
		fmt.Fprintf(p.w, "%s (%s)\n", name, formatShortDuration(dur))
	}
}

func summaryLine(rr domain.RunReport) string {
	return fmt.Sprintf("完成：fragments=%d sequence_keys=%d skipped_keys=%d invalid_elements=%d diagnostics=%d",
		rr.Summary.Fragments, rr.Summary.SequenceKeys, rr.Summary.SkippedKeys, rr.Summary.InvalidElements, rr.Summary.Diagnostics,
	)
}

func diagnosticLine(d domain.Diagnostic, styled bool) string {
	kind, key := d.Kind, d.Key
	if styled {
		kind = failStyle.Render(kind)
		key = dimStyle.Render(key)
	}
	if d.Key != "" {
		return fmt.Sprintf("%s %s: %s", kind, key, truncate(d.Message, 200))
	}
	return fmt.Sprintf("%s: %s", kind, truncate(d.Message, 200))
}

func formatProxy(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "off"
	}
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "on (" + truncate(raw, 120) + ")"
	}
	auth := "off"
	if u.User != nil {
		auth = "on"
	}
	return fmt.Sprintf("on (%s://%s, auth=%s)", u.Scheme, u.Host, auth)
}

func formatTimeout(d time.Duration) string {
	if d <= 0 {
		return "off"
	}
	return d.String()
}

func orDefault(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}

// truncate 按字符（rune）截断到 max 个，超出时以 "..." 结尾；不会切开多字节字符。
func truncate(s string, max int) string {
	s = strings.TrimSpace(s)
	if max <= 0 || utf8.RuneCountInString(s) <= max {
		return s
	}
	r := []rune(s)
	if max <= 3 {
		return string(r[:max])
	}
	return string(r[:max-3]) + "..."
}

func formatShortDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	return fmt.Sprintf("%.1fs", d.Seconds())
}

func intField(fields map[string]any, key string) int {
	switch x := fields[key].(type) {
	case int:
		return x
	case int64:
		return int(x)
	default:
		return 0
	}
}

func stringField(fields map[string]any, key string) string {
	s, _ := fields[key].(string)
	return s
}
