package main

import (
	"bytes"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/John-Robertt/charcards/internal/app/run"
	"github.com/John-Robertt/charcards/internal/config"
	"github.com/John-Robertt/charcards/internal/domain"
)

func TestProgressUI_Phases(t *testing.T) {
	var buf bytes.Buffer
	p := newProgressUI(&buf)

	p.OnStart(config.EffectiveConfig{
		Endpoint:    "https://api.example.test/character",
		MountID:     "characters",
		Placeholder: "placeholder.jpg",
		ProxyURL:    "http://user:pw@127.0.0.1:3128",
	})
	p.OnPhaseDone(run.PhaseFetch, map[string]any{"source": "https://api.example.test/character", "ok": false}, 1200*time.Millisecond)
	p.OnPhaseDone(run.PhaseRender, map[string]any{"fragments": 3, "skipped_keys": 1, "invalid": 0}, 0)
	p.OnPhaseDone(run.PhaseWrite, map[string]any{"out": "/tmp/index.html", "failed": 0}, 0)

	out := buf.String()
	for _, want := range []string{
		"endpoint: https://api.example.test/character",
		"template: 内置页面",
		"proxy: on (http://127.0.0.1:3128, auth=on)",
		"timeout: off",
		"FAIL",
		"(1.2s)",
		"渲染: fragments=3 skipped_keys=1 invalid=0",
		"写出: /tmp/index.html failed=0",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("输出缺少 %q：\n%s", want, out)
		}
	}
	if strings.Contains(out, "pw") {
		t.Fatalf("代理密码不应输出：\n%s", out)
	}
}

func TestDiagnosticLine(t *testing.T) {
	got := diagnosticLine(domain.Diagnostic{Kind: domain.DiagNetworkError, Message: "Network response was not ok (HTTP 500)"}, false)
	if got != "network_error: Network response was not ok (HTTP 500)" {
		t.Fatalf("诊断行不符合预期：%q", got)
	}
	got = diagnosticLine(domain.Diagnostic{Kind: domain.DiagInvalidElement, Key: "data", Message: "1 个元素不是对象，已忽略"}, false)
	if !strings.HasPrefix(got, "invalid_element ") || !strings.Contains(got, "data") {
		t.Fatalf("诊断行应包含 key：%q", got)
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("abcdefgh", 5); got != "ab..." {
		t.Fatalf("truncate 不符合预期：%q", got)
	}
	if got := truncate("  ab  ", 5); got != "ab" {
		t.Fatalf("truncate 不符合预期：%q", got)
	}
}

func TestTruncate_MultiByteRunes(t *testing.T) {
	msg := "读取宿主页面失败：文件不存在"
	for max := 1; max <= utf8.RuneCountInString(msg)+1; max++ {
		got := truncate(msg, max)
		if !utf8.ValidString(got) {
			t.Fatalf("max=%d 截断结果不是合法 UTF-8：%q", max, got)
		}
		if n := utf8.RuneCountInString(got); n > max {
			t.Fatalf("max=%d 截断后仍有 %d 个字符：%q", max, n, got)
		}
	}
	if got := truncate(msg, 6); got != "读取宿..." {
		t.Fatalf("truncate 不符合预期：%q", got)
	}
	if got := truncate(msg, 100); got != msg {
		t.Fatalf("未超长时应原样返回：%q", got)
	}
}
