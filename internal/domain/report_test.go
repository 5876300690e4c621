package domain

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"
)

func TestRunReport_Finalize_UTCAndSummary(t *testing.T) {
	r := RunReport{
		Endpoint:   "https://api.disneyapi.dev/character",
		Output:     "/abs/index.html",
		StartedAt:  time.Date(2026, 2, 9, 10, 0, 0, 0, time.FixedZone("X", 8*3600)),
		FinishedAt: time.Date(2026, 2, 9, 10, 0, 1, 0, time.FixedZone("X", 8*3600)),
		Diagnostics: []Diagnostic{
			{Kind: DiagNetworkError, Message: "Network response was not ok"},
		},
	}

	r.Finalize()

	if r.Summary.Diagnostics != 1 {
		t.Fatalf("summary.diagnostics 统计不正确：%+v", r.Summary)
	}
	if r.OK() {
		t.Fatalf("有诊断时 OK() 应为 false")
	}

	b, err := json.Marshal(r)
	if err != nil {
		t.Fatalf("json.Marshal 失败：%v", err)
	}
	if !bytes.Contains(b, []byte("\"started_at\":\"2026-02-09T02:00:00Z\"")) {
		t.Fatalf("started_at 不是 UTC RFC3339：%s", string(b))
	}
}

func TestRunReport_Finalize_EmptyDiagnosticsIsArray(t *testing.T) {
	var r RunReport
	r.Finalize()

	b, err := json.Marshal(r)
	if err != nil {
		t.Fatalf("json.Marshal 失败：%v", err)
	}
	if !bytes.Contains(b, []byte("\"diagnostics\":[]")) {
		t.Fatalf("diagnostics 应输出为空数组：%s", string(b))
	}
	if !r.OK() {
		t.Fatalf("无诊断时 OK() 应为 true")
	}
}
