package domain

import (
	"encoding/json"
	"time"
)

const (
	DiagTransportError  = "transport_error"
	DiagNetworkError    = "network_error"
	DiagDecodeError     = "decode_error"
	DiagInvalidShape    = "invalid_shape"
	DiagInvalidElement  = "invalid_element"
	DiagMountNotFound   = "mount_not_found"
	DiagTemplateInvalid = "template_invalid"
	DiagWriteFailed     = "write_failed"
	DiagConfigNotFound  = "config_not_found"
	DiagConfigInvalid   = "config_invalid"
)

// Diagnostic 是一次运行中记录下来的问题（只记录，不向页面呈现）。
type Diagnostic struct {
	Kind    string `json:"kind"`
	Key     string `json:"key,omitempty"`
	Message string `json:"message"`
}

// RunReport 是对外稳定输出（stdout JSON）的结构。
type RunReport struct {
	Endpoint string `json:"endpoint"`
	Input    string `json:"input,omitempty"`
	Output   string `json:"output"`

	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	Summary     ReportSummary `json:"summary"`
	Diagnostics []Diagnostic  `json:"diagnostics"`
}

type ReportSummary struct {
	Fragments       int `json:"fragments"`
	SequenceKeys    int `json:"sequence_keys"`
	SkippedKeys     int `json:"skipped_keys"`
	InvalidElements int `json:"invalid_elements"`
	Diagnostics     int `json:"diagnostics"`
}

// Finalize 做两件事：
// 1) 时间统一为 UTC（确保 JSON 为 RFC3339 且后缀 Z）
// 2) diagnostics 为 nil 时输出 []，并回填 summary.diagnostics
func (r *RunReport) Finalize() {
	r.StartedAt = r.StartedAt.UTC()
	r.FinishedAt = r.FinishedAt.UTC()
	if r.Diagnostics == nil {
		r.Diagnostics = []Diagnostic{}
	}
	r.Summary.Diagnostics = len(r.Diagnostics)
}

// OK 报告本次运行是否没有任何诊断。
func (r RunReport) OK() bool { return len(r.Diagnostics) == 0 }

// MarshalJSON 仅用于集中约束输出的稳定性（避免未来不小心引入非确定字段）。
func (r RunReport) MarshalJSON() ([]byte, error) {
	type Alias RunReport
	return json.Marshal(Alias(r))
}
