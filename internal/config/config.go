package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	"github.com/John-Robertt/charcards/internal/catalog"
	"github.com/John-Robertt/charcards/internal/page"
	"github.com/John-Robertt/charcards/internal/render"
)

const (
	// ErrCodeNotFound 表示显式指定的配置文件不存在。
	ErrCodeNotFound = "config_not_found"
	// ErrCodeInvalid 表示配置文件无法读取/解析，或字段不合法。
	ErrCodeInvalid = "config_invalid"
)

const (
	// FileName 是 cwd 下自动发现的配置文件名（可选）。
	FileName = "charcards.yaml"

	DefaultOut      = "index.html"
	DefaultLogLevel = "info"
	DefaultAddr     = "127.0.0.1:8080"
)

// CLIArgs 是命令行可覆盖的字段，并保留“是否显式指定”的信息。
// 这能保证覆盖优先级可实现：例如 --timeout=0 必须能覆盖配置中的 timeout: 10s。
type CLIArgs struct {
	ConfigPath string

	Endpoint    string
	EndpointSet bool

	Out    string
	OutSet bool

	Template    string
	TemplateSet bool

	MountID    string
	MountIDSet bool

	Placeholder    string
	PlaceholderSet bool

	ProxyURL string
	ProxySet bool

	Timeout    time.Duration
	TimeoutSet bool

	Addr    string
	AddrSet bool

	// Input 只能从 CLI 指定：从本地文件读取 payload，而不是请求 endpoint。
	Input string
}

// FileConfig 对应 charcards.yaml 的解析结构。未知字段忽略。
type FileConfig struct {
	Endpoint    string       `yaml:"endpoint"`
	Template    string       `yaml:"template"`
	Out         string       `yaml:"out"`
	MountID     string       `yaml:"mount_id"`
	Placeholder string       `yaml:"placeholder"`
	Proxy       *ProxyConfig `yaml:"proxy"`
	Timeout     string       `yaml:"timeout"`
	LogLevel    string       `yaml:"log_level"`
	Serve       ServeConfig  `yaml:"serve"`
}

type ProxyConfig struct {
	URL string `yaml:"url"`
}

type ServeConfig struct {
	Addr string `yaml:"addr"`
}

// EffectiveConfig 是合并并做最小规范化后的最终配置（实现层直接消费，不再做二次默认/优先级判断）。
type EffectiveConfig struct {
	// ConfigPath 是实际读取的配置文件；未读取任何文件时为空。
	ConfigPath string

	Endpoint string
	Input    string // 绝对路径；为空表示走网络
	Template string // 绝对路径；为空表示使用内置页面
	Out      string // 绝对路径

	MountID     string
	Placeholder string

	ProxyURL string
	Timeout  time.Duration // 0 表示不设置总超时
	LogLevel string

	Addr string
}

// Error 是配置阶段的结构化错误（带 error_code）。
type Error struct {
	Code string
	Path string
	Err  error
}

func (e *Error) Error() string {
	switch e.Code {
	case ErrCodeNotFound:
		return fmt.Sprintf("%s：未找到配置文件 %q", e.Code, e.Path)
	case ErrCodeInvalid:
		if e.Err != nil {
			return fmt.Sprintf("%s：配置 %q 无效：%v", e.Code, e.Path, e.Err)
		}
		return fmt.Sprintf("%s：配置 %q 无效", e.Code, e.Path)
	default:
		if e.Err != nil {
			return fmt.Sprintf("%s：%v", e.Code, e.Err)
		}
		return e.Code
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Code 从 error 中提取 error_code；若不是 *Error 则返回空串。
func Code(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// LoadEffective 发现并读取配置文件，然后与 CLI 参数合并为最终配置。
//
// 发现规则（固定）：
// 1) CLI 提供 --config：必须存在
// 2) 否则尝试读取 <cwd>/charcards.yaml（可选）
//
// 覆盖优先级：CLI > 配置文件 > 内置默认。
// 相对路径：CLI 给的以 cwd 为基准；配置文件给的以配置文件所在目录为基准。
func LoadEffective(cwd string, cli CLIArgs) (EffectiveConfig, error) {
	cwdAbs, err := filepath.Abs(cwd)
	if err != nil {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cwd, Err: err}
	}

	var (
		cfgPath string
		fc      FileConfig
		exists  bool
	)
	if strings.TrimSpace(cli.ConfigPath) != "" {
		cfgPath = absCleanFrom(cwdAbs, cli.ConfigPath)
		fc, exists, err = readFileConfig(cfgPath)
		if err != nil {
			return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: err}
		}
		if !exists {
			return EffectiveConfig{}, &Error{Code: ErrCodeNotFound, Path: cfgPath, Err: os.ErrNotExist}
		}
	} else {
		cfgPath = filepath.Join(cwdAbs, FileName)
		fc, exists, err = readFileConfig(cfgPath)
		if err != nil {
			return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: err}
		}
	}
	if !exists {
		cfgPath = ""
	}

	return merge(cwdAbs, cli, fc, cfgPath)
}

func merge(cwdAbs string, cli CLIArgs, fc FileConfig, cfgPath string) (EffectiveConfig, error) {
	errPath := cfgPath
	if errPath == "" {
		errPath = "<cli>"
	}
	invalid := func(format string, args ...any) error {
		return &Error{Code: ErrCodeInvalid, Path: errPath, Err: fmt.Errorf(format, args...)}
	}
	fileBase := cwdAbs
	if cfgPath != "" {
		fileBase = filepath.Dir(cfgPath)
	}

	endpoint := pickString(catalog.DefaultEndpoint, fc.Endpoint, cli.Endpoint, cli.EndpointSet)
	if err := validateHTTPURL(endpoint); err != nil {
		return EffectiveConfig{}, invalid("endpoint 无效：%v", err)
	}

	out := DefaultOut
	outBase := cwdAbs
	if cli.OutSet {
		out = cli.Out
	} else if strings.TrimSpace(fc.Out) != "" {
		out, outBase = fc.Out, fileBase
	}
	if strings.TrimSpace(out) == "" {
		return EffectiveConfig{}, invalid("out 不能为空")
	}
	outAbs := absCleanFrom(outBase, out)

	template := ""
	if cli.TemplateSet {
		template = absCleanFrom(cwdAbs, cli.Template)
	} else if strings.TrimSpace(fc.Template) != "" {
		template = absCleanFrom(fileBase, fc.Template)
	}

	input := ""
	if strings.TrimSpace(cli.Input) != "" {
		input = absCleanFrom(cwdAbs, cli.Input)
	}

	mountID := strings.TrimSpace(pickString(page.DefaultMountID, fc.MountID, cli.MountID, cli.MountIDSet))
	if mountID == "" || strings.ContainsAny(mountID, " \t\r\n") {
		return EffectiveConfig{}, invalid("mount_id 必须非空且不含空白：%q", mountID)
	}

	placeholder := strings.TrimSpace(pickString(render.DefaultPlaceholder, fc.Placeholder, cli.Placeholder, cli.PlaceholderSet))
	if err := validatePlaceholder(placeholder); err != nil {
		return EffectiveConfig{}, invalid("placeholder 无效：%v", err)
	}

	proxyURL := ""
	if fc.Proxy != nil {
		proxyURL = strings.TrimSpace(fc.Proxy.URL)
	}
	if cli.ProxySet {
		proxyURL = strings.TrimSpace(cli.ProxyURL)
	}
	if proxyURL != "" {
		if err := validateHTTPURL(proxyURL); err != nil {
			return EffectiveConfig{}, invalid("proxy.url 无效：%v", err)
		}
	}

	var timeout time.Duration
	if cli.TimeoutSet {
		timeout = cli.Timeout
	} else if s := strings.TrimSpace(fc.Timeout); s != "" {
		d, err := time.ParseDuration(s)
		if err != nil {
			return EffectiveConfig{}, invalid("timeout 无效：%v", err)
		}
		timeout = d
	}
	if timeout < 0 {
		return EffectiveConfig{}, invalid("timeout 不能为负：%v", timeout)
	}

	logLevel := strings.ToLower(strings.TrimSpace(fc.LogLevel))
	if logLevel == "" {
		logLevel = DefaultLogLevel
	}
	if _, err := zapcore.ParseLevel(logLevel); err != nil {
		return EffectiveConfig{}, invalid("log_level 无效：%q", fc.LogLevel)
	}

	addr := strings.TrimSpace(pickString(DefaultAddr, fc.Serve.Addr, cli.Addr, cli.AddrSet))
	if addr == "" {
		return EffectiveConfig{}, invalid("serve.addr 不能为空")
	}

	return EffectiveConfig{
		ConfigPath:  cfgPath,
		Endpoint:    endpoint,
		Input:       input,
		Template:    template,
		Out:         outAbs,
		MountID:     mountID,
		Placeholder: placeholder,
		ProxyURL:    proxyURL,
		Timeout:     timeout,
		LogLevel:    logLevel,
		Addr:        addr,
	}, nil
}

// pickString 按 CLI > 配置文件 > 默认 选择字符串值。
func pickString(def, file, cli string, cliSet bool) string {
	if cliSet {
		return cli
	}
	if strings.TrimSpace(file) != "" {
		return file
	}
	return def
}

func validateHTTPURL(s string) error {
	u, err := url.Parse(strings.TrimSpace(s))
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("必须是 http/https：%q", s)
	}
	if u.Host == "" {
		return fmt.Errorf("缺少 host：%q", s)
	}
	return nil
}

// validatePlaceholder 允许两种形态：http(s) 绝对 URL，或不越出页面目录的相对路径。
func validatePlaceholder(s string) error {
	if s == "" {
		return errors.New("不能为空")
	}
	if IsRemotePlaceholder(s) {
		return validateHTTPURL(s)
	}
	if strings.Contains(s, "\\") {
		return fmt.Errorf("请使用 '/' 分隔：%q", s)
	}
	clean := path.Clean(s)
	if path.IsAbs(clean) || clean == "." || clean == ".." || strings.HasPrefix(clean, "../") {
		return fmt.Errorf("必须是页面目录内的相对路径：%q", s)
	}
	return nil
}

// IsRemotePlaceholder 报告占位图是否是远程 URL（远程占位图不在本地生成文件）。
func IsRemotePlaceholder(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

// absCleanFrom 以 base 为基准，把 p 变为 clean + absolute。
func absCleanFrom(base, p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return ""
	}
	p = filepath.Clean(p)
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Clean(filepath.Join(base, p))
}

// readFileConfig 读取并解析 YAML 配置文件。
// 返回值 exists 表示该文件是否存在（不存在不算错误）。
func readFileConfig(p string) (fc FileConfig, exists bool, err error) {
	b, err := os.ReadFile(p)
	if err != nil {
		if os.IsNotExist(err) {
			return FileConfig{}, false, nil
		}
		return FileConfig{}, false, err
	}
	if err := yaml.Unmarshal(b, &fc); err != nil {
		return FileConfig{}, true, err
	}
	return fc, true, nil
}
