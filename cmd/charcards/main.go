package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/John-Robertt/charcards/internal/app/run"
	"github.com/John-Robertt/charcards/internal/config"
	"github.com/John-Robertt/charcards/internal/domain"
	"github.com/John-Robertt/charcards/internal/logging"
	"github.com/John-Robertt/charcards/internal/server"
)

const (
	exitOK    = 0
	exitDiag  = 1
	exitUsage = 2
)

func main() {
	cwd, err := os.Getwd()
	if err != nil {
		fmt.Fprintf(os.Stderr, "读取当前目录失败：%v\n", err)
		os.Exit(exitDiag)
	}
	c := newCLI(os.Stdout, os.Stderr, cwd)
	os.Exit(c.run(context.Background(), os.Args[1:]))
}

// cli 持有一次进程调用的输出流与全局 flag。
type cli struct {
	stdout io.Writer
	stderr io.Writer
	cwd    string

	stdoutTTY bool
	stderrTTY bool

	configPath string
	verbose    bool

	exitCode int
}

func newCLI(stdout, stderr io.Writer, cwd string) *cli {
	return &cli{
		stdout:    stdout,
		stderr:    stderr,
		cwd:       cwd,
		stdoutTTY: isTTY(stdout),
		stderrTTY: isTTY(stderr),
	}
}

// run 解析参数并执行子命令，返回进程退出码：
// 0 无诊断；1 有诊断（或服务异常退出）；2 参数错误。
func (c *cli) run(ctx context.Context, args []string) int {
	root := c.rootCmd()
	root.SetArgs(args)
	root.SetOut(c.stdout)
	root.SetErr(c.stderr)
	if err := root.ExecuteContext(ctx); err != nil {
		return exitUsage
	}
	return c.exitCode
}

func (c *cli) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "charcards",
		Short: "把角色目录 JSON 渲染成 Bootstrap 卡片页面",
		Long: `charcards 请求角色目录接口（默认 https://api.disneyapi.dev/character），
把响应中每个数组字段里的每条记录渲染为一张卡片，追加到宿主页面的 #characters 容器中。

失败不会中断：问题记录为诊断（stderr 日志 + RunReport），页面照常写出。`,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&c.configPath, "config", "", "配置文件路径（默认读取 ./"+config.FileName+"，可选）")
	root.PersistentFlags().BoolVarP(&c.verbose, "verbose", "v", false, "输出 debug 日志")

	root.AddCommand(c.renderCmd(), c.serveCmd())
	return root
}

type renderFlags struct {
	endpoint    string
	out         string
	template    string
	input       string
	mountID     string
	placeholder string
	proxy       string
	timeout     time.Duration
	addr        string
}

func (f *renderFlags) bind(cmd *cobra.Command) {
	fs := cmd.Flags()
	fs.StringVar(&f.endpoint, "endpoint", "", "角色目录接口 URL")
	fs.StringVar(&f.out, "out", "", "输出页面路径（默认 "+config.DefaultOut+"）")
	fs.StringVar(&f.template, "template", "", "宿主页面 HTML（默认使用内置页面）")
	fs.StringVar(&f.input, "input", "", "从本地 JSON 文件读取数据，不请求 endpoint")
	fs.StringVar(&f.mountID, "mount-id", "", "挂载点元素 id（默认 characters）")
	fs.StringVar(&f.placeholder, "placeholder", "", "无图记录使用的图片（相对页面目录的路径或 http(s) URL）")
	fs.StringVar(&f.proxy, "proxy", "", "HTTP 代理 URL")
	fs.DurationVar(&f.timeout, "timeout", 0, "请求总超时（0 表示不设置）")
}

// cliArgs 把 flag 映射为 config.CLIArgs；是否显式指定以 Changed 为准。
func (f *renderFlags) cliArgs(cmd *cobra.Command, configPath string) config.CLIArgs {
	changed := cmd.Flags().Changed
	return config.CLIArgs{
		ConfigPath:     configPath,
		Endpoint:       f.endpoint,
		EndpointSet:    changed("endpoint"),
		Out:            f.out,
		OutSet:         changed("out"),
		Template:       f.template,
		TemplateSet:    changed("template"),
		MountID:        f.mountID,
		MountIDSet:     changed("mount-id"),
		Placeholder:    f.placeholder,
		PlaceholderSet: changed("placeholder"),
		ProxyURL:       f.proxy,
		ProxySet:       changed("proxy"),
		Timeout:        f.timeout,
		TimeoutSet:     changed("timeout"),
		Addr:           f.addr,
		AddrSet:        cmd.Flags().Lookup("addr") != nil && changed("addr"),
		Input:          f.input,
	}
}

func (c *cli) renderCmd() *cobra.Command {
	var f renderFlags
	cmd := &cobra.Command{
		Use:   "render",
		Short: "请求数据并写出页面",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			eff, ok := c.loadConfig(f.cliArgs(cmd, c.configPath))
			if !ok {
				return nil
			}
			log, err := c.newLogger(eff.LogLevel)
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			var obs run.Observer
			if c.stderrTTY {
				obs = newProgressUI(c.stderr)
			}
			rr := run.ExecuteWithObserver(cmd.Context(), eff, log, obs)
			c.emitReport(rr)
			if c.stderrTTY {
				emitLocations(c.stderr, eff)
			}
			c.exitCode = exitCodeFor(rr)
			return nil
		},
	}
	f.bind(cmd)
	return cmd
}

func (c *cli) serveCmd() *cobra.Command {
	var f renderFlags
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "启动时渲染一次，并通过 HTTP 提供页面",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			eff, ok := c.loadConfig(f.cliArgs(cmd, c.configPath))
			if !ok {
				return nil
			}
			log, err := c.newLogger(eff.LogLevel)
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			var obs run.Observer
			if c.stderrTTY {
				obs = newProgressUI(c.stderr)
			}
			out, rr := run.BuildWithObserver(ctx, eff, log, obs)
			c.emitSummary(c.stderr, rr)

			fmt.Fprintf(c.stderr, "serving: http://%s/\n", eff.Addr)
			if err := server.ListenAndServe(ctx, eff.Addr, server.NewHandler(out, eff.Placeholder, log), log); err != nil {
				log.Error("服务异常退出", zap.String("addr", eff.Addr), zap.Error(err))
				c.exitCode = exitDiag
				return nil
			}
			c.exitCode = exitOK
			return nil
		},
	}
	f.bind(cmd)
	cmd.Flags().StringVar(&f.addr, "addr", "", "监听地址（默认 "+config.DefaultAddr+"）")
	return cmd
}

// loadConfig 加载配置；失败时直接输出 RunReport 并设置退出码。
func (c *cli) loadConfig(args config.CLIArgs) (config.EffectiveConfig, bool) {
	eff, err := config.LoadEffective(c.cwd, args)
	if err != nil {
		rr := reportForConfigError(args, err)
		c.emitReport(rr)
		c.exitCode = exitDiag
		return config.EffectiveConfig{}, false
	}
	return eff, true
}

// newLogger 按配置等级构造 logger；--verbose 强制 debug。
func (c *cli) newLogger(level string) (*zap.Logger, error) {
	if f, ok := c.stderr.(*os.File); ok && f == os.Stderr {
		return logging.New(level, c.verbose, c.stderrTTY)
	}
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, err
	}
	if c.verbose {
		lvl = zapcore.DebugLevel
	}
	return logging.NewWriter(c.stderr, lvl), nil
}

func exitCodeFor(rr domain.RunReport) int {
	if rr.OK() {
		return exitOK
	}
	return exitDiag
}

// emitReport 遵循输出契约：
// - stdout 是 TTY：摘要行（带样式）写 stdout，诊断逐行写 stderr
// - stdout 非 TTY：stdout 只输出一个 RunReport JSON，摘要写 stderr
func (c *cli) emitReport(rr domain.RunReport) {
	if c.stdoutTTY {
		c.emitSummary(c.stdout, rr)
		return
	}
	enc := json.NewEncoder(c.stdout)
	_ = enc.Encode(rr)
	fmt.Fprintln(c.stderr, summaryLine(rr))
}

func (c *cli) emitSummary(w io.Writer, rr domain.RunReport) {
	line := summaryLine(rr)
	if isTTY(w) {
		if rr.OK() {
			line = okStyle.Render(line)
		} else {
			line = failStyle.Render(line)
		}
	}
	fmt.Fprintln(w, line)
	for _, d := range rr.Diagnostics {
		fmt.Fprintln(c.stderr, diagnosticLine(d, c.stderrTTY))
	}
}

func reportForConfigError(args config.CLIArgs, err error) domain.RunReport {
	now := time.Now().UTC()
	kind := config.Code(err)
	if kind == "" {
		kind = domain.DiagConfigInvalid
	}
	rr := domain.RunReport{
		Endpoint:   args.Endpoint,
		Input:      args.Input,
		Output:     args.Out,
		StartedAt:  now,
		FinishedAt: now,
		Diagnostics: []domain.Diagnostic{{
			Kind:    kind,
			Message: err.Error(),
		}},
	}
	rr.Finalize()
	return rr
}

func isTTY(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return logging.IsTTY(f)
}

func emitLocations(w io.Writer, eff config.EffectiveConfig) {
	fmt.Fprintf(w, "out: %s\n", eff.Out)
	if !config.IsRemotePlaceholder(eff.Placeholder) {
		fmt.Fprintf(w, "placeholder: %s\n", run.PlaceholderPath(eff))
	}
	if eff.ConfigPath != "" {
		fmt.Fprintf(w, "config: %s\n", filepath.Clean(eff.ConfigPath))
	}
}
