package run

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/John-Robertt/charcards/internal/catalog"
	"github.com/John-Robertt/charcards/internal/config"
	"github.com/John-Robertt/charcards/internal/domain"
	"github.com/John-Robertt/charcards/internal/infra/fsx"
	"github.com/John-Robertt/charcards/internal/infra/httpx"
	"github.com/John-Robertt/charcards/internal/infra/imgx"
	"github.com/John-Robertt/charcards/internal/page"
	"github.com/John-Robertt/charcards/internal/render"
)

const (
	PhaseFetch  = "fetch"
	PhaseRender = "render"
	PhaseWrite  = "write"
)

// Output 是一次运行在内存中的产物。
type Output struct {
	// Page 是序列化后的完整页面；宿主页面不可用时为 nil。
	Page []byte
	// Placeholder 是本地占位图（JPEG）；占位图为远程 URL 时为 nil。
	Placeholder []byte
}

// Execute 执行一次完整流程（构建页面 + 落盘），并返回对外稳定的 RunReport。
// 任何失败都降级为诊断；页面只要构建出来就会写出（失败时挂载点为空）。
func Execute(ctx context.Context, eff config.EffectiveConfig, log *zap.Logger) domain.RunReport {
	return ExecuteWithObserver(ctx, eff, log, nil)
}

// ExecuteWithObserver 与 Execute 相同，但允许传入 Observer 输出阶段信息。
func ExecuteWithObserver(ctx context.Context, eff config.EffectiveConfig, log *zap.Logger, obs Observer) domain.RunReport {
	if log == nil {
		log = zap.NewNop()
	}
	out, rr := BuildWithObserver(ctx, eff, log, obs)

	if out.Page != nil {
		started := time.Now()
		diags := writeOutput(eff, out, log)
		rr.Diagnostics = append(rr.Diagnostics, diags...)
		if obs != nil {
			obs.OnPhaseDone(PhaseWrite, map[string]any{
				"out":    eff.Out,
				"failed": len(diags),
			}, time.Since(started))
		}
	}

	rr.FinishedAt = time.Now().UTC()
	rr.Finalize()
	return rr
}

// Build 只构建页面，不写任何文件（serve 使用）。
func Build(ctx context.Context, eff config.EffectiveConfig, log *zap.Logger) (Output, domain.RunReport) {
	return BuildWithObserver(ctx, eff, log, nil)
}

// BuildWithObserver 与 Build 相同，但允许传入 Observer。
//
// 流程固定为：宿主页面 -> 挂载点 -> 获取数据 -> 渲染 -> 序列化。
// 获取失败只记录一次日志和一条诊断，挂载点保持为空，不重试。
func BuildWithObserver(ctx context.Context, eff config.EffectiveConfig, log *zap.Logger, obs Observer) (Output, domain.RunReport) {
	if log == nil {
		log = zap.NewNop()
	}
	if obs != nil {
		obs.OnStart(eff)
	}

	rr := domain.RunReport{
		Endpoint:  eff.Endpoint,
		Input:     eff.Input,
		Output:    eff.Out,
		StartedAt: time.Now().UTC(),
	}
	finish := func(out Output) (Output, domain.RunReport) {
		rr.FinishedAt = time.Now().UTC()
		rr.Finalize()
		return out, rr
	}

	doc, err := loadDocument(eff.Template)
	if err != nil {
		d := domain.Diagnostic{Kind: domain.DiagTemplateInvalid, Message: err.Error()}
		log.Error("读取宿主页面失败", zap.String("kind", d.Kind), zap.String("template", eff.Template), zap.Error(err))
		rr.Diagnostics = append(rr.Diagnostics, d)
		return finish(Output{})
	}
	mount, err := doc.Mount(eff.MountID)
	if err != nil {
		d := domain.Diagnostic{Kind: domain.DiagMountNotFound, Message: err.Error()}
		log.Error("未找到挂载点", zap.String("kind", d.Kind), zap.String("mount_id", eff.MountID))
		rr.Diagnostics = append(rr.Diagnostics, d)
		return finish(Output{})
	}

	fetchStarted := time.Now()
	payload, err := load(ctx, eff)
	fetchDur := time.Since(fetchStarted)
	if err != nil {
		d := fetchDiagnostic(err)
		log.Error("获取数据失败",
			zap.String("kind", d.Kind),
			zap.String("endpoint", source(eff)),
			zap.Error(err),
		)
		rr.Diagnostics = append(rr.Diagnostics, d)
	}
	if obs != nil {
		obs.OnPhaseDone(PhaseFetch, map[string]any{
			"source": source(eff),
			"ok":     err == nil,
		}, fetchDur)
	}

	if err == nil {
		renderStarted := time.Now()
		res := render.Render(payload, mount, render.Options{
			Placeholder: eff.Placeholder,
			Logger:      log,
		})
		rr.Summary.Fragments = res.Fragments
		rr.Summary.SequenceKeys = res.SequenceKeys
		rr.Summary.SkippedKeys = res.SkippedKeys
		rr.Summary.InvalidElements = res.InvalidElements
		rr.Diagnostics = append(rr.Diagnostics, res.Diagnostics...)
		if obs != nil {
			obs.OnPhaseDone(PhaseRender, map[string]any{
				"fragments":    res.Fragments,
				"skipped_keys": res.SkippedKeys,
				"invalid":      res.InvalidElements,
			}, time.Since(renderStarted))
		}
	}

	var out Output
	b, err := doc.HTML()
	if err != nil {
		d := domain.Diagnostic{Kind: domain.DiagWriteFailed, Message: fmt.Sprintf("序列化页面失败：%v", err)}
		log.Error("序列化页面失败", zap.String("kind", d.Kind), zap.Error(err))
		rr.Diagnostics = append(rr.Diagnostics, d)
		return finish(Output{})
	}
	out.Page = b

	if !config.IsRemotePlaceholder(eff.Placeholder) {
		img, err := imgx.PlaceholderJPEG(imgx.PlaceholderWidth, imgx.PlaceholderHeight)
		if err != nil {
			d := domain.Diagnostic{Kind: domain.DiagWriteFailed, Message: fmt.Sprintf("生成占位图失败：%v", err)}
			log.Error("生成占位图失败", zap.String("kind", d.Kind), zap.Error(err))
			rr.Diagnostics = append(rr.Diagnostics, d)
		} else {
			out.Placeholder = img
		}
	}

	return finish(out)
}

func loadDocument(template string) (*page.Document, error) {
	if template == "" {
		return page.Default()
	}
	f, err := os.Open(template)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return page.Load(f)
}

// load 从 --input 文件或 endpoint 取得 payload。
func load(ctx context.Context, eff config.EffectiveConfig) (domain.Payload, error) {
	if eff.Input != "" {
		b, err := os.ReadFile(eff.Input)
		if err != nil {
			return domain.Payload{}, &catalog.FetchError{Kind: catalog.KindTransport, URL: eff.Input, Err: err}
		}
		p, err := catalog.Decode(b)
		if err != nil {
			return domain.Payload{}, &catalog.FetchError{Kind: catalog.KindDecode, URL: eff.Input, Err: err}
		}
		return p, nil
	}

	c, err := httpx.NewCatalogClient(eff.ProxyURL, eff.Timeout)
	if err != nil {
		return domain.Payload{}, &clientError{err: err}
	}
	// client 只用这一次：结束时释放 keep-alive 连接。
	defer c.CloseIdleConnections()
	return catalog.Fetch(ctx, c, eff.Endpoint)
}

// clientError 表示 HTTP client 无法构造（例如代理地址无效）。
type clientError struct{ err error }

func (e *clientError) Error() string { return fmt.Sprintf("构造 HTTP client 失败：%v", e.err) }
func (e *clientError) Unwrap() error { return e.err }

func fetchDiagnostic(err error) domain.Diagnostic {
	var ce *clientError
	if errors.As(err, &ce) {
		return domain.Diagnostic{Kind: domain.DiagConfigInvalid, Message: err.Error()}
	}
	kind := catalog.Kind(err)
	if kind == "" {
		kind = domain.DiagTransportError
	}
	return domain.Diagnostic{Kind: kind, Message: err.Error()}
}

func source(eff config.EffectiveConfig) string {
	if eff.Input != "" {
		return eff.Input
	}
	return eff.Endpoint
}

// writeOutput 原子写出页面；本地占位图只在不存在时写入（不覆盖用户自己的图片）。
func writeOutput(eff config.EffectiveConfig, out Output, log *zap.Logger) []domain.Diagnostic {
	var diags []domain.Diagnostic
	fail := func(target string, err error) {
		d := domain.Diagnostic{Kind: domain.DiagWriteFailed, Message: fmt.Sprintf("写入 %s 失败：%v", target, err)}
		log.Error("写入失败", zap.String("kind", d.Kind), zap.String("path", target), zap.Error(err))
		diags = append(diags, d)
	}

	dir := filepath.Dir(eff.Out)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		fail(dir, err)
		return diags
	}
	if err := fsx.WriteFileAtomicReplace(dir, filepath.Base(eff.Out), out.Page); err != nil {
		fail(eff.Out, err)
		return diags
	}
	log.Debug("页面已写出", zap.String("path", eff.Out), zap.Int("bytes", len(out.Page)))

	if out.Placeholder == nil {
		return diags
	}
	p := PlaceholderPath(eff)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		fail(p, err)
		return diags
	}
	err := fsx.WriteFileAtomicNoOverwrite(filepath.Dir(p), filepath.Base(p), out.Placeholder)
	switch {
	case err == nil:
		log.Debug("占位图已写出", zap.String("path", p))
	case errors.Is(err, os.ErrExist):
		log.Debug("占位图已存在，保留", zap.String("path", p))
	default:
		fail(p, err)
	}
	return diags
}

// PlaceholderPath 返回本地占位图的落盘路径（相对页面所在目录解析）。
func PlaceholderPath(eff config.EffectiveConfig) string {
	return filepath.Join(filepath.Dir(eff.Out), filepath.FromSlash(eff.Placeholder))
}
