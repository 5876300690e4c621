package catalog

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/John-Robertt/charcards/internal/domain"
)

// DefaultEndpoint 是默认的角色目录地址。
const DefaultEndpoint = "https://api.disneyapi.dev/character"

// NetworkErrorMessage 是非 2xx 响应的固定错误文案。
const NetworkErrorMessage = "Network response was not ok"

const (
	KindTransport = domain.DiagTransportError
	KindNetwork   = domain.DiagNetworkError
	KindDecode    = domain.DiagDecodeError
)

// FetchError 是 Fetch 阶段的可追溯错误。
//
// Kind 取值：
// - transport_error：DNS/连接/超时/读 body 失败（Err 为底层原因）
// - network_error：非 2xx 状态码（不读取 body）
// - decode_error：body 不是合法 JSON
type FetchError struct {
	Kind       string
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e == nil {
		return "fetch error"
	}
	switch e.Kind {
	case KindNetwork:
		return fmt.Sprintf("%s (HTTP %d)", NetworkErrorMessage, e.StatusCode)
	case KindDecode:
		return fmt.Sprintf("解析 JSON 失败：%v", e.Err)
	default:
		return fmt.Sprintf("请求 %s 失败：%v", e.URL, e.Err)
	}
}

func (e *FetchError) Unwrap() error { return e.Err }

// Kind 从 error 中提取 FetchError.Kind；若不是 *FetchError 则返回空串。
func Kind(err error) string {
	var e *FetchError
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// Fetch 对 endpoint 发起一次 GET，并把 body 解码为 Payload。
//
// 约束：
// - 只发一次请求：不重试、不缓存
// - 形状不在这里判断：任何合法 JSON 都会成功返回，由 render 决定能否使用
func Fetch(ctx context.Context, c *http.Client, endpoint string) (domain.Payload, error) {
	b, err := fetchBody(ctx, c, endpoint)
	if err != nil {
		return domain.Payload{}, err
	}
	p, err := Decode(b)
	if err != nil {
		return domain.Payload{}, &FetchError{Kind: KindDecode, URL: endpoint, Err: err}
	}
	return p, nil
}

func fetchBody(ctx context.Context, c *http.Client, endpoint string) ([]byte, error) {
	if c == nil {
		return nil, errors.New("http client 不能为空")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, &FetchError{Kind: KindTransport, URL: endpoint, Err: err}
	}
	resp, err := c.Do(req)
	if err != nil {
		return nil, &FetchError{Kind: KindTransport, URL: endpoint, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &FetchError{
			Kind:       KindNetwork,
			URL:        endpoint,
			StatusCode: resp.StatusCode,
			Err:        errors.New(NetworkErrorMessage),
		}
	}

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &FetchError{Kind: KindTransport, URL: endpoint, Err: err}
	}
	return b, nil
}
