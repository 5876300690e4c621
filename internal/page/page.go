package page

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// DefaultMountID 是挂载点元素的固定 id。
const DefaultMountID = "characters"

// defaultHTML 是内置宿主页面：Bootstrap 栅格 + 一个空的 #characters 容器。
const defaultHTML = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="UTF-8">
<meta name="viewport" content="width=device-width, initial-scale=1.0">
<title>Disney Characters</title>
<link rel="stylesheet" href="https://cdn.jsdelivr.net/npm/bootstrap@4.6.2/dist/css/bootstrap.min.css">
</head>
<body>
<div class="container">
<h1 class="my-4 text-center">Disney Characters</h1>
<div id="characters" class="row"></div>
</div>
</body>
</html>
`

// MountNotFoundError 表示宿主页面中不存在指定 id 的挂载点。
type MountNotFoundError struct {
	ID string
}

func (e *MountNotFoundError) Error() string {
	return fmt.Sprintf("宿主页面中未找到挂载点 #%s", e.ID)
}

// IsMountNotFound 判断 err 是否为 MountNotFoundError。
func IsMountNotFound(err error) bool {
	var e *MountNotFoundError
	return errors.As(err, &e)
}

// Document 是宿主页面（替代浏览器里的全局 document）。
// 一次运行构造一个 Document；不在多次运行之间复用。
type Document struct {
	doc *goquery.Document
}

// Load 从 r 解析宿主页面。
func Load(r io.Reader) (*Document, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, err
	}
	return &Document{doc: doc}, nil
}

// Default 返回内置宿主页面（挂载点为 #characters）。
func Default() (*Document, error) {
	return Load(strings.NewReader(defaultHTML))
}

// Mount 按 id 定位挂载点。
//
// 不拼 CSS 选择器（id 里可能有选择器特殊字符），直接比较属性值；多个同 id 元素时取第一个。
func (d *Document) Mount(id string) (*Mount, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, errors.New("mount id 不能为空")
	}
	sel := d.doc.Find("[id]").FilterFunction(func(_ int, s *goquery.Selection) bool {
		v, _ := s.Attr("id")
		return v == id
	}).First()
	if sel.Length() == 0 {
		return nil, &MountNotFoundError{ID: id}
	}
	return &Mount{sel: sel}, nil
}

// HTML 序列化整个页面。
func (d *Document) HTML() ([]byte, error) {
	if len(d.doc.Nodes) == 0 {
		return nil, errors.New("空文档")
	}
	var buf bytes.Buffer
	if err := html.Render(&buf, d.doc.Nodes[0]); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Mount 是挂载点：只追加子节点，不替换、不 diff。
type Mount struct {
	sel      *goquery.Selection
	appended int
}

// Append 把 n 追加为挂载点的最后一个子节点。
func (m *Mount) Append(n *html.Node) {
	if n == nil {
		return
	}
	m.sel.AppendNodes(n)
	m.appended++
}

// Len 返回通过 Append 追加的节点数。
func (m *Mount) Len() int { return m.appended }

// Selection 暴露挂载点的只读视图（用于测试与诊断）。
func (m *Mount) Selection() *goquery.Selection { return m.sel }
