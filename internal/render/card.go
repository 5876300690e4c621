package render

import (
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/John-Robertt/charcards/internal/domain"
)

const (
	// DefaultPlaceholder 是无图记录使用的图片路径（相对页面）。
	DefaultPlaceholder = "placeholder.jpg"
	// NoImageAlt 是无图记录的 alt 文本。
	NoImageAlt = "No Image"
)

// CardFor 把一条记录映射为卡片视图模型（纯函数）。
// placeholder 为空时使用 DefaultPlaceholder。
func CardFor(rec domain.CharacterRecord, placeholder string) domain.Fragment {
	if placeholder == "" {
		placeholder = DefaultPlaceholder
	}

	f := domain.Fragment{
		ImageSrc:   placeholder,
		ImageAlt:   NoImageAlt,
		Title:      "Name: " + rec.Name,
		MovieLine:  "Movie: " + joinOr(rec.Films, "No movies"),
		TVShowLine: "TV show: " + joinOr(rec.TVShows, "No TV shows"),
	}
	if rec.ImageURL != "" {
		f.ImageSrc = rec.ImageURL
		f.ImageAlt = rec.Name
	}
	return f
}

func joinOr(items []string, empty string) string {
	if len(items) == 0 {
		return empty
	}
	return strings.Join(items, ", ")
}

// Node 从 Fragment 构造卡片的 DOM 子树：
//
//	div.character-card-container.col-md-4.mb-4
//	└─ div.card.h-100
//	   ├─ img.card-img-top[src][alt]
//	   └─ div.card-body.d-flex.flex-column
//	      ├─ h5.card-title
//	      ├─ p.card-text.flex-grow-1 (movie)
//	      └─ p.card-text.flex-grow-1 (tv show)
//
// 每次调用都返回全新的节点树，可直接挂到任意父节点下。
func Node(f domain.Fragment) *html.Node {
	container := element(atom.Div, "character-card-container", "col-md-4", "mb-4")
	card := element(atom.Div, "card", "h-100")

	img := element(atom.Img, "card-img-top")
	img.Attr = append(img.Attr,
		html.Attribute{Key: "src", Val: f.ImageSrc},
		html.Attribute{Key: "alt", Val: f.ImageAlt},
	)

	body := element(atom.Div, "card-body", "d-flex", "flex-column")
	body.AppendChild(withText(element(atom.H5, "card-title"), f.Title))
	body.AppendChild(withText(element(atom.P, "card-text", "flex-grow-1"), f.MovieLine))
	body.AppendChild(withText(element(atom.P, "card-text", "flex-grow-1"), f.TVShowLine))

	card.AppendChild(img)
	card.AppendChild(body)
	container.AppendChild(card)
	return container
}

func element(a atom.Atom, classes ...string) *html.Node {
	n := &html.Node{Type: html.ElementNode, DataAtom: a, Data: a.String()}
	if len(classes) > 0 {
		n.Attr = []html.Attribute{{Key: "class", Val: strings.Join(classes, " ")}}
	}
	return n
}

func withText(n *html.Node, s string) *html.Node {
	n.AppendChild(&html.Node{Type: html.TextNode, Data: s})
	return n
}
