package render

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"golang.org/x/net/html"

	"github.com/John-Robertt/charcards/internal/catalog"
	"github.com/John-Robertt/charcards/internal/domain"
	"github.com/John-Robertt/charcards/internal/page"
)

// sliceMount 记录追加的节点。
type sliceMount struct {
	nodes []*html.Node
}

func (m *sliceMount) Append(n *html.Node) { m.nodes = append(m.nodes, n) }

func titles(nodes []*html.Node) []string {
	out := make([]string, 0, len(nodes))
	for _, n := range nodes {
		// container > card > body > h5 > text
		body := n.FirstChild.LastChild
		out = append(out, body.FirstChild.FirstChild.Data)
	}
	return out
}

func observed(level zapcore.Level) (*zap.Logger, *observer.ObservedLogs) {
	core, logs := observer.New(level)
	return zap.New(core), logs
}

func mustDecode(t *testing.T, body string) domain.Payload {
	t.Helper()
	p, err := catalog.Decode([]byte(body))
	require.NoError(t, err)
	return p
}

func TestRender_AllRecordsInEncounterOrder(t *testing.T) {
	p := mustDecode(t, `{
		"first": [{"name":"A"},{"name":"B"}],
		"info": {"count": 5},
		"second": [{"name":"C"}],
		"empty": [],
		"third": [{"name":"D"},{"name":"E"}]
	}`)
	log, logs := observed(zap.DebugLevel)
	m := &sliceMount{}

	res := Render(p, m, Options{Logger: log})

	assert.Equal(t, 5, res.Fragments)
	assert.Equal(t, 4, res.SequenceKeys)
	assert.Equal(t, 1, res.SkippedKeys)
	assert.Empty(t, res.Diagnostics)
	assert.Equal(t, []string{"Name: A", "Name: B", "Name: C", "Name: D", "Name: E"}, titles(m.nodes))
	assert.Equal(t, 0, logs.FilterLevelExact(zap.ErrorLevel).Len())
	assert.Equal(t, 0, logs.FilterLevelExact(zap.WarnLevel).Len())
}

func TestRender_InvalidShapeLogsOnce(t *testing.T) {
	for _, body := range []string{`null`, `42`, `"str"`, `true`, `[{"name":"A"}]`, `[]`} {
		t.Run(body, func(t *testing.T) {
			log, logs := observed(zap.DebugLevel)
			m := &sliceMount{}

			res := Render(mustDecode(t, body), m, Options{Logger: log})

			assert.Empty(t, m.nodes)
			assert.Equal(t, 0, res.Fragments)
			require.Len(t, res.Diagnostics, 1)
			assert.Equal(t, domain.DiagInvalidShape, res.Diagnostics[0].Kind)

			shape := logs.FilterField(zap.String("kind", domain.DiagInvalidShape))
			assert.Equal(t, 1, shape.Len())
			assert.Equal(t, 1, logs.FilterLevelExact(zap.ErrorLevel).Len())
		})
	}
}

func TestRender_NonSequenceKeysContributeNothing(t *testing.T) {
	p := mustDecode(t, `{"count": 3, "next": "https://x.test?page=2", "flag": true, "meta": {"a": [1]}, "none": null}`)
	log, logs := observed(zap.InfoLevel)
	m := &sliceMount{}

	res := Render(p, m, Options{Logger: log})

	assert.Empty(t, m.nodes)
	assert.Equal(t, 5, res.SkippedKeys)
	assert.Empty(t, res.Diagnostics)
	assert.Equal(t, 0, logs.Len())
}

func TestRender_InvalidElementsReportedPerKey(t *testing.T) {
	p := mustDecode(t, `{"data": [{"name":"A"}, 1, "x", {"name":"B"}], "more": [null]}`)
	log, logs := observed(zap.InfoLevel)
	m := &sliceMount{}

	res := Render(p, m, Options{Logger: log})

	assert.Equal(t, 2, res.Fragments)
	assert.Equal(t, 3, res.InvalidElements)
	require.Len(t, res.Diagnostics, 2)
	assert.Equal(t, domain.DiagInvalidElement, res.Diagnostics[0].Kind)
	assert.Equal(t, "data", res.Diagnostics[0].Key)
	assert.Equal(t, "more", res.Diagnostics[1].Key)
	assert.Equal(t, 2, logs.FilterLevelExact(zap.WarnLevel).Len())
}

func TestRender_MissingFieldsDefaultToEmpty(t *testing.T) {
	p := mustDecode(t, `{"data": [{"name": "Solo"}]}`)
	m := &sliceMount{}

	res := Render(p, m, Options{})

	require.Equal(t, 1, res.Fragments)
	body := m.nodes[0].FirstChild.LastChild
	movie := body.FirstChild.NextSibling.FirstChild.Data
	tv := body.LastChild.FirstChild.Data
	assert.Equal(t, "Movie: No movies", movie)
	assert.Equal(t, "TV show: No TV shows", tv)
}

func TestRender_IntoPageMount(t *testing.T) {
	doc, err := page.Default()
	require.NoError(t, err)
	m, err := doc.Mount(page.DefaultMountID)
	require.NoError(t, err)

	p := mustDecode(t, `{"data": [
		{"name":"Mickey","imageUrl":"https://img.test/m.png","films":["Fantasia","Steamboat"],"tvShows":[]},
		{"name":"Ghost","films":[],"tvShows":["Show"]}
	]}`)
	res := Render(p, m, Options{Placeholder: "placeholder.jpg"})
	require.Equal(t, 2, res.Fragments)
	require.Equal(t, 2, m.Len())

	cards := m.Selection().Children()
	require.Equal(t, 2, cards.Length())

	img0 := cards.Eq(0).Find("img.card-img-top")
	src, _ := img0.Attr("src")
	alt, _ := img0.Attr("alt")
	assert.Equal(t, "https://img.test/m.png", src)
	assert.Equal(t, "Mickey", alt)
	assert.Equal(t, "Movie: Fantasia, Steamboat", cards.Eq(0).Find("p.card-text").Eq(0).Text())

	img1 := cards.Eq(1).Find("img.card-img-top")
	src, _ = img1.Attr("src")
	alt, _ = img1.Attr("alt")
	assert.Equal(t, "placeholder.jpg", src)
	assert.Equal(t, "No Image", alt)
	assert.Equal(t, "TV show: Show", cards.Eq(1).Find("p.card-text").Eq(1).Text())
}

func TestRender_FalsyImageURLUsesPlaceholder(t *testing.T) {
	p := mustDecode(t, `{"data": [
		{"name":"Z","imageUrl":0},
		{"name":"F","imageUrl":false},
		{"name":"E","imageUrl":""},
		{"name":"U","ImageUrl":"ignored.png"},
		{"name":"Ok","imageUrl":"ok.png"}
	]}`)
	m := &sliceMount{}

	res := Render(p, m, Options{})
	require.Equal(t, 5, res.Fragments)

	attrs := func(n *html.Node) (src, alt string) {
		img := n.FirstChild.FirstChild // container > card > img
		for _, a := range img.Attr {
			switch a.Key {
			case "src":
				src = a.Val
			case "alt":
				alt = a.Val
			}
		}
		return src, alt
	}
	for i := 0; i < 4; i++ {
		src, alt := attrs(m.nodes[i])
		assert.Equal(t, DefaultPlaceholder, src, "card %d", i)
		assert.Equal(t, NoImageAlt, alt, "card %d", i)
	}
	src, alt := attrs(m.nodes[4])
	assert.Equal(t, "ok.png", src)
	assert.Equal(t, "Ok", alt)
}
