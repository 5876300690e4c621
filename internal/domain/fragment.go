package domain

// Fragment 是一张角色卡片的视图模型（纯数据）。
// 真正的 DOM 节点由 render.Node 从 Fragment 构造。
type Fragment struct {
	ImageSrc   string
	ImageAlt   string
	Title      string
	MovieLine  string
	TVShowLine string
}
