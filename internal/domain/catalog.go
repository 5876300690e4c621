package domain

// PayloadKind 描述 catalog 响应顶层 JSON 的类型。
// 形状判断由 render 负责；catalog 只负责如实解码。
type PayloadKind string

const (
	PayloadObject PayloadKind = "object"
	PayloadArray  PayloadKind = "array"
	PayloadString PayloadKind = "string"
	PayloadNumber PayloadKind = "number"
	PayloadBool   PayloadKind = "bool"
	PayloadNull   PayloadKind = "null"
)

// ValueKind 是顶层 key 对应值的判别标签：要么是“记录序列”，要么是其它。
type ValueKind string

const (
	ValueSequence ValueKind = "sequence"
	ValueOther    ValueKind = "other"
)

// Payload 是 catalog 服务返回内容的解码结果（CatalogResponse）。
//
// 约束：
// - 仅当 Kind==PayloadObject 时 Entries 才有意义
// - Entries 保持 key 在响应中首次出现的顺序
type Payload struct {
	Kind    PayloadKind
	Entries []Entry
}

// Entry 是顶层对象中的一个 key。
type Entry struct {
	Key  string
	Kind ValueKind

	// Records 仅在 Kind==ValueSequence 时非空，顺序与数组一致。
	Records []CharacterRecord
	// Invalid 是序列里不是 JSON 对象的元素个数（这些元素不会产生卡片）。
	Invalid int
}

// IsObject 报告 payload 是否是可用的顶层对象。
func (p Payload) IsObject() bool { return p.Kind == PayloadObject }

// CharacterRecord 是一条角色记录（已规范化）。
//
// films/tvShows 缺失或不是数组时规范化为空切片，而不是让下游出错。
type CharacterRecord struct {
	Name     string   `json:"name"`
	ImageURL string   `json:"imageUrl,omitempty"`
	Films    []string `json:"films"`
	TVShows  []string `json:"tvShows"`
}
