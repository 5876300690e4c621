package catalog

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/John-Robertt/charcards/internal/domain"
)

// Decode 把响应 body 解码为 Payload（纯函数）。
//
// 规则：
// - body 必须恰好是一个 JSON 值；空 body 或尾随内容视为错误
// - 顶层对象保持 key 的出现顺序；重复 key 保留首次位置、取最后一次的值
// - 值以首字节区分：'[' 为记录序列，其余一律为 other
func Decode(body []byte) (domain.Payload, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	var raw json.RawMessage
	if err := dec.Decode(&raw); err != nil {
		if errors.Is(err, io.EOF) {
			return domain.Payload{}, errors.New("body 为空")
		}
		return domain.Payload{}, err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return domain.Payload{}, errors.New("JSON 值之后存在多余内容")
	}

	kind := kindOf(raw)
	if kind != domain.PayloadObject {
		return domain.Payload{Kind: kind}, nil
	}
	entries, err := decodeObject(raw)
	if err != nil {
		return domain.Payload{}, err
	}
	return domain.Payload{Kind: domain.PayloadObject, Entries: entries}, nil
}

func kindOf(raw json.RawMessage) domain.PayloadKind {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return domain.PayloadNull
	}
	switch raw[0] {
	case '{':
		return domain.PayloadObject
	case '[':
		return domain.PayloadArray
	case '"':
		return domain.PayloadString
	case 't', 'f':
		return domain.PayloadBool
	case 'n':
		return domain.PayloadNull
	default:
		return domain.PayloadNumber
	}
}

func decodeObject(raw json.RawMessage) ([]domain.Entry, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	if _, err := dec.Token(); err != nil {
		return nil, err
	}

	entries := make([]domain.Entry, 0, 4)
	index := make(map[string]int, 4)
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("非法的对象 key：%v", tok)
		}
		var v json.RawMessage
		if err := dec.Decode(&v); err != nil {
			return nil, err
		}

		e, err := decodeEntry(key, v)
		if err != nil {
			return nil, err
		}
		if i, dup := index[key]; dup {
			entries[i] = e
			continue
		}
		index[key] = len(entries)
		entries = append(entries, e)
	}
	return entries, nil
}

func decodeEntry(key string, v json.RawMessage) (domain.Entry, error) {
	if kindOf(v) != domain.PayloadArray {
		return domain.Entry{Key: key, Kind: domain.ValueOther}, nil
	}

	var elems []json.RawMessage
	if err := json.Unmarshal(v, &elems); err != nil {
		return domain.Entry{}, fmt.Errorf("key %q：%w", key, err)
	}

	e := domain.Entry{
		Key:     key,
		Kind:    domain.ValueSequence,
		Records: make([]domain.CharacterRecord, 0, len(elems)),
	}
	for _, el := range elems {
		if kindOf(el) != domain.PayloadObject {
			e.Invalid++
			continue
		}
		rec, err := decodeRecord(el)
		if err != nil {
			return domain.Entry{}, fmt.Errorf("key %q：%w", key, err)
		}
		e.Records = append(e.Records, rec)
	}
	return e, nil
}

// 记录字段按精确 key 读取（区分大小写）：NAME、Films 之类的 key 不是记录字段。
const (
	fieldName     = "name"
	fieldImageURL = "imageUrl"
	fieldFilms    = "films"
	fieldTVShows  = "tvShows"
)

func decodeRecord(raw json.RawMessage) (domain.CharacterRecord, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return domain.CharacterRecord{}, err
	}
	return domain.CharacterRecord{
		Name:     scalarText(fields[fieldName]),
		ImageURL: truthyText(fields[fieldImageURL]),
		Films:    stringList(fields[fieldFilms]),
		TVShows:  stringList(fields[fieldTVShows]),
	}, nil
}

// truthyText 与 scalarText 相同，但假值（false、0、-0、""、null）一律为空串。
// imageUrl 只有为真值时才作为图片地址使用。
func truthyText(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	switch kindOf(raw) {
	case domain.PayloadBool:
		if string(raw) == "false" {
			return ""
		}
	case domain.PayloadNumber:
		if f, err := strconv.ParseFloat(string(raw), 64); err == nil && f == 0 {
			return ""
		}
	}
	return scalarText(raw)
}

// scalarText 把 JSON 标量转成展示文本：字符串取值，数字/布尔取字面量，null/缺失/容器为空串。
func scalarText(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return ""
	}
	switch kindOf(raw) {
	case domain.PayloadString:
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return ""
		}
		return s
	case domain.PayloadNumber, domain.PayloadBool:
		return string(raw)
	default:
		return ""
	}
}

// stringList 把 films/tvShows 规范化为字符串切片；不是数组时返回空切片。
func stringList(raw json.RawMessage) []string {
	if kindOf(raw) != domain.PayloadArray {
		return []string{}
	}
	var elems []json.RawMessage
	if err := json.Unmarshal(raw, &elems); err != nil {
		return []string{}
	}
	out := make([]string, 0, len(elems))
	for _, el := range elems {
		out = append(out, scalarText(el))
	}
	return out
}
