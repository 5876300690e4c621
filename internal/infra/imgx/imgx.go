package imgx

import (
	"bytes"
	"errors"
	"image"
	"image/color"

	"github.com/disintegration/imaging"
)

const (
	// PlaceholderWidth/PlaceholderHeight 接近 Bootstrap 卡片顶部图片的常见比例（4:3）。
	PlaceholderWidth  = 400
	PlaceholderHeight = 300
)

var (
	placeholderBG    = color.NRGBA{R: 0xdd, G: 0xe1, B: 0xe6, A: 0xff}
	placeholderFrame = color.NRGBA{R: 0xf4, G: 0xf5, B: 0xf7, A: 0xff}
)

// PlaceholderJPEG 生成无图记录使用的占位图（灰底 + 居中浅色框），编码为 JPEG。
//
// 约束：
// - 输出只取决于 w/h：相同参数 => 相同字节
// - w/h 必须为正
func PlaceholderJPEG(w, h int) ([]byte, error) {
	if w <= 0 || h <= 0 {
		return nil, errors.New("占位图尺寸无效")
	}

	bg := imaging.New(w, h, placeholderBG)
	fw, fh := w/2, h/2
	if fw > 0 && fh > 0 {
		frame := imaging.New(fw, fh, placeholderFrame)
		bg = imaging.Overlay(bg, frame, image.Pt((w-fw)/2, (h-fh)/2), 1.0)
	}

	var out bytes.Buffer
	if err := imaging.Encode(&out, bg, imaging.JPEG, imaging.JPEGQuality(85)); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}
