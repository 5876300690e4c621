package imgx

import (
	"bytes"
	"image/color"
	"image/jpeg"
	"testing"
)

func TestPlaceholderJPEG(t *testing.T) {
	out, err := PlaceholderJPEG(PlaceholderWidth, PlaceholderHeight)
	if err != nil {
		t.Fatalf("PlaceholderJPEG 失败：%v", err)
	}

	got, err := jpeg.Decode(bytes.NewReader(out))
	if err != nil {
		t.Fatalf("decode jpeg 失败：%v", err)
	}
	gb := got.Bounds()
	if gb.Dx() != PlaceholderWidth || gb.Dy() != PlaceholderHeight {
		t.Fatalf("尺寸不符合预期：got=%dx%d want=%dx%d", gb.Dx(), gb.Dy(), PlaceholderWidth, PlaceholderHeight)
	}

	// 中心（浅色框）应比角落（底色）更亮；JPEG 有损，只比较大小关系。
	center := color.GrayModel.Convert(got.At(gb.Dx()/2, gb.Dy()/2)).(color.Gray)
	corner := color.GrayModel.Convert(got.At(2, 2)).(color.Gray)
	if center.Y <= corner.Y {
		t.Fatalf("中心像素应比角落更亮：center=%d corner=%d", center.Y, corner.Y)
	}
}

func TestPlaceholderJPEG_Deterministic(t *testing.T) {
	a, err := PlaceholderJPEG(40, 30)
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	b, err := PlaceholderJPEG(40, 30)
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if !bytes.Equal(a, b) {
		t.Fatalf("相同参数应产生相同字节")
	}
}

func TestPlaceholderJPEG_InvalidSize(t *testing.T) {
	if _, err := PlaceholderJPEG(0, 10); err == nil {
		t.Fatalf("期望尺寸为 0 时返回错误")
	}
	if _, err := PlaceholderJPEG(10, -1); err == nil {
		t.Fatalf("期望尺寸为负时返回错误")
	}
}
