package haar

import (
	"image"
)

// RgbToGrayscale converts the image to grayscale mode.
func RgbToGrayscale(src image.Image) []uint8 {
	b := src.Bounds()
	cols, rows := b.Dx(), b.Dy()
	gray := make([]uint8, rows*cols)

	switch img := src.(type) {
	case *image.Gray:
		for y := 0; y < rows; y++ {
			copy(gray[y*cols:(y+1)*cols], img.Pix[img.PixOffset(b.Min.X, b.Min.Y+y):])
		}
	case *image.NRGBA:
		for y := 0; y < rows; y++ {
			i := img.PixOffset(b.Min.X, b.Min.Y+y)
			for x := 0; x < cols; x++ {
				px := img.Pix[i : i+3 : i+3]
				gray[y*cols+x] = luminance(uint32(px[0])*0x101, uint32(px[1])*0x101, uint32(px[2])*0x101)
				i += 4
			}
		}
	default:
		for y := 0; y < rows; y++ {
			for x := 0; x < cols; x++ {
				r, g, bl, _ := src.At(b.Min.X+x, b.Min.Y+y).RGBA()
				gray[y*cols+x] = luminance(r, g, bl)
			}
		}
	}
	return gray
}

// luminance weights the 16 bit color channels with the ITU-R BT.601 coefficients.
func luminance(r, g, b uint32) uint8 {
	return uint8((0.299*float64(r) + 0.587*float64(g) + 0.114*float64(b)) / 256)
}
