package haar

import (
	"fmt"
	"image"
	"io"

	"github.com/disintegration/imaging"
)

// MaxPixels bounds the image size accepted by the detector. The integral
// images and the candidate mask are allocated for every pixel.
const MaxPixels = 1 << 26

// ImageParams is a struct for image related settings.
// Pixels: contains the grayscale converted image pixel data.
// Rows: the number of image rows.
// Cols: the number of image columns.
// Dim: the row stride of Pixels.
type ImageParams struct {
	Pixels []uint8
	Rows   int
	Cols   int
	Dim    int
}

// NewImageParams converts src to grayscale and wraps the pixels.
func NewImageParams(src image.Image) ImageParams {
	cols, rows := src.Bounds().Dx(), src.Bounds().Dy()
	return ImageParams{
		Pixels: RgbToGrayscale(src),
		Rows:   rows,
		Cols:   cols,
		Dim:    cols,
	}
}

// Validate checks that the pixel buffer is a consistent 8-bit single channel plane.
func (p ImageParams) Validate() error {
	if p.Rows <= 0 || p.Cols <= 0 {
		return fmt.Errorf("%w: dimension %dx%d", ErrUnsupportedImage, p.Cols, p.Rows)
	}
	if p.Dim < p.Cols {
		return fmt.Errorf("%w: stride %d is smaller than the width %d", ErrUnsupportedImage, p.Dim, p.Cols)
	}
	if need := (p.Rows-1)*p.Dim + p.Cols; len(p.Pixels) < need {
		return fmt.Errorf("%w: %d pixels, need at least %d", ErrUnsupportedImage, len(p.Pixels), need)
	}
	if p.Rows*p.Cols > MaxPixels {
		return fmt.Errorf("%w: %dx%d", ErrImageTooLarge, p.Cols, p.Rows)
	}
	return nil
}

// Bounds returns the image rectangle.
func (p ImageParams) Bounds() Rect {
	return Rect{Width: p.Cols, Height: p.Rows}
}

// Crop returns a view of the region r. The pixels are shared with p.
// The caller must make sure r lies inside the image.
func (p ImageParams) Crop(r Rect) ImageParams {
	return ImageParams{
		Pixels: p.Pixels[r.Y*p.Dim+r.X:],
		Rows:   r.Height,
		Cols:   r.Width,
		Dim:    p.Dim,
	}
}

// Gray copies the pixels into an image.Gray.
func (p ImageParams) Gray() *image.Gray {
	img := image.NewGray(image.Rect(0, 0, p.Cols, p.Rows))
	for y := 0; y < p.Rows; y++ {
		copy(img.Pix[y*img.Stride:y*img.Stride+p.Cols], p.Pixels[y*p.Dim:])
	}
	return img
}

// Downscale shrinks the image by an integer factor.
func (p ImageParams) Downscale(factor int) ImageParams {
	if factor <= 1 || p.Cols/factor == 0 || p.Rows/factor == 0 {
		return p
	}
	dst := imaging.Resize(p.Gray(), p.Cols/factor, p.Rows/factor, imaging.Box)

	cols, rows := dst.Bounds().Dx(), dst.Bounds().Dy()
	pixels := make([]uint8, cols*rows)
	for i := range pixels {
		// Every channel holds the same value, keep the red one.
		pixels[i] = dst.Pix[i*4]
	}
	return ImageParams{Pixels: pixels, Rows: rows, Cols: cols, Dim: cols}
}

// EqualizeHist spreads the intensity histogram over the full 0-255 range.
// The lowest populated level maps to 0 and the cumulative distribution
// of the others is scaled to 255.
func (p ImageParams) EqualizeHist() ImageParams {
	var hist [256]int
	for y := 0; y < p.Rows; y++ {
		for _, v := range p.Pixels[y*p.Dim : y*p.Dim+p.Cols] {
			hist[v]++
		}
	}
	out := ImageParams{Pixels: make([]uint8, p.Rows*p.Cols), Rows: p.Rows, Cols: p.Cols, Dim: p.Cols}

	total := p.Rows * p.Cols
	if total == 0 {
		return out
	}
	i := 0
	for hist[i] == 0 {
		i++
	}
	var lut [256]uint8
	if hist[i] == total {
		for k := range out.Pixels {
			out.Pixels[k] = uint8(i)
		}
		return out
	}
	scale := 255.0 / float64(total-hist[i])
	sum := 0
	for i++; i < 256; i++ {
		sum += hist[i]
		lut[i] = uint8(min(255, iround(float64(sum)*scale)))
	}
	for y := 0; y < p.Rows; y++ {
		row := p.Pixels[y*p.Dim : y*p.Dim+p.Cols]
		for x, v := range row {
			out.Pixels[y*p.Cols+x] = lut[v]
		}
	}
	return out
}

// GetImage retrieves and decodes the image file to *image.NRGBA type.
func GetImage(input string) (*image.NRGBA, error) {
	src, err := imaging.Open(input, imaging.AutoOrientation(true))
	if err != nil {
		return nil, err
	}
	return imaging.Clone(src), nil
}

// DecodeImage decodes the image file to *image.NRGBA type.
func DecodeImage(r io.Reader) (*image.NRGBA, error) {
	src, err := imaging.Decode(r, imaging.AutoOrientation(true))
	if err != nil {
		return nil, err
	}
	return imaging.Clone(src), nil
}
