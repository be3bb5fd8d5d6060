// Core image data structure shared by effects, gallery and codecs
package core

import (
	"fmt"
	"image"
	"image/color"

	"gocv.io/x/gocv"
)

// Supported channel layouts
const (
	ChannelsGray = 1
	ChannelsRGB  = 3

	maxDimension = 16384
)

// Image is an immutable 8-bit bitmap, either single-channel gray or
// interleaved RGB. All accessors hand out copies.
type Image struct {
	width    int
	height   int
	channels int
	pix      []byte
}

// ImageMetadata contains image information
type ImageMetadata struct {
	Width    int `json:"width"`
	Height   int `json:"height"`
	Channels int `json:"channels"`
}

// NewImage validates the layout and takes a private copy of pix
func NewImage(width, height, channels int, pix []byte) (Image, error) {
	if err := validateLayout(width, height, channels); err != nil {
		return Image{}, err
	}
	if want := width * height * channels; len(pix) != want {
		return Image{}, fmt.Errorf("pixel buffer has %d bytes, want %d", len(pix), want)
	}

	buf := make([]byte, len(pix))
	copy(buf, pix)
	return Image{width: width, height: height, channels: channels, pix: buf}, nil
}

// NewSolid creates an image filled with a single value per channel
func NewSolid(width, height int, value ...uint8) (Image, error) {
	channels := len(value)
	if err := validateLayout(width, height, channels); err != nil {
		return Image{}, err
	}

	pix := make([]byte, width*height*channels)
	for i := range pix {
		pix[i] = value[i%channels]
	}
	return Image{width: width, height: height, channels: channels, pix: pix}, nil
}

func (img Image) Width() int    { return img.width }
func (img Image) Height() int   { return img.height }
func (img Image) Channels() int { return img.channels }

// Empty reports whether the image holds no pixels
func (img Image) Empty() bool {
	return len(img.pix) == 0
}

// Metadata returns dimension information
func (img Image) Metadata() ImageMetadata {
	return ImageMetadata{Width: img.width, Height: img.height, Channels: img.channels}
}

// Pix returns a copy of the raw pixel buffer
func (img Image) Pix() []byte {
	buf := make([]byte, len(img.pix))
	copy(buf, img.pix)
	return buf
}

// At returns the channel values of the pixel at (x, y)
func (img Image) At(x, y int) []uint8 {
	if x < 0 || y < 0 || x >= img.width || y >= img.height {
		return nil
	}
	off := (y*img.width + x) * img.channels
	px := make([]uint8, img.channels)
	copy(px, img.pix[off:off+img.channels])
	return px
}

// Clone returns a deep copy
func (img Image) Clone() Image {
	return Image{width: img.width, height: img.height, channels: img.channels, pix: img.Pix()}
}

// Equal compares layout and pixel data
func (img Image) Equal(other Image) bool {
	if img.width != other.width || img.height != other.height || img.channels != other.channels {
		return false
	}
	if len(img.pix) != len(other.pix) {
		return false
	}
	for i := range img.pix {
		if img.pix[i] != other.pix[i] {
			return false
		}
	}
	return true
}

// ToRGB broadcasts a gray image to three identical channels
func (img Image) ToRGB() Image {
	if img.channels == ChannelsRGB {
		return img.Clone()
	}

	pix := make([]byte, img.width*img.height*ChannelsRGB)
	for i, v := range img.pix {
		pix[i*3], pix[i*3+1], pix[i*3+2] = v, v, v
	}
	return Image{width: img.width, height: img.height, channels: ChannelsRGB, pix: pix}
}

// FromGoImage converts a decoded image. Gray images keep one channel,
// everything else becomes RGB with alpha discarded.
func FromGoImage(src image.Image) (Image, error) {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()

	if gray, ok := src.(*image.Gray); ok {
		if err := validateLayout(w, h, ChannelsGray); err != nil {
			return Image{}, err
		}
		pix := make([]byte, w*h)
		for y := 0; y < h; y++ {
			row := gray.Pix[(y)*gray.Stride : (y)*gray.Stride+w]
			copy(pix[y*w:], row)
		}
		return Image{width: w, height: h, channels: ChannelsGray, pix: pix}, nil
	}

	if err := validateLayout(w, h, ChannelsRGB); err != nil {
		return Image{}, err
	}
	pix := make([]byte, w*h*ChannelsRGB)
	i := 0
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			c := color.NRGBAModel.Convert(src.At(x, y)).(color.NRGBA)
			pix[i], pix[i+1], pix[i+2] = c.R, c.G, c.B
			i += 3
		}
	}
	return Image{width: w, height: h, channels: ChannelsRGB, pix: pix}, nil
}

// ToGoImage returns *image.Gray for gray images and an opaque
// *image.NRGBA for RGB images
func (img Image) ToGoImage() image.Image {
	rect := image.Rect(0, 0, img.width, img.height)

	if img.channels == ChannelsGray {
		out := image.NewGray(rect)
		copy(out.Pix, img.pix)
		return out
	}

	out := image.NewNRGBA(rect)
	for i, j := 0, 0; i < len(img.pix); i, j = i+3, j+4 {
		out.Pix[j], out.Pix[j+1], out.Pix[j+2], out.Pix[j+3] = img.pix[i], img.pix[i+1], img.pix[i+2], 0xff
	}
	return out
}

// ToMat copies the image into a new OpenCV matrix. The caller owns the
// returned Mat and must Close it.
func (img Image) ToMat() (gocv.Mat, error) {
	if img.Empty() {
		return gocv.NewMat(), fmt.Errorf("cannot convert empty image")
	}

	mt := gocv.MatTypeCV8UC3
	if img.channels == ChannelsGray {
		mt = gocv.MatTypeCV8UC1
	}

	// NewMatFromBytes wraps the buffer, so hand it a throwaway copy and
	// clone into OpenCV-owned memory.
	wrapped, err := gocv.NewMatFromBytes(img.height, img.width, mt, img.Pix())
	if err != nil {
		return gocv.NewMat(), fmt.Errorf("failed to create matrix: %w", err)
	}
	defer wrapped.Close()

	return wrapped.Clone(), nil
}

// FromMat copies an 8-bit OpenCV matrix with 1 or 3 channels
func FromMat(mat gocv.Mat) (Image, error) {
	if err := ValidateMat(mat); err != nil {
		return Image{}, err
	}

	channels := mat.Channels()
	if channels != ChannelsGray && channels != ChannelsRGB {
		return Image{}, fmt.Errorf("unsupported number of channels: %d", channels)
	}

	pix := mat.ToBytes()
	return NewImage(mat.Cols(), mat.Rows(), channels, pix)
}

// ValidateMat validates an OpenCV Mat for basic requirements
func ValidateMat(mat gocv.Mat) error {
	if mat.Empty() {
		return fmt.Errorf("image is empty")
	}

	if mat.Cols() <= 0 || mat.Rows() <= 0 {
		return fmt.Errorf("invalid dimensions: %dx%d", mat.Cols(), mat.Rows())
	}

	if mat.Cols() > maxDimension || mat.Rows() > maxDimension {
		return fmt.Errorf("image too large: %dx%d (max: %d)", mat.Cols(), mat.Rows(), maxDimension)
	}

	return nil
}

func validateLayout(width, height, channels int) error {
	if width <= 0 || height <= 0 {
		return fmt.Errorf("invalid image dimensions: %dx%d", width, height)
	}
	if width > maxDimension || height > maxDimension {
		return fmt.Errorf("image too large: %dx%d (max: %d)", width, height, maxDimension)
	}
	if channels != ChannelsGray && channels != ChannelsRGB {
		return fmt.Errorf("unsupported number of channels: %d", channels)
	}
	return nil
}
