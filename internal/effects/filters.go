package effects

import (
	"fmt"
	"image"

	"gocv.io/x/gocv"
)

const (
	midpoint = 128.0

	blurKernelSize = 7 // radius 3

	sepiaGreen = 0.8
	sepiaBlue  = 0.6

	vintageContrast   = 0.8
	vintageSaturation = 1.2
	brightFactor      = 1.3
	dramaticContrast  = 1.5
)

func applyNormal(src gocv.Mat, dst *gocv.Mat) error {
	src.CopyTo(dst)
	return nil
}

func applyGrayscale(src gocv.Mat, dst *gocv.Mat) error {
	gray := gocv.NewMat()
	defer gray.Close()

	if err := gocv.CvtColor(src, &gray, gocv.ColorRGBToGray); err != nil {
		return fmt.Errorf("luma conversion: %w", err)
	}
	if err := gocv.CvtColor(gray, dst, gocv.ColorGrayToRGB); err != nil {
		return fmt.Errorf("gray to rgb: %w", err)
	}
	return nil
}

// applySepia maps luma p to (p, 0.8p, 0.6p)
func applySepia(src gocv.Mat, dst *gocv.Mat) error {
	gray := gocv.NewMat()
	defer gray.Close()

	if err := gocv.CvtColor(src, &gray, gocv.ColorRGBToGray); err != nil {
		return fmt.Errorf("luma conversion: %w", err)
	}

	red := gray.Clone()
	defer red.Close()

	green := gocv.NewMat()
	defer green.Close()
	gray.ConvertToWithParams(&green, gocv.MatTypeCV8U, sepiaGreen, 0)

	blue := gocv.NewMat()
	defer blue.Close()
	gray.ConvertToWithParams(&blue, gocv.MatTypeCV8U, sepiaBlue, 0)

	if err := gocv.Merge([]gocv.Mat{red, green, blue}, dst); err != nil {
		return fmt.Errorf("sepia merge: %w", err)
	}
	return nil
}

// applyBlur uses reflect-101 borders so edge pixels are deterministic
func applyBlur(src gocv.Mat, dst *gocv.Mat) error {
	ksize := image.Pt(blurKernelSize, blurKernelSize)
	if err := gocv.GaussianBlur(src, dst, ksize, 0, 0, gocv.BorderReflect101); err != nil {
		return fmt.Errorf("gaussian blur: %w", err)
	}
	return nil
}

func applyVintage(src gocv.Mat, dst *gocv.Mat) error {
	faded := gocv.NewMat()
	defer faded.Close()

	if err := adjustContrast(src, &faded, vintageContrast); err != nil {
		return err
	}
	return adjustSaturation(faded, dst, vintageSaturation)
}

func applyBright(src gocv.Mat, dst *gocv.Mat) error {
	src.ConvertToWithParams(dst, gocv.MatTypeCV8U, brightFactor, 0)
	return nil
}

func applyDramatic(src gocv.Mat, dst *gocv.Mat) error {
	return adjustContrast(src, dst, dramaticContrast)
}

// adjustContrast scales distance from the midpoint: v' = a*v + 128*(1-a),
// saturated to [0, 255]
func adjustContrast(src gocv.Mat, dst *gocv.Mat, alpha float32) error {
	beta := float32(midpoint * (1 - float64(alpha)))
	src.ConvertToWithParams(dst, gocv.MatTypeCV8U, alpha, beta)
	if dst.Empty() {
		return fmt.Errorf("contrast adjustment failed")
	}
	return nil
}

// adjustSaturation scales the S channel in HSV space
func adjustSaturation(src gocv.Mat, dst *gocv.Mat, factor float32) error {
	hsv := gocv.NewMat()
	defer hsv.Close()

	if err := gocv.CvtColor(src, &hsv, gocv.ColorRGBToHSV); err != nil {
		return fmt.Errorf("hsv conversion: %w", err)
	}

	channels := gocv.Split(hsv)
	defer func() {
		for _, c := range channels {
			c.Close()
		}
	}()
	if len(channels) != 3 {
		return fmt.Errorf("expected 3 hsv channels, got %d", len(channels))
	}

	saturated := gocv.NewMat()
	defer saturated.Close()
	channels[1].ConvertToWithParams(&saturated, gocv.MatTypeCV8U, factor, 0)

	merged := gocv.NewMat()
	defer merged.Close()
	if err := gocv.Merge([]gocv.Mat{channels[0], saturated, channels[2]}, &merged); err != nil {
		return fmt.Errorf("hsv merge: %w", err)
	}

	if err := gocv.CvtColor(merged, dst, gocv.ColorHSVToRGB); err != nil {
		return fmt.Errorf("hsv to rgb: %w", err)
	}
	return nil
}
