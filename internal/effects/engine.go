// Effect engine: closed table of photo effects on top of OpenCV
package effects

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"gocv.io/x/gocv"

	"photo-booth/internal/core"
)

// transformFunc writes the effect of src into dst. src is always 8-bit RGB.
type transformFunc func(src gocv.Mat, dst *gocv.Mat) error

// Info describes an effect for UI generation
type Info struct {
	Kind        Kind   `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

type effect struct {
	info  Info
	apply transformFunc
}

// table is indexed by Kind and must cover every member
var table = [kindCount]effect{
	Normal: {
		info:  Info{Kind: Normal, Name: "Normal", Description: "Original picture without changes"},
		apply: applyNormal,
	},
	Grayscale: {
		info:  Info{Kind: Grayscale, Name: "Grayscale", Description: "Black and white from luminance"},
		apply: applyGrayscale,
	},
	Sepia: {
		info:  Info{Kind: Sepia, Name: "Sepia", Description: "Warm brown tint over luminance"},
		apply: applySepia,
	},
	Blur: {
		info:  Info{Kind: Blur, Name: "Blur", Description: "Soft Gaussian blur"},
		apply: applyBlur,
	},
	Vintage: {
		info:  Info{Kind: Vintage, Name: "Vintage", Description: "Faded contrast with richer colors"},
		apply: applyVintage,
	},
	Bright: {
		info:  Info{Kind: Bright, Name: "Bright", Description: "Brightness boosted by 30%"},
		apply: applyBright,
	},
	Dramatic: {
		info:  Info{Kind: Dramatic, Name: "Dramatic", Description: "Strong contrast"},
		apply: applyDramatic,
	},
}

// Describe returns display information for k
func Describe(k Kind) Info {
	if !k.Valid() {
		k = Normal
	}
	return table[k].info
}

// Catalog returns display information for every effect in order
func Catalog() []Info {
	infos := make([]Info, 0, kindCount)
	for _, k := range Kinds() {
		infos = append(infos, table[k].info)
	}
	return infos
}

// Engine applies effects. It holds no image state and is safe for
// concurrent use.
type Engine struct {
	logger logrus.FieldLogger
}

func NewEngine(logger logrus.FieldLogger) *Engine {
	if logger == nil {
		discard := logrus.New()
		discard.SetLevel(logrus.PanicLevel)
		logger = discard
	}
	return &Engine{logger: logger}
}

// Apply returns a new image with the effect applied. It never fails: an
// unknown kind behaves as Normal and any failure inside the
// transformation yields a copy of the input.
func (e *Engine) Apply(img core.Image, kind Kind) core.Image {
	if !kind.Valid() {
		kind = Normal
	}
	if kind == Normal || img.Empty() {
		return img.Clone()
	}

	start := time.Now()
	out, err := e.run(img, kind)
	if err != nil {
		e.logger.WithFields(logrus.Fields{
			"effect": kind.String(),
			"width":  img.Width(),
			"height": img.Height(),
		}).WithError(err).Warn("Effect failed, returning original image")
		return img.Clone()
	}

	e.logger.WithFields(logrus.Fields{
		"effect":   kind.String(),
		"width":    out.Width(),
		"height":   out.Height(),
		"duration": time.Since(start).String(),
	}).Debug("Effect applied")

	return out
}

func (e *Engine) run(img core.Image, kind Kind) (out core.Image, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in %s: %v", kind, r)
		}
	}()

	src, err := img.ToRGB().ToMat()
	if err != nil {
		return core.Image{}, err
	}
	defer src.Close()

	dst := gocv.NewMat()
	defer dst.Close()

	if err := table[kind].apply(src, &dst); err != nil {
		return core.Image{}, err
	}
	if dst.Empty() {
		return core.Image{}, fmt.Errorf("%s produced an empty image", kind)
	}

	return core.FromMat(dst)
}
