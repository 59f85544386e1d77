package vision

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/draw"
	"image/png"
	"math"
	"regexp"
	"strconv"

	"github.com/standardbeagle/clovis/internal/model"
)

const minCropSizePx = 32

// cropBoxFor resolves a coarse bbox into padded, clamped crop edges in
// capture-image pixels. Padding clipped at one edge is rebalanced to
// the opposite side so the target stays near the crop center.
func cropBoxFor(imgW, imgH int, b bbox, padPx float64, rebalance bool) (int, int, int, int) {
	w := float64(imgW)
	h := float64(imgH)

	top := toPixels(b.YMin, imgH)
	left := toPixels(b.XMin, imgW)
	bottom := toPixels(b.YMax, imgH)
	right := toPixels(b.XMax, imgW)

	left, right = sortedEdges(left, right)
	top, bottom = sortedEdges(top, bottom)

	left = clamp(left, 0, maxf(w-1, 0))
	right = clamp(right, 1, maxf(w, 1))
	top = clamp(top, 0, maxf(h-1, 0))
	bottom = clamp(bottom, 1, maxf(h, 1))

	pad := maxf(padPx, 0)
	rawLeft := left - pad
	rawRight := right + pad
	rawTop := top - pad
	rawBottom := bottom + pad

	left = clamp(rawLeft, 0, maxf(w-1, 0))
	right = clamp(rawRight, 1, maxf(w, 1))
	top = clamp(rawTop, 0, maxf(h-1, 0))
	bottom = clamp(rawBottom, 1, maxf(h, 1))

	if rebalance {
		if clip := left - rawLeft; clip > 0 {
			right += math.Min(clip, maxf(w-right, 0))
		}
		if clip := rawRight - right; clip > 0 {
			left -= math.Min(clip, maxf(left, 0))
		}
		if clip := top - rawTop; clip > 0 {
			bottom += math.Min(clip, maxf(h-bottom, 0))
		}
		if clip := rawBottom - bottom; clip > 0 {
			top -= math.Min(clip, maxf(top, 0))
		}
		left = clamp(left, 0, maxf(w-1, 0))
		right = clamp(right, 1, maxf(w, 1))
		top = clamp(top, 0, maxf(h-1, 0))
		bottom = clamp(bottom, 1, maxf(h, 1))
	}

	if right-left < minCropSizePx {
		center := (left + right) / 2
		left = clamp(center-minCropSizePx/2, 0, maxf(w-minCropSizePx, 0))
		right = clamp(left+minCropSizePx, 1, maxf(w, 1))
	}
	if bottom-top < minCropSizePx {
		center := (top + bottom) / 2
		top = clamp(center-minCropSizePx/2, 0, maxf(h-minCropSizePx, 0))
		bottom = clamp(top+minCropSizePx, 1, maxf(h, 1))
	}

	return int(math.Round(left)), int(math.Round(top)),
		int(math.Round(right)), int(math.Round(bottom))
}

var bboxNumberRe = regexp.MustCompile(`-?\d+(?:\.\d+)?`)

// parseBBox pulls the first four numbers out of a locator response,
// in ymin/xmin/ymax/xmax order.
func parseBBox(text string) (bbox, error) {
	numbers := bboxNumberRe.FindAllString(text, 5)
	if len(numbers) < 4 {
		return bbox{}, fmt.Errorf("could not parse bounding box from locator response: %q", text)
	}
	vals := make([]float64, 4)
	for i := 0; i < 4; i++ {
		v, err := strconv.ParseFloat(numbers[i], 64)
		if err != nil {
			return bbox{}, fmt.Errorf("could not parse bounding box from locator response: %q", text)
		}
		vals[i] = v
	}
	return bbox{YMin: vals[0], XMin: vals[1], YMax: vals[2], XMax: vals[3]}, nil
}

func cropImage(src image.Image, left, top, right, bottom int) image.Image {
	r := image.Rect(left, top, right, bottom).Intersect(src.Bounds())
	out := image.NewRGBA(image.Rect(0, 0, r.Dx(), r.Dy()))
	draw.Draw(out, out.Bounds(), src, r.Min, draw.Src)
	return out
}

func encodePNG(img image.Image) (model.Image, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return model.Image{}, fmt.Errorf("encode png: %w", err)
	}
	return model.Image{MIME: "image/png", Data: buf.Bytes()}, nil
}

func locatorPrompt(target string) string {
	return `
You are localizing a single clickable UI target inside a cropped screenshot.
Target: ` + target + `

Return ONLY one bounding box in this exact format:
[ymin, xmin, ymax, xmax]

Rules:
- Coordinates must be normalized to 0-1000 relative to THIS CROPPED image.
- Box should tightly contain one clickable element.
- Output only the bracketed array, no extra text.
`
}

// cropAndSearch pads and crops the coarse bbox out of the screenshot,
// asks the locator model for a tight bbox inside that crop, and maps
// the refined center back to absolute screen coordinates.
func cropAndSearch(ctx context.Context, locator model.Invoker, screenshot image.Image, f Frame, b bbox, target string) (float64, float64, error) {
	f = f.normalized()
	imgW := screenshot.Bounds().Dx()
	imgH := screenshot.Bounds().Dy()
	left, top, right, bottom := cropBoxFor(imgW, imgH, b, forcedZoomPadPx, true)
	cropped := cropImage(screenshot, left, top, right, bottom)

	cropW := cropped.Bounds().Dx()
	cropH := cropped.Bounds().Dy()
	if cropW <= 1 || cropH <= 1 {
		return 0, 0, fmt.Errorf("invalid crop region after normalization")
	}

	img, err := encodePNG(cropped)
	if err != nil {
		return 0, 0, err
	}
	res, err := locator.Invoke(ctx, model.Request{
		Prompt: locatorPrompt(target),
		Images: []model.Image{img},
	})
	if err != nil {
		return 0, 0, fmt.Errorf("precision locator: %w", err)
	}

	local, err := parseBBox(res.Text)
	if err != nil {
		return 0, 0, err
	}

	localTop := toPixels(local.YMin, cropH)
	localLeft := toPixels(local.XMin, cropW)
	localBottom := toPixels(local.YMax, cropH)
	localRight := toPixels(local.XMax, cropW)

	localLeft, localRight = sortedEdges(localLeft, localRight)
	localTop, localBottom = sortedEdges(localTop, localBottom)

	localLeft = clamp(localLeft, 0, maxf(float64(cropW-1), 0))
	localRight = clamp(localRight, 1, maxf(float64(cropW), 1))
	localTop = clamp(localTop, 0, maxf(float64(cropH-1), 0))
	localBottom = clamp(localBottom, 1, maxf(float64(cropH), 1))

	centerXInCrop := localLeft + (localRight-localLeft)/2
	centerYInCrop := localTop + (localBottom-localTop)/2

	// The crop box lives in capture-image pixels; divide by the frame
	// scale to get back to logical screen space before offsetting.
	xInWindow := (float64(left) + centerXInCrop) / f.ScaleX
	yInWindow := (float64(top) + centerYInCrop) / f.ScaleY
	return xInWindow + f.OffsetX, yInWindow + f.OffsetY, nil
}
