package vision

import (
	"bytes"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
)

// ResizeToLimit downscales an image so its longer edge fits maxDim, keeping
// the aspect ratio, and returns JPEG bytes. Images already within the limit,
// and payloads the pure-Go decoders cannot read, pass through unchanged; the
// OpenCV decode in the pipeline has the final say on whether the bytes are a
// valid image.
func ResizeToLimit(data []byte, maxDim int) []byte {
	if maxDim <= 0 {
		return data
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return data
	}

	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()
	if width <= maxDim && height <= maxDim {
		return data
	}

	if width > height {
		height = height * maxDim / width
		width = maxDim
	} else {
		width = width * maxDim / height
		height = maxDim
	}
	if width < 1 {
		width = 1
	}
	if height < 1 {
		height = 1
	}

	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.BiLinear.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Over, nil)

	var out bytes.Buffer
	if err := jpeg.Encode(&out, dst, &jpeg.Options{Quality: 90}); err != nil {
		return data
	}
	return out.Bytes()
}
