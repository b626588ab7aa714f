// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package sim

import (
	"bytes"
	"image"
	"image/jpeg"

	"github.com/ManuGH/camagent/internal/camera/device"
)

// errorEncode is reported through Events.OnError when a still cannot be encoded.
const errorEncode = 2

// render draws a gradient test card that shifts with seed.
func render(size device.Size, seed uint64) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, size.Width, size.Height))
	shift := int(seed % 256)
	for y := 0; y < size.Height; y++ {
		row := img.Pix[y*img.Stride : y*img.Stride+size.Width]
		for x := range row {
			row[x] = uint8((x*255/max(size.Width, 1) + y*64/max(size.Height, 1) + shift) % 256)
		}
	}
	return img
}

func encodeJPEG(img image.Image, quality int) ([]byte, error) {
	if quality <= 0 || quality > 100 {
		quality = jpeg.DefaultQuality
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
