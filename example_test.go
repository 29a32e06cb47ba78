package watermark_test

import (
	"bytes"
	"fmt"
	"image"
	"image/color"

	watermark "github.com/yyyoichi/watermark_svd"
)

func Example_watermark() {
	// Create a simple gradient image (256x256 pixels)
	img := image.NewRGBA(image.Rect(0, 0, 256, 256))
	for y := 0; y < img.Bounds().Dy(); y++ {
		for x := 0; x < img.Bounds().Dx(); x++ {
			r := uint8(60 + x/2)
			g := uint8(60 + y/2)
			b := uint8(60 + (x+y)/4)
			img.Set(x, y, color.RGBA{r, g, b, 255})
		}
	}
	host := watermark.FromImage(img)

	// A 48x48 white frame on black as the watermark
	logo := image.NewGray(image.Rect(0, 0, 48, 48))
	for y := range 48 {
		for x := range 48 {
			if x < 2 || y < 2 || x >= 46 || y >= 46 {
				logo.SetGray(x, y, color.Gray{Y: 255})
			}
		}
	}
	mark := watermark.FromImage(logo)

	// Initialize watermark processor with the reference parameters
	w, err := watermark.New(
		watermark.WithWavelet("db2"),
		watermark.WithLevel(2),
		watermark.WithBand(watermark.HL),
		watermark.WithAlpha(0.12),
	)
	if err != nil {
		fmt.Printf("Error creating watermark: %v\n", err)
		return
	}

	res, err := w.Embed(host, mark)
	if err != nil {
		fmt.Printf("Error embedding watermark: %v\n", err)
		return
	}
	fmt.Println("imperceptible:", res.PSNR >= 35)

	// The metadata travels inside the PNG
	var buf bytes.Buffer
	if err := watermark.WritePNG(&buf, res.Marked, res.Meta); err != nil {
		fmt.Printf("Error writing PNG: %v\n", err)
		return
	}
	marked, meta, err := watermark.ReadPNG(&buf)
	if err != nil {
		fmt.Printf("Error reading PNG: %v\n", err)
		return
	}

	est, err := watermark.Extract(marked, meta)
	if err != nil {
		fmt.Printf("Error extracting watermark: %v\n", err)
		return
	}
	fmt.Printf("estimate: %dx%d\n", est.Rows, est.Cols)

	// Output:
	// imperceptible: true
	// estimate: 66x66
}
