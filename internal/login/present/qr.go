package present

import (
	"fmt"
	"image/color"
	"strings"

	"github.com/boombuler/barcode/qr"
)

const quietZone = 2

// QR renders content as a QR code made of Unicode half blocks, two module
// rows per text line. Light modules are drawn so the code scans on dark
// terminals.
func QR(content string) (string, error) {
	code, err := qr.Encode(content, qr.M, qr.Auto)
	if err != nil {
		return "", fmt.Errorf("encode qr: %w", err)
	}

	bounds := code.Bounds()
	size := bounds.Dx()

	// light reports whether module (x, y) is light, counting the quiet zone.
	light := func(x, y int) bool {
		x, y = x-quietZone, y-quietZone
		if x < 0 || y < 0 || x >= size || y >= size {
			return true
		}
		return isLight(code.At(bounds.Min.X+x, bounds.Min.Y+y))
	}

	total := size + 2*quietZone
	var b strings.Builder
	for y := 0; y < total; y += 2 {
		for x := 0; x < total; x++ {
			top := light(x, y)
			bottom := y+1 >= total || light(x, y+1)
			switch {
			case top && bottom:
				b.WriteString("█")
			case top:
				b.WriteString("▀")
			case bottom:
				b.WriteString("▄")
			default:
				b.WriteString(" ")
			}
		}
		b.WriteByte('\n')
	}
	return b.String(), nil
}

func isLight(c color.Color) bool {
	r, g, b, _ := c.RGBA()
	return r+g+b > 3*0x7fff
}
