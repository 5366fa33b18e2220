package render

import (
	"fmt"
	"image/color"
)

// CentroidColor marks centroids on every chart.
var CentroidColor = color.RGBA{A: 255}

// ClusterColor returns the colour of cluster i out of k: hues evenly spaced
// around the wheel at full saturation and half lightness.
func ClusterColor(i, k int) color.RGBA {
	if k <= 0 {
		k = 1
	}
	hue := float64(i) / float64(k)
	r, g, b := hslToRGB(hue, 1, 0.5)
	return color.RGBA{R: r, G: g, B: b, A: 255}
}

// Hex formats c as #rrggbb.
func Hex(c color.RGBA) string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}

// hslToRGB converts HSL to RGB (0-255 range)
func hslToRGB(h, s, l float64) (r, g, b uint8) {
	var rf, gf, bf float64

	if s == 0 {
		rf, gf, bf = l, l, l
	} else {
		var q float64
		if l < 0.5 {
			q = l * (1 + s)
		} else {
			q = l + s - l*s
		}
		p := 2*l - q
		rf = hueToRGB(p, q, h+1.0/3.0)
		gf = hueToRGB(p, q, h)
		bf = hueToRGB(p, q, h-1.0/3.0)
	}

	return uint8(rf * 255), uint8(gf * 255), uint8(bf * 255)
}

func hueToRGB(p, q, t float64) float64 {
	if t < 0 {
		t += 1
	}
	if t > 1 {
		t -= 1
	}
	if t < 1.0/6.0 {
		return p + (q-p)*6*t
	}
	if t < 1.0/2.0 {
		return q
	}
	if t < 2.0/3.0 {
		return p + (q-p)*(2.0/3.0-t)*6
	}
	return p
}
