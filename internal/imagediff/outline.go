package imagediff

import (
	"image"
	"image/color"
)

// outlinePadding keeps the box from covering the differing pixels themselves
const outlinePadding = 2

// outline draws a rectangle around r on img
func outline(img *image.NRGBA, r image.Rectangle, c color.NRGBA) {
	x1, y1 := r.Min.X-outlinePadding, r.Min.Y-outlinePadding
	x2, y2 := r.Max.X-1+outlinePadding, r.Max.Y-1+outlinePadding

	drawLine(img, x1, y1, x2, y1, c)
	drawLine(img, x2, y1, x2, y2, c)
	drawLine(img, x2, y2, x1, y2, c)
	drawLine(img, x1, y2, x1, y1, c)
}

// drawLine draws a line between two points using Bresenham's algorithm
func drawLine(img *image.NRGBA, x1, y1, x2, y2 int, c color.NRGBA) {
	dx := abs(x2 - x1)
	dy := abs(y2 - y1)
	sx := 1
	if x1 > x2 {
		sx = -1
	}
	sy := 1
	if y1 > y2 {
		sy = -1
	}
	err := dx - dy

	for {
		setPixelSafe(img, x1, y1, c)
		if x1 == x2 && y1 == y2 {
			break
		}
		e2 := 2 * err
		if e2 > -dy {
			err -= dy
			x1 += sx
		}
		if e2 < dx {
			err += dx
			y1 += sy
		}
	}
}

func setPixelSafe(img *image.NRGBA, x, y int, c color.NRGBA) {
	if (image.Point{X: x, Y: y}).In(img.Bounds()) {
		img.SetNRGBA(x, y, c)
	}
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
