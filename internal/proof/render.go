package proof

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"math"

	"github.com/LdDl/headcount/mot"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

var (
	boxColor   = color.RGBA{0, 255, 0, 255}
	labelColor = color.RGBA{255, 255, 255, 255}
	countColor = color.RGBA{255, 0, 0, 255}
)

const boxThickness = 2

// Association binds tracked identity to one of raw boxes of the frame
type Association struct {
	ID  int
	Box mot.BoundingBox
}

// Associate re-associates identities with raw boxes: for every identity (ascending id) the box
// with the nearest centroid is picked, first box in input order wins on ties.
// Tracker keys identities by centroid, not by box index, hence this lookup.
func Associate(boxes []mot.BoundingBox, objects map[int]mot.Centroid) []Association {
	if len(boxes) == 0 {
		return nil
	}
	centroids := mot.Centroids(boxes)
	associations := make([]Association, 0, len(objects))
	for _, objectID := range mot.SortedIDs(objects) {
		best := -1
		bestDistance := math.Inf(1)
		for i := range centroids {
			d := centroids[i].DistanceTo(objects[objectID])
			if best == -1 || d < bestDistance {
				best = i
				bestDistance = d
			}
		}
		associations = append(associations, Association{
			ID:  objectID,
			Box: boxes[best],
		})
	}
	return associations
}

// Render draws associations and global count label onto a copy of raster. Source raster is not modified
func Render(raster image.Image, associations []Association, count int, label string) *image.RGBA {
	canvas := Clone(raster)
	for _, a := range associations {
		rect := a.Box.Rect()
		drawRectangle(canvas, rect, boxColor, boxThickness)
		textY := rect.Min.Y - 6
		if textY < 0 {
			textY = 0
		}
		drawText(canvas, fmt.Sprintf("ID:%d %.2f", a.ID, a.Box.Confidence), image.Pt(rect.Min.X, textY), labelColor)
	}
	drawText(canvas, fmt.Sprintf("%s=%d", label, count), image.Pt(20, 40), countColor)
	return canvas
}

// Clone copies raster into a new RGBA image with the same bounds
func Clone(raster image.Image) *image.RGBA {
	bounds := raster.Bounds()
	canvas := image.NewRGBA(bounds)
	draw.Draw(canvas, bounds, raster, bounds.Min, draw.Src)
	return canvas
}

func drawRectangle(dst draw.Image, rect image.Rectangle, c color.Color, thickness int) {
	src := image.NewUniform(c)
	edges := []image.Rectangle{
		image.Rect(rect.Min.X, rect.Min.Y, rect.Max.X+1, rect.Min.Y+thickness),
		image.Rect(rect.Min.X, rect.Max.Y-thickness+1, rect.Max.X+1, rect.Max.Y+1),
		image.Rect(rect.Min.X, rect.Min.Y, rect.Min.X+thickness, rect.Max.Y+1),
		image.Rect(rect.Max.X-thickness+1, rect.Min.Y, rect.Max.X+1, rect.Max.Y+1),
	}
	for _, edge := range edges {
		draw.Draw(dst, edge.Intersect(dst.Bounds()), src, image.Point{}, draw.Over)
	}
}

// drawText draws text with its baseline starting at origin
func drawText(dst draw.Image, text string, origin image.Point, c color.Color) {
	drawer := font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(c),
		Face: basicfont.Face7x13,
		Dot:  fixed.P(origin.X, origin.Y),
	}
	drawer.DrawString(text)
}
