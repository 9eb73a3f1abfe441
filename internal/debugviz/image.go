package debugviz

import (
	"fmt"
	"image"
	"io"

	"gocv.io/x/gocv"

	"github.com/ayusman/retarget/internal/geom"
)

// Renderer draws a scene to w in its own image format.
type Renderer interface {
	Render(w io.Writer, s Scene) error
	ContentType() string
}

// ImageRenderer draws an orthographic front view of a scene with OpenCV.
type ImageRenderer struct {
	Width, Height int
	// PixelsPerUnit scales scene units to pixels.
	PixelsPerUnit float64
	// Center is the scene point drawn at the image center.
	Center geom.Vec3
}

// NewImageRenderer creates a renderer for a width x height image.
func NewImageRenderer(width, height int, pixelsPerUnit float64) *ImageRenderer {
	return &ImageRenderer{Width: width, Height: height, PixelsPerUnit: pixelsPerUnit}
}

// project maps a scene point onto the image plane, Y up.
func (r *ImageRenderer) project(p geom.Vec3) image.Point {
	x := float64(r.Width)/2 + (p.X-r.Center.X)*r.PixelsPerUnit
	y := float64(r.Height)/2 - (p.Y-r.Center.Y)*r.PixelsPerUnit
	return image.Pt(int(x), int(y))
}

// Draw returns a new BGR image of the scene. The caller must Close it.
func (r *ImageRenderer) Draw(s Scene) gocv.Mat {
	img := gocv.Zeros(r.Height, r.Width, gocv.MatTypeCV8UC3)

	for _, c := range s.Connectors {
		if !c.Visible {
			continue
		}
		half := c.Up
		half.X, half.Y, half.Z = half.X*c.Scale.Y, half.Y*c.Scale.Y, half.Z*c.Scale.Y
		from := geom.Vec3{X: c.Position.X - half.X, Y: c.Position.Y - half.Y, Z: c.Position.Z - half.Z}
		to := geom.Vec3{X: c.Position.X + half.X, Y: c.Position.Y + half.Y, Z: c.Position.Z + half.Z}
		// OpenCV expects BGR.
		bgr := c.Color
		bgr.R, bgr.B = c.Color.B, c.Color.R
		gocv.Line(&img, r.project(from), r.project(to), bgr, 2)
	}

	radius := int(MarkerScale * r.PixelsPerUnit / 2)
	if radius < 2 {
		radius = 2
	}
	for _, m := range s.Markers {
		if !m.Visible {
			continue
		}
		gocv.Circle(&img, r.project(m.Position), radius, ColorNeutral, -1)
	}
	return img
}

// Render writes the scene as a JPEG image.
func (r *ImageRenderer) Render(w io.Writer, s Scene) error {
	img := r.Draw(s)
	defer img.Close()

	buf, err := gocv.IMEncode(".jpg", img)
	if err != nil {
		return fmt.Errorf("encode debug frame: %w", err)
	}
	defer buf.Close()

	_, err = w.Write(buf.GetBytes())
	return err
}

// ContentType implements Renderer.
func (r *ImageRenderer) ContentType() string {
	return "image/jpeg"
}
