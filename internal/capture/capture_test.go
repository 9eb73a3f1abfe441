package capture

import (
	"errors"
	"image"
	"image/color"
	"testing"

	"gocv.io/x/gocv"
)

func TestMotionGate(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping test that requires GoCV Mat creation")
	}

	g := NewMotionGate(1.0)
	defer g.Close()

	still := gocv.NewMatWithSize(240, 320, gocv.MatTypeCV8UC3)
	defer still.Close()

	moved := gocv.NewMatWithSize(240, 320, gocv.MatTypeCV8UC3)
	defer moved.Close()
	gocv.Rectangle(&moved, image.Rect(40, 40, 200, 200), color.RGBA{255, 255, 255, 0}, -1)

	t.Run("first frame counts as changed", func(t *testing.T) {
		changed, _ := g.Changed(still)
		if !changed {
			t.Error("first frame should count as changed")
		}
	})

	t.Run("identical frame is still", func(t *testing.T) {
		changed, pct := g.Changed(still)
		if changed {
			t.Errorf("identical frame reported motion, pct = %f", pct)
		}
	})

	t.Run("large change is motion", func(t *testing.T) {
		changed, pct := g.Changed(moved)
		if !changed {
			t.Errorf("expected motion, pct = %f", pct)
		}
	})

	t.Run("reset primes again", func(t *testing.T) {
		g.Reset()
		changed, _ := g.Changed(moved)
		if !changed {
			t.Error("frame after reset should count as changed")
		}
	})

	t.Run("empty frame", func(t *testing.T) {
		empty := gocv.NewMat()
		defer empty.Close()
		if changed, _ := g.Changed(empty); changed {
			t.Error("empty frame should not count as changed")
		}
	})
}

func TestMockCamera(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping test that requires GoCV Mat creation")
	}

	a := gocv.NewMatWithSize(10, 10, gocv.MatTypeCV8UC3)
	defer a.Close()
	b := gocv.NewMatWithSize(20, 20, gocv.MatTypeCV8UC3)
	defer b.Close()

	cam := NewMockCamera(a, b)
	dst := gocv.NewMat()
	defer dst.Close()

	if err := cam.Read(&dst); !errors.Is(err, ErrNotOpen) {
		t.Fatalf("Read() on closed camera error = %v, want ErrNotOpen", err)
	}

	cam.Open()
	for i, want := range []int{10, 20, 20} {
		if err := cam.Read(&dst); err != nil {
			t.Fatalf("Read() error = %v", err)
		}
		if dst.Rows() != want {
			t.Errorf("frame %d rows = %d, want %d", i, dst.Rows(), want)
		}
	}
	if cam.Reads() != 3 {
		t.Errorf("Reads() = %d, want 3", cam.Reads())
	}
	cam.Close()
	if cam.IsOpen() {
		t.Error("camera should be closed")
	}
}

func TestVideoCamera_ReadBeforeOpen(t *testing.T) {
	cam := NewVideoCamera("0", 0)
	if cam.IsOpen() {
		t.Fatal("camera should start closed")
	}
	dst := gocv.NewMat()
	defer dst.Close()
	if err := cam.Read(&dst); !errors.Is(err, ErrNotOpen) {
		t.Errorf("Read() error = %v, want ErrNotOpen", err)
	}
	if err := cam.Close(); err != nil {
		t.Errorf("Close() on closed camera error = %v", err)
	}
}

func TestVideoCamera_Device(t *testing.T) {
	if got := NewVideoCamera("2", 15).device(); got != 2 {
		t.Errorf("device() = %v, want 2", got)
	}
	if got := NewVideoCamera("clip.mp4", 15).device(); got != "clip.mp4" {
		t.Errorf("device() = %v, want clip.mp4", got)
	}
}
