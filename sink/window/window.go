// Package window shows frames in an OpenCV desktop window.
package window

import (
	"fmt"
	"image"

	"github.com/pkg/errors"
	"gocv.io/x/gocv"
)

// Window is a live display. Its methods must be called from the goroutine that created it.
type Window struct {
	name string
	win  *gocv.Window
}

// New opens a window with the given name.
func New(name string) *Window {
	return &Window{name: name, win: gocv.NewWindow(name)}
}

// Show draws img in the window.
func (w *Window) Show(img image.Image) error {
	if w.win == nil {
		return errors.Errorf("window %q is closed", w.name)
	}
	mat, err := gocv.ImageToMatRGB(img)
	if err != nil {
		return errors.Wrap(err, "cannot convert frame")
	}
	defer func() {
		//nolint:errcheck
		mat.Close()
	}()
	w.win.IMShow(mat)
	return nil
}

// ShowFrameRate puts the measured frame rate in the window title.
func (w *Window) ShowFrameRate(fps float64) {
	if w.win == nil {
		return
	}
	w.win.SetWindowTitle(fmt.Sprintf("Frame Rate: %.2f FPS", fps))
}

// WaitKey processes window events for up to delay milliseconds and returns the key pressed, or -1.
func (w *Window) WaitKey(delay int) int {
	if w.win == nil {
		return -1
	}
	return w.win.WaitKey(delay)
}

// Close destroys the window.
func (w *Window) Close() error {
	if w.win == nil {
		return nil
	}
	err := w.win.Close()
	w.win = nil
	return err
}
