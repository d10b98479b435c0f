package fake

import (
	"context"
	"image"
	"testing"

	"github.com/pkg/errors"
	"go.viam.com/test"

	"github.com/evsproject/headcount/camera"
)

func TestFakeCamera(t *testing.T) {
	ctx := context.Background()
	var cam camera.Source = NewCamera(0, 0)
	test.That(t, cam.Resolution(), test.ShouldResemble, image.Pt(640, 480))

	c := NewCamera(32, 16)
	img, err := c.Next(ctx)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, img.Bounds(), test.ShouldResemble, image.Rect(0, 0, 32, 16))
	test.That(t, img.RGBAAt(0, 0), test.ShouldResemble, c.color)
	test.That(t, c.Pulls(), test.ShouldEqual, 1)

	c.DeliverEmpty(2)
	for i := 0; i < 2; i++ {
		_, err = c.Next(ctx)
		test.That(t, errors.Is(err, camera.ErrEmptyFrame), test.ShouldBeTrue)
	}
	_, err = c.Next(ctx)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, c.Pulls(), test.ShouldEqual, 4)

	c.Unplug()
	_, err = c.Next(ctx)
	test.That(t, errors.Is(err, camera.ErrCaptureUnavailable), test.ShouldBeTrue)
	test.That(t, c.Reset(ctx), test.ShouldBeNil)
	test.That(t, c.Resets(), test.ShouldEqual, 1)
	_, err = c.Next(ctx)
	test.That(t, err, test.ShouldBeNil)

	test.That(t, c.Close(ctx), test.ShouldBeNil)
	_, err = c.Next(ctx)
	test.That(t, errors.Is(err, camera.ErrCaptureUnavailable), test.ShouldBeTrue)
	test.That(t, errors.Is(c.Reset(ctx), camera.ErrCaptureUnavailable), test.ShouldBeTrue)
}
