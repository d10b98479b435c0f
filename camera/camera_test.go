package camera

import (
	"testing"

	"github.com/pkg/errors"
	"go.viam.com/test"
)

func TestIsTransient(t *testing.T) {
	test.That(t, IsTransient(ErrEmptyFrame), test.ShouldBeTrue)
	test.That(t, IsTransient(errors.Wrap(ErrEmptyFrame, "device 0")), test.ShouldBeTrue)
	test.That(t, IsTransient(ErrCaptureUnavailable), test.ShouldBeFalse)
	test.That(t, IsTransient(nil), test.ShouldBeFalse)
}
