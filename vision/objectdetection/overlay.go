package objectdetection

import (
	"fmt"
	"image"
	"math"
	"time"

	"github.com/fogleman/gg"

	"github.com/evsproject/headcount/rimage"
)

// TimestampLayout is how the capture time is printed on frames.
const TimestampLayout = "2006-01-02 15:04:05"

const (
	boxStrokeWidth    = 2
	headCountFontSize = 24
	timestampFontSize = 28
	textMargin        = 10
	headCountTop      = 30
	outlineOffset     = 2
)

// Composite draws faces, the head count and ts onto frame in place. The result depends only on its
// arguments.
func Composite(frame *image.RGBA, faces FaceSet, ts time.Time) {
	dc := gg.NewContextForRGBA(frame)
	for _, f := range faces.faces {
		rimage.DrawRectangleEmpty(dc, f.Rect, rimage.Green, boxStrokeWidth)
	}
	drawHeadCount(dc, faces.Len())
	drawTimestamp(dc, ts, frame.Bounds().Size())
}

// HeadCountText is the caption for n faces.
func HeadCountText(n int) string {
	return fmt.Sprintf("Head count: %d", n)
}

func drawHeadCount(dc *gg.Context, n int) {
	text := HeadCountText(n)
	_, textH := rimage.MeasureString(dc, text, headCountFontSize)
	org := image.Pt(textMargin, headCountTop+int(math.Ceil(textH)))
	rimage.DrawStringThick(dc, text, org.Add(image.Pt(outlineOffset, outlineOffset)), rimage.Black, headCountFontSize, 2)
	rimage.DrawStringThick(dc, text, org, rimage.White, headCountFontSize, 1)
}

func drawTimestamp(dc *gg.Context, ts time.Time, size image.Point) {
	text := ts.Format(TimestampLayout)
	textW, _ := rimage.MeasureString(dc, text, timestampFontSize)
	org := image.Pt(size.X-int(math.Ceil(textW))-textMargin, size.Y-textMargin)
	rimage.DrawString(dc, text, org, rimage.White, timestampFontSize)
}
