// Package export writes the clip list as an edit decision list so the
// sub-clips can be conformed in an editor.
package export

import (
	"fmt"
	"math"
	"strings"

	"github.com/studyslice/studyslice/internal/catalog"
)

// DefaultFrameRate is used when the caller passes a non-positive rate.
const DefaultFrameRate = 30.0

// GenerateEDL renders clips as a CMX3600 EDL. Source timecodes come from
// the clip bounds; on the record side the clips are laid end to end.
func GenerateEDL(clips []catalog.Clip, title string, frameRate float64) string {
	if frameRate <= 0 {
		frameRate = DefaultFrameRate
	}
	fps := int(math.Round(frameRate))

	fcm := "FCM: NON-DROP FRAME"
	if isDropFrame(frameRate) {
		fcm = "FCM: DROP FRAME"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "TITLE: %s\n%s\n\n", title, fcm)

	record := 0.0
	for i, c := range clips {
		length := c.EndSeconds - c.StartSeconds
		fmt.Fprintf(&b, "%03d  %-8s %-5s C        %s %s %s %s\n",
			i+1, "AX", "V",
			timecode(c.StartSeconds, fps), timecode(c.EndSeconds, fps),
			timecode(record, fps), timecode(record+length, fps),
		)
		fmt.Fprintf(&b, "* FROM CLIP NAME:  %s\n", c.Title)
		if c.MediaReference != "" {
			fmt.Fprintf(&b, "* SOURCE FILE:  %s\n", c.MediaReference)
		}
		record += length
	}
	return b.String()
}

func isDropFrame(rate float64) bool {
	return math.Abs(rate-29.97) < 0.01 || math.Abs(rate-59.94) < 0.01
}

// timecode formats seconds as HH:MM:SS:FF.
func timecode(seconds float64, fps int) string {
	frames := int(math.Round(seconds * float64(fps)))
	ff := frames % fps
	secs := frames / fps
	return fmt.Sprintf("%02d:%02d:%02d:%02d", secs/3600, secs/60%60, secs%60, ff)
}
