package encoder

import (
	"strings"
	"time"
)

// DefaultFilenameTemplate is used when the caller supplies none.
const DefaultFilenameTemplate = "capture-{timestamp}"

// Filename expands a filename template. Recognised placeholders:
//
//	{timestamp}  full sortable timestamp, 2006-01-02T15-04-05
//	{date}       2006-01-02
//	{time}       15-04-05
//	{format}     the format name
//
// Unrecognised literal braces are left as-is. A missing extension is
// appended based on the format.
func Filename(tmpl string, f Format, now time.Time) string {
	if tmpl == "" {
		tmpl = DefaultFilenameTemplate
	}

	r := strings.NewReplacer(
		"{timestamp}", now.Format("2006-01-02T15-04-05"),
		"{date}", now.Format("2006-01-02"),
		"{time}", now.Format("15-04-05"),
		"{format}", string(f),
	)
	name := r.Replace(tmpl)

	if !hasKnownExtension(name) {
		name += Extension(f)
	}
	return name
}

func hasKnownExtension(name string) bool {
	lower := strings.ToLower(name)
	for _, ext := range []string{".png", ".jpg", ".jpeg", ".pdf"} {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}
