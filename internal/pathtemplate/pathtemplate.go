// FilePath: internal/pathtemplate/pathtemplate.go

// Package pathtemplate renders operator-supplied remote path templates
// over a closed set of named fields. Unknown placeholders are rejected
// when the configuration is validated, not when a job is dispatched.
package pathtemplate

import (
	"fmt"
	"strings"
	"time"
)

// Field names accepted in templates.
const (
	FieldTimestamp  = "timestamp"
	FieldTS         = "ts" // shortcut for timestamp
	FieldExt        = "ext"
	FieldDayDate    = "day_date"
	FieldCameraUUID = "camera_uuid"
)

const timestampFormat = "20060102_150405"

// Fields carries the values substituted into a template.
type Fields struct {
	Timestamp  time.Time
	Ext        string
	DayDate    string
	CameraUUID string
}

var knownFields = map[string]struct{}{
	FieldTimestamp:  {},
	FieldTS:         {},
	FieldExt:        {},
	FieldDayDate:    {},
	FieldCameraUUID: {},
}

// Validate parses tmpl and returns an error naming the first unknown or
// malformed placeholder. An empty template is valid (renders empty).
func Validate(tmpl string) error {
	_, err := parse(tmpl)
	return err
}

// Render substitutes fields into tmpl. Callers must have validated the
// template beforehand; Render still fails rather than emitting a
// placeholder verbatim.
func Render(tmpl string, f Fields) (string, error) {
	segs, err := parse(tmpl)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	for _, seg := range segs {
		if !seg.field {
			b.WriteString(seg.text)
			continue
		}
		switch seg.text {
		case FieldTimestamp, FieldTS:
			b.WriteString(f.Timestamp.Format(timestampFormat))
		case FieldExt:
			b.WriteString(f.Ext)
		case FieldDayDate:
			b.WriteString(f.DayDate)
		case FieldCameraUUID:
			b.WriteString(f.CameraUUID)
		}
	}
	return b.String(), nil
}

type segment struct {
	text  string
	field bool
}

func parse(tmpl string) ([]segment, error) {
	var segs []segment
	rest := tmpl

	for len(rest) > 0 {
		open := strings.IndexByte(rest, '{')
		if open < 0 {
			if strings.IndexByte(rest, '}') >= 0 {
				return nil, fmt.Errorf("unmatched '}' in template %q", tmpl)
			}
			segs = append(segs, segment{text: rest})
			break
		}

		if open > 0 {
			lit := rest[:open]
			if strings.IndexByte(lit, '}') >= 0 {
				return nil, fmt.Errorf("unmatched '}' in template %q", tmpl)
			}
			segs = append(segs, segment{text: lit})
		}

		close := strings.IndexByte(rest[open:], '}')
		if close < 0 {
			return nil, fmt.Errorf("unterminated placeholder in template %q", tmpl)
		}

		name := rest[open+1 : open+close]
		if _, ok := knownFields[name]; !ok {
			return nil, fmt.Errorf("unknown placeholder {%s} in template %q", name, tmpl)
		}
		segs = append(segs, segment{text: name, field: true})

		rest = rest[open+close+1:]
	}

	return segs, nil
}
