package match

import (
	"errors"
	"fmt"
)

// ErrInvalidQuery is wrapped by every Query validation failure.
var ErrInvalidQuery = errors.New("invalid match query")

// DimensionError reports a template that cannot be aligned against a
// source: it is larger in at least one axis, or the channel layouts differ.
type DimensionError struct {
	TemplateWidth    int
	TemplateHeight   int
	TemplateChannels int
	SourceWidth      int
	SourceHeight     int
	SourceChannels   int
}

func (e *DimensionError) Error() string {
	if e.TemplateChannels != e.SourceChannels {
		return fmt.Sprintf("template has %d channel(s) but source has %d",
			e.TemplateChannels, e.SourceChannels)
	}
	return fmt.Sprintf("template %dx%d does not fit in source %dx%d",
		e.TemplateWidth, e.TemplateHeight, e.SourceWidth, e.SourceHeight)
}

func invalidQuery(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidQuery, fmt.Sprintf(format, args...))
}
