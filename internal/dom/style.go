package dom

import (
	"fmt"
	"strings"
)

// BackgroundImage returns the computed background image of el ("" or "none"
// when there is none). Live snapshots carry the value the browser computed;
// markup snapshots only see inline style declarations. An error means the
// style of this element could not be computed.
func (d *Document) BackgroundImage(el Element) (string, error) {
	if d.live != nil {
		p := d.live[el.Selection().Get(0)]
		if p == nil {
			return "", nil
		}
		if p.styleError != "" {
			return "", fmt.Errorf("computed style of <%s> unavailable: %s", el.Tag(), p.styleError)
		}
		return p.background, nil
	}
	return inlineBackground(el.Attr("style")), nil
}

// inlineBackground picks background-image out of a style attribute, falling
// back to the background shorthand.
func inlineBackground(style string) string {
	var shorthand string
	for _, decl := range strings.Split(style, ";") {
		name, value, ok := strings.Cut(decl, ":")
		if !ok {
			continue
		}
		value = strings.TrimSpace(value)
		switch strings.ToLower(strings.TrimSpace(name)) {
		case "background-image":
			return value
		case "background":
			shorthand = value
		}
	}
	return shorthand
}
