package palette

import (
	"fmt"
	"strconv"
)

// OverrideDocument is a set of per-series display overrides that paints the
// series of each palette index with that index's color.
type OverrideDocument struct {
	Overrides []Override `json:"overrides"`
}

// Override binds display properties to the series matched by Matcher.
type Override struct {
	Matcher    Matcher    `json:"matcher"`
	Properties []Property `json:"properties"`
}

// Matcher selects series by name.
type Matcher struct {
	ID      string `json:"id"`
	Options string `json:"options"`
}

// Property is a single display property.
type Property struct {
	ID    string     `json:"id"`
	Value ColorValue `json:"value"`
}

// ColorValue is a fixed series color.
type ColorValue struct {
	FixedColor string `json:"fixedColor"`
	Mode       string `json:"mode"`
}

// Overrides builds the override document for the palette.
func (p *Palette) Overrides() OverrideDocument {
	doc := OverrideDocument{Overrides: make([]Override, 0, p.Len())}
	for i, c := range p.colors {
		doc.Overrides = append(doc.Overrides, Override{
			Matcher: Matcher{ID: "byName", Options: strconv.Itoa(i)},
			Properties: []Property{{
				ID: "color",
				Value: ColorValue{
					FixedColor: fmt.Sprintf("rgba(%d, %d, %d, 1)", c.R, c.G, c.B),
					Mode:       "fixed",
				},
			}},
		})
	}
	return doc
}
