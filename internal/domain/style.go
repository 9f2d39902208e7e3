package domain

type StyleFamily string

const (
	StyleFamilyParagraph StyleFamily = "paragraph"
	StyleFamilyText      StyleFamily = "text"
	StyleFamilyGraphic   StyleFamily = "graphic"
	StyleFamilyTable     StyleFamily = "table"
)

type Style struct {
	Name       string            `json:"name"`
	Family     StyleFamily       `json:"family"`
	Automatic  bool              `json:"automatic,omitempty"`
	Properties map[string]string `json:"properties,omitempty"`
}

type StyleKey struct {
	Name   string
	Family StyleFamily
}

func (s Style) Key() StyleKey {
	return StyleKey{Name: s.Name, Family: s.Family}
}
