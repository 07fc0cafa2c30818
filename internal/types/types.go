package types

// DocumentType identifies the container format of a submitted resume
type DocumentType string

const (
	DocumentTypePDF  DocumentType = "pdf"
	DocumentTypeDOCX DocumentType = "docx"
)

// Glyph is one rendered character (or short run) with its geometry and colors.
// Coordinates are in points with the origin at the bottom-left of the page.
type Glyph struct {
	Text      string  `json:"text"`
	PageIndex int     `json:"pageIndex"`
	X0        float64 `json:"x0"`
	Y0        float64 `json:"y0"`
	X1        float64 `json:"x1"`
	Y1        float64 `json:"y1"`
	FontSize  float64 `json:"fontSize"`
	FillColor string  `json:"fillColor,omitempty"` // hex, empty when unknown
	BgColor   string  `json:"bgColor,omitempty"`   // hex, empty when unknown
	Hidden    bool    `json:"hidden,omitempty"`    // explicitly hidden by the format (docx w:vanish)
}

// Page carries the dimensions used for off-page checks
type Page struct {
	Index  int     `json:"index"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// ContentStreamOperator is one literal PDF drawing instruction with its operands
type ContentStreamOperator struct {
	PageIndex int      `json:"pageIndex"`
	Operator  string   `json:"operator"`
	Operands  []string `json:"operands"`
}

// Document is the immutable output of extraction and the sole input of detection.
// A document that could not be decoded is represented by empty slices and text.
type Document struct {
	Type      DocumentType            `json:"type"`
	Pages     []Page                  `json:"pages"`
	Glyphs    []Glyph                 `json:"glyphs"`
	Operators []ContentStreamOperator `json:"operators"`
	Text      string                  `json:"text"`
}

// PageByIndex returns the page with the given index.
func (d *Document) PageByIndex(index int) (Page, bool) {
	if index >= 0 && index < len(d.Pages) && d.Pages[index].Index == index {
		return d.Pages[index], true
	}
	for _, p := range d.Pages {
		if p.Index == index {
			return p, true
		}
	}
	return Page{}, false
}

// Profile is structured resume data produced by an upstream parser
type Profile struct {
	Skills          []string `json:"skills" mapstructure:"skills"`
	YearsExperience float64  `json:"yearsExperience" mapstructure:"yearsExperience"`
	Email           string   `json:"email,omitempty" mapstructure:"email"`
	Phone           string   `json:"phone,omitempty" mapstructure:"phone"`
}
