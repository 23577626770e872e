package pdf

// TextSpan is a single positioned text run extracted from a document.
// Spans are produced once per extraction pass and never mutated.
type TextSpan struct {
	Text     string  `json:"text"`
	FontSize float64 `json:"font_size"`
	Bold     bool    `json:"bold"`
	Page     int     `json:"page"` // 1-based
	Y        float64 `json:"y"`    // baseline position, used only for ordering within a page
}

// DocumentInfo describes an opened PDF document.
type DocumentInfo struct {
	Path      string `json:"path"`
	Name      string `json:"name"`
	Size      int64  `json:"size"`
	PageCount int    `json:"page_count"`
}

// ValidateResult is the outcome of validating a candidate document.
type ValidateResult struct {
	Valid   bool   `json:"valid"`
	Path    string `json:"path"`
	Message string `json:"message,omitempty"`
}

// Outline is one entry of a bookmark tree written back into a PDF on save.
type Outline struct {
	Title string    `json:"title"`
	Page  int       `json:"page"`
	Kids  []Outline `json:"kids,omitempty"`
}
