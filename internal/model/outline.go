package model

// OutlineItem is one heading of a rendered document's table of contents.
// Children are the following headings of strictly greater level, up to the
// next heading of equal or lesser level.
type OutlineItem struct {
	ID       string        `json:"id"`
	Text     string        `json:"text"`
	Level    int           `json:"level"`
	Children []OutlineItem `json:"children,omitempty"`
}
