package model

// RelatedLink is one ranked related post as exposed to templates and the API.
type RelatedLink struct {
	Slug      string `json:"slug"`
	Title     string `json:"title"`
	Permalink string `json:"permalink"`
	Category  string `json:"category,omitempty"`
	Score     int    `json:"score"`
}

// PageData is the template context for a single rendered post.
type PageData struct {
	Site    *SiteData
	Item    *ContentItem
	Related []RelatedLink
	Outline []OutlineItem
}
