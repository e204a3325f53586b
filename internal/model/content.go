package model

import (
	"html/template"
	"time"
)

// ContentItem is a single published piece of content (a blog post or page).
type ContentItem struct {
	ID          string
	Slug        string
	Title       string
	Category    string
	Tags        []string
	Author      string
	Published   time.Time
	Type        string
	SourcePath  string
	Permalink   string
	ContentHTML template.HTML
	Frontmatter map[string]interface{}
	Summary     string
	Layout      string
}

// HasTag reports whether the item carries tag.
func (c *ContentItem) HasTag(tag string) bool {
	for _, t := range c.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// SiteData holds all site-wide data, including configuration and content.
type SiteData struct {
	Title         string
	BaseURL       string
	ContentItems  []*ContentItem
	Posts         []*ContentItem
	ContentByType map[string][]*ContentItem
}
