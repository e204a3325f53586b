package prefs

import (
	"errors"
	"fmt"

	"github.com/Bitlatte/readnext/internal/model"
)

// Action names an interaction kind.
type Action string

const (
	ActionView     Action = "view"
	ActionBookmark Action = "bookmark"
	ActionScroll   Action = "scroll"
	ActionShare    Action = "share"
)

// BookmarkAction says whether a bookmark event adds or removes.
type BookmarkAction string

const (
	BookmarkAdd    BookmarkAction = "add"
	BookmarkRemove BookmarkAction = "remove"
)

// ErrInvalidEvent is returned for events that cannot be applied.
var ErrInvalidEvent = errors.New("invalid event")

// Event is one reader interaction. Only the fields relevant to Action are
// read: Category for view, Bookmark for bookmark, ScrollPercentage and
// TimeOnPage (milliseconds) for scroll, Platform for share.
type Event struct {
	Action           Action         `json:"action"`
	Slug             string         `json:"slug"`
	Category         string         `json:"category,omitempty"`
	Bookmark         BookmarkAction `json:"bookmark,omitempty"`
	ScrollPercentage *float64       `json:"scrollPercentage,omitempty"`
	TimeOnPage       *int64         `json:"timeOnPage,omitempty"`
	Platform         string         `json:"platform,omitempty"`
}

// Validate reports whether e can be applied to a profile.
func (e Event) Validate() error {
	if e.Slug == "" {
		return fmt.Errorf("%w: slug is required", ErrInvalidEvent)
	}
	switch e.Action {
	case ActionView, ActionScroll, ActionShare:
		return nil
	case ActionBookmark:
		if e.Bookmark != BookmarkAdd && e.Bookmark != BookmarkRemove {
			return fmt.Errorf("%w: bookmark must be %q or %q", ErrInvalidEvent, BookmarkAdd, BookmarkRemove)
		}
		return nil
	default:
		return fmt.Errorf("%w: unknown action %q", ErrInvalidEvent, e.Action)
	}
}

// Apply mutates p according to e. limit caps the reading history.
func Apply(p *model.Profile, e Event, limit int) {
	p.Normalize()

	switch e.Action {
	case ActionView:
		if !contains(p.ReadingHistory, e.Slug) {
			p.ReadingHistory = append([]string{e.Slug}, p.ReadingHistory...)
		}
		if limit > 0 && len(p.ReadingHistory) > limit {
			p.ReadingHistory = p.ReadingHistory[:limit]
		}
		if e.Category != "" && !contains(p.PreferredCategories, e.Category) {
			p.PreferredCategories = append(p.PreferredCategories, e.Category)
		}

	case ActionBookmark:
		switch e.Bookmark {
		case BookmarkAdd:
			if !contains(p.Bookmarks, e.Slug) {
				p.Bookmarks = append(p.Bookmarks, e.Slug)
			}
		case BookmarkRemove:
			p.Bookmarks = without(p.Bookmarks, e.Slug)
		}

	case ActionScroll:
		if e.ScrollPercentage != nil {
			p.ReadingProgress[e.Slug] = *e.ScrollPercentage
		}
		if e.TimeOnPage != nil {
			p.InteractionData.TimeSpent[e.Slug] = *e.TimeOnPage
		}

	case ActionShare:
		p.InteractionData.Clicks[e.Slug]++
	}
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func without(list []string, s string) []string {
	out := list[:0:0]
	for _, v := range list {
		if v != s {
			out = append(out, v)
		}
	}
	if out == nil {
		out = []string{}
	}
	return out
}
