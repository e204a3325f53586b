package model

// PreferencesKey is the storage key a reader's profile is persisted under.
const PreferencesKey = "blog_preferences"

// HistoryLimit is the number of slugs kept in a profile's reading history.
const HistoryLimit = 50

// Profile is a reader's persisted preference and interaction state.
type Profile struct {
	ReadingHistory      []string           `json:"readingHistory"`
	Bookmarks           []string           `json:"bookmarks"`
	PreferredCategories []string           `json:"preferredCategories"`
	ReadingProgress     map[string]float64 `json:"readingProgress"`
	InteractionData     InteractionData    `json:"interactionData"`
}

// InteractionData holds per-slug counters. TimeSpent is in milliseconds.
type InteractionData struct {
	Clicks    map[string]int   `json:"clicks"`
	TimeSpent map[string]int64 `json:"timeSpent"`
}

// NewProfile returns an empty, structurally complete profile.
func NewProfile() Profile {
	var p Profile
	p.Normalize()
	return p
}

// Normalize replaces nil collections with empty ones, so a profile decoded
// from partial data is safe to mutate and serializes with every field.
func (p *Profile) Normalize() {
	if p.ReadingHistory == nil {
		p.ReadingHistory = []string{}
	}
	if p.Bookmarks == nil {
		p.Bookmarks = []string{}
	}
	if p.PreferredCategories == nil {
		p.PreferredCategories = []string{}
	}
	if p.ReadingProgress == nil {
		p.ReadingProgress = map[string]float64{}
	}
	if p.InteractionData.Clicks == nil {
		p.InteractionData.Clicks = map[string]int{}
	}
	if p.InteractionData.TimeSpent == nil {
		p.InteractionData.TimeSpent = map[string]int64{}
	}
}

// Clone returns a deep copy of p.
func (p Profile) Clone() Profile {
	out := Profile{
		ReadingHistory:      append([]string{}, p.ReadingHistory...),
		Bookmarks:           append([]string{}, p.Bookmarks...),
		PreferredCategories: append([]string{}, p.PreferredCategories...),
		ReadingProgress:     make(map[string]float64, len(p.ReadingProgress)),
		InteractionData: InteractionData{
			Clicks:    make(map[string]int, len(p.InteractionData.Clicks)),
			TimeSpent: make(map[string]int64, len(p.InteractionData.TimeSpent)),
		},
	}
	for k, v := range p.ReadingProgress {
		out.ReadingProgress[k] = v
	}
	for k, v := range p.InteractionData.Clicks {
		out.InteractionData.Clicks[k] = v
	}
	for k, v := range p.InteractionData.TimeSpent {
		out.InteractionData.TimeSpent[k] = v
	}
	return out
}

// IsBookmarked reports whether slug is bookmarked.
func (p Profile) IsBookmarked(slug string) bool {
	return contains(p.Bookmarks, slug)
}

// PrefersCategory reports whether category is among the preferred ones.
func (p Profile) PrefersCategory(category string) bool {
	return contains(p.PreferredCategories, category)
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
