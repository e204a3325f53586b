// Package content collects Markdown posts with frontmatter into content items.
package content

import (
	"bytes"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/adrg/frontmatter"
	"github.com/google/uuid"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	gmhtml "github.com/yuin/goldmark/renderer/html"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/Bitlatte/readnext/internal/logger"
	"github.com/Bitlatte/readnext/internal/model"
)

// ErrDuplicateSlug is returned when two files resolve to the same slug.
var ErrDuplicateSlug = errors.New("duplicate slug")

// dateFormats are tried in order when parsing a frontmatter date.
var dateFormats = []string{"2006-01-02T15:04:05Z07:00", "2006-01-02T15:04:05", "2006-01-02 15:04:05", "2006-01-02"}

// Loader turns a directory of Markdown files into content items.
type Loader struct {
	md  goldmark.Markdown
	log logger.Logger
}

// NewLoader returns a Loader rendering GFM with automatic heading ids.
func NewLoader(log logger.Logger) *Loader {
	return &Loader{
		md: goldmark.New(
			goldmark.WithExtensions(extension.GFM),
			goldmark.WithParserOptions(
				parser.WithAutoHeadingID(),
			),
			goldmark.WithRendererOptions(
				gmhtml.WithHardWraps(),
			),
		),
		log: log,
	}
}

// Load walks dir for *.md files and returns their items sorted newest first,
// undated items last.
func (l *Loader) Load(dir string) ([]*model.ContentItem, error) {
	if _, err := os.Stat(dir); err != nil {
		return nil, fmt.Errorf("content directory '%s' not usable: %w", dir, err)
	}

	var items []*model.ContentItem
	bySlug := make(map[string]string)

	walkErr := filepath.WalkDir(dir, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return fmt.Errorf("error accessing path '%s' during walk: %w", path, walkErr)
		}
		if d.IsDir() || !strings.HasSuffix(strings.ToLower(d.Name()), ".md") {
			return nil
		}

		item, err := l.LoadFile(dir, path)
		if err != nil {
			return err
		}
		if prev, ok := bySlug[item.Slug]; ok {
			return fmt.Errorf("%w: %q used by '%s' and '%s'", ErrDuplicateSlug, item.Slug, prev, path)
		}
		bySlug[item.Slug] = path
		items = append(items, item)
		return nil
	})
	if walkErr != nil {
		return nil, fmt.Errorf("error during content collection walk: %w", walkErr)
	}

	SortByDate(items)
	l.log.Info("Collected content items", logger.Int("count", len(items)), logger.String("dir", dir))
	return items, nil
}

// LoadFile parses a single Markdown file under root.
func (l *Loader) LoadFile(root, path string) (*model.ContentItem, error) {
	fileBytes, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file '%s': %w", path, err)
	}

	var fm map[string]interface{}
	body, fmErr := frontmatter.Parse(bytes.NewReader(fileBytes), &fm)
	if fmErr != nil {
		l.log.Warn("Could not parse frontmatter, treating as pure markdown",
			logger.String("path", path), logger.Error(fmErr))
		body = fileBytes
	}
	if fm == nil {
		fm = make(map[string]interface{})
	}

	var htmlBuffer bytes.Buffer
	if err := l.md.Convert(body, &htmlBuffer); err != nil {
		return nil, fmt.Errorf("failed to convert markdown to HTML for file '%s': %w", path, err)
	}

	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	relPath, _ := filepath.Rel(root, path)

	slug := stringField(fm, "slug")
	if slug == "" {
		slug = base
	}

	id := stringField(fm, "id")
	if id == "" {
		id = uuid.NewSHA1(uuid.NameSpaceURL, []byte(slug)).String()
	}

	item := &model.ContentItem{
		ID:          id,
		Slug:        slug,
		Title:       title(fm, base),
		Category:    stringField(fm, "category"),
		Tags:        tagsField(fm),
		Author:      stringField(fm, "author"),
		Published:   l.date(fm, path),
		Type:        itemType(fm, relPath),
		SourcePath:  path,
		Permalink:   permalink(relPath),
		ContentHTML: template.HTML(htmlBuffer.String()),
		Frontmatter: fm,
		Summary:     stringField(fm, "summary"),
		Layout:      stringField(fm, "layout"),
	}
	return item, nil
}

// SortByDate orders items newest first; undated items go last, keeping their
// relative order.
func SortByDate(items []*model.ContentItem) {
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].Published.IsZero() {
			return false
		}
		if items[j].Published.IsZero() {
			return true
		}
		return items[i].Published.After(items[j].Published)
	})
}

func stringField(fm map[string]interface{}, key string) string {
	if v, ok := fm[key].(string); ok {
		return strings.TrimSpace(v)
	}
	return ""
}

// tagsField accepts either a YAML list or a comma separated string.
func tagsField(fm map[string]interface{}) []string {
	var raw []string
	switch v := fm["tags"].(type) {
	case []interface{}:
		for _, t := range v {
			if s, ok := t.(string); ok {
				raw = append(raw, s)
			}
		}
	case []string:
		raw = v
	case string:
		raw = strings.Split(v, ",")
	}

	tags := make([]string, 0, len(raw))
	for _, t := range raw {
		if t = strings.TrimSpace(t); t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}

func title(fm map[string]interface{}, base string) string {
	if t := stringField(fm, "title"); t != "" {
		return t
	}
	tempTitle := strings.ReplaceAll(strings.ReplaceAll(base, "-", " "), "_", " ")
	return cases.Title(language.English).String(tempTitle)
}

// itemType is the first directory under the content root, unless the
// frontmatter names a type.
func itemType(fm map[string]interface{}, relPath string) string {
	if t := stringField(fm, "type"); t != "" {
		return t
	}
	parts := strings.Split(filepath.Dir(relPath), string(filepath.Separator))
	if len(parts) > 0 && parts[0] != "." && parts[0] != "" {
		return parts[0]
	}
	return "page"
}

func permalink(relPath string) string {
	p := "/" + filepath.ToSlash(strings.TrimSuffix(relPath, filepath.Ext(relPath)))
	p = filepath.ToSlash(filepath.Clean(p))
	if !strings.HasSuffix(p, "/") {
		p += "/"
	}
	return p
}

func (l *Loader) date(fm map[string]interface{}, path string) time.Time {
	switch v := fm["date"].(type) {
	case time.Time:
		return v
	case string:
		for _, format := range dateFormats {
			if t, err := time.Parse(format, v); err == nil {
				return t
			}
		}
		l.log.Warn("Could not parse date, use YYYY-MM-DD or RFC3339",
			logger.String("path", path), logger.String("date", v))
	}
	return time.Time{}
}
