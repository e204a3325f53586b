// Package site renders the static site and its relations index.
package site

import (
	"encoding/json"
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/Bitlatte/readnext/internal/content"
	"github.com/Bitlatte/readnext/internal/engine"
	"github.com/Bitlatte/readnext/internal/logger"
	"github.com/Bitlatte/readnext/internal/model"
	"github.com/Bitlatte/readnext/internal/relevance"
)

const (
	baseLayout       = "base.html"
	homeLayout       = "home.html"
	singleLayout     = "single.html"
	singlePostLayout = "single-post.html"
	listPostsLayout  = "list-posts.html"
	partialsDir      = "partials"

	// PostsType is the item type of files under content/posts.
	PostsType = "posts"

	// RelationsFile is written to the output directory on every build.
	RelationsFile = "relations.json"
)

// Options locate the site's inputs and outputs.
type Options struct {
	SiteTitle    string
	BaseURL      string
	ContentDir   string
	LayoutsDir   string
	StaticDir    string
	OutputDir    string
	RelatedLimit int
	Weights      relevance.Weights
}

// Relation is the relations index entry of one item.
type Relation struct {
	Related []model.RelatedLink `json:"related"`
	Outline []model.OutlineItem `json:"outline"`
}

// Result describes a finished build.
type Result struct {
	Site  *model.SiteData
	Pages int
}

// Builder renders a site from Markdown content.
type Builder struct {
	opts   Options
	loader *content.Loader
	log    logger.Logger
}

// NewBuilder returns a Builder for opts. Unset (all zero) weights fall back
// to the defaults.
func NewBuilder(opts Options, log logger.Logger) *Builder {
	if opts.Weights == (relevance.Weights{}) {
		opts.Weights = relevance.DefaultWeights()
	}
	return &Builder{opts: opts, loader: content.NewLoader(log), log: log}
}

// Build cleans the output directory, copies static assets, loads content,
// renders every item through the layouts and writes the relations index.
// Layouts are optional: without a layouts directory only the index is
// written.
func (b *Builder) Build() (*Result, error) {
	o := b.opts
	b.log.Info("Starting build",
		logger.String("output_dir", o.OutputDir),
		logger.String("base_url", o.BaseURL),
		logger.String("site_title", o.SiteTitle),
	)

	if _, err := os.Stat(o.ContentDir); os.IsNotExist(err) {
		return nil, fmt.Errorf("content directory %q not found", o.ContentDir)
	}

	if err := os.RemoveAll(o.OutputDir); err != nil {
		return nil, fmt.Errorf("remove output directory %q: %w", o.OutputDir, err)
	}
	if err := os.MkdirAll(o.OutputDir, os.ModePerm); err != nil {
		return nil, fmt.Errorf("create output directory %q: %w", o.OutputDir, err)
	}

	if o.StaticDir != "" {
		if _, err := os.Stat(o.StaticDir); err == nil {
			if err := copyDirContents(o.StaticDir, o.OutputDir); err != nil {
				return nil, fmt.Errorf("copy static assets: %w", err)
			}
			b.log.Debug("Copied static assets", logger.String("static_dir", o.StaticDir))
		}
	}

	items, err := b.loader.Load(o.ContentDir)
	if err != nil {
		return nil, err
	}
	site := NewSiteData(o.SiteTitle, o.BaseURL, items)

	eng := engine.New(relevance.NewRanker(o.Weights), nil, nil, b.log, engine.WithLimit(o.RelatedLimit))
	eng.SetCatalog(items)

	relations := make(map[string]Relation, len(items))
	for _, it := range items {
		scored, err := eng.RelatedStatic(it.Slug, 0)
		if err != nil {
			return nil, err
		}
		toc, err := eng.Outline(it.Slug)
		if err != nil {
			return nil, err
		}
		if toc == nil {
			toc = []model.OutlineItem{}
		}
		relations[it.Slug] = Relation{Related: RelatedLinks(scored), Outline: toc}
	}

	pages := 0
	if o.LayoutsDir != "" {
		if _, err := os.Stat(o.LayoutsDir); err == nil {
			pages, err = b.render(site, relations)
			if err != nil {
				return nil, err
			}
		} else {
			b.log.Warn("Layouts directory not found, skipping page rendering", logger.String("layouts_dir", o.LayoutsDir))
		}
	}

	if err := writeJSON(filepath.Join(o.OutputDir, RelationsFile), relations); err != nil {
		return nil, err
	}

	b.log.Info("Build completed", logger.Int("items", len(items)), logger.Int("pages", pages))
	return &Result{Site: site, Pages: pages}, nil
}

// NewSiteData groups items by type. Items are expected in display order.
func NewSiteData(title, baseURL string, items []*model.ContentItem) *model.SiteData {
	site := &model.SiteData{
		Title:         title,
		BaseURL:       baseURL,
		ContentItems:  items,
		Posts:         []*model.ContentItem{},
		ContentByType: make(map[string][]*model.ContentItem),
	}
	for _, it := range items {
		site.ContentByType[it.Type] = append(site.ContentByType[it.Type], it)
		if it.Type == PostsType {
			site.Posts = append(site.Posts, it)
		}
	}
	return site
}

// RelatedLinks converts ranked items into template and API links.
func RelatedLinks(scored []relevance.Scored) []model.RelatedLink {
	links := make([]model.RelatedLink, 0, len(scored))
	for _, s := range scored {
		links = append(links, model.RelatedLink{
			Slug:      s.Item.Slug,
			Title:     s.Item.Title,
			Permalink: s.Item.Permalink,
			Category:  s.Item.Category,
			Score:     s.Score,
		})
	}
	return links
}

func (b *Builder) render(site *model.SiteData, relations map[string]Relation) (int, error) {
	templates, err := parseLayouts(b.opts.LayoutsDir)
	if err != nil {
		return 0, err
	}

	pages := 0
	for _, it := range site.ContentItems {
		name := b.layoutFor(templates, it)
		if name == "" {
			return pages, fmt.Errorf("no layout for %q: neither %q nor %q is defined", it.Slug, it.Layout, baseLayout)
		}
		rel := relations[it.Slug]
		data := model.PageData{Site: site, Item: it, Related: rel.Related, Outline: rel.Outline}
		out := filepath.Join(b.opts.OutputDir, it.Permalink, "index.html")
		if err := execute(templates, name, out, data); err != nil {
			return pages, err
		}
		pages++
	}

	if templates.Lookup(homeLayout) != nil {
		if err := execute(templates, homeLayout, filepath.Join(b.opts.OutputDir, "index.html"), model.PageData{Site: site}); err != nil {
			return pages, err
		}
		pages++
	} else {
		b.log.Warn("Home layout not found, skipping homepage", logger.String("layout", homeLayout))
	}

	if templates.Lookup(listPostsLayout) != nil {
		out := filepath.Join(b.opts.OutputDir, PostsType, "index.html")
		if err := execute(templates, listPostsLayout, out, model.PageData{Site: site}); err != nil {
			return pages, err
		}
		pages++
	}
	return pages, nil
}

// layoutFor picks the frontmatter layout, then single-post.html for posts,
// then single.html, then base.html. It returns "" when none is defined.
func (b *Builder) layoutFor(templates *template.Template, it *model.ContentItem) string {
	candidates := []string{it.Layout}
	if it.Type == PostsType {
		candidates = append(candidates, singlePostLayout)
	}
	candidates = append(candidates, singleLayout, baseLayout)

	for _, name := range candidates {
		if name != "" && templates.Lookup(name) != nil {
			if it.Layout != "" && name != it.Layout {
				b.log.Warn("Frontmatter layout not found",
					logger.String("slug", it.Slug),
					logger.String("layout", it.Layout),
					logger.String("using", name))
			}
			return name
		}
	}
	return ""
}

// parseLayouts parses base.html with the partials first, then the remaining
// layouts, and home.html last so it can override shared blocks.
func parseLayouts(dir string) (*template.Template, error) {
	var base, home string
	var partials, others []string

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(strings.ToLower(d.Name()), ".html") {
			return nil
		}
		switch {
		case filepath.Dir(path) == filepath.Clean(dir) && d.Name() == baseLayout:
			base = path
		case filepath.Dir(path) == filepath.Clean(dir) && d.Name() == homeLayout:
			home = path
		case strings.HasPrefix(filepath.Dir(path), filepath.Join(dir, partialsDir)):
			partials = append(partials, path)
		default:
			others = append(others, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("find layouts in %q: %w", dir, err)
	}
	if base == "" {
		return nil, fmt.Errorf("%s not found in layouts directory %q", baseLayout, dir)
	}

	templates, err := template.ParseFiles(append([]string{base}, partials...)...)
	if err != nil {
		return nil, fmt.Errorf("parse base layout and partials: %w", err)
	}
	if len(others) > 0 {
		if templates, err = templates.ParseFiles(others...); err != nil {
			return nil, fmt.Errorf("parse layouts: %w", err)
		}
	}
	if home != "" {
		if templates, err = templates.ParseFiles(home); err != nil {
			return nil, fmt.Errorf("parse %s: %w", homeLayout, err)
		}
	}
	return templates, nil
}

func execute(templates *template.Template, name, path string, data model.PageData) error {
	if err := os.MkdirAll(filepath.Dir(path), os.ModePerm); err != nil {
		return fmt.Errorf("create directory for %q: %w", path, err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %q: %w", path, err)
	}
	defer f.Close()

	if err := templates.ExecuteTemplate(f, name, data); err != nil {
		return fmt.Errorf("execute layout %q into %q: %w", name, path, err)
	}
	return nil
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %q: %w", path, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %q: %w", path, err)
	}
	return nil
}

// copyDirContents recursively copies the contents of src into dst.
func copyDirContents(src, dst string) error {
	return filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return fmt.Errorf("relative path of %s: %w", path, err)
		}
		target := filepath.Join(dst, rel)

		if d.IsDir() {
			// Source directory permissions are not carried over; umask applies.
			if err := os.MkdirAll(target, os.ModePerm); err != nil {
				return fmt.Errorf("create directory %s: %w", target, err)
			}
			return nil
		}
		return copyFile(path, target)
	})
}

// copyFile copies one file, preserving its mode.
func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open %s: %w", src, err)
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return fmt.Errorf("stat %s: %w", src, err)
	}
	if err := os.MkdirAll(filepath.Dir(dst), os.ModePerm); err != nil {
		return fmt.Errorf("create directory for %s: %w", dst, err)
	}

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return fmt.Errorf("create %s: %w", dst, err)
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return fmt.Errorf("copy %s to %s: %w", src, dst, err)
	}
	return nil
}
