// Package content loads the knowledge-base articles surfaced by search. Each
// article is a markdown file with YAML front matter; bodies are rendered with
// goldmark and sanitized before they leave the package.
package content

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"gopkg.in/yaml.v3"

	"github.com/JakeFAU/adhesive-catalog/internal/catalog"
)

//go:embed articles/*.md
var bundled embed.FS

const maxExcerptRunes = 200

type frontMatter struct {
	ID       string `yaml:"id"`
	Title    string `yaml:"title"`
	Excerpt  string `yaml:"excerpt"`
	Image    string `yaml:"image"`
	Category string `yaml:"category"`
	Order    int    `yaml:"order"`
}

// Library reads articles from a filesystem.
type Library struct {
	fsys     fs.FS
	dir      string
	markdown goldmark.Markdown
	html     *bluemonday.Policy
	text     *bluemonday.Policy
}

// NewBundled returns a Library over the articles compiled into the binary.
func NewBundled() *Library {
	return New(bundled, "articles")
}

// New returns a Library reading *.md files from dir inside fsys.
func New(fsys fs.FS, dir string) *Library {
	if dir == "" {
		dir = "."
	}
	return &Library{
		fsys:     fsys,
		dir:      dir,
		markdown: goldmark.New(goldmark.WithExtensions(extension.GFM)),
		html:     newArticlePolicy(),
		text:     bluemonday.StrictPolicy(),
	}
}

// LoadArticles implements catalog.ArticleSource. Articles are ordered by their
// front matter order, then by file name.
func (l *Library) LoadArticles(ctx context.Context) ([]catalog.Article, error) {
	entries, err := fs.ReadDir(l.fsys, l.dir)
	if err != nil {
		return nil, fmt.Errorf("content: list %s: %w", l.dir, err)
	}

	type ordered struct {
		order int
		name  string
		art   catalog.Article
	}
	var loaded []ordered
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if entry.IsDir() || !strings.EqualFold(path.Ext(entry.Name()), ".md") {
			continue
		}
		art, order, err := l.read(path.Join(l.dir, entry.Name()))
		if err != nil {
			return nil, err
		}
		loaded = append(loaded, ordered{order: order, name: entry.Name(), art: art})
	}
	sort.SliceStable(loaded, func(i, j int) bool {
		if loaded[i].order != loaded[j].order {
			return loaded[i].order < loaded[j].order
		}
		return loaded[i].name < loaded[j].name
	})

	articles := make([]catalog.Article, 0, len(loaded))
	for _, o := range loaded {
		articles = append(articles, o.art)
	}
	return articles, nil
}

func (l *Library) read(file string) (catalog.Article, int, error) {
	data, err := fs.ReadFile(l.fsys, file)
	if err != nil {
		return catalog.Article{}, 0, fmt.Errorf("content: read %s: %w", file, err)
	}
	fm, body := splitFrontMatter(string(data))
	front := frontMatter{}
	if strings.TrimSpace(fm) != "" {
		if err := yaml.Unmarshal([]byte(fm), &front); err != nil {
			return catalog.Article{}, 0, fmt.Errorf("content: parse front matter %s: %w", file, err)
		}
	}

	var rendered bytes.Buffer
	if err := l.markdown.Convert([]byte(body), &rendered); err != nil {
		return catalog.Article{}, 0, fmt.Errorf("content: render %s: %w", file, err)
	}
	html := l.html.SanitizeBytes(rendered.Bytes())

	id := strings.TrimSpace(front.ID)
	if id == "" {
		id = strings.TrimSuffix(path.Base(file), path.Ext(file))
	}
	title := strings.TrimSpace(front.Title)
	if title == "" {
		title = prettifySlug(id)
	}
	excerpt := strings.TrimSpace(front.Excerpt)
	if excerpt == "" {
		excerpt = l.firstParagraph(html)
	}
	if excerpt == "" {
		return catalog.Article{}, 0, errors.New("content: " + file + " has no excerpt and no body")
	}

	return catalog.Article{
		ID:       id,
		Title:    title,
		Excerpt:  excerpt,
		Image:    strings.TrimSpace(front.Image),
		Category: strings.TrimSpace(front.Category),
		HTML:     string(html),
	}, front.Order, nil
}

// firstParagraph returns the text of the first <p> in rendered HTML, trimmed to
// maxExcerptRunes.
func (l *Library) firstParagraph(rendered []byte) string {
	start := bytes.Index(rendered, []byte("<p>"))
	if start < 0 {
		return ""
	}
	rest := rendered[start:]
	if end := bytes.Index(rest, []byte("</p>")); end >= 0 {
		rest = rest[:end]
	}
	text := strings.Join(strings.Fields(l.text.Sanitize(string(rest))), " ")
	if runes := []rune(text); len(runes) > maxExcerptRunes {
		text = strings.TrimSpace(string(runes[:maxExcerptRunes])) + "…"
	}
	return text
}

func newArticlePolicy() *bluemonday.Policy {
	policy := bluemonday.UGCPolicy()
	policy.AllowElements("figure", "figcaption")
	policy.AllowAttrs("loading").OnElements("img")
	policy.RequireNoFollowOnLinks(true)
	return policy
}

func splitFrontMatter(input string) (string, string) {
	input = strings.TrimLeft(input, "\ufeff")
	lines := strings.Split(input, "\n")
	if strings.TrimSpace(lines[0]) != "---" {
		return "", input
	}
	for i := 1; i < len(lines); i++ {
		if strings.TrimSpace(lines[i]) == "---" {
			fm := strings.Join(lines[1:i], "\n")
			body := strings.Join(lines[i+1:], "\n")
			return fm, strings.TrimLeft(body, "\n\r")
		}
	}
	return "", input
}

func prettifySlug(slug string) string {
	parts := strings.Split(slug, "-")
	for i, part := range parts {
		if part == "" {
			continue
		}
		parts[i] = strings.ToUpper(part[:1]) + part[1:]
	}
	return strings.Join(parts, " ")
}
