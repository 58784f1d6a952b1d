// Package view renders the HTML pages and the discussion fragments that
// the JSON endpoints embed in their "html" field.
//
// Templates are compiled into the binary with embed and parsed once at
// startup. Each page is parsed together with base.html so it can fill the
// "content" block; fragments.html is parsed into every page as well, so a
// page can render the same comment markup the JSON endpoints return.
package view

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/sakif/videohub/internal/model"
)

//go:embed templates/*.html
var files embed.FS

// Post kinds select the URLs a fragment links to.
const (
	KindComment  = "comment"
	KindResponse = "response"
)

var pageNames = []string{"videos", "video", "stories", "documents", "document"}

// Renderer holds the parsed templates. It is safe for concurrent use.
type Renderer struct {
	pages     map[string]*template.Template
	fragments *template.Template
}

// PostItem is one comment or response as rendered in a list.
type PostItem struct {
	model.Post
	Kind string
}

// Author shadows the pointer method on Post so values render too.
func (p PostItem) Author() string { return p.Post.Author() }

func (p PostItem) RepliesURL() string {
	return fmt.Sprintf("/%ss/%s/replies", p.Kind, p.ID)
}

func (p PostItem) EditURL() string {
	return fmt.Sprintf("/%ss/%s/edit", p.Kind, p.ID)
}

func (p PostItem) DeleteURL() string {
	return fmt.Sprintf("/%ss/%s/delete", p.Kind, p.ID)
}

// ResponsesURL is only meaningful for comments.
func (p PostItem) ResponsesURL() string {
	return "/comments/" + p.ID + "/responses"
}

func (p PostItem) IsComment() bool { return p.Kind == KindComment }

var funcs = template.FuncMap{
	"date": func(t time.Time) string {
		return t.UTC().Format("Jan 2, 2006 15:04")
	},
	"add": func(a, b int) int { return a + b },
}

func New() (*Renderer, error) {
	fragments, err := template.New("fragments").Funcs(funcs).ParseFS(files, "templates/fragments.html")
	if err != nil {
		return nil, fmt.Errorf("view: parsing fragments: %w", err)
	}

	r := &Renderer{pages: make(map[string]*template.Template, len(pageNames)), fragments: fragments}
	for _, name := range pageNames {
		t, err := template.New(name).Funcs(funcs).ParseFS(files,
			"templates/base.html",
			"templates/fragments.html",
			"templates/"+name+".html",
		)
		if err != nil {
			return nil, fmt.Errorf("view: parsing %s: %w", name, err)
		}
		r.pages[name] = t
	}
	return r, nil
}

// Page writes the named page wrapped in the base layout.
func (r *Renderer) Page(w io.Writer, name string, data any) error {
	t, ok := r.pages[name]
	if !ok {
		return fmt.Errorf("view: unknown page %q", name)
	}
	return t.ExecuteTemplate(w, "base", data)
}

// Post renders a single item, as returned after add and edit.
func (r *Renderer) Post(kind string, p *model.Post) (string, error) {
	return r.fragment("post", &PostItem{Post: *p, Kind: kind})
}

// Posts renders a list of items, as returned by the read endpoints.
func (r *Renderer) Posts(kind string, posts []model.Post) (string, error) {
	return r.fragment("posts", PostItems(kind, posts))
}

// PostItems tags posts with kind for templates that embed the list.
func PostItems(kind string, posts []model.Post) []PostItem {
	items := make([]PostItem, len(posts))
	for i, p := range posts {
		items[i] = PostItem{Post: p, Kind: kind}
	}
	return items
}

func (r *Renderer) fragment(name string, data any) (string, error) {
	var buf bytes.Buffer
	if err := r.fragments.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("view: rendering %s: %w", name, err)
	}
	return buf.String(), nil
}

// Items converts a comment slice for Posts.
func Items(comments []model.Comment) []model.Post {
	out := make([]model.Post, len(comments))
	for i, c := range comments {
		out[i] = c.Post
	}
	return out
}

// ResponseItems converts a response slice for Posts.
func ResponseItems(responses []model.CommentResponse) []model.Post {
	out := make([]model.Post, len(responses))
	for i, r := range responses {
		out[i] = r.Post
	}
	return out
}
