package mdadapter

import (
	"bytes"
	"fmt"
	"html/template"
	"net/url"
	"strings"
	"time"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/renderer/html"
	"go.abhg.dev/goldmark/frontmatter"
	"gopkg.in/yaml.v2"
)

const (
	ManifestMarkdownName = "MANIFEST.md"
	ManifestHTMLName     = "index.html"
)

const pageTemplate = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>{{ .Title }}</title>
</head>
<body>
<p>Job {{ .JobID }}, created {{ .CreatedAt }}. Files: {{ .Files }}, failures: {{ .Failures }}.</p>
{{ .Content }}
</body>
</html>
`

// Header is the frontmatter of the manifest.
type Header struct {
	Title     string `yaml:"title"`
	JobID     string `yaml:"job_id"`
	CreatedAt string `yaml:"created_at"`
	Files     int    `yaml:"files"`
	Failures  int    `yaml:"failures"`
}

type section struct {
	title string
	paths []string
}

// Manifest lists what went into an archive, grouped by export unit.
type Manifest struct {
	Header
	sections []*section
	failures []string
}

func NewManifest(jobID string, createdAt time.Time) *Manifest {
	return &Manifest{
		Header: Header{
			Title:     "Export " + jobID,
			JobID:     jobID,
			CreatedAt: createdAt.UTC().Format(time.RFC3339),
		},
	}
}

// Section starts a new group. Files added afterwards belong to it.
func (m *Manifest) Section(title string) {
	m.sections = append(m.sections, &section{title: title})
}

func (m *Manifest) AddFile(archivePath string) {
	if len(m.sections) < 1 {
		m.Section("Files")
	}

	s := m.sections[len(m.sections)-1]
	s.paths = append(s.paths, archivePath)
	m.Files++
}

func (m *Manifest) AddFailure(msg string) {
	m.failures = append(m.failures, msg)
	m.Failures++
}

func (m *Manifest) Markdown() ([]byte, error) {
	header, err := yaml.Marshal(&m.Header)
	if err != nil {
		return nil, fmt.Errorf("cannot marshal manifest header: %w", err)
	}

	var b bytes.Buffer

	b.WriteString("---\n")
	b.Write(header)
	b.WriteString("---\n\n")
	fmt.Fprintf(&b, "# %s\n", m.Title)

	for _, s := range m.sections {
		fmt.Fprintf(&b, "\n## %s\n\n", s.title)

		if len(s.paths) < 1 {
			b.WriteString("No files.\n")

			continue
		}

		for _, p := range s.paths {
			fmt.Fprintf(&b, "- {{ file: %s }}\n", escapePath(p))
		}
	}

	if len(m.failures) > 0 {
		b.WriteString("\n## Failures\n\n")

		for _, f := range m.failures {
			fmt.Fprintf(&b, "- %s\n", strings.ReplaceAll(f, "\n", " "))
		}
	}

	return b.Bytes(), nil
}

type pageContext struct {
	Header
	Content template.HTML
}

type manifestRenderer struct {
	md   goldmark.Markdown
	tmpl *template.Template
}

func NewManifestRenderer() *manifestRenderer {
	md := goldmark.New(
		goldmark.WithExtensions(
			&frontmatter.Extender{},
			NewFilesExtension(),
		),
		goldmark.WithRendererOptions(
			html.WithXHTML(),
		),
	)

	return &manifestRenderer{
		md:   md,
		tmpl: template.Must(template.New("manifest").Parse(pageTemplate)),
	}
}

// Render returns the markdown manifest and the html page built from it.
func (r *manifestRenderer) Render(m *Manifest) ([]byte, []byte, error) {
	src, err := m.Markdown()
	if err != nil {
		return nil, nil, err
	}

	page, err := r.HTML(src)
	if err != nil {
		return nil, nil, err
	}

	return src, page, nil
}

// HTML converts a manifest in markdown to a standalone page.
func (r *manifestRenderer) HTML(src []byte) ([]byte, error) {
	pc := parser.NewContext()

	var content bytes.Buffer
	if err := r.md.Convert(src, &content, parser.WithContext(pc)); err != nil {
		return nil, fmt.Errorf("cannot convert markdown: %w", err)
	}

	ctx := pageContext{Content: template.HTML(content.String())}
	if fm := frontmatter.Get(pc); fm != nil {
		if err := fm.Decode(&ctx.Header); err != nil {
			return nil, fmt.Errorf("cannot decode frontmatter: %w", err)
		}
	}

	var page bytes.Buffer
	if err := r.tmpl.Execute(&page, &ctx); err != nil {
		return nil, fmt.Errorf("cannot build page: %w", err)
	}

	return page.Bytes(), nil
}

func escapePath(p string) string {
	parts := strings.Split(p, "/")
	for i := range parts {
		parts[i] = url.PathEscape(parts[i])
	}

	return strings.Join(parts, "/")
}
