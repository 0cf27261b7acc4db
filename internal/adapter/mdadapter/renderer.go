package mdadapter

import (
	"fmt"
	"net/url"
	"path"

	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/renderer"
	"github.com/yuin/goldmark/util"
)

type fileLinkRenderer struct{}

func NewFileLinkRenderer() renderer.NodeRenderer {
	return &fileLinkRenderer{}
}

func (r *fileLinkRenderer) RegisterFuncs(reg renderer.NodeRendererFuncRegisterer) {
	reg.Register(KindFileLink, r.renderFileLink)
}

func (r *fileLinkRenderer) renderFileLink(w util.BufWriter, source []byte, n ast.Node, entering bool) (ast.WalkStatus, error) {
	if !entering {
		return ast.WalkContinue, nil
	}

	link, ok := n.(*FileLink)
	if !ok {
		return ast.WalkStop, fmt.Errorf("unexpected node %T, expected *FileLink", n)
	}

	name, err := url.PathUnescape(path.Base(link.Path))
	if err != nil {
		name = path.Base(link.Path)
	}

	_, _ = w.WriteString(`<a class="file" href="`)
	_, _ = w.Write(util.EscapeHTML(util.URLEscape([]byte(link.Path), false)))
	_, _ = w.WriteString(`">`)
	_, _ = w.Write(util.EscapeHTML([]byte(name)))
	_, _ = w.WriteString(`</a>`)

	return ast.WalkContinue, nil
}
