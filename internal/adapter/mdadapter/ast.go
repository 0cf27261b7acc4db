package mdadapter

import (
	"github.com/yuin/goldmark/ast"
)

var KindFileLink = ast.NewNodeKind("FileLink")

// FileLink is a `{{ file: path }}` directive. Path is kept escaped as written.
type FileLink struct {
	ast.BaseInline
	Path string
}

func (n *FileLink) Kind() ast.NodeKind {
	return KindFileLink
}

func (n *FileLink) Dump(source []byte, level int) {
	ast.DumpHelper(n, source, level, map[string]string{
		"Path": n.Path,
	}, nil)
}
