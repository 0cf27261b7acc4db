package mdadapter

import (
	"regexp"

	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/text"
)

var fileDirectiveRegex = regexp.MustCompile(`^{{\s*file:\s*(\S+)\s*}}`)

type fileLinkParser struct{}

func NewFileLinkParser() parser.InlineParser {
	return &fileLinkParser{}
}

func (s *fileLinkParser) Trigger() []byte {
	return []byte{'{'}
}

func (s *fileLinkParser) Parse(parent ast.Node, block text.Reader, pc parser.Context) ast.Node {
	line, _ := block.PeekLine()

	matches := fileDirectiveRegex.FindSubmatch(line)
	if matches == nil {
		return nil
	}

	block.Advance(len(matches[0]))

	return &FileLink{
		Path: string(matches[1]),
	}
}
