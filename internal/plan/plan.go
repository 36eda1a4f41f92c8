// Package plan locates the active task plan under the project's plans
// directory and reports its checklist progress.
package plan

import (
	"bytes"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	extast "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/text"
	"gopkg.in/yaml.v3"
)

// ErrNoPlanContent is returned for markdown that carries neither a status
// nor any checklist item.
var ErrNoPlanContent = errors.New("no status or checklist found")

// Progress summarizes one plan file.
type Progress struct {
	Status     string `json:"status" toml:"status"`
	Completed  int    `json:"completed" toml:"completed"`
	Total      int    `json:"total" toml:"total"`
	SourcePath string `json:"source_path" toml:"source_path"`
}

var statusLine = regexp.MustCompile(`(?m)^Status:[ \t]*(.*?)[ \t]*$`)

var md = goldmark.New(goldmark.WithExtensions(extension.TaskList))

// Parse extracts the status and checklist counts from plan markdown.
func Parse(content []byte) (Progress, error) {
	front, body, err := splitFrontMatter(content)
	if err != nil {
		return Progress{}, err
	}

	var p Progress
	hasStatus := false
	if m := statusLine.FindSubmatch(body); m != nil {
		p.Status = string(m[1])
		hasStatus = true
	} else if front.Status != "" {
		p.Status = front.Status
		hasStatus = true
	}

	root := md.Parser().Parse(text.NewReader(body))
	_ = ast.Walk(root, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch n := n.(type) {
		case *extast.TaskCheckBox:
			if done, ok := checklistItem(n, body); ok {
				p.count(done)
			}
		case *ast.FencedCodeBlock, *ast.CodeBlock:
			lines := n.Lines()
			for i := 0; i < lines.Len(); i++ {
				seg := lines.At(i)
				if m := checklistLine.FindSubmatch(seg.Value(body)); m != nil {
					p.count(string(m[1]) == "x")
				}
			}
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	})

	if !hasStatus && p.Total == 0 {
		return Progress{}, ErrNoPlanContent
	}
	return p, nil
}

// checklistLine matches a checklist line as written in plain text. Code
// blocks are not parsed as lists, so their lines are matched with it.
var checklistLine = regexp.MustCompile(`^[ \t]*- \[( |x)\] +\S`)

// checklistItem reports whether box opens a "- [x]" or "- [ ]" item. Other
// list markers and the uppercase "[X]" form are not checklist items.
func checklistItem(box *extast.TaskCheckBox, source []byte) (done, ok bool) {
	block := box.Parent()
	if block == nil || block.Lines().Len() == 0 {
		return false, false
	}
	item, isItem := block.Parent().(*ast.ListItem)
	if !isItem || item.FirstChild() != block {
		return false, false
	}
	list, isList := item.Parent().(*ast.List)
	if !isList || list.Marker != '-' {
		return false, false
	}
	seg := block.Lines().At(0)
	first := bytes.TrimLeft(seg.Value(source), " \t")
	switch {
	case bytes.HasPrefix(first, []byte("[x]")):
		return true, true
	case bytes.HasPrefix(first, []byte("[ ]")):
		return false, true
	}
	return false, false
}

func (p *Progress) count(done bool) {
	p.Total++
	if done {
		p.Completed++
	}
}

type frontMatter struct {
	Status string `yaml:"status"`
}

// splitFrontMatter separates an optional leading YAML block from the body.
func splitFrontMatter(content []byte) (frontMatter, []byte, error) {
	var fm frontMatter
	normalized := bytes.ReplaceAll(content, []byte("\r\n"), []byte("\n"))
	if !bytes.HasPrefix(normalized, []byte("---\n")) {
		return fm, normalized, nil
	}
	rest := normalized[len("---\n"):]
	end := bytes.Index(rest, []byte("\n---"))
	if end < 0 {
		return fm, normalized, nil
	}
	block := rest[:end]
	body := rest[end+len("\n---"):]
	body = bytes.TrimPrefix(body, []byte("\n"))
	if err := yaml.Unmarshal(block, &fm); err != nil {
		return fm, nil, fmt.Errorf("parse front matter: %w", err)
	}
	fm.Status = strings.TrimSpace(fm.Status)
	return fm, body, nil
}
