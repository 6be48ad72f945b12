package scraper

import (
	"net/url"
	"path"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
)

var mdParser = goldmark.New()

// resourceExts are the attachment types kept as unit resources.
var resourceExts = map[string]bool{
	".pdf": true, ".txt": true, ".zip": true, ".rar": true, ".7z": true,
	".gz": true, ".tgz": true, ".tar": true, ".srt": true, ".sjson": true,
	".ppt": true, ".pptx": true, ".doc": true, ".docx": true, ".xls": true,
	".xlsx": true, ".odt": true, ".odp": true, ".ods": true, ".csv": true,
	".json": true, ".py": true, ".ipynb": true, ".c": true, ".cpp": true,
	".h": true, ".java": true, ".m": true, ".mat": true, ".r": true,
	".sql": true, ".epub": true, ".mp3": true,
}

// resourceLinks converts an HTML fragment to markdown and returns the links
// that point at downloadable attachments, resolved against baseURL.
func resourceLinks(fragment, baseURL string) ([]string, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, err
	}
	md, err := htmltomarkdown.ConvertString(fragment, converter.WithDomain(baseURL))
	if err != nil {
		return nil, err
	}
	return markdownLinks([]byte(md), base, isResource), nil
}

func isResource(u *url.URL) bool {
	return resourceExts[strings.ToLower(path.Ext(u.Path))]
}

// markdownLinks walks the goldmark AST of md and returns the http(s)
// destinations of inline links and autolinks accepted by keep, without
// fragments.
func markdownLinks(md []byte, base *url.URL, keep func(*url.URL) bool) []string {
	var links []string
	doc := mdParser.Parser().Parse(text.NewReader(md))
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}

		var dest string
		switch node := n.(type) {
		case *ast.Link:
			dest = string(node.Destination)
		case *ast.AutoLink:
			dest = string(node.URL(md))
		default:
			return ast.WalkContinue, nil
		}

		dest = strings.TrimSpace(dest)
		if dest == "" || dest[0] == '#' {
			return ast.WalkContinue, nil
		}
		ref, err := url.Parse(dest)
		if err != nil {
			return ast.WalkContinue, nil
		}
		u := base.ResolveReference(ref)
		u.Fragment = ""
		if (u.Scheme == "http" || u.Scheme == "https") && (keep == nil || keep(u)) {
			links = append(links, u.String())
		}
		return ast.WalkContinue, nil
	})
	return links
}
