package mailservice

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"strings"
)

//go:embed templates/*
var templateFS embed.FS

var templateBlocks = []string{"subject", "plainBody", "htmlBody"}

func NewTemplate() *Template {
	return &Template{cache: make(map[string]*template.Template)}
}

func (tp *Template) lookup(name string) (*template.Template, error) {
	tp.mu.RLock()
	t, ok := tp.cache[name]
	tp.mu.RUnlock()
	if ok {
		return t, nil
	}

	t, err := template.New(name).ParseFS(templateFS, "templates/"+name)
	if err != nil {
		return nil, fmt.Errorf("could not parse template: %w", err)
	}

	tp.mu.Lock()
	tp.cache[name] = t
	tp.mu.Unlock()

	return t, nil
}

// Render executes the subject, plainBody and htmlBody blocks of the named template with data,
// which is one of the broker message types.
func (tp *Template) Render(name string, data any) (*Rendered, error) {
	t, err := tp.lookup(name)
	if err != nil {
		return nil, err
	}

	out := make([]string, len(templateBlocks))
	for i, block := range templateBlocks {
		var buf bytes.Buffer
		if err := t.ExecuteTemplate(&buf, block, data); err != nil {
			return nil, fmt.Errorf("could not render %s of %s: %w", block, name, err)
		}
		out[i] = buf.String()
	}

	return &Rendered{
		Subject:   strings.TrimSpace(out[0]),
		PlainBody: out[1],
		HTMLBody:  out[2],
	}, nil
}
