package main

import (
	"embed"
	"fmt"
	"html/template"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"
)

//go:embed templates
var templatesFS embed.FS

const excerptRunes = 120

var italics = regexp.MustCompile(`\*([^*\n]+)\*`)

// format renders plain post text as paragraphs, with *text* as italics.
func format(s string) template.HTML {
	s = template.HTMLEscapeString(s)

	paragraphs := strings.Split(s, "\n\n")
	var result []string

	for _, p := range paragraphs {
		if p = strings.TrimSpace(p); p != "" {
			p = italics.ReplaceAllString(p, "<em>$1</em>")
			p = strings.ReplaceAll(p, "\n", "<br>")
			result = append(result, "<p>"+p+"</p>")
		}
	}

	return template.HTML(strings.Join(result, "\n"))
}

// excerpt returns the first runes of s with whitespace collapsed.
func excerpt(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	if utf8.RuneCountInString(s) <= excerptRunes {
		return s
	}
	runes := []rune(s)
	return strings.TrimSpace(string(runes[:excerptRunes])) + "…"
}

func date(t time.Time) string {
	return t.Local().Format("January 2, 2006")
}

func dateOf(t *time.Time) string {
	if t == nil {
		return ""
	}
	return date(*t)
}

var funcs = template.FuncMap{
	"format":  format,
	"excerpt": excerpt,
	"date":    date,
	"dateOf":  dateOf,
	"seconds": func(d time.Duration) int64 { return int64(d / time.Second) },
}

var pages = []string{
	"home.html",
	"detail.html",
	"editor.html",
	"login.html",
	"not_available.html",
	"error.html",
}

func loadTemplates() (map[string]*template.Template, error) {
	templates := make(map[string]*template.Template, len(pages))

	for _, page := range pages {
		t, err := template.New("").Funcs(funcs).ParseFS(templatesFS,
			"templates/base.html",
			"templates/"+page,
		)
		if err != nil {
			return nil, fmt.Errorf("parsing %s: %w", page, err)
		}
		templates[page] = t
	}

	return templates, nil
}
