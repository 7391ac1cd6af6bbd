package web

import (
	"html/template"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// formatNumber renders n with English thousands separators.
func formatNumber(n int) string {
	return message.NewPrinter(language.English).Sprintf("%d", n)
}

// titleCase capitalizes a role or other single-word label.
func titleCase(s string) string {
	return cases.Title(language.English).String(s)
}

func formatDate(t time.Time) string {
	return t.Format("January 2, 2006")
}

var funcs = template.FuncMap{
	"number": formatNumber,
	"title":  titleCase,
	"date":   formatDate,
}
