package handler

import (
	"fmt"
	"html/template"
)

// TemplateFuncs are the helpers available to page templates.
func TemplateFuncs() template.FuncMap {
	return template.FuncMap{
		"pad": func(n int64) string {
			return fmt.Sprintf("%02d", n)
		},
	}
}
