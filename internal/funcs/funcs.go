package funcs

import (
	"fmt"
	"strings"
	"text/template"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var TemplateFuncs = template.FuncMap{
	"title":      cases.Title(language.English).String,
	"upper":      strings.ToUpper,
	"formatTime": formatTime,
	"shortHash":  shortHash,
}

func formatTime(format string, t time.Time) string {
	return t.Format(format)
}

// shortHash renders 0x1234...abcd style identifiers for hashes and addresses.
func shortHash(s string) string {
	if len(s) <= 14 {
		return s
	}

	return fmt.Sprintf("%s...%s", s[:8], s[len(s)-4:])
}
