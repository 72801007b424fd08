package repository

import (
	"fmt"
	"regexp"
	"strings"
)

const fallbackSlug = "post"

var slugSeparators = regexp.MustCompile(`[\s\W-]+`)

// Slugify: нижний регистр, trim, любая серия пробелов/не-словесных символов → один дефис.
// Крайние дефисы отрезаются, поэтому "Hello, World!" даёт "hello-world".
func Slugify(title string) string {
	s := strings.TrimSpace(strings.ToLower(title))
	s = slugSeparators.ReplaceAllString(s, "-")
	s = strings.Trim(s, "-")
	if s == "" {
		return fallbackSlug
	}
	return s
}

// AllocateSlug возвращает первый свободный из base, base-1, base-2, ...
func AllocateSlug(title string, taken func(slug string) bool) string {
	base := Slugify(title)
	if !taken(base) {
		return base
	}
	for n := 1; ; n++ {
		candidate := fmt.Sprintf("%s-%d", base, n)
		if !taken(candidate) {
			return candidate
		}
	}
}
