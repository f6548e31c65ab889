// Package naming derives database identifiers from Go-facing names:
// table names from model names, snake-cased columns, pivot table names
// and human-readable migration titles.
package naming

import (
	"sort"
	"strings"

	"github.com/go-openapi/inflect"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var titleCaser = cases.Title(language.English)

// Pluralize returns the plural form of word ("company" -> "companies",
// "person" -> "people").
func Pluralize(word string) string {
	return inflect.Pluralize(word)
}

// Singularize returns the singular form of word.
func Singularize(word string) string {
	return inflect.Singularize(word)
}

// Snake converts a CamelCase name to snake_case ("UserProfile" ->
// "user_profile").
func Snake(name string) string {
	return inflect.Underscore(name)
}

// Camel converts a snake_case name to CamelCase ("user_profile" ->
// "UserProfile").
func Camel(name string) string {
	return inflect.Camelize(name)
}

// TableFor derives the default table name for a model: the pluralized
// snake-case of its name ("UserProfile" -> "user_profiles").
func TableFor(model string) string {
	return Pluralize(Snake(model))
}

// PivotTable derives the default pivot table name for two tables: their
// singular forms joined by "_" in lexicographic order ("houses", "persons"
// -> "house_person").
func PivotTable(t1, t2 string) string {
	parts := []string{Singularize(t1), Singularize(t2)}
	sort.Strings(parts)
	return strings.Join(parts, "_")
}

// ForeignKeyFor derives the conventional foreign key column referencing a
// model ("User" -> "user_id").
func ForeignKeyFor(model string) string {
	return Snake(model) + "_id"
}

// Humanize turns a migration name into a display title:
// "2026_01_01_000000_create_users_table" -> "Create Users Table".
func Humanize(name string) string {
	fields := strings.Split(name, "_")
	words := fields[:0]
	for _, f := range fields {
		if f == "" || !strings.ContainsFunc(f, isLetter) {
			continue
		}
		words = append(words, titleCaser.String(f))
	}
	return strings.Join(words, " ")
}

func isLetter(r rune) bool {
	return r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z'
}
