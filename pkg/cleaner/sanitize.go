package cleaner

import (
	"regexp"
	"strings"
)

// maxIdentifierLength is PostgreSQL's default NAMEDATALEN-1
const maxIdentifierLength = 63

var (
	separatorRun  = regexp.MustCompile(`[\s.\-]+`)
	nonWord       = regexp.MustCompile(`[^a-z0-9_]`)
	underscoreRun = regexp.MustCompile(`_+`)
	plainIdent    = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_$]*$`)
)

// SanitizeColumnName turns a CSV header cell into the column name the importer
// would have created: lowercase, separators as underscores, other punctuation
// dropped, "col_" prefix when empty or leading with a digit.
func SanitizeColumnName(name string) string {
	return sanitize(name, "col_")
}

// SanitizeTableName does the same for a table derived from a file name
func SanitizeTableName(name string) string {
	return sanitize(name, "tbl_")
}

func sanitize(name, prefix string) string {
	s := strings.ToLower(strings.TrimSpace(name))
	s = separatorRun.ReplaceAllString(s, "_")
	s = nonWord.ReplaceAllString(s, "")
	s = strings.Trim(underscoreRun.ReplaceAllString(s, "_"), "_")

	if s == "" {
		s = prefix + "unnamed"
	} else if s[0] >= '0' && s[0] <= '9' {
		s = prefix + s
	}

	if len(s) > maxIdentifierLength {
		s = s[:maxIdentifierLength]
	}
	return s
}

// ValidIdentifier reports whether name can be spliced into SQL unquoted
func ValidIdentifier(name string) bool {
	return len(name) <= maxIdentifierLength && plainIdent.MatchString(name)
}
