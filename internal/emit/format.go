package emit

import "strings"

// clauseKeywords are the top-level clause boundaries Format breaks the
// line on, in the order SQL allows them to appear. Matching is
// depth-aware (see splitClauses) so a keyword inside a parenthesized
// subquery or CTE body never triggers a break in the outer statement.
var clauseKeywords = []string{
	"WITH ",
	"SELECT ",
	"FROM ",
	"LEFT JOIN ",
	"JOIN ",
	"WHERE ",
	"GROUP BY ",
	"HAVING ",
	"ORDER BY ",
	"LIMIT ",
	"OFFSET ",
}

// Format canonicalizes compiled SQL into the formatted-SQL contract:
// one clause per line, two-space indent, so two semantically
// equivalent emissions compare equal by string equality (grounded on
// the teacher's core/pretty.go whitespace-normalizing state machine).
func Format(sql string) string {
	clauses := splitClauses(sql)
	var b strings.Builder
	for i, c := range clauses {
		if i > 0 {
			b.WriteString("\n")
			if c.indent {
				b.WriteString("  ")
			}
		}
		b.WriteString(strings.TrimSpace(c.text))
	}
	return b.String()
}

type clause struct {
	text   string
	indent bool
}

// splitClauses walks sql once, tracking parenthesis depth, and cuts a
// new clause whenever a clauseKeywords entry starts at depth 0. Clauses
// other than WITH/SELECT are indented one level.
func splitClauses(sql string) []clause {
	var out []clause
	depth := 0
	start := 0
	indent := false
	i := 0
	for i < len(sql) {
		switch sql[i] {
		case '(':
			depth++
		case ')':
			depth--
		}
		if depth == 0 {
			if kw, ok := matchKeyword(sql[i:]); ok {
				if i > start {
					out = append(out, clause{text: sql[start:i], indent: indent})
				}
				start = i
				indent = kw != "WITH " && kw != "SELECT "
				i += len(kw)
				continue
			}
		}
		i++
	}
	if start < len(sql) {
		out = append(out, clause{text: sql[start:], indent: indent})
	}
	return out
}

func matchKeyword(s string) (string, bool) {
	for _, kw := range clauseKeywords {
		if len(s) >= len(kw) && strings.EqualFold(s[:len(kw)], kw) {
			return kw, true
		}
	}
	return "", false
}
