package sqldb

import (
	"bytes"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Result holds rows already converted to text
type Result struct {
	Columns   []string
	Rows      [][]string
	Truncated bool
}

// Render formats the result as a pipe-separated table with a header line
func (r *Result) Render() string {
	var b strings.Builder
	b.WriteString(strings.Join(r.Columns, " | "))
	for _, row := range r.Rows {
		b.WriteByte('\n')
		b.WriteString(strings.Join(row, " | "))
	}
	if r.Truncated {
		fmt.Fprintf(&b, "\n(truncated to %d rows)", len(r.Rows))
	}
	return b.String()
}

func formatValue(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return "NULL"
	case []byte:
		return string(val)
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case time.Time:
		return val.Format(time.RFC3339)
	default:
		return fmt.Sprint(val)
	}
}

// writeKeyword matches statement keywords that modify the database. A
// trailing "(" marks a function call, which only matters for replace().
var writeKeyword = regexp.MustCompile(`(?i)\b(INSERT|UPDATE|DELETE|DROP|ALTER|CREATE|REPLACE|ATTACH|DETACH|PRAGMA|VACUUM|REINDEX)\b(\s*\()?`)

// CheckReadOnly rejects anything but a single SELECT, WITH or EXPLAIN
// statement. String literals, quoted identifiers and comments are ignored.
// The connection itself is opened read-only; this check only gives the
// model a clearer error than the driver would.
func CheckReadOnly(query string) error {
	stmt := strings.TrimSpace(maskLiterals(query))
	stmt = strings.TrimSpace(strings.TrimSuffix(stmt, ";"))
	if stmt == "" {
		return fmt.Errorf("empty query")
	}
	if strings.Contains(stmt, ";") {
		return fmt.Errorf("only a single statement is allowed")
	}

	keyword := strings.ToUpper(strings.Fields(stmt)[0])
	switch keyword {
	case "SELECT", "WITH", "EXPLAIN":
	default:
		return fmt.Errorf("only read-only statements are allowed, got %s", keyword)
	}

	for _, m := range writeKeyword.FindAllStringSubmatch(stmt, -1) {
		word := strings.ToUpper(m[1])
		if word == "REPLACE" && m[2] != "" {
			continue
		}
		return fmt.Errorf("statement contains %s", word)
	}
	return nil
}

// maskLiterals blanks the contents of string literals, quoted identifiers
// and comments, keeping byte offsets, so that only SQL structure is left.
func maskLiterals(query string) string {
	out := []byte(query)
	blank := func(from, to int) {
		for k := from; k < to && k < len(out); k++ {
			if out[k] != '\n' {
				out[k] = ' '
			}
		}
	}

	for i := 0; i < len(out); {
		c := out[i]
		switch {
		case c == '\'' || c == '"' || c == '`' || c == '[':
			closer := c
			if c == '[' {
				closer = ']'
			}
			j := i + 1
			for j < len(out) {
				if out[j] == closer {
					// doubled quote is an escaped quote
					if closer != ']' && j+1 < len(out) && out[j+1] == closer {
						j += 2
						continue
					}
					break
				}
				j++
			}
			blank(i+1, j)
			i = j + 1
		case c == '-' && i+1 < len(out) && out[i+1] == '-':
			end := bytes.IndexByte(out[i:], '\n')
			if end < 0 {
				end = len(out) - i
			}
			blank(i, i+end)
			i += end
		case c == '/' && i+1 < len(out) && out[i+1] == '*':
			end := len(out)
			if j := bytes.Index(out[i+2:], []byte("*/")); j >= 0 {
				end = i + 2 + j + 2
			}
			blank(i, end)
			i = end
		default:
			i++
		}
	}
	return string(out)
}
