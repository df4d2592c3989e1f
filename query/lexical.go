package query

import (
	"strconv"
	"strings"
)

// Lexical replaces quoted strings and standalone numbers in sql with $n
// placeholders without parsing it. Existing $n parameters are kept and new
// placeholders are numbered after the highest one. It is the best-effort
// path for text the parser rejects and does not fold signs or understand
// dollar quoting.
func Lexical(sql string) string {
	if sql == "" {
		return ""
	}

	var b strings.Builder
	b.Grow(len(sql))

	next := highestParam(sql) + 1
	placeholder := func() {
		b.WriteByte('$')
		b.WriteString(strconv.Itoa(next))
		next++
	}

	i := 0
	for i < len(sql) {
		ch := sql[i]

		if isStringPrefix(ch) && i+1 < len(sql) && sql[i+1] == '\'' && (i == 0 || isNumBoundary(sql[i-1])) {
			i = skipString(sql, i+1)
			placeholder()
			continue
		}

		if ch == '\'' {
			i = skipString(sql, i)
			placeholder()
			continue
		}

		if ch == '$' && i+1 < len(sql) && isDigit(sql[i+1]) {
			j := skipDigits(sql, i+1)
			b.WriteString(sql[i:j])
			i = j
			continue
		}

		if isDigit(ch) && (i == 0 || isNumBoundary(sql[i-1])) {
			if j, ok := scanNumber(sql, i); ok {
				placeholder()
				i = j
				continue
			}
		}

		b.WriteByte(ch)
		i++
	}

	return b.String()
}

// skipString returns the position just past the string literal whose
// opening quote is at pos. Doubled quotes are part of the literal.
func skipString(sql string, pos int) int {
	j := pos + 1
	for j < len(sql) {
		if sql[j] == '\'' && j+1 < len(sql) && sql[j+1] == '\'' {
			j += 2
			continue
		}
		if sql[j] == '\'' {
			return j + 1
		}
		j++
	}
	return j
}

// scanNumber returns the end of the numeric literal at pos, or false if
// the digits run into an identifier.
func scanNumber(sql string, pos int) (int, bool) {
	j := pos + 1
	for j < len(sql) && (isDigit(sql[j]) || sql[j] == '.') {
		j++
	}
	if j >= len(sql) || isNumBoundary(sql[j]) {
		return j, true
	}
	return 0, false
}

func skipDigits(sql string, pos int) int {
	for pos < len(sql) && isDigit(sql[pos]) {
		pos++
	}
	return pos
}

func highestParam(sql string) int {
	highest := 0
	for i := 0; i < len(sql); i++ {
		if sql[i] != '$' || i+1 >= len(sql) || !isDigit(sql[i+1]) {
			continue
		}
		j := skipDigits(sql, i+1)
		if n, err := strconv.Atoi(sql[i+1 : j]); err == nil && n > highest {
			highest = n
		}
		i = j - 1
	}
	return highest
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isStringPrefix(c byte) bool {
	switch c {
	case 'E', 'e', 'B', 'b', 'X', 'x', 'N', 'n':
		return true
	}
	return false
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}

func isNumBoundary(c byte) bool {
	return isSpace(c) ||
		c == ',' || c == '(' || c == ')' || c == '=' ||
		c == '<' || c == '>' || c == '+' || c == '-' ||
		c == '*' || c == '/' || c == ';'
}
