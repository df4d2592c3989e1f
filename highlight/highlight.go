package highlight

import (
	"bytes"
	"regexp"
	"strings"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/formatters"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/alecthomas/chroma/v2/styles"
	"github.com/charmbracelet/lipgloss"
)

var (
	lexer     chroma.Lexer
	formatter chroma.Formatter
	style     *chroma.Style
)

func init() {
	lexer = lexers.Get("postgresql")
	if lexer == nil {
		lexer = lexers.Get("sql")
	}
	formatter = formatters.Get("terminal256")
	style = styles.Get("monokai")
}

// SQL returns the input with ANSI terminal syntax highlighting applied.
// On error or empty input, the original string is returned unchanged.
func SQL(s string) string {
	if s == "" {
		return s
	}

	iterator, err := lexer.Tokenise(nil, s)
	if err != nil {
		return s
	}

	var buf bytes.Buffer
	if err := formatter.Format(&buf, style, iterator); err != nil {
		return s
	}

	return strings.TrimRight(buf.String(), "\n")
}

var (
	placeholderRe = regexp.MustCompile(`\$[0-9]+`)

	nodeRe = regexp.MustCompile(
		`\b(Seq Scan|Index Scan|Index Only Scan|Bitmap Heap Scan|Bitmap Index Scan|` +
			`Incremental Sort|Sort|Hash Join|Merge Join|Nested Loop|Hash|` +
			`WindowAgg|Aggregate|Group|Limit|Unique|Gather Merge|Gather|` +
			`Materialize|Append|Result|Subquery Scan|CTE Scan|Function Scan|Values Scan|` +
			`LockRows|SetOp|ModifyTable|Insert|Update|Delete)\b`,
	)
	metricsRe = regexp.MustCompile(`\((?:cost|rows|width)[^)]*\)`)
	arrowRe   = regexp.MustCompile(`->`)
	summaryRe = regexp.MustCompile(`^\s*(Planning Time|Execution Time):`)

	placeholderStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	headerStyle      = lipgloss.NewStyle().Bold(true).Underline(true)
	boldStyle        = lipgloss.NewStyle().Bold(true)
	dimStyle         = lipgloss.NewStyle().Faint(true)
)

// Placeholders renders every $n in a normalized query in bold.
func Placeholders(s string) string {
	return placeholderRe.ReplaceAllStringFunc(s, func(m string) string {
		return placeholderStyle.Render(m)
	})
}

// Header renders a report heading.
func Header(s string) string {
	if s == "" {
		return s
	}
	return headerStyle.Render(s)
}

// Plan returns EXPLAIN output with node names in bold, cost estimates and
// arrows dimmed, and placeholders styled as in Placeholders.
func Plan(s string) string {
	if s == "" {
		return s
	}

	lines := strings.Split(s, "\n")
	for i, line := range lines {
		if summaryRe.MatchString(line) {
			lines[i] = boldStyle.Render(line)
			continue
		}

		line = arrowRe.ReplaceAllStringFunc(line, func(m string) string {
			return dimStyle.Render(m)
		})
		line = metricsRe.ReplaceAllStringFunc(line, func(m string) string {
			return dimStyle.Render(m)
		})
		line = nodeRe.ReplaceAllStringFunc(line, func(m string) string {
			return boldStyle.Render(m)
		})
		lines[i] = Placeholders(line)
	}

	return strings.Join(lines, "\n")
}
