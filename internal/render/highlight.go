package render

import (
	"strings"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/charmbracelet/lipgloss"

	"github.com/sadopc/dbcrawl/internal/theme"
)

// lexerNames maps adapter names to the chroma lexer for their SQL dialect.
var lexerNames = map[string]string{
	"postgres":  "postgresql",
	"mysql":     "mysql",
	"sqlserver": "tsql",
	"oracle":    "plsql",
}

// Highlighter tokenises view and routine definitions with chroma and renders
// them with lipgloss styles from a theme.
type Highlighter struct {
	lexer chroma.Lexer
}

// NewHighlighter returns a Highlighter for the dialect of the named adapter,
// falling back to the generic SQL lexer.
func NewHighlighter(product string) *Highlighter {
	var l chroma.Lexer
	if name, ok := lexerNames[strings.ToLower(product)]; ok {
		l = lexers.Get(name)
	}
	if l == nil {
		l = lexers.Get("SQL")
	}
	if l == nil {
		l = lexers.Fallback
	}
	// Coalesce runs of identical token types so the loop below processes
	// fewer, larger chunks.
	return &Highlighter{lexer: chroma.Coalesce(l)}
}

// Highlight returns sql with every token styled. Newlines are preserved so
// multi-line definitions render correctly. A nil theme returns sql as is.
func (h *Highlighter) Highlight(sql string, th *theme.Theme) string {
	if th == nil {
		return sql
	}

	iter, err := h.lexer.Tokenise(nil, sql)
	if err != nil {
		return sql
	}

	var b strings.Builder
	b.Grow(len(sql) * 2)

	for _, tok := range iter.Tokens() {
		value := tok.Value
		if value == "" {
			continue
		}

		style, ok := styleFor(tok.Type, th)
		if !ok {
			b.WriteString(value)
			continue
		}

		// Style each line of a multi-line token separately so a newline is
		// always emitted as is.
		lines := strings.Split(value, "\n")
		for i, line := range lines {
			if line != "" {
				b.WriteString(style.Render(line))
			}
			if i < len(lines)-1 {
				b.WriteByte('\n')
			}
		}
	}

	return b.String()
}

// styleFor maps a chroma token type to a theme style. The second return value
// is false when the token should pass through unstyled.
func styleFor(tt chroma.TokenType, th *theme.Theme) (lipgloss.Style, bool) {
	switch {
	// KeywordType is a subtype of Keyword, so check it first to give SQL
	// types (e.g. INT, VARCHAR) their own colour.
	case tt == chroma.KeywordType:
		return th.SQLType, true
	case tt == chroma.NameFunction || tt == chroma.NameBuiltin:
		return th.SQLFunction, true
	case tt.InCategory(chroma.Keyword):
		return th.SQLKeyword, true
	case tt.InSubCategory(chroma.LiteralString):
		return th.SQLString, true
	case tt.InSubCategory(chroma.LiteralNumber):
		return th.SQLNumber, true
	case tt.InCategory(chroma.Comment):
		return th.SQLComment, true
	case tt == chroma.Operator || tt == chroma.OperatorWord:
		return th.SQLOperator, true
	default:
		return lipgloss.Style{}, false
	}
}
