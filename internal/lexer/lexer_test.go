package lexer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tinovyatkin/cribo/internal/token"
)

func TestNext_SimpleModule(t *testing.T) {
	input := `import os
from utils.helpers import format_message as fmt

def greet(name):
    return fmt(name)

class User:
    def __init__(self, name):
        self.name = name
`

	want := []struct {
		kind token.Kind
		lit  string
	}{
		{token.IMPORT, "import"},
		{token.IDENT, "os"},
		{token.NEWLINE, "\n"},

		{token.FROM, "from"},
		{token.IDENT, "utils"},
		{token.DOT, "."},
		{token.IDENT, "helpers"},
		{token.IMPORT, "import"},
		{token.IDENT, "format_message"},
		{token.AS, "as"},
		{token.IDENT, "fmt"},
		{token.NEWLINE, "\n"},

		{token.DEF, "def"},
		{token.IDENT, "greet"},
		{token.LPAREN, "("},
		{token.IDENT, "name"},
		{token.RPAREN, ")"},
		{token.COLON, ":"},
		{token.NEWLINE, "\n"},
		{token.INDENT, ""},
		{token.RETURN, "return"},
		{token.IDENT, "fmt"},
		{token.LPAREN, "("},
		{token.IDENT, "name"},
		{token.RPAREN, ")"},
		{token.NEWLINE, "\n"},
		{token.DEDENT, ""},

		{token.CLASS, "class"},
		{token.IDENT, "User"},
		{token.COLON, ":"},
		{token.NEWLINE, "\n"},
		{token.INDENT, ""},
		{token.DEF, "def"},
		{token.IDENT, "__init__"},
		{token.LPAREN, "("},
		{token.IDENT, "self"},
		{token.COMMA, ","},
		{token.IDENT, "name"},
		{token.RPAREN, ")"},
		{token.COLON, ":"},
		{token.NEWLINE, "\n"},
		{token.INDENT, ""},
		{token.IDENT, "self"},
		{token.DOT, "."},
		{token.IDENT, "name"},
		{token.ASSIGN, "="},
		{token.IDENT, "name"},
		{token.NEWLINE, "\n"},
		{token.DEDENT, ""},
		{token.DEDENT, ""},
		{token.EOF, ""},
	}

	l := New(input, "test.py")
	for i, w := range want {
		tok := l.Next()
		require.Equalf(t, w.kind, tok.Kind, "token %d: literal %q", i, tok.Literal)
		if w.lit != "" {
			assert.Equal(t, w.lit, tok.Literal, "token %d", i)
		}
	}
	assert.Empty(t, l.Errors())
}

func TestNext_ParenSuppressesNewline(t *testing.T) {
	input := "x = (1 +\n     2)\ny = 3\n"
	l := New(input, "t.py")
	var kinds []token.Kind
	for {
		tok := l.Next()
		kinds = append(kinds, tok.Kind)
		if tok.Kind == token.EOF {
			break
		}
	}
	newlineCount := 0
	for _, k := range kinds {
		if k == token.NEWLINE {
			newlineCount++
		}
	}
	assert.Equal(t, 2, newlineCount, "newline inside parens must not surface as a token")
}

func TestNext_FStringToken(t *testing.T) {
	l := New(`msg = f"Hello, {name}!"` + "\n", "t.py")
	l.Next() // msg
	l.Next() // =
	tok := l.Next()
	require.Equal(t, token.FSTRING, tok.Kind)
	assert.Equal(t, "Hello, {name}!", tok.Literal)
}

func TestNext_AugmentedAssignOperators(t *testing.T) {
	cases := map[string]token.Kind{
		"+=": token.PLUSEQ, "-=": token.MINUSEQ, "*=": token.STAREQ,
		"//=": token.DSLASHEQ, "**=": token.DOUBSTAREQ, ">>=": token.RSHIFTEQ,
	}
	for lit, kind := range cases {
		l := New("x "+lit+" 1\n", "t.py")
		l.Next() // x
		tok := l.Next()
		assert.Equalf(t, kind, tok.Kind, "operator %q", lit)
	}
}
