// Package frontend reads Lisp source text and produces the concrete parse
// tree defined in package parsetree. Grammar productions are expressed with
// goparsec combinators, the same parser-combinator library used elsewhere in
// this project's lineage to read a Lisp-like concrete syntax.
//
// The grammar is deliberately small: a program is a sequence of
// s-expressions, and an s-expression is either an atom (symbol, number,
// string, boolean) or a parenthesized list of s-expressions. '(' and ')' are
// the only structuring tokens; quote ' is supported as sugar for (quote x).
package frontend

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	pc "github.com/prataprc/goparsec"

	"lispc/src/compileerr"
	"lispc/src/parsetree"
)

var ast = pc.NewAST("lisp_program", 100)

// pSexprRef is a forward reference to pSexpr, resolved at init time. It lets
// pList refer to a parser (s-expression) that is itself defined in terms of
// lists, which plain top-to-bottom variable initialization cannot express.
var pSexpr pc.Parser

func pSexprRef(s pc.Scanner) (pc.ParsecNode, pc.Scanner) {
	return pSexpr(s)
}

var (
	pLParen = pc.Atom("(", "LPAREN")
	pRParen = pc.Atom(")", "RPAREN")
	pQuote  = pc.Atom("'", "QUOTE")

	// pIdentTok matches both ordinary identifiers (fib, even?, outer) and the
	// operator symbols that double as identifiers in operator position
	// (+, -, *, /, <, >, =).
	pIdentTok = pc.Token(`[A-Za-z!$%&*/:<=>?^_~+\-][A-Za-z0-9!$%&*/:<=>?^_~+\-]*`, "IDENT")
	pStrTok   = pc.Token(`"(?:\\.|[^"\\])*"`, "STRING")
	pTrueTok  = pc.Atom("#t", "TRUE")
	pFalseTok = pc.Atom("#f", "FALSE")

	pSymbol = ast.And("symbol", nil, pIdentTok)
	pString = ast.And("string", nil, pStrTok)
	pBool   = ast.And("bool", nil, ast.OrdChoice("booltok", nil, pTrueTok, pFalseTok))
	pNumber = ast.And("number", nil, ast.OrdChoice("numtok", nil, pc.Float(), pc.Int()))

	pQuoted = ast.And("quote", nil, pQuote, pSexprRef)

	// pComment matches a ';' running to end of line, the same way test
	// fixtures carry their "Result:" annotations.
	pComment = ast.And("comment", nil, pc.Atom(";", ";"), pc.Token(`(?m).*$`, "COMMENT"))

	// pItem is anything that can appear between parentheses or at the top
	// level of a program: a comment or an s-expression.
	pItem = ast.OrdChoice("item", nil, pComment, pSexprRef)

	pList = ast.And("list", nil, pLParen, ast.ManyUntil("elems", nil, pItem, pRParen))

	pProgram = ast.ManyUntil("program", nil, pItem, pc.End())
)

func init() {
	// An atom must be tried in this order: a bare "-" or "+" followed by a
	// digit is a number, anything else starting with those characters is an
	// identifier, so number alternatives go first.
	pSexpr = ast.OrdChoice("sexpr", nil, pNumber, pBool, pString, pQuoted, pList, pSymbol)
}

// Parser turns Lisp source text into a parsetree.Node rooted at
// parsetree.NProgram.
type Parser struct{}

// NewParser returns a ready-to-use Parser.
func NewParser() Parser { return Parser{} }

// Parse reads all of r and returns the concrete parse tree for it.
func (p Parser) Parse(r io.Reader) (*parsetree.Node, error) {
	src, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("frontend: cannot read source: %w", err)
	}
	return p.ParseString(string(src))
}

// ParseString parses a single source string.
func (p Parser) ParseString(src string) (*parsetree.Node, error) {
	root, scanner := ast.Parsewith(pProgram, pc.NewScanner([]byte(src)))
	if root == nil {
		return nil, fmt.Errorf("frontend: %w: near %q", compileerr.ErrParse, preview(scanner))
	}
	q, ok := root.(pc.Queryable)
	if !ok {
		return nil, fmt.Errorf("frontend: %w: unexpected root node type %T", compileerr.ErrParse, root)
	}

	children := q.GetChildren()
	prog := &parsetree.Node{Typ: parsetree.NProgram, Children: make([]*parsetree.Node, 0, len(children))}
	for _, c := range children {
		if c.GetName() == "comment" {
			continue
		}
		n, err := toNode(c)
		if err != nil {
			return nil, err
		}
		prog.Children = append(prog.Children, n)
	}
	return prog, nil
}

func preview(s pc.Scanner) string {
	if s == nil {
		return "<eof>"
	}
	rest, _ := s.Match(`.{0,24}`)
	return string(rest)
}

// toNode converts one matched goparsec subtree into a parsetree.Node.
func toNode(q pc.Queryable) (*parsetree.Node, error) {
	switch q.GetName() {
	case "number":
		lit := strings.TrimSpace(firstChild(q).GetValue())
		v, err := strconv.ParseFloat(lit, 64)
		if err != nil {
			return nil, fmt.Errorf("frontend: %w: malformed number literal %q: %v", compileerr.ErrParse, lit, err)
		}
		return &parsetree.Node{Typ: parsetree.NNumber, Data: v}, nil

	case "bool":
		lit := firstChild(q).GetValue()
		return &parsetree.Node{Typ: parsetree.NBool, Data: lit == "#t"}, nil

	case "string":
		lit := firstChild(q).GetValue()
		return &parsetree.Node{Typ: parsetree.NString, Data: unquote(lit)}, nil

	case "symbol":
		return &parsetree.Node{Typ: parsetree.NSymbol, Data: firstChild(q).GetValue()}, nil

	case "quote":
		children := q.GetChildren()
		if len(children) != 2 {
			return nil, fmt.Errorf("frontend: %w: malformed quote form", compileerr.ErrParse)
		}
		datum, err := toNode(children[1])
		if err != nil {
			return nil, err
		}
		return &parsetree.Node{Typ: parsetree.NQuote, Children: []*parsetree.Node{datum}}, nil

	case "list":
		children := q.GetChildren()
		if len(children) != 2 {
			return nil, fmt.Errorf("frontend: %w: malformed list node", compileerr.ErrParse)
		}
		elems := children[1].GetChildren()
		n := &parsetree.Node{Typ: parsetree.NList, Children: make([]*parsetree.Node, 0, len(elems))}
		for _, e := range elems {
			if e.GetName() == "comment" {
				continue
			}
			c, err := toNode(e)
			if err != nil {
				return nil, err
			}
			n.Children = append(n.Children, c)
		}
		return n, nil

	default:
		return nil, fmt.Errorf("frontend: %w: unrecognized grammar node %q", compileerr.ErrParse, q.GetName())
	}
}

func firstChild(q pc.Queryable) pc.Queryable {
	c := q.GetChildren()
	if len(c) == 0 {
		return q
	}
	return c[0]
}

func unquote(s string) string {
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		return s[1 : len(s)-1]
	}
	return s
}
