// Package transform turns the concrete parse tree produced by the frontend
// into the tagged-variant AST consumed by the lambda lifter and the code
// generator. It is the component that disambiguates the two shapes of
// `define` and re-recognizes the special forms the grammar only knows how
// to parse as generic procedure calls.
package transform

import (
	"fmt"

	"lispc/src/ast"
	"lispc/src/compileerr"
	"lispc/src/parsetree"
)

// Transform converts a parsetree.Node rooted at parsetree.NProgram into an
// *ast.Program.
func Transform(root *parsetree.Node) (*ast.Program, error) {
	if root == nil {
		return nil, fmt.Errorf("transform: parse tree is nil")
	}
	if root.Typ != parsetree.NProgram {
		return nil, fmt.Errorf("transform: %w: expected PROGRAM node, got %s", compileerr.ErrMalformed, root.Typ)
	}

	exprs := make([]ast.Node, 0, len(root.Children))
	for _, c := range root.Children {
		n, err := expr(c)
		if err != nil {
			return nil, err
		}
		exprs = append(exprs, n)
	}
	return &ast.Program{Exprs: exprs}, nil
}

// expr converts a single parse-tree node into an ast.Node.
func expr(n *parsetree.Node) (ast.Node, error) {
	switch n.Typ {
	case parsetree.NNumber:
		return &ast.Number{Value: n.Data.(float64)}, nil
	case parsetree.NString:
		return &ast.String{Value: n.Data.(string)}, nil
	case parsetree.NBool:
		return &ast.Bool{Value: n.Data.(bool)}, nil
	case parsetree.NSymbol:
		return &ast.Symbol{Name: n.Data.(string)}, nil
	case parsetree.NQuote:
		if len(n.Children) != 1 {
			return nil, fmt.Errorf("transform: %w: quote form expects exactly one datum, got %d", compileerr.ErrMalformed, len(n.Children))
		}
		datum, err := expr(n.Children[0])
		if err != nil {
			return nil, err
		}
		return &ast.Quote{Datum: datum}, nil
	case parsetree.NList:
		return list(n)
	default:
		return nil, fmt.Errorf("transform: %w: unexpected parse-tree node %s", compileerr.ErrMalformed, n.Typ)
	}
}

// list re-recognizes the special forms that the grammar parses as a generic
// application (define, if, lambda) and otherwise produces a ProcCall.
func list(n *parsetree.Node) (ast.Node, error) {
	if len(n.Children) == 0 {
		return nil, fmt.Errorf("transform: %w: empty procedure call/special form", compileerr.ErrMalformed)
	}

	if head := n.Children[0]; head.Typ == parsetree.NSymbol {
		switch head.Data.(string) {
		case "define":
			return defineForm(n.Children[1:])
		case "if":
			return ifForm(n.Children[1:])
		case "lambda":
			return lambdaForm(n.Children[1:])
		case "quote":
			if len(n.Children) != 2 {
				return nil, fmt.Errorf("transform: %w: (quote x) expects exactly one operand, got %d", compileerr.ErrMalformed, len(n.Children)-1)
			}
			datum, err := expr(n.Children[1])
			if err != nil {
				return nil, err
			}
			return &ast.Quote{Datum: datum}, nil
		}
	}
	return procCall(n)
}

// defineForm disambiguates the two shapes of definition: a value binding
// `(define v e)` and function sugar `(define (f p...) body...)`.
func defineForm(operands []*parsetree.Node) (ast.Node, error) {
	if len(operands) < 2 {
		return nil, fmt.Errorf("transform: %w: ill-formed define: expected at least 2 operands, got %d", compileerr.ErrMalformed, len(operands))
	}

	target := operands[0]
	switch target.Typ {
	case parsetree.NSymbol:
		// (define v e)
		if len(operands) != 2 {
			return nil, fmt.Errorf("transform: %w: ill-formed define: value binding expects exactly one expression, got %d", compileerr.ErrMalformed, len(operands)-1)
		}
		value, err := expr(operands[1])
		if err != nil {
			return nil, err
		}
		return &ast.Define{Target: &ast.Symbol{Name: target.Data.(string)}, Value: value}, nil

	case parsetree.NList:
		// (define (f p...) body...)
		if len(target.Children) == 0 || target.Children[0].Typ != parsetree.NSymbol {
			return nil, fmt.Errorf("transform: %w: ill-formed function define: missing function name", compileerr.ErrMalformed)
		}
		name := target.Children[0].Data.(string)
		params, err := symbolList(target.Children[1:])
		if err != nil {
			return nil, fmt.Errorf("transform: %w: ill-formed function define: %v", compileerr.ErrMalformed, err)
		}
		body, err := exprList(operands[1:])
		if err != nil {
			return nil, err
		}
		if len(body) == 0 {
			return nil, fmt.Errorf("transform: %w: ill-formed function define: empty body for %q", compileerr.ErrMalformed, name)
		}
		return &ast.Define{
			Target: &ast.Symbol{Name: name},
			Value:  &ast.Lambda{Params: params, Body: body},
		}, nil

	default:
		return nil, fmt.Errorf("transform: %w: ill-formed define: target must be a symbol or (name params...)", compileerr.ErrMalformed)
	}
}

// ifForm builds an If node from the operands of an (if ...) form.
func ifForm(operands []*parsetree.Node) (ast.Node, error) {
	if len(operands) != 2 && len(operands) != 3 {
		return nil, fmt.Errorf("transform: %w: ill-formed if: expected 2 or 3 operands, got %d", compileerr.ErrMalformed, len(operands))
	}
	test, err := expr(operands[0])
	if err != nil {
		return nil, err
	}
	conseq, err := expr(operands[1])
	if err != nil {
		return nil, err
	}
	var alt ast.Node
	if len(operands) == 3 {
		alt, err = expr(operands[2])
		if err != nil {
			return nil, err
		}
	}
	return &ast.If{Test: test, Conseq: conseq, Alt: alt}, nil
}

// lambdaForm builds a Lambda node from a (lambda (params...) body...) form.
func lambdaForm(operands []*parsetree.Node) (ast.Node, error) {
	if len(operands) < 2 {
		return nil, fmt.Errorf("transform: %w: ill-formed lambda: expected formals and at least one body expression", compileerr.ErrMalformed)
	}
	if operands[0].Typ != parsetree.NList {
		return nil, fmt.Errorf("transform: %w: ill-formed lambda: formals must be a parenthesized list", compileerr.ErrMalformed)
	}
	params, err := symbolList(operands[0].Children)
	if err != nil {
		return nil, fmt.Errorf("transform: %w: ill-formed lambda: %v", compileerr.ErrMalformed, err)
	}
	body, err := exprList(operands[1:])
	if err != nil {
		return nil, err
	}
	return &ast.Lambda{Params: params, Body: body}, nil
}

// procCall builds a ProcCall node from a generic application form.
func procCall(n *parsetree.Node) (ast.Node, error) {
	operator, err := expr(n.Children[0])
	if err != nil {
		return nil, err
	}
	operands, err := exprList(n.Children[1:])
	if err != nil {
		return nil, err
	}
	return &ast.ProcCall{Operator: operator, Operands: operands}, nil
}

func symbolList(nodes []*parsetree.Node) ([]*ast.Symbol, error) {
	seen := make(map[string]bool, len(nodes))
	out := make([]*ast.Symbol, 0, len(nodes))
	for _, n := range nodes {
		if n.Typ != parsetree.NSymbol {
			return nil, fmt.Errorf("transform: %w: expected symbol in parameter list, got %s", compileerr.ErrMalformed, n.Typ)
		}
		name := n.Data.(string)
		if seen[name] {
			return nil, fmt.Errorf("transform: %w: duplicate parameter name %q", compileerr.ErrMalformed, name)
		}
		seen[name] = true
		out = append(out, &ast.Symbol{Name: name})
	}
	return out, nil
}

func exprList(nodes []*parsetree.Node) ([]ast.Node, error) {
	out := make([]ast.Node, 0, len(nodes))
	for _, n := range nodes {
		e, err := expr(n)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}
