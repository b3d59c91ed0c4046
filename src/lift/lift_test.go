package lift

import (
	"testing"

	"lispc/src/ast"
	"lispc/src/frontend"
	"lispc/src/transform"
)

func liftSource(t *testing.T, src string) *ast.Program {
	t.Helper()
	tree, err := frontend.NewParser().ParseString(src)
	if err != nil {
		t.Fatalf("parse %q: %v", src, err)
	}
	prog, err := transform.Transform(tree)
	if err != nil {
		t.Fatalf("transform %q: %v", src, err)
	}
	lifted, err := Lift(prog)
	if err != nil {
		t.Fatalf("lift %q: %v", src, err)
	}
	return lifted
}

// findDefineWithPrefix returns the top-level Define whose target name has prefix as
// a prefix (lifted names are suffixed with a counter), or nil.
func findDefineWithPrefix(prog *ast.Program, prefix string) *ast.Define {
	for _, e := range prog.Exprs {
		if def, ok := e.(*ast.Define); ok && len(def.Target.Name) >= len(prefix) && def.Target.Name[:len(prefix)] == prefix {
			return def
		}
	}
	return nil
}

func TestLiftNoNestedFunctionsIsIdentity(t *testing.T) {
	prog := liftSource(t, "(define (square x) (* x x)) (square 5)")
	if len(prog.Exprs) != 2 {
		t.Fatalf("expected 2 top-level expressions, got %d", len(prog.Exprs))
	}
	def := prog.Exprs[0].(*ast.Define)
	if def.Target.Name != "square" {
		t.Errorf("name should be unchanged when nothing is lifted, got %q", def.Target.Name)
	}
}

// TestLiftCapturesOuterParam covers a lambda nested one level deep that
// references its enclosing lambda's parameter: the inner function must be
// lifted to the top level and gain that parameter as a trailing capture,
// and every call site inside outer must pass it along.
func TestLiftCapturesOuterParam(t *testing.T) {
	prog := liftSource(t, `
		(define (outer n)
		  (define (inner x) (+ x n))
		  (inner 10))
	`)

	innerDef := findDefineWithPrefix(prog, "inner_lifted_")
	if innerDef == nil {
		t.Fatal("expected a lifted top-level definition named inner_lifted_*")
	}
	lam := innerDef.Value.(*ast.Lambda)
	if len(lam.Params) != 2 {
		t.Fatalf("expected 2 params (x, n) after lifting, got %d: %+v", len(lam.Params), lam.Params)
	}
	if lam.Params[0].Name != "x" || lam.Params[1].Name != "n" {
		t.Errorf("params = %+v, want [x n]", lam.Params)
	}

	outerDef := findDefineWithPrefix(prog, "outer")
	if outerDef == nil {
		t.Fatal("expected outer to remain a top-level definition")
	}
	outerLam := outerDef.Value.(*ast.Lambda)
	call := outerLam.Body[0].(*ast.ProcCall)
	op := call.Operator.(*ast.Symbol)
	if op.Name != innerDef.Target.Name {
		t.Errorf("call site operator = %q, want %q", op.Name, innerDef.Target.Name)
	}
	if len(call.Operands) != 2 {
		t.Fatalf("expected call to carry 2 operands (10, n), got %d", len(call.Operands))
	}
	carried := call.Operands[1].(*ast.Symbol)
	if carried.Name != "n" {
		t.Errorf("carried capture = %q, want n", carried.Name)
	}
}

// TestLiftSiblingsShareCapture covers two sibling nested functions that
// both reference the same outer parameter: each sibling is lifted
// independently and each gains that parameter as its own capture.
func TestLiftSiblingsShareCapture(t *testing.T) {
	prog := liftSource(t, `
		(define (f n)
		  (define (g x) (+ x n))
		  (define (h y) (- y n))
		  (+ (g 1) (h 2)))
	`)

	gDef := findDefineWithPrefix(prog, "g_lifted_")
	hDef := findDefineWithPrefix(prog, "h_lifted_")
	if gDef == nil || hDef == nil {
		t.Fatal("expected both g and h to be lifted to top level")
	}

	gLam := gDef.Value.(*ast.Lambda)
	if len(gLam.Params) != 2 || gLam.Params[1].Name != "n" {
		t.Errorf("g params = %+v, want [x n]", gLam.Params)
	}
	hLam := hDef.Value.(*ast.Lambda)
	if len(hLam.Params) != 2 || hLam.Params[1].Name != "n" {
		t.Errorf("h params = %+v, want [y n]", hLam.Params)
	}
}

// TestLiftMutualRecursionAmongSiblings ensures a sibling calling another
// sibling by name is rewritten to the lifted name without wrongly
// demanding the sibling's own name as a captured value.
func TestLiftMutualRecursionAmongSiblings(t *testing.T) {
	prog := liftSource(t, `
		(define (f n)
		  (define (is-even x) (if (= x 0) 1 (is-odd (- x 1))))
		  (define (is-odd x) (if (= x 0) 0 (is-even (- x 1))))
		  (is-even n))
	`)

	evenDef := findDefineWithPrefix(prog, "is-even_lifted_")
	oddDef := findDefineWithPrefix(prog, "is-odd_lifted_")
	if evenDef == nil || oddDef == nil {
		t.Fatal("expected both is-even and is-odd to be lifted")
	}

	evenLam := evenDef.Value.(*ast.Lambda)
	for _, p := range evenLam.Params {
		if p.Name == "is-odd" {
			t.Fatal("sibling name must not appear as a captured parameter")
		}
	}
}
