package llvm

import (
	"strings"
	"testing"

	"lispc/src/ast"
	"lispc/src/frontend"
	"lispc/src/lift"
	"lispc/src/transform"
)

func generate(t *testing.T, src string) string {
	t.Helper()
	tree, err := frontend.NewParser().ParseString(src)
	if err != nil {
		t.Fatalf("parse %q: %v", src, err)
	}
	prog, err := transform.Transform(tree)
	if err != nil {
		t.Fatalf("transform %q: %v", src, err)
	}
	lifted, err := lift.Lift(prog)
	if err != nil {
		t.Fatalf("lift %q: %v", src, err)
	}
	ir, err := Generate(lifted, "test")
	if err != nil {
		t.Fatalf("generate %q: %v", src, err)
	}
	return ir
}

func TestGenerateDeclaresFunction(t *testing.T) {
	ir := generate(t, "(define (square x) (* x x)) (square 5)")
	if !strings.Contains(ir, "define double @square(double %0)") {
		t.Errorf("expected square's definition in IR:\n%s", ir)
	}
	if !strings.Contains(ir, "define i32 @main()") {
		t.Errorf("expected synthesized main in IR:\n%s", ir)
	}
	if !strings.Contains(ir, "declare i32 @printf(i8*, ...)") {
		t.Errorf("expected printf declaration in IR:\n%s", ir)
	}
}

func TestGenerateIfUsesPhi(t *testing.T) {
	ir := generate(t, "(if (> 1 0) 1 2)")
	if !strings.Contains(ir, "phi double") {
		t.Errorf("expected a phi node for the if expression:\n%s", ir)
	}
}

func TestGenerateRejectsNonFunctionTopLevelDefine(t *testing.T) {
	tree, err := frontend.NewParser().ParseString("(define x 1)")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	prog, err := transform.Transform(tree)
	if err != nil {
		t.Fatalf("transform: %v", err)
	}
	lifted, err := lift.Lift(prog)
	if err != nil {
		t.Fatalf("lift: %v", err)
	}
	if _, err := Generate(lifted, "test"); err == nil {
		t.Fatal("expected error for non-function top-level define, got nil")
	}
}

func TestGenerateUnknownFunction(t *testing.T) {
	prog := &ast.Program{Exprs: []ast.Node{
		&ast.ProcCall{Operator: &ast.Symbol{Name: "nope"}, Operands: nil},
	}}
	if _, err := Generate(prog, "test"); err == nil {
		t.Fatal("expected error for unknown function, got nil")
	}
}
