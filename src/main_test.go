package main

import (
	"os"
	"path/filepath"
	"testing"

	"lispc/src/testutil"
	"lispc/src/util"
)

// endToEnd compiles src to a temporary executable, runs it, and returns its
// extracted "Result: <number>" values.
func endToEnd(t *testing.T, src string) []float64 {
	t.Helper()
	dir := t.TempDir()
	srcPath := filepath.Join(dir, "test.scm")
	if err := os.WriteFile(srcPath, []byte(src), 0644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	outPath := filepath.Join(dir, "test.out")
	opt := util.Options{Src: srcPath, Out: outPath, Run: true}

	captured := captureStdout(t, func() {
		if err := run(opt); err != nil {
			t.Fatalf("run: %v", err)
		}
	})

	actual, err := testutil.ActualResults(captured)
	if err != nil {
		t.Fatalf("extract actual results: %v", err)
	}
	return actual
}

func captureStdout(t *testing.T, fn func()) string {
	t.Helper()
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("pipe: %v", err)
	}
	orig := os.Stdout
	os.Stdout = w
	defer func() { os.Stdout = orig }()

	fn()

	w.Close()
	buf := make([]byte, 0, 4096)
	tmp := make([]byte, 1024)
	for {
		n, err := r.Read(tmp)
		buf = append(buf, tmp[:n]...)
		if err != nil {
			break
		}
	}
	return string(buf)
}

func assertResults(t *testing.T, src string, want []float64) {
	t.Helper()
	got := endToEnd(t, src)
	if len(got) != len(want) {
		t.Fatalf("got %d results, want %d: %v", len(got), len(want), got)
	}
	for i, w := range want {
		if !testutil.WithinTolerance(got[i], w) {
			t.Errorf("result %d = %v, want %v", i, got[i], w)
		}
	}
}

func TestEndToEndArithmetic(t *testing.T) {
	assertResults(t, `(+ 2 3)`, []float64{5})
}

func TestEndToEndRecursiveFactorial(t *testing.T) {
	assertResults(t, `
		(define (fact n) (if (= n 0) 1 (* n (fact (- n 1)))))
		(fact 5)
	`, []float64{120})
}

func TestEndToEndNestedClosureCapture(t *testing.T) {
	assertResults(t, `
		(define (adder n)
		  (define (add x) (+ x n))
		  (add 10))
		(adder 7)
	`, []float64{17})
}

func TestEndToEndMutualRecursionSiblings(t *testing.T) {
	assertResults(t, `
		(define (parity n)
		  (define (is-even x) (if (= x 0) 1 (is-odd (- x 1))))
		  (define (is-odd x) (if (= x 0) 0 (is-even (- x 1))))
		  (is-even n))
		(parity 10)
	`, []float64{1})
}

func TestEndToEndMultipleTopLevelResults(t *testing.T) {
	assertResults(t, `
		(+ 1 1)
		(* 3 3)
		(- 10 4)
	`, []float64{2, 9, 6})
}

// TestEndToEndFixtureAnnotations drives a source file annotated the way a
// test fixture is, with a ";; Result: <number>" comment above each
// top-level expression, and checks the compiled program's actual output
// against those annotations rather than against a hand-written expected
// slice. This both exercises comment handling in the parser and wires up
// testutil.ExpectedResults, the expected-value half of testutil.ActualResults.
func TestEndToEndFixtureAnnotations(t *testing.T) {
	src := `
		;; Result: 5
		(+ 2 3)

		;; factorial of 5
		(define (fact n) (if (= n 0) 1 (* n (fact (- n 1)))))
		;; Result: 120
		(fact 5)
	`

	expected, err := testutil.ExpectedResults(src)
	if err != nil {
		t.Fatalf("extract expected results: %v", err)
	}

	actual := endToEnd(t, src)
	if len(actual) != len(expected) {
		t.Fatalf("got %d results, want %d: %v", len(actual), len(expected), actual)
	}
	for i, want := range expected {
		if !testutil.WithinTolerance(actual[i], want) {
			t.Errorf("result %d = %v, want %v", i, actual[i], want)
		}
	}
}
