// Package llvm lowers a lambda-lifted AST into LLVM IR using
// tinygo.org/x/go-llvm, the LLVM binding this project's lineage already
// depends on. Every runtime value is a 64-bit double; comparisons produce a
// 1-bit value immediately widened back into the uniform value universe so
// the rest of the pipeline never has to reason about more than one IR type.
//
// Generation runs in three passes over the top-level expressions: declare
// every function signature, emit every function body, then emit the
// synthetic main that evaluates and prints the non-function top-level
// expressions. The two-pass split over declarations and bodies is what lets
// one top-level function call another regardless of source order.
package llvm

import (
	"fmt"

	"tinygo.org/x/go-llvm"

	"lispc/src/ast"
	"lispc/src/compileerr"
)

var doubleType = llvm.DoubleType()

// reservedFunctionNames cannot be used as user-defined top-level function
// names because the generator itself declares them.
var reservedFunctionNames = map[string]bool{
	"main":   true,
	"printf": true,
}

// funcTable maps a top-level function name to its declared IR function.
type funcTable map[string]llvm.Value

// localTable maps a parameter name to the IR value bound to it within the
// function currently being emitted. Lisp has no mutation, so every
// parameter binding is the SSA value handed in at the call site — there is
// no need for the alloca/load/store dance a language with assignment would
// require.
type localTable map[string]llvm.Value

// Result holds the LLVM module a Generate call produced, along with the
// context that owns it. Callers that only need the textual IR can ignore
// everything but IR; package toolchain uses Module directly to emit object
// code without a text round-trip. GenerateModule has already verified it.
type Result struct {
	Context llvm.Context
	Module  llvm.Module
	IR      string
}

// Dispose releases the underlying LLVM module and context. Safe to call
// once Result is no longer needed.
func (r *Result) Dispose() {
	r.Module.Dispose()
	r.Context.Dispose()
}

// Generate lowers prog to textual LLVM IR under the given module name. This
// is the codegen package's primary contract: it owns the module it builds
// and yields only the IR text, disposing everything else.
func Generate(prog *ast.Program, moduleName string) (string, error) {
	res, err := GenerateModule(prog, moduleName)
	if err != nil {
		return "", err
	}
	defer res.Dispose()
	return res.IR, nil
}

// GenerateModule lowers prog and returns the live module. Prefer Generate
// unless the caller needs the in-memory module (object emission does).
func GenerateModule(prog *ast.Program, moduleName string) (*Result, error) {
	if prog == nil {
		return nil, fmt.Errorf("codegen: program is nil")
	}

	ctx := llvm.NewContext()
	b := ctx.NewBuilder()
	defer b.Dispose()

	mod := ctx.NewModule(moduleName)
	mod.SetTarget(llvm.DefaultTargetTriple())

	printfFn := declarePrintf(mod)

	type pendingBody struct {
		def  *ast.Define
		lam  *ast.Lambda
		llfn llvm.Value
	}

	funcs := funcTable{}
	var bodies []pendingBody
	var topLevel []ast.Node

	// Pass 1: declare every top-level function signature so forward
	// references and mutual recursion resolve regardless of source order.
	for _, e := range prog.Exprs {
		def, ok := e.(*ast.Define)
		if !ok {
			topLevel = append(topLevel, e)
			continue
		}
		lam, ok := def.Value.(*ast.Lambda)
		if !ok {
			return nil, fmt.Errorf("codegen: non-function top-level define %q is unsupported", def.Target.Name)
		}
		name := def.Target.Name
		if reservedFunctionNames[name] {
			return nil, fmt.Errorf("codegen: %q collides with a reserved name", name)
		}
		if _, exists := funcs[name]; exists {
			return nil, fmt.Errorf("codegen: duplicate top-level function %q", name)
		}
		paramTypes := make([]llvm.Type, len(lam.Params))
		for i := range paramTypes {
			paramTypes[i] = doubleType
		}
		fnType := llvm.FunctionType(doubleType, paramTypes, false)
		llfn := llvm.AddFunction(mod, name, fnType)
		funcs[name] = llfn
		bodies = append(bodies, pendingBody{def: def, lam: lam, llfn: llfn})
	}

	// Pass 2: emit each function's body.
	for _, p := range bodies {
		entry := llvm.AddBasicBlock(p.llfn, "entry")
		b.SetInsertPointAtEnd(entry)

		locals := localTable{}
		for i, param := range p.lam.Params {
			locals[param.Name] = p.llfn.Param(i)
		}

		var last llvm.Value
		for _, bodyExpr := range p.lam.Body {
			var err error
			last, err = genExpr(b, funcs, locals, bodyExpr)
			if err != nil {
				return nil, fmt.Errorf("codegen: in function %q: %w", p.def.Target.Name, err)
			}
		}
		b.CreateRet(last)
	}

	// Pass 3: main, which evaluates and prints every top-level
	// non-function expression in source order.
	if err := genMain(b, mod, funcs, printfFn, topLevel); err != nil {
		return nil, err
	}

	if err := llvm.VerifyModule(mod, llvm.ReturnStatusAction); err != nil {
		return nil, fmt.Errorf("codegen: %w: %v", compileerr.ErrVerification, err)
	}

	return &Result{Context: ctx, Module: mod, IR: mod.String()}, nil
}

// genMain synthesizes `main() -> i32`, evaluating topLevel in source order
// and printing each result via printf before returning 0.
func genMain(b llvm.Builder, mod llvm.Module, funcs funcTable, printfFn llvm.Value, topLevel []ast.Node) error {
	i32 := llvm.Int32Type()
	mainFn := llvm.AddFunction(mod, "main", llvm.FunctionType(i32, nil, false))
	entry := llvm.AddBasicBlock(mainFn, "entry")
	b.SetInsertPointAtEnd(entry)

	fmtStr := b.CreateGlobalStringPtr("Result: %f\n", "fmt.result")
	locals := localTable{}
	for _, e := range topLevel {
		val, err := genExpr(b, funcs, locals, e)
		if err != nil {
			return fmt.Errorf("codegen: in top-level expression: %w", err)
		}
		b.CreateCall(printfFn, []llvm.Value{fmtStr, val}, "")
	}
	b.CreateRet(llvm.ConstInt(i32, 0, false))
	return nil
}

// genExpr lowers a single AST expression to an LLVM value in the current
// block.
func genExpr(b llvm.Builder, funcs funcTable, locals localTable, n ast.Node) (llvm.Value, error) {
	switch v := n.(type) {
	case *ast.Number:
		return llvm.ConstFloat(doubleType, v.Value), nil
	case *ast.Bool:
		if v.Value {
			return llvm.ConstFloat(doubleType, 1.0), nil
		}
		return llvm.ConstFloat(doubleType, 0.0), nil
	case *ast.Symbol:
		val, ok := locals[v.Name]
		if !ok {
			return llvm.Value{}, fmt.Errorf("codegen: %w: %q", compileerr.ErrUndefinedVariable, v.Name)
		}
		return val, nil
	case *ast.If:
		return genIf(b, funcs, locals, v)
	case *ast.ProcCall:
		return genProcCall(b, funcs, locals, v)
	case *ast.String:
		return llvm.Value{}, fmt.Errorf("string literals are not supported by code generation")
	case *ast.Quote:
		return llvm.Value{}, fmt.Errorf("quote is not lowered by code generation")
	default:
		return llvm.Value{}, fmt.Errorf("cannot lower AST node %T", n)
	}
}

// genIf lowers a conditional. The test is widened to an i1 by comparing
// != 0.0, then/else each get their own block, and a phi at the merge block
// selects the result. The block recorded as each incoming edge is whatever
// block the builder is in right after that arm's terminating branch — not
// the block where the arm began — since evaluating the arm may itself have
// opened and closed further nested blocks.
func genIf(b llvm.Builder, funcs funcTable, locals localTable, n *ast.If) (llvm.Value, error) {
	testVal, err := genExpr(b, funcs, locals, n.Test)
	if err != nil {
		return llvm.Value{}, err
	}
	cond := b.CreateFCmp(llvm.FloatONE, testVal, llvm.ConstFloat(doubleType, 0.0), "")

	fn := b.GetInsertBlock().Parent()
	thenBB := llvm.AddBasicBlock(fn, "if.then")
	elseBB := llvm.AddBasicBlock(fn, "if.else")
	mergeBB := llvm.AddBasicBlock(fn, "if.merge")
	b.CreateCondBr(cond, thenBB, elseBB)

	b.SetInsertPointAtEnd(thenBB)
	thenVal, err := genExpr(b, funcs, locals, n.Conseq)
	if err != nil {
		return llvm.Value{}, err
	}
	b.CreateBr(mergeBB)
	thenEnd := b.GetInsertBlock()

	b.SetInsertPointAtEnd(elseBB)
	var elseVal llvm.Value
	if n.Alt != nil {
		elseVal, err = genExpr(b, funcs, locals, n.Alt)
		if err != nil {
			return llvm.Value{}, err
		}
	} else {
		elseVal = llvm.ConstFloat(doubleType, 0.0)
	}
	b.CreateBr(mergeBB)
	elseEnd := b.GetInsertBlock()

	b.SetInsertPointAtEnd(mergeBB)
	phi := b.CreatePHI(doubleType, "")
	phi.AddIncoming([]llvm.Value{thenVal, elseVal}, []llvm.BasicBlock{thenEnd, elseEnd})
	return phi, nil
}

// genProcCall dispatches a procedure call to either a primitive lowering or
// a call instruction against a declared top-level function.
func genProcCall(b llvm.Builder, funcs funcTable, locals localTable, n *ast.ProcCall) (llvm.Value, error) {
	opSym, ok := n.Operator.(*ast.Symbol)
	if !ok {
		return llvm.Value{}, fmt.Errorf("codegen: %w", compileerr.ErrNonSymbolOperator)
	}

	switch opSym.Name {
	case "+", "-", "*", "/":
		return genArith(b, funcs, locals, opSym.Name, n.Operands)
	case "=", "<", ">":
		return genCompare(b, funcs, locals, opSym.Name, n.Operands)
	default:
		fn, ok := funcs[opSym.Name]
		if !ok {
			return llvm.Value{}, fmt.Errorf("codegen: %w: %q", compileerr.ErrUnknownFunction, opSym.Name)
		}
		args := make([]llvm.Value, len(n.Operands))
		for i, o := range n.Operands {
			v, err := genExpr(b, funcs, locals, o)
			if err != nil {
				return llvm.Value{}, err
			}
			args[i] = v
		}
		return b.CreateCall(fn, args, ""), nil
	}
}

// genArith lowers the four binary arithmetic primitives. Unary minus is the
// sole arity exception: `(- x)` lowers to `0.0 - x`.
func genArith(b llvm.Builder, funcs funcTable, locals localTable, op string, operands []ast.Node) (llvm.Value, error) {
	if op == "-" && len(operands) == 1 {
		x, err := genExpr(b, funcs, locals, operands[0])
		if err != nil {
			return llvm.Value{}, err
		}
		return b.CreateFSub(llvm.ConstFloat(doubleType, 0.0), x, ""), nil
	}
	if len(operands) != 2 {
		return llvm.Value{}, fmt.Errorf("primitive %q expects exactly 2 operands, got %d", op, len(operands))
	}
	lhs, err := genExpr(b, funcs, locals, operands[0])
	if err != nil {
		return llvm.Value{}, err
	}
	rhs, err := genExpr(b, funcs, locals, operands[1])
	if err != nil {
		return llvm.Value{}, err
	}
	switch op {
	case "+":
		return b.CreateFAdd(lhs, rhs, ""), nil
	case "-":
		return b.CreateFSub(lhs, rhs, ""), nil
	case "*":
		return b.CreateFMul(lhs, rhs, ""), nil
	default: // "/"
		return b.CreateFDiv(lhs, rhs, ""), nil
	}
}

// genCompare lowers the three ordered-comparison primitives. The i1 result
// of CreateFCmp is widened to a double via unsigned-int-to-float so it can
// flow through the uniform value universe.
func genCompare(b llvm.Builder, funcs funcTable, locals localTable, op string, operands []ast.Node) (llvm.Value, error) {
	if len(operands) != 2 {
		return llvm.Value{}, fmt.Errorf("primitive %q expects exactly 2 operands, got %d", op, len(operands))
	}
	lhs, err := genExpr(b, funcs, locals, operands[0])
	if err != nil {
		return llvm.Value{}, err
	}
	rhs, err := genExpr(b, funcs, locals, operands[1])
	if err != nil {
		return llvm.Value{}, err
	}
	var pred llvm.FloatPredicate
	switch op {
	case "=":
		pred = llvm.FloatOEQ
	case ">":
		pred = llvm.FloatOGT
	default: // "<"
		pred = llvm.FloatOLT
	}
	cmp := b.CreateFCmp(pred, lhs, rhs, "")
	return b.CreateUIToFP(cmp, doubleType, ""), nil
}

// declarePrintf declares the external printf(i8*, ...) -> i32 used to print
// each top-level expression's result.
func declarePrintf(mod llvm.Module) llvm.Value {
	charPtr := llvm.PointerType(llvm.Int8Type(), 0)
	fnType := llvm.FunctionType(llvm.Int32Type(), []llvm.Type{charPtr}, true)
	return llvm.AddFunction(mod, "printf", fnType)
}
