package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	llvmcg "lispc/src/codegen/llvm"
	"lispc/src/frontend"
	"lispc/src/lift"
	"lispc/src/toolchain"
	"lispc/src/transform"
	"lispc/src/util"
)

// run drives the compiler's stages in order: parse, transform, lift, and
// generate code. Behaviour past code generation is controlled by opt's
// EmitAsm/EmitObj/Run flags.
func run(opt util.Options) error {
	src, err := util.ReadSource(opt)
	if err != nil {
		return fmt.Errorf("could not read source code: %s\n", err)
	}

	tree, err := frontend.NewParser().ParseString(src)
	if err != nil {
		return fmt.Errorf("parse error: %s\n", err)
	}
	if opt.Verbose {
		fmt.Println("parse tree:")
		fmt.Println(tree)
	}

	prog, err := transform.Transform(tree)
	if err != nil {
		return fmt.Errorf("syntax error: %s\n", err)
	}

	lifted, err := lift.Lift(prog)
	if err != nil {
		return fmt.Errorf("lambda lifting error: %s\n", err)
	}
	if opt.Verbose {
		fmt.Println("lifted program:")
		for _, e := range lifted.Exprs {
			fmt.Println(e)
		}
	}

	base := outputBase(opt)

	if opt.EmitAsm {
		ir, err := llvmcg.Generate(lifted, base)
		if err != nil {
			return fmt.Errorf("code generation error: %s\n", err)
		}
		return writeFile(outPath(opt, base, ".ll"), ir)
	}

	res, err := llvmcg.GenerateModule(lifted, base)
	if err != nil {
		return fmt.Errorf("code generation error: %s\n", err)
	}
	defer res.Dispose()

	if opt.Verbose {
		fmt.Println("LLVM IR:")
		fmt.Println(res.IR)
	}

	objPath := outPath(opt, base, ".o")
	if opt.Out != "" && !opt.EmitObj {
		// opt.Out names the executable here, so the intermediate object
		// file gets a path of its own.
		objPath = opt.Out + ".o"
	}
	if err := toolchain.EmitObject(res.Module, objPath); err != nil {
		return fmt.Errorf("code generation error: %s\n", err)
	}
	if opt.EmitObj {
		return nil
	}
	defer os.Remove(objPath)

	exePath := outPath(opt, base, "")
	if err := toolchain.Link(objPath, exePath); err != nil {
		return fmt.Errorf("link error: %s\n", err)
	}

	if opt.Run {
		out, err := toolchain.Run(exePath)
		fmt.Print(out)
		if err != nil {
			return fmt.Errorf("runtime error: %s\n", err)
		}
	}
	return nil
}

// outputBase derives a stable base name for the module and default output
// artifacts from the source path, falling back to "a" when reading from
// stdin.
func outputBase(opt util.Options) string {
	if opt.Src == "" {
		return "a"
	}
	return strings.TrimSuffix(filepath.Base(opt.Src), filepath.Ext(opt.Src))
}

// outPath returns opt.Out if set, otherwise base+suffix in the working
// directory.
func outPath(opt util.Options, base, suffix string) string {
	if opt.Out != "" {
		return opt.Out
	}
	return "./" + base + suffix
}

func writeFile(path, content string) error {
	return os.WriteFile(path, []byte(content), 0644)
}

func main() {
	opt, err := util.ParseArgs()
	if err != nil {
		fmt.Printf("Command line argument error: %s\n", err)
		os.Exit(1)
	}

	if err := run(opt); err != nil {
		fmt.Printf("Error: %s", err)
		os.Exit(1)
	}
}
