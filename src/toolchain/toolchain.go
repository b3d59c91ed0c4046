// Package toolchain hands a verified LLVM module off to the host's native
// code generator and then to the system linker, the two external
// collaborators this compiler does not implement itself. It mirrors the
// object-emission block of this project's other LLVM backend, trimmed to
// always target the host triple since this compiler offers no
// cross-compilation flags.
package toolchain

import (
	"fmt"
	"os"
	"os/exec"

	"tinygo.org/x/go-llvm"

	"lispc/src/compileerr"
)

// EmitObject compiles mod for the host's native target and writes the
// resulting object code to path.
func EmitObject(mod llvm.Module, path string) error {
	llvm.InitializeAllTargetInfos()
	llvm.InitializeAllTargetMCs()
	llvm.InitializeAllAsmParsers()
	llvm.InitializeAllAsmPrinters()
	llvm.InitializeAllTargets()

	triple := llvm.DefaultTargetTriple()
	target, err := llvm.GetTargetFromTriple(triple)
	if err != nil {
		return fmt.Errorf("toolchain: %w: %v", compileerr.ErrToolchain, err)
	}

	tm := target.CreateTargetMachine(triple, "generic", "",
		llvm.CodeGenLevelDefault,
		llvm.RelocDefault,
		llvm.CodeModelDefault)
	defer tm.Dispose()

	td := tm.CreateTargetData()
	defer td.Dispose()

	mod.SetDataLayout(td.String())
	mod.SetTarget(tm.Triple())

	buf, err := tm.EmitToMemoryBuffer(mod, llvm.ObjectFile)
	if err != nil {
		return fmt.Errorf("toolchain: %w: %v", compileerr.ErrToolchain, err)
	}
	if buf.IsNil() {
		return fmt.Errorf("toolchain: %w: could not emit compiled code to memory", compileerr.ErrToolchain)
	}

	fd, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0755)
	if err != nil {
		return fmt.Errorf("toolchain: %w: %v", compileerr.ErrToolchain, err)
	}
	defer func() {
		if cerr := fd.Close(); cerr != nil {
			fmt.Println(cerr)
		}
	}()
	if _, err := fd.Write(buf.Bytes()); err != nil {
		return fmt.Errorf("toolchain: %w: %v", compileerr.ErrToolchain, err)
	}
	return nil
}

// Link invokes the system C compiler driver as a linker, producing a
// native executable from an object file. The math library is always
// linked in since primitives like `/` lower to floating point
// instructions that some libc implementations route through libm.
func Link(objPath, outPath string) error {
	cmd := exec.Command("cc", objPath, "-o", outPath, "-lm")
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("toolchain: %w: linking failed: %v", compileerr.ErrToolchain, err)
	}
	return nil
}

// Run executes the linked binary at path and returns its captured stdout.
func Run(path string) (string, error) {
	cmd := exec.Command(path)
	out, err := cmd.Output()
	if err != nil {
		return string(out), fmt.Errorf("toolchain: %w: running %s failed: %v", compileerr.ErrToolchain, path, err)
	}
	return string(out), nil
}
