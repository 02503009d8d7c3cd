// Command ggipc-opgen generates the ipc package operation table from a YAML
// definition file.
//
// Usage:
//
//	ggipc-opgen -input pkg/ipc/operations.yaml -output pkg/ipc/operations_gen.go
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/tools/imports"
)

func main() {
	input := flag.String("input", "", "Path to operations.yaml")
	output := flag.String("output", "", "Output path for the generated Go file")
	pkg := flag.String("package", "ipc", "Package name of the generated file")
	flag.Parse()

	if *input == "" || *output == "" {
		fmt.Fprintln(os.Stderr, "Usage: ggipc-opgen -input <operations.yaml> -output <file.go> [-package <name>]")
		flag.PrintDefaults()
		os.Exit(1)
	}

	if err := run(*input, *output, *pkg); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(input, output, pkg string) error {
	defs, err := LoadOperations(input)
	if err != nil {
		return fmt.Errorf("loading operations: %w", err)
	}

	code, err := Generate(pkg, filepath.Base(input), defs)
	if err != nil {
		return fmt.Errorf("generating operations: %w", err)
	}

	if err := writeFormatted(output, code); err != nil {
		return fmt.Errorf("writing %s: %w", filepath.Base(output), err)
	}
	fmt.Printf("  generated %s (%d operations)\n", output, len(defs.Operations))
	return nil
}

// writeFormatted runs goimports over code and writes it to path.
func writeFormatted(path string, code string) error {
	formatted, err := imports.Process(path, []byte(code), nil)
	if err != nil {
		// Write unformatted so you can debug the generator output
		_ = os.WriteFile(path+".broken", []byte(code), 0o644)
		return fmt.Errorf("goimports %s: %w", filepath.Base(path), err)
	}
	return os.WriteFile(path, formatted, 0o644)
}
