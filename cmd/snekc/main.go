// This is the main-driver for our compiler.

package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/snek-lang/snekc/internal/compiler"
	"github.com/snek-lang/snekc/internal/sexpr"
)

func main() {

	//
	// Look for flags.
	//
	debug := flag.Bool("debug", false, "Insert debug \"stuff\" in our generated output.")
	heapWords := flag.Int("heap-words", 1000000, "Heap arena size in 8-byte words; only reported under -debug, the generated code does not depend on it.")
	flag.Parse()

	//
	// Ensure we have a source file and an output file as our two
	// positional arguments.
	//
	if len(flag.Args()) != 2 {
		fmt.Fprintf(os.Stderr, "Usage: snekc <input.snek> <output.s>\n")
		os.Exit(1)
	}
	input := flag.Args()[0]
	output := flag.Args()[1]

	src, err := os.ReadFile(input)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading %s: %s\n", input, err.Error())
		os.Exit(1)
	}

	//
	// Parse the source into a program.
	//
	prog, err := sexpr.Parse(string(src))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error compiling: %s\n", err.Error())
		os.Exit(1)
	}

	if *debug {
		fmt.Fprintf(os.Stderr, "parsed %d definition(s)\n", len(prog.Defs))
		fmt.Fprintf(os.Stderr, "heap arena sized for %d words\n", *heapWords)
	}

	//
	// Compile.
	//
	out, err := compiler.CompileProgram(prog)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error compiling: %s\n", err.Error())
		os.Exit(1)
	}

	//
	// Write the generated assembly to the requested output file.
	//
	if err := os.WriteFile(output, []byte(out), 0644); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing %s: %s\n", output, err.Error())
		os.Exit(1)
	}
}
