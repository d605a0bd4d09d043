package main

import (
	"fmt"
	"os"
)

// Version information
const Version = "0.2.0"

func main() {
	if err := executeCLI(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "subbot: %v\n", err)
		os.Exit(1)
	}
}
