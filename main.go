// Package main provides the entry point for TinyNPU.
// TinyNPU is a cycle-accurate model of a systolic matrix-multiply
// accelerator built on Akita.
//
// For the full CLI, use: go run ./cmd/tinynpu
package main

import (
	"fmt"
	"os"
)

func main() {
	fmt.Println("TinyNPU - Systolic Matrix-Multiply Accelerator Model")
	fmt.Println("Built on Akita simulation framework")
	fmt.Println("")
	fmt.Println("Usage: tinynpu [global options] <command> [options]")
	fmt.Println("")
	fmt.Println("Commands:")
	fmt.Println("  matmul     Multiply random matrices and check the result")
	fmt.Println("  run        Execute a program image and evaluate its checks")
	fmt.Println("  config     Dump, validate or write configurations")
	fmt.Println("")
	fmt.Println("Run 'go run ./cmd/tinynpu' for the full CLI.")
	fmt.Println("Timing benchmarks: go run ./cmd/benchmark [--csv|--json]")
	fmt.Println("Profiling:         go run ./cmd/profile --cpuprofile cpu.out <program.yaml>")

	if len(os.Args) > 1 {
		fmt.Println("\nNote: You provided arguments. Use 'go run ./cmd/tinynpu' instead.")
	}
}
