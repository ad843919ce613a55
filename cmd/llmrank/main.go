package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
)

// main defers all execution to the Cobra command tree.
func main() {
	// Load .env early so Viper sees the variables.
	_ = godotenv.Load()

	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "llmrank: %v\n", err)
		os.Exit(1)
	}
}
