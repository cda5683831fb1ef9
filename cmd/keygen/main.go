package main

import (
	"fmt"
	"os"

	"github.com/tjfontaine/polyglot-llm-gateway/internal/auth"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: go run cmd/keygen/main.go <api-key>")
		fmt.Println("Generates a bcrypt hash of the provided API key for a tenant record")
		os.Exit(1)
	}

	apiKey := os.Args[1]
	hash, err := auth.HashAPIKey(apiKey)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to hash api key: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("API Key: %s\n", apiKey)
	fmt.Printf("Bcrypt Hash: %s\n", hash)
	fmt.Println("\nStore this as the tenant's apiKeyHash:")
	fmt.Printf("  id: <tenant-id>\n")
	fmt.Printf("  apiKeyHash: %q\n", hash)
}
