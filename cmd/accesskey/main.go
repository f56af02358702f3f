// Command accesskey prints the bcrypt hash to put in ACCESS_KEY_HASH.
//
//	go run ./cmd/accesskey 'my access key'
package main

import (
	"fmt"
	"os"

	"pocketbook/internal/logger"
	"pocketbook/internal/services"
)

const minAccessKeyLength = 12

func main() {
	logger.Init(os.Getenv("ENV"), os.Getenv("LOG_LEVEL"))
	defer logger.Sync()

	if err := run(os.Args[1:]); err != nil {
		logger.Get().Fatalf("accesskey: %v", err)
	}
}

func run(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: accesskey <access key>")
	}
	key := args[0]
	if len(key) < minAccessKeyLength {
		return fmt.Errorf("access key must be at least %d characters", minAccessKeyLength)
	}
	if len(key) > 72 {
		return fmt.Errorf("access key must be at most 72 bytes")
	}

	hash, err := services.HashAccessKey(key)
	if err != nil {
		return fmt.Errorf("hash access key: %w", err)
	}
	fmt.Println(hash)
	return nil
}
