// geminikey stores a Gemini API key in the configured storage backend so
// the API server picks it up on the next start.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"imagestudio/internal/infra"
	"imagestudio/internal/store"
)

func main() {
	var keyFlag string
	flag.StringVar(&keyFlag, "key", "", "Gemini API key (fallbacks to GEMINI_API_KEY)")
	flag.Parse()

	_ = godotenv.Load()

	key := strings.TrimSpace(keyFlag)
	if key == "" {
		key = strings.TrimSpace(os.Getenv("GEMINI_API_KEY"))
	}
	if key == "" {
		fmt.Fprintln(os.Stderr, "Gemini API key is required via -key or GEMINI_API_KEY")
		os.Exit(1)
	}

	cfg, err := infra.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	logger := infra.NewLogger("cli").With().Str("cmd", "geminikey").Logger()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var storage store.Storage
	switch cfg.StorageBackend {
	case infra.StorageBackendPostgres:
		pool, err := infra.NewDBPool(ctx, cfg)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to connect database: %v\n", err)
			os.Exit(1)
		}
		defer pool.Close()
		storage, err = store.NewPGStore(ctx, infra.NewSQLRunner(pool, logger))
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to initialize postgres storage: %v\n", err)
			os.Exit(1)
		}
	default:
		storage, err = store.NewFileStore(cfg.StoragePath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to initialize file storage: %v\n", err)
			os.Exit(1)
		}
	}

	credentials := store.NewCredentials(storage, logger)
	if err := credentials.SetToken(ctx, store.ProviderGemini, key); err != nil {
		fmt.Fprintf(os.Stderr, "failed to persist gemini api key: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("GEMINI API key stored successfully")
}
