package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/SaurabhDhamne/AirStore/internal/gemini"
	"github.com/SaurabhDhamne/AirStore/internal/logger"
	"github.com/SaurabhDhamne/AirStore/internal/records"
)

func main() {
	log := logger.New()

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "extract":
		runExtract(log)
	case "inspect":
		runInspect(log)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("AirStore CLI")
	fmt.Println("\nUsage:")
	fmt.Println("  cli <command> [options]")
	fmt.Println("\nCommands:")
	fmt.Println("  extract   Run ledger extraction on a local image and print the result")
	fmt.Println("  inspect   Inspect a stored record and its entries")
	fmt.Println("  help      Show this help message")
	fmt.Println("\nRun 'cli <command> -h' for more information on a command.")
}

// runExtract calls the model directly, outside the server. Useful for
// checking how a particular photo reads before pointing a phone at the
// webhook.
func runExtract(log zerolog.Logger) {
	fs := flag.NewFlagSet("extract", flag.ExitOnError)
	filePath := fs.String("file", "", "Path to local ledger image")
	model := fs.String("model", "gemini-2.5-flash", "Gemini model name")
	fs.Parse(os.Args[2:])

	if *filePath == "" {
		log.Fatal().Msg("Error: --file is required")
	}
	apiKey := os.Getenv("GEMINI_API_KEY")
	if apiKey == "" {
		log.Fatal().Msg("Error: GEMINI_API_KEY is not set")
	}

	image, err := os.ReadFile(*filePath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to read image")
	}
	mimeType := mime.TypeByExtension(filepath.Ext(*filePath))
	if mimeType == "" {
		mimeType = "image/jpeg"
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	extractor, err := gemini.NewExtractor(ctx, apiKey, *model, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create extractor")
	}

	log.Info().Str("file", *filePath).Str("mime_type", mimeType).Msg("Running extraction")

	result, err := extractor.ExtractLedger(ctx, image, mimeType)
	if err != nil {
		log.Fatal().Err(err).Msg("Extraction failed")
	}

	out, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to render result")
	}
	fmt.Println(string(out))
}

func runInspect(log zerolog.Logger) {
	fs := flag.NewFlagSet("inspect", flag.ExitOnError)
	recordID := fs.String("record-id", "", "Record ID to inspect")
	dbPath := fs.String("db", "records.db", "Path to the records database")
	fs.Parse(os.Args[2:])

	if *recordID == "" {
		log.Fatal().Msg("Error: --record-id is required")
	}

	ctx := context.Background()

	store, err := records.Open(*dbPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open records database")
	}
	defer store.Close()

	rec, err := store.Get(ctx, *recordID)
	if err != nil {
		log.Fatal().Err(err).Str("record_id", *recordID).Msg("Failed to load record")
	}

	fmt.Println("\n=== Record ===")
	fmt.Printf("ID:      %s\n", rec.ID)
	fmt.Printf("Status:  %s\n", rec.Status)
	fmt.Printf("Created: %s\n", rec.CreatedAt.Format(time.RFC3339))

	fmt.Printf("\n=== Entries (%d) ===\n", len(rec.Payload.Entries))
	for i, entry := range rec.Payload.Entries {
		fmt.Printf("\n%d. %s\n", i+1, entry.Name)
		fmt.Printf("   Date:   %s\n", entry.Date)
		fmt.Printf("   Amount: %s\n", entry.Amount.String())
		fmt.Printf("   Status: %s\n", entry.Status)
	}
	fmt.Println()
}
