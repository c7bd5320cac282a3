package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/document-extractor/internal/app"
	"github.com/joseph-ayodele/document-extractor/internal/common"
	"github.com/joseph-ayodele/document-extractor/internal/documents"
	"github.com/joseph-ayodele/document-extractor/internal/logging"
)

// printError prints to stderr, falling back to stdout.
func printError(format string, args ...interface{}) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		fmt.Printf(format, args...)
	}
}

func main() {
	var (
		file  = flag.String("file", "", "document to extract (pdf, jpg, jpeg, png)")
		docID = flag.String("id", "", "re-run an already uploaded document instead of -file")
		inmem = flag.Bool("inmem", false, "use an in-memory SQLite database")
		xlsx  = flag.String("xlsx", "", "also write an XLSX export of all documents to this path")
	)
	flag.Parse()

	if (*file == "") == (*docID == "") {
		printError("Error: exactly one of --file or --id is required\n")
		flag.Usage()
		os.Exit(2)
	}

	cfg := common.LoadConfig()
	if *inmem {
		cfg.Database.Driver = "sqlite"
		cfg.Database.DSN = "file:extract-" + uuid.NewString() + "?mode=memory&cache=shared&_pragma=foreign_keys(1)"
	}
	if err := cfg.Validate(); err != nil {
		printError("Error: %v\n", err)
		os.Exit(2)
	}
	// Logs go to stderr so stdout carries only the result.
	cfg.Log.File = ""
	logger, closer := logging.NewWriter(os.Stderr, cfg.Log)
	defer closer.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		printError("Error: %v\n", err)
		os.Exit(1)
	}
	defer a.Close()

	id, err := target(ctx, a, *file, *docID)
	if err != nil {
		printError("Error: %v\n", err)
		os.Exit(1)
	}

	_, runErr := a.Processor.Process(ctx, id)
	detail, err := a.Documents.Detail(ctx, id)
	if err != nil {
		printError("Error: %v\n", err)
		os.Exit(1)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(detail); err != nil {
		printError("Error: %v\n", err)
		os.Exit(1)
	}

	if *xlsx != "" {
		data, err := a.Export.DocumentsXLSX(ctx, 0)
		if err == nil {
			err = os.WriteFile(*xlsx, data, 0o644)
		}
		if err != nil {
			printError("Error: export: %v\n", err)
			os.Exit(1)
		}
	}

	if runErr != nil {
		printError("Error: %v\n", runErr)
		os.Exit(1)
	}
}

func target(ctx context.Context, a *app.App, file, rawID string) (uuid.UUID, error) {
	if rawID != "" {
		return common.ParseID("id", rawID)
	}
	f, err := os.Open(file)
	if err != nil {
		return uuid.Nil, err
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return uuid.Nil, err
	}
	doc, err := a.Documents.Upload(ctx, documents.Upload{
		FileName: filepath.Base(file),
		Size:     info.Size(),
		Body:     f,
	})
	if err != nil {
		return uuid.Nil, err
	}
	return doc.ID, nil
}
