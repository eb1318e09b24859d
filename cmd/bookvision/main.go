// Copyright 2025 BookVision Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	bookvision "github.com/bookvision/bookvision"
	"github.com/bookvision/bookvision/ai"
	"github.com/bookvision/bookvision/chunk"
	"github.com/bookvision/bookvision/extract"
	"github.com/bookvision/bookvision/reindex"
	"github.com/bookvision/bookvision/retrieval"
	"github.com/urfave/cli/v2"
)

func main() {
	app := &cli.App{
		Name:  "bookvision",
		Usage: "Page-aware book ingestion and semantic retrieval",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
			},
			&cli.StringFlag{
				Name:    "data",
				Aliases: []string{"d"},
				Usage:   "Path to the data directory",
				Value:   "./bookvision-data",
			},
			&cli.StringFlag{
				Name:  "host",
				Usage: "OpenAI-compatible service host URL (embedding and generation)",
				Value: "http://localhost:11434/v1",
			},
			&cli.StringFlag{
				Name:  "embedding-model",
				Usage: "Embedding model name",
				Value: "embeddinggemma",
			},
			&cli.StringFlag{
				Name:  "generator-model",
				Usage: "Generation model name",
				Value: "qwen2.5:3b",
			},
			&cli.StringFlag{
				Name:  "redis-url",
				Usage: "Redis URL for the shared query cache (optional)",
			},
			&cli.DurationFlag{
				Name:  "cache-ttl",
				Usage: "How long query results stay cached",
				Value: 15 * time.Minute,
			},
			&cli.IntFlag{
				Name:  "chunk-size",
				Usage: "Target chunk size in characters",
				Value: chunk.DefaultTargetSize,
			},
			&cli.IntFlag{
				Name:  "chunk-min",
				Usage: "Minimum page text length to index, in characters",
				Value: chunk.DefaultMinSize,
			},
		},
		Before: setupLogger,
		Commands: []*cli.Command{
			{
				Name:      "ingest",
				Usage:     "Index a PDF or scanned image as a book",
				ArgsUsage: "FILE",
				Action:    ingestCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "book-id",
						Usage: "Book identifier (defaults to the file name without extension)",
					},
					&cli.StringFlag{
						Name:  "title",
						Usage: "Book title carried onto every chunk",
					},
				},
			},
			{
				Name:      "query",
				Usage:     "Ask a question against the indexed books",
				ArgsUsage: "QUESTION",
				Action:    queryCommand,
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:    "top-k",
						Aliases: []string{"k"},
						Usage:   "Number of passages to return",
						Value:   retrieval.DefaultTopK,
					},
					&cli.StringFlag{
						Name:  "book-id",
						Usage: "Restrict the search to one book",
					},
				},
			},
			{
				Name:      "ask",
				Usage:     "Answer a question with generated prose grounded in indexed passages",
				ArgsUsage: "QUESTION",
				Action:    askCommand,
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:    "top-k",
						Aliases: []string{"k"},
						Usage:   "Number of passages to ground the answer in",
						Value:   retrieval.DefaultTopK,
					},
					&cli.StringFlag{
						Name:  "book-id",
						Usage: "Restrict the search to one book",
					},
				},
			},
			{
				Name:      "summarize",
				Usage:     "Summarize a book's opening pages",
				ArgsUsage: "BOOK_ID",
				Action:    summarizeCommand,
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "max-pages",
						Usage: "Number of opening pages to summarize",
						Value: retrieval.DefaultSummaryPages,
					},
				},
			},
			{
				Name:   "stats",
				Usage:  "Show index statistics",
				Action: statsCommand,
			},
			{
				Name:   "books",
				Usage:  "List indexed books",
				Action: booksCommand,
			},
			{
				Name:   "reindex",
				Usage:  "Re-embed every indexed book with the configured model",
				Action: reindexCommand,
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "batch-size",
						Usage: "Number of chunks to embed in each request",
						Value: 100,
					},
					&cli.IntFlag{
						Name:  "report-interval",
						Usage: "Report progress every N chunks",
						Value: 100,
					},
					&cli.IntFlag{
						Name:  "max-retries",
						Usage: "Maximum retry attempts for failed operations",
						Value: 3,
					},
					&cli.DurationFlag{
						Name:  "retry-delay",
						Usage: "Base delay for exponential backoff",
						Value: 1 * time.Second,
					},
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func openLibrary(c *cli.Context) (*bookvision.Library, error) {
	aiConfig := ai.NewConfig(
		ai.WithHost(c.String("host")),
		ai.WithEmbeddingModel(c.String("embedding-model")),
		ai.WithGeneratorModel(c.String("generator-model")),
	)
	if err := aiConfig.Validate(); err != nil {
		return nil, fmt.Errorf("invalid AI configuration: %w", err)
	}

	opts := []bookvision.LibraryOption{
		bookvision.WithAIConfig(aiConfig),
		bookvision.WithCacheTTL(c.Duration("cache-ttl")),
		bookvision.WithChunkSettings(chunk.Settings{
			TargetSize: c.Int("chunk-size"),
			MinSize:    c.Int("chunk-min"),
		}),
	}
	if url := c.String("redis-url"); url != "" {
		opts = append(opts, bookvision.WithRedisURL(url))
	}
	return bookvision.Open(c.String("data"), opts...)
}

func ingestCommand(c *cli.Context) error {
	if c.NArg() != 1 {
		return fmt.Errorf("expected exactly one FILE argument")
	}
	path := c.Args().First()

	format, err := extract.DetectFormat(path)
	if err != nil {
		return err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}

	bookID := c.String("book-id")
	if bookID == "" {
		base := filepath.Base(path)
		bookID = strings.TrimSuffix(base, filepath.Ext(base))
	}

	lib, err := openLibrary(c)
	if err != nil {
		return err
	}
	defer lib.Close()

	summary, err := lib.Ingest(context.Background(), &retrieval.IngestRequest{
		BookID: bookID,
		Title:  c.String("title"),
		Source: filepath.Base(path),
		Data:   data,
		Format: format,
	})
	if err != nil {
		return fmt.Errorf("ingestion failed: %w", err)
	}

	fmt.Printf("Indexed %q: %d pages, %d chunks\n",
		summary.BookID, summary.PagesCount, summary.ChunksIndexed)
	if summary.ChunksIndexed == 0 {
		fmt.Println("Warning: no page produced enough text to index")
	}
	return nil
}

func queryCommand(c *cli.Context) error {
	if c.NArg() != 1 {
		return fmt.Errorf("expected exactly one QUESTION argument")
	}

	lib, err := openLibrary(c)
	if err != nil {
		return err
	}
	defer lib.Close()

	result, err := lib.Query(context.Background(), c.Args().First(), c.Int("top-k"), c.String("book-id"))
	if err != nil {
		return fmt.Errorf("query failed: %w", err)
	}

	if result.CacheHit {
		fmt.Println("(cached)")
	}
	if len(result.Results) == 0 {
		fmt.Println("No matching passages.")
		return nil
	}
	for i, r := range result.Results {
		fmt.Printf("%d. [%s %.3f] %s, p. %d\n   %s\n",
			i+1, r.Confidence, r.Score, r.Chunk.BookID, r.Chunk.PageNumber, r.Chunk.Text)
	}
	return nil
}

func askCommand(c *cli.Context) error {
	if c.NArg() != 1 {
		return fmt.Errorf("expected exactly one QUESTION argument")
	}

	lib, err := openLibrary(c)
	if err != nil {
		return err
	}
	defer lib.Close()

	answer, err := lib.Ask(context.Background(), c.Args().First(), c.Int("top-k"), c.String("book-id"))
	if err != nil {
		return fmt.Errorf("ask failed: %w", err)
	}

	fmt.Printf("%s\n\nSources:\n", answer.Text)
	for i, r := range answer.Results {
		fmt.Printf("%d. [%s %.3f] %s, p. %d\n",
			i+1, r.Confidence, r.Score, r.Chunk.BookID, r.Chunk.PageNumber)
	}
	return nil
}

func summarizeCommand(c *cli.Context) error {
	if c.NArg() != 1 {
		return fmt.Errorf("expected exactly one BOOK_ID argument")
	}

	lib, err := openLibrary(c)
	if err != nil {
		return err
	}
	defer lib.Close()

	summary, err := lib.Summarize(context.Background(), c.Args().First(), c.Int("max-pages"))
	if err != nil {
		return fmt.Errorf("summarize failed: %w", err)
	}

	fmt.Printf("Summary of %q (%s, %d pages, %d chunks):\n\n%s\n",
		summary.BookID, summary.Source, summary.PagesUsed, summary.ChunksUsed, summary.Text)
	return nil
}

func statsCommand(c *cli.Context) error {
	lib, err := openLibrary(c)
	if err != nil {
		return err
	}
	defer lib.Close()

	stats, err := lib.Stats(context.Background())
	if err != nil {
		return fmt.Errorf("stats failed: %w", err)
	}

	fmt.Printf("Total chunks: %d\n", stats.TotalChunks)
	fmt.Printf("Vector dimension: %d\n", stats.Dimension)
	for book, count := range stats.Books {
		fmt.Printf("  %s: %d chunks\n", book, count)
	}
	return nil
}

func booksCommand(c *cli.Context) error {
	lib, err := openLibrary(c)
	if err != nil {
		return err
	}
	defer lib.Close()

	books, err := lib.Books(context.Background())
	if err != nil {
		return fmt.Errorf("books failed: %w", err)
	}

	if len(books) == 0 {
		fmt.Println("No books indexed.")
		return nil
	}
	for _, book := range books {
		title := book.Title
		if title == "" {
			title = "(untitled)"
		}
		fmt.Printf("%s - %s: %d chunks across %d pages\n",
			book.BookID, title, book.ChunkCount, len(book.Pages))
	}
	return nil
}

func reindexCommand(c *cli.Context) error {
	lib, err := openLibrary(c)
	if err != nil {
		return err
	}
	defer lib.Close()

	config := &reindex.Config{
		BatchSize:      c.Int("batch-size"),
		ReportInterval: c.Int("report-interval"),
		MaxRetries:     c.Int("max-retries"),
		RetryDelay:     c.Duration("retry-delay"),
	}
	if config.BatchSize <= 0 {
		return fmt.Errorf("batch-size must be greater than 0")
	}
	if config.ReportInterval <= 0 {
		return fmt.Errorf("report-interval must be greater than 0")
	}
	if config.MaxRetries <= 0 {
		return fmt.Errorf("max-retries must be greater than 0")
	}

	reindexer := reindex.NewReindexer(lib.Index(), lib.Embedder(), config, os.Stderr)
	if err := reindexer.Run(context.Background()); err != nil {
		return fmt.Errorf("reindexing failed: %w", err)
	}
	return nil
}

func setupLogger(c *cli.Context) error {
	levelStr := strings.ToLower(c.String("log-level"))

	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", levelStr)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	return nil
}
