// Package main provides the vaultsearch CLI: incremental index sync,
// semantic search, grounded chat, and the MCP server.
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"vaultsearch/internal/ai"
	"vaultsearch/internal/config"
	"vaultsearch/internal/indexer"
	mcpserver "vaultsearch/internal/mcp"
	"vaultsearch/internal/markdown"
	"vaultsearch/internal/retrieval"
	"vaultsearch/internal/source"
	"vaultsearch/internal/store"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "vaultsearch",
	Short: "Semantic search over a markdown note vault",
	Long:  "Keeps a vector index synchronized with a markdown source tree and answers queries against it.",
}

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Run one incremental sync pass",
	Long: `Diffs every live document against the index by content checksum.

Unchanged documents are skipped, visibility-only changes are touched in
place, changed documents are re-chunked and re-embedded, and index entries
whose source file no longer exists are deleted.

Environment variables:
  QDRANT_HOST    Qdrant hostname (default: localhost)
  QDRANT_PORT    Qdrant gRPC port (default: 6334)
  OPENAI_API_KEY OpenAI API key for embeddings (required)
  GITHUB_TOKEN   GitHub token for github sources (optional)`,
	RunE: runSync,
}

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Semantic search over the index",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runSearch,
}

var askCmd = &cobra.Command{
	Use:   "ask",
	Short: "Interactive grounded chat over the index",
	Long: `Starts an interactive session. Each question retrieves relevant
passages and asks the chat model for a grounded answer; conversation
history carries across turns within the session.`,
	RunE: runAsk,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the MCP server",
	Long: `Serves the retrieval engine over the Model Context Protocol.

Runs in stdio mode by default; set SERVER_MODE=true to serve MCP over
streamable HTTP with a /health endpoint.`,
	RunE: runServe,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "vaultsearch.yaml", "path to the config file")
	rootCmd.AddCommand(syncCmd, searchCmd, askCmd, serveCmd)
}

func main() {
	// Load .env if present (local development), ignore if missing.
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runSync(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	start := time.Now()

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	st, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	client, err := ai.NewClient(cfg.EmbeddingModel, cfg.ChatModel)
	if err != nil {
		return fmt.Errorf("create provider client: %w", err)
	}

	src, err := newSource(cfg)
	if err != nil {
		return err
	}

	engine := indexer.New(src, st, client, indexer.Config{
		MinChunkSize:    cfg.Chunk.MinSize,
		MaxChunkSize:    cfg.Chunk.MaxSize,
		OverlapSize:     cfg.Chunk.Overlap,
		ExcludePrefixes: cfg.ExcludePrefixes,
		PublicPrefixes:  cfg.PublicPrefixes,
	}, slog.Default())

	fmt.Println("Starting sync...")
	result, err := engine.Sync(ctx)
	if err != nil {
		return fmt.Errorf("sync failed: %w", err)
	}

	fmt.Println()
	fmt.Println("Sync complete!")
	fmt.Printf("  Synced:  %d\n", result.Success)
	fmt.Printf("  Updated: %d\n", result.Updated)
	fmt.Printf("  Deleted: %d\n", result.Deleted)
	fmt.Printf("  Errors:  %d\n", result.Errors)
	fmt.Printf("  Duration: %s\n", time.Since(start).Round(time.Second))

	return nil
}

func runSearch(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	query := strings.Join(args, " ")

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if len([]rune(query)) < cfg.MinQueryLength {
		return fmt.Errorf("query must be at least %d characters", cfg.MinQueryLength)
	}

	engine, st, err := newRetrievalEngine(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	results, err := engine.Search(ctx, query, retrieval.Options{
		Threshold:  cfg.Search.Threshold,
		MatchCount: cfg.Search.MatchCount,
		MinLength:  cfg.Search.MinLength,
	})
	if err != nil {
		if errors.Is(err, retrieval.ErrModerated) {
			return fmt.Errorf("query was rejected by content moderation")
		}
		return err
	}

	if len(results) == 0 {
		fmt.Println("No matching notes found.")
		return nil
	}

	for i, r := range results {
		fmt.Printf("%d. %s (%.3f)\n", i+1, r.Path, r.Similarity)
		fmt.Printf("   %s\n\n", markdown.Truncate(markdown.Plain(r.Content), 200))
	}
	return nil
}

func runAsk(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	engine, st, err := newRetrievalEngine(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	opts := retrieval.Options{
		Threshold:  cfg.Chat.Threshold,
		MatchCount: cfg.Chat.MatchCount,
		MinLength:  cfg.Chat.MinLength,
	}

	fmt.Println("Ask your notes. Empty line to exit.")
	conversation := &retrieval.Conversation{}
	scanner := bufio.NewScanner(os.Stdin)

	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		query := strings.TrimSpace(scanner.Text())
		if query == "" {
			break
		}
		if len([]rune(query)) < cfg.MinQueryLength {
			fmt.Printf("Query must be at least %d characters.\n", cfg.MinQueryLength)
			continue
		}

		answer, err := engine.Answer(ctx, query, conversation, opts)
		if err != nil {
			if errors.Is(err, retrieval.ErrModerated) {
				fmt.Println("Query was rejected by content moderation.")
				continue
			}
			return err
		}

		fmt.Println()
		fmt.Println(answer)
		fmt.Println()
	}

	return scanner.Err()
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	engine, st, err := newRetrievalEngine(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	server := mcpserver.NewServer(&mcpserver.Deps{
		Store:     st,
		Retrieval: engine,
		Config:    cfg,
	})

	mux := http.NewServeMux()
	mux.HandleFunc("/health", mcpserver.NewHealthHandler(st))
	mux.Handle("/mcp", mcpserver.NewHTTPHandler(server, nil))

	port := getEnv("PORT", "8080")
	serverMode := getEnv("SERVER_MODE", "false") == "true"

	if serverMode {
		addr := "0.0.0.0:" + port
		log.Printf("Starting HTTP server on %s (MCP at /mcp, health at /health)", addr)
		return http.ListenAndServe(addr, mux)
	}

	// Stdio mode, with the health endpoint in the background for local
	// testing.
	go func() {
		addr := "0.0.0.0:" + port
		log.Printf("Starting health server on %s", addr)
		if err := http.ListenAndServe(addr, mux); err != nil {
			log.Printf("Health server error: %v", err)
		}
	}()

	log.Println("Starting vaultsearch MCP server (stdio mode)...")
	return server.Run(ctx)
}

// openStore connects to Qdrant and ensures the collection exists, failing
// fast before any sync or search work begins.
func openStore(ctx context.Context, cfg *config.Config) (*store.Store, error) {
	st, err := store.New(cfg.Qdrant.Host, cfg.Qdrant.Port, cfg.Qdrant.Collection, cfg.VectorSize)
	if err != nil {
		return nil, fmt.Errorf("connect to Qdrant: %w", err)
	}
	if err := st.EnsureCollection(ctx); err != nil {
		st.Close()
		return nil, fmt.Errorf("ensure collection: %w", err)
	}
	return st, nil
}

func newRetrievalEngine(ctx context.Context, cfg *config.Config) (*retrieval.Engine, *store.Store, error) {
	st, err := openStore(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}

	client, err := ai.NewClient(cfg.EmbeddingModel, cfg.ChatModel)
	if err != nil {
		st.Close()
		return nil, nil, fmt.Errorf("create provider client: %w", err)
	}

	engine := retrieval.New(st, client, client, client, slog.Default())
	return engine, st, nil
}

func newSource(cfg *config.Config) (indexer.Source, error) {
	switch cfg.Source.Type {
	case "dir":
		return source.NewDir(cfg.Source.Root), nil
	case "github":
		return source.NewGitHub(cfg.Source.Owner, cfg.Source.Repo, cfg.Source.BasePath)
	default:
		return nil, fmt.Errorf("unknown source type %q", cfg.Source.Type)
	}
}

func getEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}
