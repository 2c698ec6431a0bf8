package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ziadkadry99/codesearch/internal/query"
	"github.com/ziadkadry99/codesearch/internal/vectordb"
)

var queryCmd = &cobra.Command{
	Use:   "query [question]",
	Short: "Semantically search the indexed codebase",
	Long:  `Searches the vector index using a natural language query, with optional filters and reranking, and returns relevant code chunks.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runQuery,
}

func init() {
	queryCmd.Flags().Int("limit", 10, "maximum number of results")
	queryCmd.Flags().String("path-pattern", "", "glob pattern (bash-mode) restricting results to matching relative paths")
	queryCmd.Flags().Bool("documentation-only", false, "restrict results to documentation chunks")
	queryCmd.Flags().String("rerank", "relevance", "rerank preset to apply")
	queryCmd.Flags().Float64("score-threshold", 0, "minimum similarity score to include")
	queryCmd.Flags().String("author", "", "filter by dominant git author")
	queryCmd.Flags().String("task-id", "", "filter by associated task ID")
	queryCmd.Flags().Bool("json", false, "output results as JSON")
	rootCmd.AddCommand(queryCmd)
}

func runQuery(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	queryText := args[0]

	limit, _ := cmd.Flags().GetInt("limit")
	pathPattern, _ := cmd.Flags().GetString("path-pattern")
	docOnly, _ := cmd.Flags().GetBool("documentation-only")
	rerank, _ := cmd.Flags().GetString("rerank")
	scoreThreshold, _ := cmd.Flags().GetFloat64("score-threshold")
	author, _ := cmd.Flags().GetString("author")
	taskID, _ := cmd.Flags().GetString("task-id")
	jsonOutput, _ := cmd.Flags().GetBool("json")

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	embedder, err := createEmbedderFromConfig(cfg)
	if err != nil {
		return fmt.Errorf("creating embedder: %w", err)
	}

	store, err := vectordb.NewChromemStore(embedder)
	if err != nil {
		return fmt.Errorf("creating vector store: %w", err)
	}

	if err := store.Load(ctx, cfg.SnapshotDir); err != nil {
		if verbose {
			fmt.Fprintf(os.Stderr, "Warning: could not load persisted vector store: %v\n", err)
		}
	}

	engine := query.NewEngine(store, embedder)

	results, err := engine.Search(ctx, query.Options{
		Query:             queryText,
		Limit:             limit,
		PathPattern:       pathPattern,
		DocumentationOnly: docOnly,
		Rerank:            rerank,
		ScoreThreshold:    float32(scoreThreshold),
		Author:            author,
		TaskID:            taskID,
	})
	if err != nil {
		if errors.Is(err, query.ErrNotIndexed) {
			fmt.Println("The codebase has not been indexed yet. Run `codesearch index` first.")
			return nil
		}
		return fmt.Errorf("search failed: %w", err)
	}

	if len(results) == 0 {
		fmt.Println("No results found.")
		return nil
	}

	if jsonOutput {
		return printQueryResultsJSON(results)
	}

	fmt.Print(vectordb.FormatResults(results))
	return nil
}

type queryResultJSON struct {
	Rank       int     `json:"rank"`
	Similarity float64 `json:"similarity"`
	FilePath   string  `json:"file_path"`
	LineStart  int     `json:"line_start,omitempty"`
	Type       string  `json:"type"`
	Symbol     string  `json:"symbol,omitempty"`
	Content    string  `json:"content"`
}

func printQueryResultsJSON(results []vectordb.SearchResult) error {
	var out []queryResultJSON
	for i, r := range results {
		out = append(out, queryResultJSON{
			Rank:       i + 1,
			Similarity: float64(r.Similarity),
			FilePath:   r.Payload.RelativePath,
			LineStart:  r.Payload.LineStart,
			Type:       string(r.Payload.ChunkType),
			Symbol:     r.Payload.Symbol,
			Content:    truncate(r.Payload.Content, 200),
		})
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
