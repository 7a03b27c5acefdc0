package main

import (
	"fmt"

	"github.com/initializ/hmm/archival"
	"github.com/initializ/hmm/ingest"
	"github.com/initializ/hmm/llm/providers"
	"github.com/initializ/hmm/recall"
	"github.com/spf13/cobra"
)

var (
	ingestDBPath       string
	ingestArchivalPath string
	ingestAPIKey       string
)

var ingestCmd = &cobra.Command{
	Use:   "ingest <json-file>",
	Short: "Bulk-load a historical conversation export into recall and archival memory",
	Args:  cobra.ExactArgs(1),
	RunE:  runIngest,
}

func init() {
	ingestCmd.Flags().StringVar(&ingestDBPath, "db-path", "", "path to SQLite recall database (default: hmm.db)")
	ingestCmd.Flags().StringVar(&ingestArchivalPath, "archival-path", "", "path to archival vector store (default: ./data/archival)")
	ingestCmd.Flags().StringVar(&ingestAPIKey, "api-key", "", "OpenAI API key (defaults to OPENAI_API_KEY env var)")
}

func runIngest(cmd *cobra.Command, args []string) error {
	flags := resolvedFlags{
		DBPath:       ingestDBPath,
		ArchivalPath: ingestArchivalPath,
		APIKey:       ingestAPIKey,
		dbPathSet:    cmd.Flags().Changed("db-path"),
		archivalSet:  cmd.Flags().Changed("archival-path"),
		apiKeySet:    cmd.Flags().Changed("api-key"),
	}

	cfg, err := resolveConfig(flags)
	if err != nil {
		return err
	}

	embedder := providers.NewOpenAIEmbedder(providers.OpenAIEmbedderConfig{
		APIKey:  cfg.APIKey,
		BaseURL: cfg.BaseURL,
	})

	stores := ingest.Stores{
		NewRecall: func(path string) (recall.Store, error) {
			return recall.NewSQLiteStore(path)
		},
		NewArchival: func(path string) (archival.Store, error) {
			return archival.NewChromemStore(path, "hmm", archivalEmbedderAdapter{embedder})
		},
	}

	report, err := ingest.IngestFile(args[0], cfg.DBPath, cfg.ArchivalPath, stores)
	if err != nil {
		return fmt.Errorf("ingesting %s: %w", args[0], err)
	}

	fmt.Printf("Ingested %d conversation(s), %d session(s), %d message(s)\n",
		report.Conversations, report.Sessions, report.Messages)
	return nil
}
