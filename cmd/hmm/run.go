package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/initializ/hmm/agent"
	"github.com/initializ/hmm/archival"
	"github.com/initializ/hmm/llm"
	"github.com/initializ/hmm/llm/providers"
	"github.com/initializ/hmm/queue"
	"github.com/initializ/hmm/recall"
	"github.com/initializ/hmm/tokencount"
	"github.com/initializ/hmm/tools"
	"github.com/initializ/hmm/workingcontext"
	"github.com/spf13/cobra"
)

var (
	runModel        string
	runMaxTokens    int
	runDBPath       string
	runArchivalPath string
	runAPIKey       string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start an interactive chat session backed by hierarchical memory",
	RunE:  runRun,
}

func init() {
	runCmd.Flags().StringVar(&runModel, "model", "", "OpenAI model to use (default: gpt-4)")
	runCmd.Flags().IntVar(&runMaxTokens, "max-tokens", 0, "maximum context window size (default: 8000)")
	runCmd.Flags().StringVar(&runDBPath, "db-path", "", "path to SQLite recall database (default: hmm.db)")
	runCmd.Flags().StringVar(&runArchivalPath, "archival-path", "", "path to archival vector store (default: ./data/archival)")
	runCmd.Flags().StringVar(&runAPIKey, "api-key", "", "OpenAI API key (defaults to OPENAI_API_KEY env var)")
}

func runRun(cmd *cobra.Command, args []string) error {
	flags := resolvedFlags{
		Model:        runModel,
		MaxTokens:    runMaxTokens,
		DBPath:       runDBPath,
		ArchivalPath: runArchivalPath,
		APIKey:       runAPIKey,
		modelSet:     cmd.Flags().Changed("model"),
		maxTokensSet: cmd.Flags().Changed("max-tokens"),
		dbPathSet:    cmd.Flags().Changed("db-path"),
		archivalSet:  cmd.Flags().Changed("archival-path"),
		apiKeySet:    cmd.Flags().Changed("api-key"),
	}

	cfg, err := resolveConfig(flags)
	if err != nil {
		return err
	}

	fmt.Println("Initializing hmm agent...")
	a, closeFn, err := buildAgent(cfg)
	if err != nil {
		return fmt.Errorf("initializing agent: %w", err)
	}
	defer closeFn()

	repl := &replSession{agent: a, out: os.Stdout, in: bufio.NewScanner(os.Stdin)}
	repl.run()
	return nil
}

// buildAgent wires an Agent from resolved configuration: an OpenAI
// Responses client, SQLite recall store, chromem archival store (embedding
// through a separate OpenAI embeddings client built from the same API key
// and base URL), a token counter sized to the model,
// and the bounded FIFO queue manager.
func buildAgent(cfg agentConfig) (*agent.Agent, func(), error) {
	client := providers.NewResponsesClient(llm.ClientConfig{
		APIKey:  cfg.APIKey,
		BaseURL: cfg.BaseURL,
		Model:   cfg.Model,
	})

	recallStore, err := recall.NewSQLiteStore(cfg.DBPath)
	if err != nil {
		return nil, nil, fmt.Errorf("opening recall store: %w", err)
	}

	embedder := providers.NewOpenAIEmbedder(providers.OpenAIEmbedderConfig{
		APIKey:  cfg.APIKey,
		BaseURL: cfg.BaseURL,
	})

	archivalStore, err := archival.NewChromemStore(cfg.ArchivalPath, "hmm", archivalEmbedderAdapter{embedder})
	if err != nil {
		recallStore.Close()
		return nil, nil, fmt.Errorf("opening archival store: %w", err)
	}

	wc := workingcontext.New()
	q := queue.New(queue.Config{
		MaxTokens:  cfg.MaxTokens,
		Counter:    tokencount.NewCounter(cfg.Model),
		Summarizer: llm.NewChatSummarizer(client),
		Recall:     recallStore,
	})
	dispatcher := tools.NewDispatcher(wc, recallStore, archivalStore)

	a := agent.New(agent.Config{
		Client:     client,
		Context:    wc,
		Queue:      q,
		Dispatcher: dispatcher,
	})

	closeFn := func() {
		recallStore.Close()
		archivalStore.Close()
	}
	return a, closeFn, nil
}

// archivalEmbedderAdapter narrows providers.OpenAIEmbedder's
// llm.Embedder-shaped request/response to the archival.Embedder
// interface, which intentionally doesn't import llm to avoid a
// dependency cycle.
type archivalEmbedderAdapter struct {
	e *providers.OpenAIEmbedder
}

func (a archivalEmbedderAdapter) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	resp, err := a.e.Embed(ctx, &llm.EmbeddingRequest{Texts: texts})
	if err != nil {
		return nil, err
	}
	return resp.Embeddings, nil
}

func (a archivalEmbedderAdapter) Dimensions() int {
	return a.e.Dimensions()
}

// replSession drives the interactive loop, matching the reference CLI's
// banner, slash commands, and turn-taking structure.
type replSession struct {
	agent *agent.Agent
	out   *os.File
	in    *bufio.Scanner
}

func (r *replSession) printBanner() {
	fmt.Fprintln(r.out, strings.Repeat("=", 70))
	fmt.Fprintln(r.out, "  hmm - hierarchical memory manager for LLM agents")
	fmt.Fprintln(r.out, strings.Repeat("=", 70))
	fmt.Fprintln(r.out, "\nCommands:")
	fmt.Fprintln(r.out, "  /help     - Show this help message")
	fmt.Fprintln(r.out, "  /status   - Show memory status")
	fmt.Fprintln(r.out, "  /memory   - Show core memory contents")
	fmt.Fprintln(r.out, "  /reset    - Reset agent memory")
	fmt.Fprintln(r.out, "  /quit     - Exit the program")
	fmt.Fprintln(r.out, "\nType your message and press Enter to chat.\n")
	fmt.Fprintln(r.out, strings.Repeat("=", 70))
}

func (r *replSession) printStatus() {
	status := r.agent.QueueStatus()
	fmt.Fprintln(r.out, "\n"+strings.Repeat("=", 70))
	fmt.Fprintln(r.out, "Memory Status:")
	fmt.Fprintf(r.out, "  Queue Length: %d messages\n", status.QueueLength)
	summary := status.Summary
	if len(summary) > 100 {
		summary = summary[:100]
	}
	fmt.Fprintf(r.out, "  Current Summary: %s...\n", summary)
	fmt.Fprintln(r.out, strings.Repeat("=", 70)+"\n")
}

func (r *replSession) printMemory() {
	memory := r.agent.CoreMemory()
	fmt.Fprintln(r.out, "\n"+strings.Repeat("=", 70))
	fmt.Fprintln(r.out, "Core Memory Contents:")
	for section, content := range memory {
		fmt.Fprintf(r.out, "\n[%s]\n", strings.ToUpper(section))
		fmt.Fprintln(r.out, content)
	}
	fmt.Fprintln(r.out, strings.Repeat("=", 70)+"\n")
}

// handleCommand processes a slash command, returning false when the REPL
// should stop.
func (r *replSession) handleCommand(command string) bool {
	switch strings.ToLower(strings.TrimSpace(command)) {
	case "/quit", "/exit":
		fmt.Fprintln(r.out, "\nGoodbye!")
		return false
	case "/help":
		r.printBanner()
	case "/status":
		r.printStatus()
	case "/memory":
		r.printMemory()
	case "/reset":
		fmt.Fprint(r.out, "Are you sure you want to reset all memory? (yes/no): ")
		if !r.in.Scan() {
			return true
		}
		if strings.ToLower(strings.TrimSpace(r.in.Text())) == "yes" {
			r.agent.Reset()
			fmt.Fprintln(r.out, "Memory reset complete.\n")
		} else {
			fmt.Fprintln(r.out, "Reset cancelled.\n")
		}
	default:
		fmt.Fprintf(r.out, "Unknown command: %s\n", command)
		fmt.Fprintln(r.out, "Type /help to see available commands.\n")
	}
	return true
}

func (r *replSession) run() {
	r.printBanner()

	for {
		fmt.Fprint(r.out, "\nYou: ")
		if !r.in.Scan() {
			fmt.Fprintln(r.out, "\n\nGoodbye!")
			return
		}
		userInput := strings.TrimSpace(r.in.Text())
		if userInput == "" {
			continue
		}
		if strings.HasPrefix(userInput, "/") {
			if !r.handleCommand(userInput) {
				return
			}
			continue
		}

		fmt.Fprint(r.out, "\nhmm: ")
		outcome, err := r.agent.Step(context.Background(), userInput)
		if err != nil {
			fmt.Fprintf(r.out, "\nError: %v\nContinuing...\n", err)
			continue
		}
		switch outcome.Status {
		case agent.StatusSuccess:
			fmt.Fprintln(r.out, outcome.Message)
		case agent.StatusNoMessage:
			if outcome.Thought != "" {
				fmt.Fprintf(r.out, "[thought: %s]\n", outcome.Thought)
			} else {
				fmt.Fprintln(r.out, "(no reply)")
			}
		case agent.StatusMaxIterations:
			fmt.Fprintln(r.out, "(reached maximum tool-call iterations without a reply)")
		default:
			fmt.Fprintln(r.out, "(unexpected error)")
		}
	}
}
