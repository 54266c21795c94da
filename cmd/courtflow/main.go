package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/courtflow-ai/courtflow"
	"github.com/courtflow-ai/courtflow/llm"
	"github.com/fatih/color"
)

// CLI configuration
type cliConfig struct {
	Query       string
	ConfigFile  string
	RunID       string
	Backend     string
	Path        string
	Timeout     time.Duration
	Verbose     bool
	JSON        bool
	List        bool
	Inspect     bool
	ShowHistory bool
}

func main() {
	cli := parseFlags()

	logger := setupLogger(cli.Verbose, cli.JSON)

	config, err := loadConfig(cli.ConfigFile)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	checkpointer, cleanup, err := setupCheckpointer(cli)
	if err != nil {
		log.Fatalf("Failed to create checkpoint store: %v", err)
	}
	defer cleanup()

	router := courtflow.NewRouterNode(courtflow.RouterOptions{
		Client:  decisionClient(config, logger),
		History: courtflow.NewRoutingHistory(0),
		Logger:  logger,
	})

	engine, err := courtflow.NewEngine(courtflow.Options{
		Config:       config,
		Router:       router,
		Checkpointer: checkpointer,
		Logger:       logger,
	})
	if err != nil {
		log.Fatalf("Failed to create engine: %v", err)
	}

	ctx := context.Background()
	if cli.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cli.Timeout)
		defer cancel()
	}

	if cli.List {
		listRuns(ctx, engine, cli)
		return
	}

	if cli.Inspect {
		if cli.RunID == "" {
			color.Red("Error: -run-id is required with -inspect")
			os.Exit(1)
		}
		inspectRun(ctx, engine, cli)
		return
	}

	if cli.Query == "" {
		color.Red("Error: a query is required")
		flag.Usage()
		os.Exit(1)
	}

	if !config.Decision.Configured() {
		color.Yellow("Decision service not configured; routing will use the fallback path")
	}

	startTime := time.Now()
	result := engine.RunWithID(ctx, cli.Query, cli.RunID)
	duration := time.Since(startTime)

	showResult(result, duration, cli)

	if cli.ShowHistory {
		showRoutingHistory(router)
	}

	if !result.Success {
		os.Exit(1)
	}
}

func parseFlags() *cliConfig {
	cli := &cliConfig{}

	flag.StringVar(&cli.Query, "query", "", "The question to route through the agents (required)")
	flag.StringVar(&cli.Query, "q", "", "The question to route through the agents (shorthand)")

	flag.StringVar(&cli.ConfigFile, "config", "", "Path to a YAML config file (optional, environment variables apply otherwise)")
	flag.StringVar(&cli.ConfigFile, "c", "", "Path to a YAML config file (shorthand)")

	flag.StringVar(&cli.RunID, "run-id", "", "Run identifier to use or inspect (optional)")

	flag.StringVar(&cli.Backend, "checkpoints", "memory", "Checkpoint backend: memory, file, sqlite, or postgres")
	flag.StringVar(&cli.Path, "checkpoint-path", "", "Path or connection string for the checkpoint backend")

	flag.DurationVar(&cli.Timeout, "timeout", 0, "Overall run timeout (e.g., 30s, 5m)")
	flag.DurationVar(&cli.Timeout, "t", 0, "Overall run timeout (shorthand)")

	flag.BoolVar(&cli.Verbose, "verbose", false, "Enable verbose logging")
	flag.BoolVar(&cli.Verbose, "v", false, "Enable verbose logging (shorthand)")

	flag.BoolVar(&cli.JSON, "json", false, "Output the result in JSON format")
	flag.BoolVar(&cli.List, "list", false, "List checkpointed runs and exit")
	flag.BoolVar(&cli.Inspect, "inspect", false, "Show a prior run's result (requires -run-id)")
	flag.BoolVar(&cli.ShowHistory, "show-routing", false, "Show routing decisions after the run")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, `CourtFlow - multi-agent NBA analytics workflow

Usage: %s [options] -query "<question>"

Examples:
  # Ask a statistics question
  %s -query "Who leads the league in scoring?"

  # Route to both agents with file checkpoints
  %s -query "Top scorers and highlight videos" -checkpoints file -checkpoint-path ./runs

  # Inspect a prior run
  %s -inspect -run-id run_01h455vb4pex5vsknk084sn02q -checkpoints sqlite -checkpoint-path ./runs.db

Options:
`, os.Args[0], os.Args[0], os.Args[0], os.Args[0])
		flag.PrintDefaults()

		fmt.Fprintf(os.Stderr, `
Environment:
  AZURE_OPENAI_ENDPOINT / AZURE_OPENAI_API_KEY / AZURE_OPENAI_DEPLOYMENT_NAME
      Decision service used by the supervisor for routing.
  ELASTIC_STATS_AGENT_URL / ELASTIC_MEDIA_AGENT_URL / ELASTIC_API_KEY
      Downstream agent endpoints. Unconfigured agents return mock data.

`)
	}

	flag.Parse()

	// Bare arguments after flags become the query.
	if cli.Query == "" && flag.NArg() > 0 {
		cli.Query = flag.Arg(0)
	}

	return cli
}

func setupLogger(verbose, jsonOutput bool) *slog.Logger {
	if !verbose {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return courtflow.NewLoggerWithOptions(courtflow.LoggerOptions{
		Level: slog.LevelDebug,
		// Keep stdout clean for the JSON result; logs go to stderr.
		Output: loggerOutput(jsonOutput),
		JSON:   jsonOutput,
	})
}

func loggerOutput(jsonOutput bool) *os.File {
	if jsonOutput {
		return os.Stderr
	}
	return os.Stdout
}

func loadConfig(path string) (*courtflow.Config, error) {
	if path != "" {
		return courtflow.LoadConfigFile(path)
	}
	return courtflow.ConfigFromEnv(), nil
}

func decisionClient(config *courtflow.Config, logger *slog.Logger) llm.Client {
	if !config.Decision.Configured() {
		return nil
	}
	client, err := llm.NewAzureOpenAI(llm.AzureOpenAIConfig{
		Endpoint:   config.Decision.Endpoint,
		APIKey:     config.Decision.APIKey,
		Deployment: config.Decision.Deployment,
		APIVersion: config.Decision.APIVersion,
	})
	if err != nil {
		logger.Warn("decision service unavailable", "error", err)
		return nil
	}
	return client
}

func setupCheckpointer(cli *cliConfig) (courtflow.Checkpointer, func(), error) {
	nop := func() {}
	switch cli.Backend {
	case "memory", "":
		return courtflow.NewMemoryCheckpointer(0), nop, nil
	case "file":
		checkpointer, err := courtflow.NewFileCheckpointer(cli.Path)
		return checkpointer, nop, err
	case "sqlite":
		if cli.Path == "" {
			return nil, nop, fmt.Errorf("sqlite backend requires -checkpoint-path")
		}
		checkpointer, err := courtflow.NewSQLiteCheckpointer(cli.Path)
		if err != nil {
			return nil, nop, err
		}
		return checkpointer, func() { checkpointer.Close() }, nil
	case "postgres":
		if cli.Path == "" {
			return nil, nop, fmt.Errorf("postgres backend requires -checkpoint-path (connection string)")
		}
		checkpointer, err := courtflow.NewPostgresCheckpointer(cli.Path)
		if err != nil {
			return nil, nop, err
		}
		return checkpointer, func() { checkpointer.Close() }, nil
	default:
		return nil, nop, fmt.Errorf("unknown checkpoint backend %q", cli.Backend)
	}
}

func listRuns(ctx context.Context, engine *courtflow.Engine, cli *cliConfig) {
	summaries, err := engine.ListRuns(ctx)
	if err != nil {
		log.Fatalf("Failed to list runs: %v", err)
	}
	if len(summaries) == 0 {
		color.Blue("No checkpointed runs")
		return
	}
	if cli.JSON {
		printJSON(summaries)
		return
	}
	color.Magenta("Runs:")
	for _, summary := range summaries {
		line := fmt.Sprintf("  %s  %-20s %3d%%  %s", summary.RunID, summary.Status, summary.Progress, summary.Query)
		if summary.Error != "" {
			color.Red(line)
		} else {
			fmt.Println(line)
		}
	}
}

func inspectRun(ctx context.Context, engine *courtflow.Engine, cli *cliConfig) {
	result, err := engine.Inspect(ctx, cli.RunID)
	if err != nil {
		log.Fatalf("Failed to inspect run: %v", err)
	}
	showResult(result, 0, cli)
}

func showResult(result *courtflow.RunResult, duration time.Duration, cli *cliConfig) {
	if cli.JSON {
		printJSON(result)
		return
	}

	if duration > 0 {
		color.White("Run completed in %v", duration)
	}
	color.White("Run ID: %s", result.RunID)
	color.White("Status: %s", result.Status)
	if result.Success {
		color.Green("Run successful!")
	} else {
		color.Red("Error: %s", result.Error)
	}

	fmt.Printf("\n%s\n", result.FinalReport)
}

func showRoutingHistory(router *courtflow.RouterNode) {
	records := router.History().Records()
	if len(records) == 0 {
		return
	}
	fmt.Printf("\n")
	color.Magenta("Routing decisions:")
	for _, record := range records {
		fmt.Printf("  %s -> %s (%s)\n", record.Query, record.Decision, record.Reasoning)
	}
}

func printJSON(value any) {
	bytes, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		log.Fatalf("Failed to format output: %v", err)
	}
	fmt.Println(string(bytes))
}
