// cmd/scrapectl/main.go is a diagnostic CLI that drives the orchestrator
// directly — detail-by-id or search against a provider — without starting
// the HTTP server. Grounded in the teacher's cresolve CLI: flag parsing,
// CSV/JSON output modes, stdin fallback for batch input, and a
// signal.NotifyContext root context with a per-item timeout.
package main

import (
	"bufio"
	"context"
	"encoding/csv"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/metabridge/scraper/internal/browser"
	"github.com/metabridge/scraper/internal/cache"
	"github.com/metabridge/scraper/internal/config"
	"github.com/metabridge/scraper/internal/netclient"
	"github.com/metabridge/scraper/internal/orchestrator"
	"github.com/metabridge/scraper/internal/provider"
	"github.com/spf13/viper"
)

const (
	providerDoujin = "doujin"
	providerStream = "stream"

	doujinBaseURL = "https://doujin.example"
	streamBaseURL = "https://stream.example"
)

type resultLine struct {
	Provider string `json:"provider"`
	Input    string `json:"input"`
	Found    bool   `json:"found"`
	Title    string `json:"title,omitempty"`
	ID       string `json:"id,omitempty"`
	Err      string `json:"error,omitempty"`
}

func main() {
	mode := flag.String("mode", "detail", "detail or search")
	providerName := flag.String("provider", providerDoujin, "provider name: doujin or stream")
	flagCSV := flag.Bool("csv", false, "output CSV: provider,input,found,id,title")
	flagJSON := flag.Bool("json", false, "output JSON lines")
	flagMax := flag.Int("max", 12, "max results for -mode=search")
	flagTimeout := flag.Duration("timeout", 30*time.Second, "per-item timeout")
	flag.Parse()

	inputs := flag.Args()
	if len(inputs) == 0 {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			if line := strings.TrimSpace(scanner.Text()); line != "" {
				inputs = append(inputs, line)
			}
		}
		if err := scanner.Err(); err != nil {
			fmt.Fprintln(os.Stderr, "stdin read error:", err)
			os.Exit(2)
		}
	}
	if len(inputs) == 0 {
		fmt.Fprintln(os.Stderr, "usage:")
		fmt.Fprintln(os.Stderr, "  scrapectl -mode=detail -provider=doujin RJ012345")
		fmt.Fprintln(os.Stderr, "  scrapectl -mode=search -provider=stream -json \"some title\"")
		fmt.Fprintln(os.Stderr, "  cat ids.txt | scrapectl -csv")
		os.Exit(2)
	}

	logger, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintln(os.Stderr, "create logger:", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	orch, pool, err := buildOrchestrator(logger)
	if err != nil {
		fmt.Fprintln(os.Stderr, "build orchestrator:", err)
		os.Exit(1)
	}
	defer pool.Close()

	rootCtx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var csvWriter *csv.Writer
	if *flagCSV {
		csvWriter = csv.NewWriter(os.Stdout)
		_ = csvWriter.Write([]string{"provider", "input", "found", "id", "title"})
		csvWriter.Flush()
	}

	for _, input := range inputs {
		select {
		case <-rootCtx.Done():
			return
		default:
		}

		itemCtx, itemCancel := context.WithTimeout(rootCtx, *flagTimeout)
		line := runOne(itemCtx, orch, *providerName, *mode, input, *flagMax)
		itemCancel()

		switch {
		case *flagJSON:
			encoder := json.NewEncoder(os.Stdout)
			_ = encoder.Encode(line)
		case *flagCSV:
			_ = csvWriter.Write([]string{line.Provider, line.Input, fmt.Sprintf("%t", line.Found), line.ID, line.Title})
			csvWriter.Flush()
		default:
			if line.Found {
				fmt.Printf("%s: %s (%s)\n", line.Input, line.Title, line.ID)
			} else {
				fmt.Printf("%s: not found%s\n", line.Input, errSuffix(line.Err))
			}
		}
	}
}

func runOne(ctx context.Context, orch *orchestrator.Orchestrator, providerName, mode, input string, maxResults int) resultLine {
	line := resultLine{Provider: providerName, Input: input}

	if mode == "search" {
		results, err := orch.Search(ctx, providerName, input, maxResults)
		if err != nil {
			line.Err = err.Error()
			return line
		}
		if len(results) == 0 {
			return line
		}
		line.Found = true
		line.ID = results[0].ID
		line.Title = results[0].Title
		return line
	}

	metadata, err := orch.DetailByID(ctx, providerName, input)
	if err != nil {
		line.Err = err.Error()
		return line
	}
	if metadata == nil {
		return line
	}
	line.Found = true
	line.ID = metadata.ID
	line.Title = metadata.Title
	return line
}

func errSuffix(msg string) string {
	if msg == "" {
		return ""
	}
	return " (" + msg + ")"
}

func buildOrchestrator(logger *zap.Logger) (*orchestrator.Orchestrator, *browser.Pool, error) {
	config.Configure(viper.GetViper())
	cfg, err := config.Load(viper.GetViper())
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}

	pool := browser.NewPool(cfg.Browser, logger)
	metadataCache := cache.New(cfg.Cache.TTL, cfg.Cache.Capacity)
	orch := orchestrator.New(logger, metadataCache)

	doujinClient := netclient.NewBrowserClient(pool.ForRole(browser.RoleDetail), cfg.Browser.UserAgent,
		[]string{"h1.work-title", "div.work-detail"})
	doujinProvider := provider.NewDoujin(provider.DoujinSite{Name: providerDoujin, BaseURL: doujinBaseURL, UserAgent: cfg.Browser.UserAgent}, doujinClient)
	doujinSettings := cfg.ProviderSettings(providerDoujin)
	orch.Register(doujinProvider, doujinSettings.MaxConcurrentRequests, doujinSettings.RateLimitSeconds)

	streamClient := netclient.NewBrowserClient(pool.ForRole(browser.RoleSearch), cfg.Browser.UserAgent,
		[]string{"h1.video-title"})
	streamProvider := provider.NewStream(provider.StreamSite{Name: providerStream, BaseURL: streamBaseURL}, streamClient)
	streamSettings := cfg.ProviderSettings(providerStream)
	orch.Register(streamProvider, streamSettings.MaxConcurrentRequests, streamSettings.RateLimitSeconds)

	return orch, pool, nil
}
