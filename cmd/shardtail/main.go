// shardtail connects every configured shard and prints decoded notifications
// to the console.
// Usage: go run ./cmd/shardtail --config configs/shardline.local.yaml
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"

	"github.com/rickgao/shardline/internal/api"
	"github.com/rickgao/shardline/internal/auth"
	"github.com/rickgao/shardline/internal/config"
	"github.com/rickgao/shardline/internal/connection"
	"github.com/rickgao/shardline/internal/dispatch"
	"github.com/rickgao/shardline/internal/logging"
)

func main() {
	configPath := flag.String("config", "configs/shardline.example.yaml", "path to config file")
	verbose := flag.Bool("verbose", false, "print full notification JSON")
	only := flag.String("events", "", "comma-separated notification names to print (default all)")
	flag.Parse()

	// Load config
	cfg, err := config.LoadAndValidate(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Logs go to stderr so stdout carries only notifications
	cfg.Logging.Format = "pretty"
	logger, closer, err := logging.New(cfg.Logging, os.Stderr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to set up logging: %v\n", err)
		os.Exit(1)
	}
	defer closer.Close()

	creds, err := auth.LoadCredentials(cfg.Discord.Token, cfg.Discord.TokenFile)
	if err != nil {
		logger.Error("failed to load credentials", "error", err)
		os.Exit(1)
	}
	appID, err := creds.ApplicationID()
	if err != nil {
		logger.Error("failed to decode application id", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("received shutdown signal")
		cancel()
	}()

	apiClient := api.NewClient(cfg.Discord.RestURL, creds.Token, api.WithLogger(logger))

	managerCfg, err := cfg.ManagerConfig(creds.Token, appID)
	if err != nil {
		logger.Error("invalid gateway settings", "error", err)
		os.Exit(1)
	}
	// A console tail never hands its session to another process
	managerCfg.Shard.KeepSessionOnStop = false

	dispatcher := dispatch.New(cfg.DispatcherConfig(), logger)
	p := &printer{verbose: *verbose, only: parseFilter(*only)}
	for k := dispatch.KindUnknown; k <= dispatch.KindGuildsDownloaded; k++ {
		dispatcher.On(k, p.print)
	}

	manager := connection.NewManager(managerCfg, apiClient, dispatcher, logger)

	logger.Info("starting shards")
	if err := manager.Start(ctx); err != nil {
		logger.Error("failed to start shards", "error", err)
		os.Exit(1)
	}

	// Stats printer
	go func() {
		ticker := time.NewTicker(10 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				ms := manager.Stats()
				ds := dispatcher.Stats()
				logger.Info("stats",
					"shards", ms.ShardCount,
					"connected", ms.ConnectedCount,
					"dispatched", ds.Dispatched,
					"notifications", ds.Notifications,
					"unknown", ds.Unknown,
					"decode_errors", ds.DecodeErrors,
				)
			}
		}
	}()

	logger.Info("streaming started - press Ctrl+C to stop")

	select {
	case <-ctx.Done():
	case <-manager.Done():
		if err := manager.Err(); err != nil {
			logger.Error("shards stopped", "error", err)
		}
	}

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	logger.Info("shutting down...")
	manager.Stop(shutdownCtx)
	logger.Info("shutdown complete")
}

func parseFilter(s string) map[string]bool {
	if s == "" {
		return nil
	}
	out := make(map[string]bool)
	for _, name := range strings.Split(s, ",") {
		if name = strings.ToUpper(strings.TrimSpace(name)); name != "" {
			out[name] = true
		}
	}
	return out
}

type printer struct {
	verbose bool
	only    map[string]bool
}

var (
	labelColor = color.New(color.FgCyan, color.Bold)
	shardColor = color.New(color.FgHiBlack)
)

func (p *printer) print(_ context.Context, ev dispatch.Event) {
	name := ev.Kind().String()
	if u, ok := ev.(dispatch.Unknown); ok {
		name = u.Name
	}
	if p.only != nil && !p.only[name] {
		return
	}

	prefix := labelColor.Sprintf("[%s]", name) + shardColor.Sprintf(" shard=%d", ev.Shard())
	if p.verbose {
		data, _ := json.MarshalIndent(ev, "", "  ")
		fmt.Printf("%s %s\n", prefix, data)
		return
	}
	fmt.Printf("%s %s\n", prefix, summary(ev))
}

// summary renders the identifying fields of common notifications.
func summary(ev dispatch.Event) string {
	switch e := ev.(type) {
	case dispatch.Ready:
		return fmt.Sprintf("session=%s guilds=%d", e.SessionID, len(e.GuildIDs))
	case dispatch.GuildsDownloaded:
		return fmt.Sprintf("guilds=%d", e.GuildCount)
	case dispatch.GuildAvailable:
		return fmt.Sprintf("guild=%s name=%q", e.Guild.ID, e.Guild.Name)
	case dispatch.GuildJoined:
		return fmt.Sprintf("guild=%s name=%q", e.Guild.ID, e.Guild.Name)
	case dispatch.GuildLeft:
		return fmt.Sprintf("guild=%s", e.Guild.ID)
	case dispatch.MessageCreated:
		author := "?"
		if e.Author != nil {
			author = e.Author.Username
		}
		return fmt.Sprintf("channel=%s author=%s content=%q", e.Message.ChannelID, author, truncate(e.Message.Content, 80))
	case dispatch.MessageDeleted:
		return fmt.Sprintf("channel=%s id=%s", e.ChannelID, e.ID)
	case dispatch.TypingStarted:
		return fmt.Sprintf("channel=%s user=%s", e.ChannelID, e.UserID)
	case dispatch.Passthrough:
		return fmt.Sprintf("bytes=%d", len(e.Raw))
	case dispatch.Unknown:
		return fmt.Sprintf("bytes=%d", len(e.Raw))
	}
	return ""
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "…"
}
