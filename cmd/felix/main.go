// Felix - a small conversational assistant that remembers who you are.

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"strings"
	"syscall"
	"time"

	"github.com/chzyer/readline"

	"github.com/crimsonworks/felix/pkg/channels"
	"github.com/crimsonworks/felix/pkg/config"
	"github.com/crimsonworks/felix/pkg/engine"
	"github.com/crimsonworks/felix/pkg/gateway"
	"github.com/crimsonworks/felix/pkg/identity"
	"github.com/crimsonworks/felix/pkg/providers"
	"github.com/crimsonworks/felix/pkg/router"
	"github.com/crimsonworks/felix/pkg/server"
	"github.com/crimsonworks/felix/pkg/window"
)

var (
	version   = "dev"
	gitCommit string
	buildTime string
	goVersion string
)

const appName = "felix"

func formatVersion() string {
	v := version
	if gitCommit != "" {
		v += fmt.Sprintf(" (git: %s)", gitCommit)
	}
	return v
}

func printVersion() {
	fmt.Printf("%s %s\n", appName, formatVersion())
	if buildTime != "" {
		fmt.Printf("  Build: %s\n", buildTime)
	}
	goVer := goVersion
	if goVer == "" {
		goVer = runtime.Version()
	}
	fmt.Printf("  Go: %s\n", goVer)
}

func main() {
	if err := executeCLI(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func getConfigPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".felix", "config.json")
}

func loadConfig() (*config.Config, error) {
	return config.LoadConfig(getConfigPath())
}

func setupLogging(debug bool) {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
}

// newBackend picks the persistence backend from config. The returned
// closer is a no-op for the file backend.
func newBackend(cfg *config.Config) (identity.Backend, io.Closer, error) {
	path := cfg.MemoryPath()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, nil, fmt.Errorf("create memory directory: %w", err)
	}

	switch cfg.Memory.Backend {
	case "", "file":
		return identity.NewFileBackend(path), nopCloser{}, nil
	case "sqlite":
		backend, err := identity.NewSQLiteBackend(path)
		if err != nil {
			return nil, nil, fmt.Errorf("open sqlite backend: %w", err)
		}
		return backend, backend, nil
	default:
		return nil, nil, fmt.Errorf("unknown memory backend %q (want file or sqlite)", cfg.Memory.Backend)
	}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// buildEngine wires the store, router, window, and gateway from config.
func buildEngine(cfg *config.Config) (*engine.Engine, *identity.Store, *gateway.Gateway, io.Closer, error) {
	backend, closer, err := newBackend(cfg)
	if err != nil {
		return nil, nil, nil, nil, err
	}

	store := identity.NewStore(backend, cfg.Memory.HistoryCap)
	gw := gateway.New(cfg)
	eng := engine.New(store, router.New(store), window.NewBuilder(cfg.Memory.RecallTurns), gw)
	return eng, store, gw, closer, nil
}

func onboard() error {
	configPath := getConfigPath()

	if _, err := os.Stat(configPath); err == nil {
		fmt.Printf("Config already exists at %s\n", configPath)
		fmt.Print("Overwrite? (y/n): ")
		var response string
		if _, err := fmt.Scanln(&response); err != nil {
			fmt.Println("Aborted.")
			return nil
		}
		response = strings.ToLower(strings.TrimSpace(response))
		if response != "y" && response != "yes" {
			fmt.Println("Aborted.")
			return nil
		}
	}

	cfg := config.DefaultConfig()
	if err := config.SaveConfig(configPath, cfg); err != nil {
		return fmt.Errorf("save config: %w", err)
	}

	fmt.Printf("%s is ready!\n", appName)
	fmt.Println("\nNext steps:")
	fmt.Println("  1. Add your API key to", configPath)
	fmt.Println("     (providers.openai.api_key or FELIX_PROVIDERS_OPENAI_API_KEY)")
	fmt.Println("  2. Chat locally: felix chat")
	fmt.Println("  3. Run the server: felix serve")
	fmt.Println("  4. Check readiness: felix status")
	return nil
}

func serveCmd(debug bool) error {
	setupLogging(debug)

	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	eng, store, gw, closer, err := buildEngine(cfg)
	if err != nil {
		return err
	}
	defer closer.Close()

	if gw.Configured() {
		fmt.Println("✓ Completion provider configured")
	} else {
		fmt.Println("⚠ Completion provider not configured - built-in commands only")
		fmt.Println("  ", gw.Reason())
	}
	fmt.Printf("✓ Memory: %s backend at %s (%d identities)\n", cfg.Memory.Backend, cfg.MemoryPath(), store.Count())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var discord *channels.DiscordChannel
	if strings.TrimSpace(cfg.Channels.Discord.Token) != "" {
		discord, err = channels.NewDiscordChannel(cfg.Channels.Discord, eng)
		if err != nil {
			return fmt.Errorf("create discord channel: %w", err)
		}
		if err := discord.Start(ctx); err != nil {
			return fmt.Errorf("start discord channel: %w", err)
		}
		fmt.Println("✓ Discord channel connected")
	}

	srv := server.New(cfg.ListenAddr(), eng, store, gw)
	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	fmt.Printf("✓ Listening on http://%s (POST /chat, GET /health)\n", cfg.ListenAddr())
	fmt.Println("Press Ctrl+C to stop")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-sigCh:
	}

	fmt.Println("\nShutting down...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("http shutdown", "err", err)
	}
	if discord != nil {
		if err := discord.Stop(shutdownCtx); err != nil {
			slog.Error("discord shutdown", "err", err)
		}
	}
	fmt.Println("✓ Stopped")
	return nil
}

func chatCmd(message string, debug bool) error {
	setupLogging(debug)

	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	eng, _, gw, closer, err := buildEngine(cfg)
	if err != nil {
		return err
	}
	defer closer.Close()

	if !gw.Configured() {
		fmt.Println("⚠ No completion provider configured - built-in commands only")
	}

	const callerKey = "cli:local"

	if strings.TrimSpace(message) != "" {
		reply := eng.Handle(context.Background(), callerKey, message)
		fmt.Printf("Felix: %s\n", reply.Text)
		return nil
	}

	fmt.Println("Felix is listening. Type 'help' for commands, 'exit' to quit. (^_^)")
	return replLoop(eng, callerKey)
}

func replLoop(eng *engine.Engine, callerKey string) error {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "You: ",
		HistoryFile:     filepath.Join(os.TempDir(), ".felix_history"),
		HistoryLimit:    100,
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return fmt.Errorf("init readline: %w", err)
	}
	defer rl.Close()

	for {
		line, err := rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt || err == io.EOF {
				fmt.Println("\nFelix: Bye bye~ (^_^)")
				return nil
			}
			return fmt.Errorf("read input: %w", err)
		}

		input := strings.TrimSpace(line)
		if input == "" {
			continue
		}
		if input == "exit" || input == "quit" || strings.EqualFold(input, "bye") {
			fmt.Println("Felix: Bye bye~ (^_^)")
			return nil
		}

		reply := eng.Handle(context.Background(), callerKey, input)
		fmt.Printf("Felix: %s\n\n", reply.Text)
	}
}

func statusCmd() error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	printStatus(os.Stdout, cfg, getConfigPath())
	return nil
}

func printStatus(w io.Writer, cfg *config.Config, configPath string) {
	fmt.Fprintf(w, "%s Status\n", appName)
	fmt.Fprintf(w, "Version: %s\n\n", formatVersion())

	if _, err := os.Stat(configPath); err == nil {
		fmt.Fprintln(w, "Config:", configPath, "✓")
	} else {
		fmt.Fprintln(w, "Config:", configPath, "✗ (run 'felix onboard')")
	}

	memoryPath := cfg.MemoryPath()
	if _, err := os.Stat(memoryPath); err == nil {
		fmt.Fprintf(w, "Memory: %s (%s backend) ✓\n", memoryPath, cfg.Memory.Backend)
	} else {
		fmt.Fprintf(w, "Memory: %s (%s backend) not initialized\n", memoryPath, cfg.Memory.Backend)
	}

	status := func(ok bool) string {
		if ok {
			return "✓"
		}
		return "not set"
	}

	provider, configured, mode, err := providers.ProviderCredentialStatus(cfg)
	if err != nil {
		fmt.Fprintln(w, "Provider:", cfg.Completions.Provider, "✗")
		fmt.Fprintln(w, "  ", err)
	} else {
		fmt.Fprintln(w, "Provider:", provider, status(configured))
		if configured {
			fmt.Fprintln(w, "  Auth:", mode)
		} else if verr := providers.ValidateProviderConfig(cfg); verr != nil {
			fmt.Fprintln(w, "  ", verr)
		}
	}

	discordReady := strings.TrimSpace(cfg.Channels.Discord.Token) != ""
	fmt.Fprintln(w, "Discord token:", status(discordReady))
	fmt.Fprintln(w, "Server addr:", cfg.ListenAddr())
}
