package main

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/harunalabs/aituber/internal/caption"
	"github.com/harunalabs/aituber/internal/chat"
	"github.com/harunalabs/aituber/internal/config"
	"github.com/harunalabs/aituber/internal/controller"
	"github.com/harunalabs/aituber/internal/handler"
	"github.com/harunalabs/aituber/internal/llm"
	"github.com/harunalabs/aituber/internal/mode"
	"github.com/harunalabs/aituber/internal/prompt"
	"github.com/harunalabs/aituber/internal/shutdown"
	"github.com/harunalabs/aituber/internal/state"
	"github.com/harunalabs/aituber/internal/summary"
	"github.com/harunalabs/aituber/internal/voice"
)

var rootCmd = &cobra.Command{
	Use:   "aituber",
	Short: "aituber - autonomous talking virtual streamer",
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the stream (dispatch loop + collaborators)",
	RunE:  runStream,
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Request a graceful shutdown of a running stream",
	RunE:  runStop,
}

var onboardCmd = &cobra.Command{
	Use:   "onboard",
	Short: "Initialize config and prompts directory",
	RunE:  runOnboard,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show aituber status",
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(runCmd, stopCmd, onboardCmd, statusCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runStream(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cfg.Provider.APIKey == "" {
		return fmt.Errorf("API key not set. Run 'aituber onboard' or set AITUBER_API_KEY / ANTHROPIC_API_KEY")
	}

	prompts, err := prompt.Load(cfg.Agent.PromptsDir)
	if err != nil {
		return fmt.Errorf("load prompts: %w", err)
	}

	rt, err := llm.DefaultRuntimeFactory(cfg, prompts.Persona())
	if err != nil {
		return err
	}
	gen := llm.NewGenerator(rt)
	defer gen.Close()

	ctx := context.Background()

	var speaker voice.Speaker = voice.Nop{}
	if cfg.Voice.Enabled {
		engine := voice.NewEngine(
			cfg.Voice.EngineURL,
			cfg.Voice.StyleID,
			cfg.Voice.SpeedScale,
			time.Duration(cfg.Voice.TimeoutSeconds)*time.Second,
			voice.NewCommandPlayer(cfg.Voice.PlayerCommand),
		)
		if err := engine.Ping(ctx); err != nil {
			return fmt.Errorf("voice engine check: %w", err)
		}
		speaker = engine
	}

	var captions caption.Captioner = caption.Nop{}
	if cfg.Caption.Enabled {
		obs := caption.NewOBS(cfg.Caption.Host, cfg.Caption.Port, cfg.Caption.Password, cfg.Caption.InputName)
		defer obs.Close()
		captions = obs
	}

	var source chat.Source
	if cfg.Chat.Telegram.Enabled {
		src, err := chat.NewTelegramSource(cfg.Chat.Telegram)
		if err != nil {
			return fmt.Errorf("chat source: %w", err)
		}
		source = src
	}

	filter, err := chat.NewFilter(cfg.Chat.Filter)
	if err != nil {
		return fmt.Errorf("comment filter: %w", err)
	}

	deps := &handler.Deps{
		Cfg:       cfg,
		Process:   state.NewProcess(),
		History:   state.NewHistory(),
		Prompts:   prompts,
		Gen:       gen,
		Modes:     mode.NewManager(cfg.Modes.Weights, rand.New(rand.NewSource(time.Now().UnixNano()))),
		Speaker:   speaker,
		Captions:  captions,
		Summaries: summary.NewWriter(cfg.Summary.Dir),
		Filter:    filter,
	}

	log.Printf("[aituber] starting stream (model %s)", cfg.Agent.Model)
	return controller.New(cfg, deps, source).Run(ctx)
}

func runStop(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	path := cfg.ShutdownMarkerPath()
	if err := shutdown.RequestByMarker(path); err != nil {
		return fmt.Errorf("write shutdown marker: %w", err)
	}
	fmt.Printf("Shutdown requested: %s\n", path)
	return nil
}

func runOnboard(cmd *cobra.Command, args []string) error {
	cfgPath := config.ConfigPath()

	if _, err := os.Stat(cfgPath); os.IsNotExist(err) {
		if err := config.Save(config.DefaultConfig(), cfgPath); err != nil {
			return fmt.Errorf("write config: %w", err)
		}
		fmt.Printf("Created config: %s\n", cfgPath)
	} else {
		fmt.Printf("Config already exists: %s\n", cfgPath)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}
	for _, dir := range []string{cfg.Stream.DataDir, cfg.Summary.Dir, cfg.Agent.PromptsDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}

	fmt.Printf("Data dir ready: %s\n", cfg.Stream.DataDir)
	fmt.Println("\nNext steps:")
	fmt.Printf("  1. Edit %s to set your API key\n", cfgPath)
	fmt.Println("  2. Or set AITUBER_API_KEY environment variable")
	fmt.Println("  3. Run 'aituber run' to go live")
	return nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Printf("Config: error (%v)\n", err)
		return nil
	}

	fmt.Printf("Config: %s\n", config.ConfigPath())
	fmt.Printf("Model: %s\n", cfg.Agent.Model)
	fmt.Printf("Provider: %s\n", providerDisplay(cfg.Provider.Type))
	if key := cfg.Provider.APIKey; key != "" && len(key) > 8 {
		fmt.Printf("API Key: %s...%s\n", key[:4], key[len(key)-4:])
	} else if key != "" {
		fmt.Println("API Key: set")
	} else {
		fmt.Println("API Key: not set")
	}
	fmt.Printf("Voice: enabled=%v (%s)\n", cfg.Voice.Enabled, cfg.Voice.EngineURL)
	fmt.Printf("Caption: enabled=%v (%s:%d)\n", cfg.Caption.Enabled, cfg.Caption.Host, cfg.Caption.Port)
	fmt.Printf("Chat: telegram enabled=%v\n", cfg.Chat.Telegram.Enabled)
	fmt.Printf("Summaries: %s\n", cfg.Summary.Dir)

	if _, err := os.Stat(cfg.ShutdownMarkerPath()); err == nil {
		fmt.Println("Shutdown: marker pending")
	}
	return nil
}

func providerDisplay(t string) string {
	if t == "" {
		return "anthropic (default)"
	}
	return t
}
