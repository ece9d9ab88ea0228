package main

import (
	"bufio"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/Coffee-Nerd/MudVault-Mesh/internal/client"
	"github.com/Coffee-Nerd/MudVault-Mesh/internal/commands"
	"github.com/Coffee-Nerd/MudVault-Mesh/internal/config"
	"github.com/Coffee-Nerd/MudVault-Mesh/internal/host"
	"github.com/Coffee-Nerd/MudVault-Mesh/internal/logging"
)

// Version information (set at build time with -ldflags)
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// pollInterval stands in for the embedding MUD's game pulse.
const pollInterval = 250 * time.Millisecond

var (
	logLevel  string
	logFormat string
)

var rootCmd = &cobra.Command{
	Use:     "meshclient",
	Short:   "MudVault Mesh client - connect a MUD to the mesh network",
	Long:    `meshclient connects a MUD to a MudVault Mesh gateway and bridges tells, emotes, channels, who, finger, and locate traffic. Run standalone it acts as a one-player console MUD for trying out the mesh.`,
	Version: Version,
	Run: func(cmd *cobra.Command, args []string) {
		runClient()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "auto", "log format (json, console, auto)")
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("meshclient %s\n", Version)
		if BuildTime != "unknown" {
			fmt.Printf("Built: %s\n", BuildTime)
		}
		if GitCommit != "unknown" {
			fmt.Printf("Commit: %s\n", GitCommit)
		}
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runClient() {
	logger := logging.Init(logging.Config{
		Format:    logFormat,
		Level:     logLevel,
		Component: "meshclient",
	})

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	log.Info().Str("mud", cfg.MudName).Str("gateway", cfg.GatewayAddr()).
		Msg("Starting MudVault Mesh client")

	// Standalone mode hosts a single console operator with immortal
	// privileges; an embedding MUD supplies its own adapter instead.
	mem := host.NewMemoryHost(time.Time{})
	operator := &host.Player{PlayerName: "Operator", PlayerLevel: 60, Room: "The Console"}
	mem.AddPlayer(operator)

	c := client.New(cfg, mem, logger)
	handler := commands.New(c, mem, cfg, logger)

	lines := make(chan string, 8)
	go readConsole(lines)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	printed := 0
	for {
		select {
		case <-sig:
			log.Info().Msg("Shutting down")
			c.Stop()
			return
		case line, ok := <-lines:
			if !ok {
				// stdin closed; keep the connection running.
				lines = nil
				continue
			}
			handler.Dispatch(operator, line)
		case <-ticker.C:
			c.Poll()
		}
		// Drain anything the mesh delivered to the console.
		deliveries := mem.Deliveries()
		for ; printed < len(deliveries); printed++ {
			fmt.Println(deliveries[printed].Text)
		}
	}
}

func readConsole(lines chan<- string) {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		lines <- scanner.Text()
	}
	close(lines)
}
