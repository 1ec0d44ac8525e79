// Command thermostat-mcp serves a simulated thermostat over MCP.
//
// Usage:
//
//	thermostat-mcp [-config server.toml] [-transport http|uart|websocket] [-port 3000] [-device /dev/ttyUSB0]
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"

	"github.com/mhpenta/devicemcp/config"
	"github.com/mhpenta/devicemcp/mcp"
	"github.com/mhpenta/devicemcp/transport"
	"github.com/mhpenta/devicemcp/utilitytools"
)

const banner = `
  ┌┬┐┬ ┬┌─┐┬─┐┌┬┐┌─┐┌─┐┌┬┐┌─┐┌┬┐
   │ ├─┤├┤ ├┬┘││││ │└─┐ │ ├─┤ │
   ┴ ┴ ┴└─┘┴└─┴ ┴└─┘└─┘ ┴ ┴ ┴ ┴  mcp
`

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	configPath := flag.String("config", os.Getenv("MCP_CONFIG"), "path to a .toml or .yaml config file")
	transportName := flag.String("transport", "", "transport: http, uart or websocket")
	port := flag.Int("port", 0, "listen port for http and websocket")
	device := flag.String("device", "", "serial device for the uart transport (default stdin/stdout)")
	flag.Parse()

	cfg, err := config.LoadFromFiles(*configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	config.ApplyFlagOverrides(cfg, *transportName, *port, *device)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("validating config: %w", err)
	}

	// Everything human-readable goes to stderr; stdout may carry UART traffic.
	color.Output = os.Stderr
	color.New(color.FgCyan).Print(banner)
	color.New(color.FgHiBlack).Printf("    %s %s\n\n", cfg.Server.Name, cfg.Server.Version)

	logger := config.NewLogger(cfg.Logging, os.Stderr)

	server, err := mcp.NewServer(cfg.MCP(logger))
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}
	defer func() {
		if err := server.Destroy(); err != nil {
			logger.Error("failed to destroy server", "error", err)
		}
	}()

	thermostat := utilitytools.NewThermostat(utilitytools.RandomSensor, logger)
	if err := server.RegisterTools(thermostat.Tools()...); err != nil {
		return fmt.Errorf("registering tools: %w", err)
	}

	if err := server.Start(uint16(cfg.Server.Port)); err != nil {
		return fmt.Errorf("starting server: %w", err)
	}

	green := color.New(color.FgGreen)
	green.Print("    ▶ ")
	fmt.Fprintf(os.Stderr, "Transport: %s\n", cfg.Server.Transport)
	if cfg.TransportType() != transport.TypeUART {
		green.Print("    ▶ ")
		fmt.Fprintf(os.Stderr, "Port:      %d\n", cfg.Server.Port)
	}
	green.Print("    ▶ ")
	fmt.Fprintf(os.Stderr, "Tools:     %d\n\n", server.ToolCount())

	logger.Info("ready to accept requests")
	<-ctx.Done()

	logger.Info("shutting down")
	return server.Stop()
}
