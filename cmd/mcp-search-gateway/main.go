// ABOUTME: Entry point for mcp-search-gateway
// ABOUTME: Subcommands to serve, check health, inspect resolution audits and mint delegated tokens

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
	"github.com/joho/godotenv"

	"github.com/2389/mcp-search-gateway/internal/auth"
	"github.com/2389/mcp-search-gateway/internal/config"
	"github.com/2389/mcp-search-gateway/internal/gateway"
	"github.com/2389/mcp-search-gateway/internal/store"
	"github.com/2389/mcp-search-gateway/internal/telemetry"
)

// Version is set by goreleaser at build time.
var version = "dev"

const banner = `
                                                  _
  _ __ ___   ___ _ __        ___  ___  __ _ _ __ ___| |__
 | '_ ' _ \ / __| '_ \ _____/ __|/ _ \/ _' | '__/ __| '_ \
 | | | | | | (__| |_) |_____\__ \  __/ (_| | | | (__| | | |
 |_| |_| |_|\___| .__/      |___/\___|\__,_|_|  \___|_| |_|
                |_|                            gateway
`

// getConfigPath returns the path to the gateway config file.
// Priority: MCP_GATEWAY_CONFIG env var > XDG_CONFIG_HOME/mcp-search-gateway/gateway.yaml > ~/.config/mcp-search-gateway/gateway.yaml
func getConfigPath() string {
	if envPath := os.Getenv("MCP_GATEWAY_CONFIG"); envPath != "" {
		return envPath
	}

	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "gateway.yaml" // fallback
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	return filepath.Join(configDir, "mcp-search-gateway", "gateway.yaml")
}

// loadConfig reads the config file, falling back to defaults plus
// environment when the file does not exist. The returned path is empty in
// that case.
func loadConfig() (*config.Config, string, error) {
	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if errors.Is(err, fs.ErrNotExist) {
		cfg, err = config.FromEnv()
		configPath = ""
	}
	if err != nil {
		return nil, "", fmt.Errorf("loading config: %w", err)
	}
	return cfg, configPath, nil
}

func usage() {
	fmt.Println("Usage: mcp-search-gateway <command>")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  serve                      Start the gateway server")
	fmt.Println("  health                     Check gateway health")
	fmt.Println("  resolutions [flags]        List recent organization resolutions")
	fmt.Println("  token --subject SUB        Mint a delegated access token (development)")
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	// A missing .env is normal.
	_ = godotenv.Load()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var err error
	switch os.Args[1] {
	case "serve":
		err = runServe(ctx)
	case "health":
		err = runHealth(ctx)
	case "resolutions":
		err = runResolutions(ctx, os.Args[2:])
	case "token":
		err = runToken(os.Args[2:])
	case "help", "-h", "--help":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runServe(ctx context.Context) error {
	cyan := color.New(color.FgCyan)
	cyan.Print(banner)

	gray := color.New(color.FgHiBlack)
	gray.Printf("    version: %s\n\n", version)

	cfg, configPath, err := loadConfig()
	if err != nil {
		return err
	}

	logger := setupLogger(cfg.Logging, os.Stdout)

	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)

	green.Print("    ▶ ")
	if configPath == "" {
		fmt.Println("Config:    (environment)")
	} else {
		fmt.Printf("Config:    %s\n", configPath)
	}
	green.Print("    ▶ ")
	fmt.Printf("HTTP:      %s\n", cfg.Server.HTTPAddr)
	green.Print("    ▶ ")
	fmt.Printf("Upstream:  %s\n", cfg.Upstream.BaseURL)
	if cfg.Upstream.DefaultCollection != "" {
		green.Print("    ▶ ")
		fmt.Printf("Collection: %s\n", cfg.Upstream.DefaultCollection)
	}
	if cfg.OAuth.Enabled {
		green.Print("    ▶ ")
		fmt.Println("OAuth:     enabled")
	}

	if cfg.Tailscale.Enabled {
		green.Print("    ▶ ")
		fmt.Printf("Tailscale: ")
		cyan.Print(cfg.Tailscale.Hostname)
		if cfg.Tailscale.Funnel {
			yellow.Print(" [funnel]")
		}
		if cfg.Tailscale.Ephemeral {
			gray.Print(" (ephemeral)")
		}
		fmt.Println()
	}

	fmt.Println()

	shutdownTracer := telemetry.ShutdownFunc(telemetry.Noop)
	if cfg.Tracing.Enabled {
		shutdownTracer, err = telemetry.InitTracer(cfg.Tracing.ServiceName, os.Stderr, logger)
		if err != nil {
			return fmt.Errorf("initializing tracing: %w", err)
		}
	}
	defer func() {
		tctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracer(tctx); err != nil {
			logger.Warn("tracer shutdown failed", "error", err)
		}
	}()

	logger.Info("starting mcp-search-gateway",
		"version", version,
		"config", configPath,
		"http_addr", cfg.Server.HTTPAddr,
	)

	gw, err := gateway.New(cfg, logger, gateway.WithVersion(version))
	if err != nil {
		return fmt.Errorf("creating gateway: %w", err)
	}

	return gw.Run(ctx)
}

func runHealth(ctx context.Context) error {
	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}

	addr := cfg.Server.HTTPAddr
	if strings.HasPrefix(addr, ":") {
		addr = "localhost" + addr
	}

	url := fmt.Sprintf("http://%s%s", addr, gateway.PathHealth)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unhealthy: status %d", resp.StatusCode)
	}

	fmt.Println("healthy")
	return nil
}

func runResolutions(ctx context.Context, args []string) error {
	fset := flag.NewFlagSet("resolutions", flag.ContinueOnError)
	collection := fset.String("collection", "", "only show this collection")
	outcome := fset.String("outcome", "", "only show this outcome (cache_hit, resolved, not_found, ...)")
	since := fset.Duration("since", 0, "only show records newer than this (e.g. 1h)")
	limit := fset.Int("limit", 20, "maximum records to show")
	if err := fset.Parse(args); err != nil {
		return err
	}

	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.Database.Path == "" {
		return errors.New("auditing is disabled: set database.path")
	}

	s, err := store.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer s.Close()

	filter := store.ResolutionFilter{Limit: *limit}
	if *collection != "" {
		filter.Collection = collection
	}
	if *outcome != "" {
		o := store.Outcome(*outcome)
		filter.Outcome = &o
	}
	if *since > 0 {
		t := time.Now().Add(-*since)
		filter.Since = &t
	}

	records, err := s.ListResolutions(ctx, filter)
	if err != nil {
		return fmt.Errorf("listing resolutions: %w", err)
	}
	if len(records) == 0 {
		fmt.Println("no resolutions recorded")
		return nil
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TIME\tCOLLECTION\tOUTCOME\tORGANIZATION\tTOKEN\tDURATION\tDETAIL")
	for _, r := range records {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			r.CreatedAt.Local().Format(time.DateTime),
			r.Collection,
			r.Outcome,
			r.OrganizationID,
			r.TokenDigest,
			r.Duration.Round(time.Millisecond),
			r.Detail,
		)
	}
	return tw.Flush()
}

func runToken(args []string) error {
	fset := flag.NewFlagSet("token", flag.ContinueOnError)
	subject := fset.String("subject", "", "token subject (required)")
	scopes := fset.String("scope", "", "comma-separated scopes")
	ttl := fset.Duration("ttl", time.Hour, "token lifetime")
	if err := fset.Parse(args); err != nil {
		return err
	}
	if strings.TrimSpace(*subject) == "" {
		return errors.New("--subject is required")
	}

	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}
	if len(cfg.OAuth.JWTSecret) < config.MinJWTSecretLength {
		return fmt.Errorf("oauth.jwt_secret (or %s) must be at least %d bytes", config.EnvOAuthJWTSecret, config.MinJWTSecretLength)
	}

	var opts []auth.VerifierOption
	if cfg.OAuth.Issuer != "" {
		opts = append(opts, auth.WithIssuer(cfg.OAuth.Issuer))
	}
	if cfg.OAuth.Audience != "" {
		opts = append(opts, auth.WithAudience(cfg.OAuth.Audience))
	}
	verifier, err := auth.NewJWTVerifier([]byte(cfg.OAuth.JWTSecret), opts...)
	if err != nil {
		return err
	}

	var scopeList []string
	for _, s := range strings.Split(*scopes, ",") {
		if s = strings.TrimSpace(s); s != "" {
			scopeList = append(scopeList, s)
		}
	}

	token, err := verifier.Generate(*subject, scopeList, *ttl)
	if err != nil {
		return fmt.Errorf("generating token: %w", err)
	}
	fmt.Println(token)
	return nil
}
