// Command pluribus runs the gateway, performs the OAuth login flow for a
// provider, and exercises a locally running gateway with a smoke-test
// request. See the subcommand usage strings for flags.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/arasple/pluribus/internal/browser"
	"github.com/arasple/pluribus/internal/buildinfo"
	"github.com/arasple/pluribus/internal/credstore"
	"github.com/arasple/pluribus/internal/gwconfig"
	"github.com/arasple/pluribus/internal/httpapi"
	"github.com/arasple/pluribus/internal/logging"
	"github.com/arasple/pluribus/internal/oauth"
	"github.com/arasple/pluribus/internal/provider"
	"github.com/arasple/pluribus/internal/upstream"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

var (
	// Version, Commit and BuildDate are overridden via ldflags at release
	// build time and mirrored into buildinfo for the rest of the process.
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

func init() {
	logging.SetupBaseLogger()
	buildinfo.Version = Version
	buildinfo.Commit = Commit
	buildinfo.BuildDate = BuildDate
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	switch os.Args[1] {
	case "serve":
		runServe(os.Args[2:])
	case "login":
		runLogin(os.Args[2:])
	case "test":
		runTest(os.Args[2:])
	case "-version", "--version", "version":
		fmt.Printf("pluribus %s (commit %s, built %s)\n", buildinfo.Version, buildinfo.Commit, buildinfo.BuildDate)
	default:
		usage()
		os.Exit(2)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, "usage: %s <serve|login|test> [flags]\n", os.Args[0])
}

// runServe starts the HTTP gateway and blocks until SIGINT/SIGTERM.
func runServe(args []string) {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	_ = fs.Parse(args)

	cfg, err := gwconfig.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	if cfg.LogToFile {
		if err := logging.ConfigureLogOutput(logging.FileOutputConfig{Enabled: true, Dir: cfg.LogDir}); err != nil {
			log.Fatalf("failed to configure log output: %v", err)
		}
	}

	log.Infof("pluribus %s (commit %s, built %s)", buildinfo.Version, buildinfo.Commit, buildinfo.BuildDate)

	if err := os.MkdirAll(cfg.ProvidersDir, 0o755); err != nil {
		log.Fatalf("failed to create providers directory %s: %v", cfg.ProvidersDir, err)
	}
	store := credstore.New(cfg.ProvidersDir)
	configs, err := store.LoadAll()
	if err != nil {
		log.Fatalf("failed to load providers from %s: %v", cfg.ProvidersDir, err)
	}
	registry := provider.Build(configs)
	if registry.Len() == 0 {
		log.Warn("no providers configured; run `pluribus login claude-code` before sending traffic")
	}

	aliasToolsByName := make(map[string]bool, registry.Len())
	for _, p := range registry.All() {
		aliasToolsByName[p.Name] = true
	}

	engine := oauth.NewEngine(store)
	auxClient := upstream.NewAuxClient()
	versionResolver := upstream.NewVersionResolver(auxClient)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Resolve the claude-code release version once up front: every request's
	// User-Agent depends on it, and the npm lookup has its own fallback.
	resolvedVersion := versionResolver.Resolve(ctx)
	log.Infof("resolved claude-code version: %s", resolvedVersion)

	router := httpapi.NewRouter(&httpapi.Deps{
		Secret:           cfg.Secret,
		Registry:         registry,
		Engine:           engine,
		MessagesClient:   upstream.NewMessagesClient(),
		VersionResolver:  versionResolver,
		AliasToolsByName: aliasToolsByName,
	})

	log.Infof("listening on %s", cfg.Addr())
	if err := httpapi.Serve(ctx, cfg.Addr(), router); err != nil {
		log.Fatalf("server exited with error: %v", err)
	}
}

// runLogin drives the PKCE authorization-code flow for a single provider and
// persists the resulting credentials to the provider store.
func runLogin(args []string) {
	fs := flag.NewFlagSet("login", flag.ExitOnError)
	name := fs.String("name", "", "name to save the provider under (defaults to the provider type)")
	noBrowser := fs.Bool("no-browser", false, "print the authorize URL instead of opening a browser")
	_ = fs.Parse(args)

	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "usage: pluribus login <provider> [--name <name>] [--no-browser]")
		os.Exit(2)
	}
	providerArg := fs.Arg(0)
	if providerArg != "claude-code" && providerArg != string(credstore.ProviderClaudeCode) {
		log.Fatalf("login: provider %q has no implementation yet", providerArg)
	}

	providerName := *name
	if providerName == "" {
		providerName = string(credstore.ProviderClaudeCode)
	}

	cfg, err := gwconfig.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}
	store := credstore.New(cfg.ProvidersDir)
	engine := oauth.NewEngine(store)

	cache, err := oauth.NewLoginCache()
	if err != nil {
		log.Fatalf("login: failed to open login cache: %v", err)
	}

	codes, state, cached := cache.Load(providerName)
	if cached {
		log.Info("login: resuming a cached authorization session")
	} else {
		codes, err = oauth.GeneratePKCECodes()
		if err != nil {
			log.Fatalf("login: failed to generate PKCE codes: %v", err)
		}
		state = uuid.NewString()
		if err := cache.Save(providerName, codes, state); err != nil {
			log.Warnf("login: failed to persist login cache entry: %v", err)
		}
	}

	authURL := oauth.GenerateAuthURL(state, codes)
	fmt.Printf("Open this URL to authorize:\n%s\n", authURL)
	if !*noBrowser {
		if err := browser.OpenURL(authURL); err != nil {
			log.Warnf("login: failed to open browser automatically: %v", err)
		}
	}

	// The authorization code is re-prompted on exchange failure instead of
	// aborting: the PKCE session above is reused as-is, never regenerated.
	reader := bufio.NewReader(os.Stdin)
	var creds *credstore.OAuthCreds
	for {
		fmt.Print("Paste the authorization code: ")
		raw, err := reader.ReadString('\n')
		if err != nil && err != io.EOF {
			log.Fatalf("login: failed to read authorization code: %v", err)
		}
		raw = strings.TrimSpace(raw)
		if raw == "" {
			log.Fatalf("login: no authorization code provided")
		}
		code, returnedState := oauth.SplitCodeAndState(raw)

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		creds, err = engine.ExchangeCode(ctx, code, returnedState, codes)
		cancel()
		if err != nil {
			log.Errorf("login: code exchange failed, paste the code again: %v", err)
			continue
		}
		break
	}

	if err := store.Save(&credstore.Config{
		Name:  providerName,
		Type:  credstore.ProviderClaudeCode,
		OAuth: creds,
	}); err != nil {
		log.Fatalf("login: failed to save credentials: %v", err)
	}

	_ = cache.Delete()
	fmt.Printf("Saved provider %q to %s (scopes: %s)\n", providerName, store.Dir(), strings.Join(creds.Scopes, " "))
}

// runTest sends a minimal chat request to a locally running gateway and
// exits non-zero if it does not answer with a 2xx.
func runTest(args []string) {
	fs := flag.NewFlagSet("test", flag.ExitOnError)
	addr := fs.String("addr", "http://127.0.0.1:8080", "base URL of a running gateway")
	_ = fs.Parse(args)

	cfg, err := gwconfig.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	body := strings.NewReader(`{"model":"claude-3-5-sonnet-20241022","max_tokens":16,"messages":[{"role":"user","content":"ping"}]}`)
	req, err := http.NewRequest(http.MethodPost, strings.TrimRight(*addr, "/")+"/anthropic/v1/messages", body)
	if err != nil {
		log.Fatalf("test: failed to build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+cfg.Secret)

	client := &http.Client{Timeout: 30 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		log.Fatalf("test: request failed: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		fmt.Printf("gateway returned %d: %s\n", resp.StatusCode, respBody)
		os.Exit(1)
	}
	fmt.Printf("gateway responded %d\n", resp.StatusCode)
}
