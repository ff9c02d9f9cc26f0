// Package main provides the renderlink command line client.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/go-chi/chi/v5"
	glog "github.com/goliatone/go-logger/glog"

	"github.com/goliatone/go-renderlink"
	"github.com/goliatone/go-renderlink/adapters/gologger"
	"github.com/goliatone/go-renderlink/core"
	"github.com/goliatone/go-renderlink/params"
	"github.com/goliatone/go-renderlink/webhooks"
)

var version = "dev"

// stdout, stderr and stdin are swapped in tests. Logs go to stderr.
var (
	stdout io.Writer = os.Stdout
	stderr io.Writer = os.Stderr
	stdin  io.Reader = os.Stdin
)

// Globals are flags shared by every subcommand.
type Globals struct {
	Config        string `short:"c" type:"path" env:"RENDERLINK_CONFIG" help:"YAML config file."`
	BaseURL       string `env:"RENDERLINK_BASE_URL" help:"Render API base URL."`
	APIKey        string `env:"RENDERLINK_API_KEY" help:"Account API key."`
	APISecret     string `env:"RENDERLINK_API_SECRET" help:"Account secret used to sign links."`
	WebhookSecret string `env:"RENDERLINK_WEBHOOK_SECRET" help:"Shared secret for webhook signatures."`
	SignLinks     bool   `help:"Sign generated links."`
	LogLevel      string `default:"info" enum:"trace,debug,info,warn,error" help:"Log level."`
	Quiet         bool   `short:"q" help:"Disable logging."`
}

// CLI defines the command-line interface with subcommands.
type CLI struct {
	Globals

	URL     URLCmd     `cmd:"" name:"url" help:"Print a direct render link."`
	Sign    SignCmd    `cmd:"" help:"Sign a webhook body and print the signature header."`
	Verify  VerifyCmd  `cmd:"" help:"Verify a signed webhook body and print its payload."`
	Render  RenderCmd  `cmd:"" help:"Submit an async render and wait for the result."`
	Status  StatusCmd  `cmd:"" help:"Print the current status of a render."`
	Serve   ServeCmd   `cmd:"" help:"Receive render webhooks over HTTP."`
	Version VersionCmd `cmd:"" help:"Show version information."`
}

type URLCmd struct {
	Target string   `arg:"" help:"Page URL, or inline HTML starting with '<'."`
	Format string   `short:"f" help:"Output format (png, jpeg, webp, pdf, ...)."`
	Param  []string `short:"P" help:"Render parameter as name=value. Repeat a name to build a list."`
	Mode   string   `default:"auto" enum:"auto,signed,unsigned" help:"Link signing mode."`
}

func (cmd *URLCmd) Run(globals *Globals) error {
	client, err := globals.client()
	if err != nil {
		return err
	}
	bag, err := parseParams(cmd.Target, cmd.Param)
	if err != nil {
		return err
	}

	var link string
	switch cmd.Mode {
	case "signed":
		link, err = client.GenerateSignedURL(bag, cmd.Format)
	case "unsigned":
		link, err = client.GenerateUnsignedURL(bag, cmd.Format)
	default:
		link, err = client.GenerateURL(bag, cmd.Format)
	}
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(stdout, link)
	return err
}

type SignCmd struct {
	Body      string `arg:"" optional:"" help:"Body file, stdin when omitted."`
	Timestamp string `short:"t" help:"Unix timestamp to sign with, now when omitted."`
}

func (cmd *SignCmd) Run(globals *Globals) error {
	cfg, err := globals.config()
	if err != nil {
		return err
	}
	if cfg.Webhook.Secret == "" {
		return core.UsageError(webhooks.ErrMissingSecret, "webhooks: webhook secret is required", nil)
	}
	body, err := readBody(cmd.Body)
	if err != nil {
		return err
	}
	timestamp := strings.TrimSpace(cmd.Timestamp)
	if timestamp == "" {
		timestamp = strconv.FormatInt(time.Now().Unix(), 10)
	}
	_, err = fmt.Fprintln(stdout, webhooks.Sign(cfg.Webhook.Secret, timestamp, body))
	return err
}

type VerifyCmd struct {
	Body      string `arg:"" optional:"" help:"Body file, stdin when omitted."`
	Signature string `short:"s" required:"" help:"Signature header value (t=...,sha256=...)."`
}

func (cmd *VerifyCmd) Run(globals *Globals) error {
	cfg, err := globals.config()
	if err != nil {
		return err
	}
	body, err := readBody(cmd.Body)
	if err != nil {
		return err
	}
	verifier := webhooks.NewVerifier(cfg.Webhook.Secret)
	if window := cfg.ReplayWindow(); window > 0 {
		verifier.Replay = webhooks.NewReplayGuard(window, nil)
	}
	payload, err := verifier.Verify(context.Background(), cmd.Signature, body)
	if err != nil {
		return err
	}
	return writeJSON(payload)
}

type RenderCmd struct {
	Target  string        `arg:"" help:"Page URL, or inline HTML starting with '<'."`
	Format  string        `short:"f" help:"Output format (png, jpeg, webp, pdf, ...)."`
	Param   []string      `short:"P" help:"Render parameter as name=value. Repeat a name to build a list."`
	Timeout time.Duration `short:"T" help:"Completion deadline, the configured timeout when omitted."`
}

func (cmd *RenderCmd) Run(globals *Globals) error {
	client, err := globals.client()
	if err != nil {
		return err
	}
	bag, err := parseParams(cmd.Target, cmd.Param)
	if err != nil {
		return err
	}
	if format := strings.TrimSpace(cmd.Format); format != "" {
		bag.Set(params.FormatParameter, params.Enum(format))
	}

	ctx, cancel := signalContext(globals.logger())
	defer cancel()

	deadline := cmd.Timeout
	if deadline <= 0 {
		deadline = client.Config().DefaultTimeout()
	}
	result, job, err := client.RenderAndWait(ctx, bag, deadline)
	if err != nil {
		if job != nil {
			globals.logger().Warn("render did not complete", "render_id", job.ID(), "status", job.Status())
		}
		return err
	}
	return writeJSON(result)
}

type StatusCmd struct {
	RenderID string `arg:"" help:"Render id returned on submission."`
}

func (cmd *StatusCmd) Run(globals *Globals) error {
	client, err := globals.client()
	if err != nil {
		return err
	}
	ctx, cancel := signalContext(globals.logger())
	defer cancel()

	snapshot, err := client.Status(ctx, cmd.RenderID)
	if err != nil {
		return err
	}
	return writeJSON(snapshot)
}

type ServeCmd struct {
	Addr string `default:":8080" help:"Listen address."`
	Path string `default:"/webhooks/renderlink" help:"Webhook route."`
}

func (cmd *ServeCmd) Run(globals *Globals) error {
	client, err := globals.client()
	if err != nil {
		return err
	}
	log := gologger.Component(client.Runtime(), "webhooks")

	server := &http.Server{
		Addr:              cmd.Addr,
		Handler:           cmd.router(client, log),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, cancel := signalContext(log)
	defer cancel()

	errCh := make(chan error, 1)
	go func() {
		log.Info("listening for webhooks", "addr", cmd.Addr, "path", cmd.Path)
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	return server.Shutdown(shutdownCtx)
}

func (cmd *ServeCmd) router(client *renderlink.Client, log logger) http.Handler {
	router := chi.NewRouter()
	router.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	receiver := client.WebhookReceiver(renderlink.WebhookHandlerFunc(func(_ context.Context, payload renderlink.WebhookPayload) error {
		if payload.Succeeded() {
			log.Info("render succeeded", "render_id", payload.RenderID, "render_url", payload.Result.RenderURL, "size", payload.Result.Size)
			return nil
		}
		log.Warn("render failed", "render_id", payload.RenderID, "error", payload.Error.Message)
		return nil
	}))
	receiver.Mount(router, cmd.Path)
	return router
}

type VersionCmd struct{}

func (cmd *VersionCmd) Run() error {
	_, err := fmt.Fprintf(stdout, "renderlink version %s\n", version)
	return err
}

// logger is the subset of glog.Logger the commands log through.
type logger interface {
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
}

func (g *Globals) config() (renderlink.Config, error) {
	cfg, err := loadConfig(g.Config)
	if err != nil {
		return cfg, err
	}
	return g.apply(cfg), nil
}

func (g *Globals) logger() *glog.BaseLogger {
	if g.Quiet {
		return newLogger("error", io.Discard, false)
	}
	level := strings.TrimSpace(g.LogLevel)
	if level == "" {
		level = "info"
	}
	return newLogger(level, stderr, isTerminal(stderr))
}

func (g *Globals) client() (*renderlink.Client, error) {
	cfg, err := g.config()
	if err != nil {
		return nil, err
	}
	return renderlink.New(cfg, gologger.ClientOptions(g.logger(), nil)...)
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext(log logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case <-sigCh:
			log.Warn("interrupted, shutting down")
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigCh)
	}()
	return ctx, cancel
}

func readBody(path string) ([]byte, error) {
	if strings.TrimSpace(path) == "" || path == "-" {
		return io.ReadAll(stdin)
	}
	return os.ReadFile(path)
}

func writeJSON(value any) error {
	encoder := json.NewEncoder(stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(value)
}

func main() {
	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("renderlink"),
		kong.Description("Render links, async renders and webhook verification for the renderlink API."),
		kong.UsageOnError(),
		kong.Bind(&cli.Globals),
	)
	err := ctx.Run()
	ctx.FatalIfErrorf(err)
}
