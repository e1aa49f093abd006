package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/pflag"

	"github.com/ritzau/wfc/pkg/compiler"
	"github.com/ritzau/wfc/pkg/config"
	"github.com/ritzau/wfc/pkg/inject"
	"github.com/ritzau/wfc/pkg/logging"
	"github.com/ritzau/wfc/pkg/model"
	"github.com/ritzau/wfc/pkg/output"
	"github.com/ritzau/wfc/pkg/pubsub"
	"github.com/ritzau/wfc/pkg/templates"
	"github.com/ritzau/wfc/pkg/web"
)

const usage = `Usage: wfc <command> [flags] [args]

Commands:
  compile <file>                      compile a workflow to an execution graph
  validate <file>                     check an execution graph
  inject <file> --registry <reg>      compile and inject --set values
  render <template>                   render a template from the template directory
  serve                               run the HTTP service

Use "-" as file to read standard input.
`

// errInvalid makes validate exit with status 1 without an error message.
var errInvalid = errors.New("invalid graph")

func main() {
	if len(os.Args) < 2 || os.Args[1] == "-h" || os.Args[1] == "--help" {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	if err := run(os.Args[1], os.Args[2:], os.Stdout, os.Stderr); err != nil {
		if !errors.Is(err, errInvalid) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}

// options holds the flags that are not configuration.
type options struct {
	configFile string
	order      bool
	registry   string
	sets       []string
	payload    bool
	clientID   string
}

func newFlagSet(cmd string, o *options) *pflag.FlagSet {
	f := pflag.NewFlagSet("wfc "+cmd, pflag.ContinueOnError)

	f.StringVar(&o.configFile, "config", config.FileName, "Config file")
	f.String("templates", "templates", "Template directory")
	f.StringSlice("ui-types", compiler.DefaultUITypes, "Editor-only node types to drop")
	f.Bool("zero-index-outputs", false, "Force every reference to output 0")
	f.String("verbosity", "", "Log level: trace, debug, info, warn, error")
	f.CountP("verbose", "v", "Increase verbosity (-v debug, -vv trace)")
	f.Bool("json-logs", false, "Log as JSON")

	switch cmd {
	case "compile":
		f.BoolVar(&o.order, "order", false, "Print the execution order to stderr")
	case "inject", "render":
		if cmd == "inject" {
			f.StringVar(&o.registry, "registry", "", "Parameter registry (.toml or .json)")
		}
		f.StringArrayVar(&o.sets, "set", nil, "Parameter value as name=value (repeatable)")
		f.BoolVar(&o.payload, "payload", cmd == "render", "Print the submission payload instead of the graph")
		f.StringVar(&o.clientID, "client-id", "", "Client id for the payload (default: random)")
	case "serve":
		f.Int("port", 8188, "Port to listen on")
		f.Bool("watch", false, "Reload templates when their files change")
		f.Int("cache-size", 128, "Number of compiled templates to cache")
	}
	return f
}

func run(cmd string, args []string, stdout, stderr io.Writer) error {
	var o options
	f := newFlagSet(cmd, &o)
	switch cmd {
	case "compile", "validate", "inject", "render", "serve":
	default:
		return fmt.Errorf("unknown command %q\n\n%s", cmd, usage)
	}
	if err := f.Parse(args); err != nil {
		return err
	}

	cfg, err := config.LoadFile(f, o.configFile)
	if err != nil {
		return err
	}
	cfg.ApplyLogging()

	switch cmd {
	case "compile":
		return runCompile(cfg, o, f.Args(), stdout, stderr)
	case "validate":
		return runValidate(f.Args(), stdout)
	case "inject":
		return runInject(cfg, o, f.Args(), stdout, stderr)
	case "render":
		return runRender(cfg, o, f.Args(), stdout, stderr)
	}
	return runServe(cfg)
}

func runCompile(cfg *config.Config, o options, args []string, stdout, stderr io.Writer) error {
	if len(args) != 1 {
		return errors.New("compile takes exactly one file")
	}
	res, err := compileFile(args[0], cfg.ToCompileOptions())
	if err != nil {
		return err
	}

	var order []string
	if o.order {
		if order, err = compiler.Order(res.Graph); err != nil {
			return err
		}
	}
	output.PrintCompileReport(stderr, args[0], res, order)
	return writeJSON(stdout, res.Graph)
}

func runValidate(args []string, stdout io.Writer) error {
	if len(args) != 1 {
		return errors.New("validate takes exactly one file")
	}
	data, err := readInput(args[0])
	if err != nil {
		return err
	}
	res := compiler.ValidateJSON(data)
	output.PrintValidation(stdout, args[0], res)
	if !res.Valid {
		return errInvalid
	}
	return nil
}

func runInject(cfg *config.Config, o options, args []string, stdout, stderr io.Writer) error {
	if len(args) != 1 {
		return errors.New("inject takes exactly one file")
	}
	if o.registry == "" {
		return errors.New("--registry is required")
	}
	reg, err := inject.LoadRegistry(o.registry)
	if err != nil {
		return err
	}
	values, err := parseSets(o.sets)
	if err != nil {
		return err
	}

	res, err := compileFile(args[0], cfg.ToCompileOptions())
	if err != nil {
		return err
	}
	report := inject.Inject(res.Graph, values, reg)
	output.PrintInjectReport(stderr, report)

	if o.payload {
		return writeJSON(stdout, res.Graph.Payload(clientID(o.clientID)))
	}
	return writeJSON(stdout, res.Graph)
}

func runRender(cfg *config.Config, o options, args []string, stdout, stderr io.Writer) error {
	if len(args) != 1 {
		return errors.New("render takes exactly one template name")
	}
	values, err := parseSets(o.sets)
	if err != nil {
		return err
	}

	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	rendered, err := store.Render(args[0], values, o.clientID)
	if err != nil {
		return err
	}
	output.PrintInjectReport(stderr, rendered.Report)

	if o.payload {
		return writeJSON(stdout, rendered.Payload)
	}
	return writeJSON(stdout, rendered.Graph)
}

func runServe(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := openStore(cfg)
	if err != nil {
		return err
	}

	pub := pubsub.NewSSEPublisher()
	if err := pub.Publish(pubsub.TopicTemplates, "loaded", pubsub.TemplateStatus{Templates: store.Names()}); err != nil {
		return err
	}
	if cfg.Watch {
		if err := store.Watch(ctx, pub); err != nil {
			return err
		}
	}

	return web.NewServer(cfg.ToCompileOptions(), store, pub).Start(ctx, cfg.Port)
}

func openStore(cfg *config.Config) (*templates.Store, error) {
	store, err := templates.New(cfg.Templates, cfg.ToCompileOptions(), cfg.CacheSize)
	if err != nil {
		return nil, err
	}
	if err := store.Load(); err != nil {
		// Partially loaded directories are still usable.
		if len(store.Names()) == 0 {
			return nil, err
		}
		logging.Warn("some templates failed to load", "error", err)
	}
	return store, nil
}

func compileFile(path string, opts compiler.Options) (*compiler.Result, error) {
	data, err := readInput(path)
	if err != nil {
		return nil, err
	}
	src, err := model.ParseSource(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	logging.Debug("parsed workflow", "path", path, "kind", src.Kind().String())
	return compiler.CompileSource(src, opts)
}

func readInput(path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(os.Stdin)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return data, nil
}

// parseSets turns name=value pairs into parameter values. Values that are
// valid JSON are decoded, so --set steps=30 is a number and
// --set prompt="a fox" a string.
func parseSets(sets []string) (map[string]any, error) {
	values := make(map[string]any, len(sets))
	for _, s := range sets {
		name, raw, ok := strings.Cut(s, "=")
		if !ok || strings.TrimSpace(name) == "" {
			return nil, fmt.Errorf("invalid --set %q, want name=value", s)
		}

		var v any = raw
		dec := json.NewDecoder(strings.NewReader(raw))
		dec.UseNumber()
		var decoded any
		if err := dec.Decode(&decoded); err == nil && !dec.More() && decoded != nil {
			v = decoded
		}
		values[strings.TrimSpace(name)] = v
	}
	return values, nil
}

func clientID(id string) string {
	if id != "" {
		return id
	}
	return uuid.NewString()
}

func writeJSON(w io.Writer, v any) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}
	_, err := w.Write(buf.Bytes())
	return err
}
