// Command infill fills the gap between a prefix and a suffix using a hosted
// code model and prints the assembled text.
//
// Usage:
//
//	infill --prefix 'def a_plus_b(a, '
//	infill --file main.py --line 12 --pos 8
//	echo 'x = <FILL>' | infill --provider codestral
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	infill "github.com/Paranoid-AF/infill"
	"github.com/Paranoid-AF/infill/generate"
)

// Version is set at build time via -ldflags.
var Version = "dev"

func main() {
	if err := newRootCmd(os.Stdin, os.Stdout).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "infill: %v\n", err)
		os.Exit(1)
	}
}

type options struct {
	prefix    string
	suffix    string
	file      string
	line      int
	pos       int
	provider  string
	model     string
	maxTokens int
	stream    bool
	trim      string
	raw       bool
	verbose   bool

	// set from cobra's Changed state
	hasPrefix bool
	hasCursor bool
}

func newRootCmd(stdin io.Reader, stdout *os.File) *cobra.Command {
	var opts options

	cmd := &cobra.Command{
		Use:           "infill",
		Short:         "Fill in the middle of a piece of code with a hosted model",
		Version:       Version,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			level := slog.LevelWarn
			if opts.verbose {
				level = slog.LevelDebug
			}
			slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

			flags := cmd.Flags()
			opts.hasPrefix = flags.Changed("prefix") || flags.Changed("suffix")
			opts.hasCursor = flags.Changed("line")

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			color := term.IsTerminal(int(stdout.Fd()))
			return run(ctx, &opts, stdin, stdout, color)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.prefix, "prefix", "", "text before the gap")
	f.StringVar(&opts.suffix, "suffix", "", "text after the gap")
	f.StringVar(&opts.file, "file", "", "read the document from a file (\"-\" for stdin)")
	f.IntVar(&opts.line, "line", 0, "zero-based cursor line in --file")
	f.IntVar(&opts.pos, "pos", 0, "byte offset of the cursor within --line")
	f.StringVar(&opts.provider, "provider", "", "provider name (huggingface, codestral, nebius, dummy)")
	f.StringVar(&opts.model, "model", "", "model name, overriding the configured one")
	f.IntVar(&opts.maxTokens, "max-tokens", 0, "maximum number of new tokens")
	f.BoolVar(&opts.stream, "stream", false, "stream the response from the provider")
	f.StringVar(&opts.trim, "trim", "", "end-of-text trimming: exact or chars")
	f.BoolVar(&opts.raw, "raw", false, "print the raw model output instead of the assembled text")
	f.BoolVar(&opts.verbose, "verbose", false, "log requests and responses to stderr")
	for _, text := range []string{"prefix", "suffix"} {
		cmd.MarkFlagsMutuallyExclusive("file", text)
		cmd.MarkFlagsMutuallyExclusive("line", text)
		cmd.MarkFlagsMutuallyExclusive("pos", text)
	}
	return cmd
}

func run(ctx context.Context, opts *options, stdin io.Reader, stdout io.Writer, color bool) error {
	cfg, err := infill.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	applyFlags(cfg, opts)

	engine := generate.NewEngineWithConfig(cfg)
	defer engine.Close()

	// Resolve the provider first so a missing credential fails before any
	// input is read or request is sent.
	prov, err := engine.Provider(opts.provider, opts.model)
	if err != nil {
		return err
	}

	req, err := readRequest(opts, stdin)
	if err != nil {
		return err
	}
	p, err := engine.PromptFor(req)
	if err != nil {
		return err
	}

	res, err := engine.Infill(ctx, prov, p)
	if err != nil {
		return err
	}

	if opts.raw {
		_, err = fmt.Fprintln(stdout, res.Raw)
		return err
	}
	return render(stdout, p.Prefix, res.Trimmed, p.Suffix, color)
}

// applyFlags copies command-line overrides into cfg. A one-shot run never
// reuses a result, so the cache is disabled.
func applyFlags(cfg *infill.Config, opts *options) {
	if opts.maxTokens > 0 {
		cfg.Generation.MaxNewTokens = opts.maxTokens
	}
	if opts.stream {
		cfg.Generation.Stream = true
	}
	if opts.trim != "" {
		cfg.Generation.Trim = opts.trim
	}
	cfg.Generation.CacheTTLMinutes = 0
}

// readRequest builds the request from --prefix/--suffix, --file or stdin.
// A document without a cursor is split at the configured fill marker.
func readRequest(opts *options, stdin io.Reader) (*infill.Request, error) {
	if opts.hasPrefix {
		return &infill.Request{Prefix: opts.prefix, Suffix: opts.suffix}, nil
	}

	var (
		data []byte
		err  error
	)
	switch opts.file {
	case "", "-":
		data, err = io.ReadAll(stdin)
	default:
		data, err = os.ReadFile(opts.file)
	}
	if err != nil {
		return nil, fmt.Errorf("read input: %w", err)
	}

	req := &infill.Request{Text: string(data)}
	if opts.file != "" && opts.file != "-" {
		req.File = opts.file
	}
	if opts.hasCursor {
		req.Cursor = &infill.Cursor{Line: opts.line, Pos: opts.pos}
	}
	return req, nil
}
