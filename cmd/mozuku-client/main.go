// Package main is the operator CLI for the MoZuku language server client.
//
// It exposes the client library on the command line: `resolve` reports
// which launch strategy finds a server on this machine, and `check` runs
// documents through a live server session and summarizes the highlight
// streams it sends back.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/dshills/mozuku-client/internal/config"
	"github.com/dshills/mozuku-client/internal/highlight"
	"github.com/dshills/mozuku-client/internal/lsp"
)

// Version information (set via ldflags during build).
var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

type cliOptions struct {
	configPath string
	workspace  string
	debug      bool
	verbose    bool
}

func newRootCmd() *cobra.Command {
	opts := &cliOptions{}

	root := &cobra.Command{
		Use:           "mozuku-client",
		Short:         "Client tooling for the MoZuku Japanese writing analysis server",
		Version:       fmt.Sprintf("%s (%s)", version, commit),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&opts.configPath, "config", config.DefaultPath(), "path to mozuku.toml")
	root.PersistentFlags().StringVar(&opts.workspace, "workspace", "", "workspace root for server discovery (defaults to cwd)")
	root.PersistentFlags().BoolVar(&opts.debug, "debug", false, "launch the server with diagnostics enabled")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "verbose logging")

	root.AddCommand(newResolveCmd(opts))
	root.AddCommand(newCheckCmd(opts))
	return root
}

func (o *cliOptions) logger() zerolog.Logger {
	level := zerolog.WarnLevel
	if o.verbose {
		level = zerolog.DebugLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		Level(level).
		With().Timestamp().Logger()
}

func (o *cliOptions) workspaceRoot() string {
	if o.workspace != "" {
		return o.workspace
	}
	wd, err := os.Getwd()
	if err != nil {
		return ""
	}
	return wd
}

func newResolveCmd(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "resolve",
		Short: "Report how a MoZuku server would be launched on this machine",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			resolver := lsp.NewResolver(
				lsp.WithWorkspaceRoot(opts.workspaceRoot()),
				lsp.WithResolverLogger(opts.logger()),
			)
			loc := resolver.Resolve(cmd.Context())
			if !loc.Available {
				fmt.Fprintln(cmd.OutOrStdout(), "no MoZuku server found")
				fmt.Fprintln(cmd.OutOrStdout(), "install with: pip install mozuku-lsp")
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "command: %s\n", loc.Command)
			if len(loc.Args) > 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "args:    %s\n", strings.Join(loc.Args, " "))
			}
			return nil
		},
	}
}

func newCheckCmd(opts *cliOptions) *cobra.Command {
	var wait time.Duration
	cmd := &cobra.Command{
		Use:   "check FILE...",
		Short: "Analyze documents and summarize the highlight streams",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(cmd, opts, args, wait)
		},
	}
	cmd.Flags().DurationVar(&wait, "wait", 3*time.Second, "how long to wait for server notifications per document")
	return cmd
}

func runCheck(cmd *cobra.Command, opts *cliOptions, paths []string, wait time.Duration) error {
	ctx := cmd.Context()
	logger := opts.logger()

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return err
	}
	if opts.debug {
		cfg.Debug = true
	}
	initOpts, err := cfg.InitializationOptions()
	if err != nil {
		return err
	}

	resolver := lsp.NewResolver(
		lsp.WithWorkspaceRoot(opts.workspaceRoot()),
		lsp.WithResolverLogger(logger),
	)
	loc := resolver.Resolve(ctx)
	if !loc.Available {
		return lsp.ErrServerUnavailable
	}

	profile := lsp.ProfileRun
	if cfg.Debug {
		profile = lsp.ProfileDebug
	}
	session := lsp.NewSession(loc,
		lsp.WithInitializationOptions(initOpts),
		lsp.WithProfile(profile),
		lsp.WithWorkDir(opts.workspaceRoot()),
		lsp.WithSessionLogger(logger),
	)

	tally := newHighlightTally()
	store := highlight.NewStore()
	session.OnNotification(lsp.MethodCommentHighlights, tally.record(store.ApplyCommentRanges))
	session.OnNotification(lsp.MethodContentHighlights, tally.record(store.ApplyContentRanges))
	session.OnNotification(lsp.MethodSemanticHighlights, tally.recordSemantic(store))

	if err := session.Start(ctx); err != nil {
		return err
	}
	defer session.Stop(context.Background())

	if info := session.Info(); info != nil {
		fmt.Fprintf(cmd.OutOrStdout(), "server: %s %s\n", info.Name, info.Version)
	}

	for _, path := range paths {
		if err := checkOne(ctx, cmd, session, store, tally, path, wait); err != nil {
			return err
		}
	}
	return nil
}

func checkOne(ctx context.Context, cmd *cobra.Command, session *lsp.Session, store *highlight.Store, tally *highlightTally, path string, wait time.Duration) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return err
	}

	languageID := languageIDForPath(abs)
	if !lsp.DocumentMatches(languageID, abs) {
		fmt.Fprintf(cmd.OutOrStdout(), "%s: skipped (not a recognized document)\n", path)
		return nil
	}

	uri := lsp.FilePathToURI(abs)
	if err := session.OpenDocument(uri, languageID, string(data)); err != nil {
		return err
	}
	defer session.CloseDocument(uri)

	tally.await(ctx, wait)

	state := store.Get(uri)
	if state.IsEmpty() {
		fmt.Fprintf(cmd.OutOrStdout(), "%s: no highlights\n", path)
		return nil
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%s:\n", path)
	fmt.Fprintf(cmd.OutOrStdout(), "  comment ranges: %d\n", len(state.CommentRanges))
	fmt.Fprintf(cmd.OutOrStdout(), "  content ranges: %d\n", len(state.ContentRanges))
	cats := make([]string, 0, len(state.SemanticByCategory))
	for cat := range state.SemanticByCategory {
		cats = append(cats, cat)
	}
	sort.Strings(cats)
	for _, cat := range cats {
		fmt.Fprintf(cmd.OutOrStdout(), "  semantic %-12s %d\n", cat+":", len(state.SemanticByCategory[cat]))
	}
	return nil
}

// highlightTally wakes check up when a batch of notifications has arrived
// instead of always sleeping the full wait duration.
type highlightTally struct {
	wakeup chan struct{}
}

func newHighlightTally() *highlightTally {
	return &highlightTally{wakeup: make(chan struct{}, 1)}
}

func (t *highlightTally) notify() {
	select {
	case t.wakeup <- struct{}{}:
	default:
	}
}

// await blocks until at least one notification lands and the stream goes
// quiet, or the deadline passes.
func (t *highlightTally) await(ctx context.Context, wait time.Duration) {
	deadline := time.After(wait)
	quiet := wait / 4
	for {
		select {
		case <-ctx.Done():
			return
		case <-deadline:
			return
		case <-t.wakeup:
			select {
			case <-time.After(quiet):
				return
			case <-t.wakeup:
			case <-ctx.Done():
				return
			}
		}
	}
}

func (t *highlightTally) record(apply func(lsp.DocumentURI, []lsp.Range)) lsp.NotificationHandler {
	return func(method string, params json.RawMessage) {
		var p lsp.HighlightRangesParams
		if len(params) > 0 && json.Unmarshal(params, &p) != nil {
			return
		}
		if p.URI == "" {
			return
		}
		apply(p.URI, p.Ranges)
		t.notify()
	}
}

func (t *highlightTally) recordSemantic(store *highlight.Store) lsp.NotificationHandler {
	return func(method string, params json.RawMessage) {
		var p lsp.SemanticHighlightsParams
		if len(params) > 0 && json.Unmarshal(params, &p) != nil {
			return
		}
		if p.URI == "" {
			return
		}
		store.ApplySemanticTokens(p.URI, p.Tokens)
		t.notify()
	}
}

func languageIDForPath(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".txt":
		return "plaintext"
	case ".md", ".markdown":
		return "markdown"
	case ".tex":
		return "latex"
	case ".html":
		return "html"
	case ".css":
		return "css"
	case ".py":
		return "python"
	case ".js":
		return "javascript"
	case ".ts":
		return "typescript"
	case ".c", ".h":
		return "c"
	case ".cpp", ".cc", ".hpp":
		return "cpp"
	case ".rs":
		return "rust"
	case ".go":
		return "go"
	case ".java":
		return "java"
	default:
		return ""
	}
}
