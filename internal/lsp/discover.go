package lsp

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"
)

// ServerLocation is the outcome of discovery: a launchable command for the
// MoZuku server, or Available=false when every strategy failed. It is
// immutable for the lifetime of one session; a new session must re-resolve.
type ServerLocation struct {
	Available bool
	Command   string
	Args      []string
}

// serverModule is the Python package the server ships as.
const serverModule = "mozuku_lsp"

// executableName is the standalone server binary name, without suffix.
const executableName = "mozuku-lsp"

// defaultProbeTimeout bounds each process-spawn probe so one wedged
// interpreter cannot stall discovery.
const defaultProbeTimeout = 5 * time.Second

// CommandRunner executes a short-lived probe process and reports whether it
// exited successfully. Implementations must honor ctx cancellation.
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) error
}

// execRunner runs probes with os/exec.
type execRunner struct{}

func (execRunner) Run(ctx context.Context, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = nil
	cmd.Stderr = nil
	return cmd.Run()
}

// Resolver locates a runnable MoZuku server. Editor processes launched from
// a GUI do not inherit an interactive shell's PATH, so resolution prefers
// reproducible on-disk layouts before falling back to spawn probes.
type Resolver struct {
	fs           afero.Fs
	runner       CommandRunner
	workspace    string // workspace root, dev-layout candidate
	installRoot  string // client install location, dev-layout candidate
	homeDir      string
	probeTimeout time.Duration
	logger       zerolog.Logger
}

// ResolverOption configures a Resolver.
type ResolverOption func(*Resolver)

// WithWorkspaceRoot sets the workspace root checked for a dev layout.
func WithWorkspaceRoot(path string) ResolverOption {
	return func(r *Resolver) { r.workspace = path }
}

// WithInstallRoot sets the client's own install location, the second dev
// layout candidate.
func WithInstallRoot(path string) ResolverOption {
	return func(r *Resolver) { r.installRoot = path }
}

// WithResolverFs sets the filesystem used for existence checks.
func WithResolverFs(fs afero.Fs) ResolverOption {
	return func(r *Resolver) { r.fs = fs }
}

// WithCommandRunner sets the probe process runner.
func WithCommandRunner(runner CommandRunner) ResolverOption {
	return func(r *Resolver) { r.runner = runner }
}

// WithProbeTimeout overrides the per-probe time budget.
func WithProbeTimeout(d time.Duration) ResolverOption {
	return func(r *Resolver) { r.probeTimeout = d }
}

// WithHomeDir overrides the home directory used for well-known paths.
func WithHomeDir(path string) ResolverOption {
	return func(r *Resolver) { r.homeDir = path }
}

// WithResolverLogger sets the logger.
func WithResolverLogger(logger zerolog.Logger) ResolverOption {
	return func(r *Resolver) { r.logger = logger }
}

// NewResolver creates a resolver with the host filesystem and process
// runner.
func NewResolver(opts ...ResolverOption) *Resolver {
	home, _ := os.UserHomeDir()
	r := &Resolver{
		fs:           afero.NewOsFs(),
		runner:       execRunner{},
		homeDir:      home,
		probeTimeout: defaultProbeTimeout,
		logger:       zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve tries each strategy in fixed priority order and returns the first
// hit. It never fails: exhaustion yields ServerLocation{Available: false},
// which the caller must treat as fatal for session startup. For a fixed
// filesystem and probe environment the result is deterministic.
func (r *Resolver) Resolve(ctx context.Context) ServerLocation {
	strategies := []func(context.Context) (ServerLocation, bool){
		r.resolveDevLayout,
		r.resolveWellKnown,
		r.resolvePathProbe,
		r.resolveInterpreters,
	}
	for _, strategy := range strategies {
		if loc, ok := strategy(ctx); ok {
			r.logger.Info().
				Str("command", loc.Command).
				Strs("args", loc.Args).
				Msg("discovery: server resolved")
			return loc
		}
	}
	r.logger.Warn().Msg("discovery: all strategies exhausted")
	return ServerLocation{}
}

// resolveDevLayout looks for a project-local virtualenv carrying the server
// package. Both the interpreter and the server entry module must exist.
func (r *Resolver) resolveDevLayout(_ context.Context) (ServerLocation, bool) {
	for _, root := range []string{r.workspace, r.installRoot} {
		if root == "" {
			continue
		}
		interp := filepath.Join(root, ".venv", "bin", "python")
		if runtime.GOOS == "windows" {
			interp = filepath.Join(root, ".venv", "Scripts", "python.exe")
		}
		entry := filepath.Join(root, serverModule, "__main__.py")
		if r.fileExists(interp) && r.fileExists(entry) {
			return ServerLocation{Available: true, Command: interp, Args: []string{"-m", serverModule}}, true
		}
	}
	return ServerLocation{}, false
}

// resolveWellKnown checks the fixed user-local install path, with and
// without the Windows executable suffix.
func (r *Resolver) resolveWellKnown(_ context.Context) (ServerLocation, bool) {
	if r.homeDir == "" {
		return ServerLocation{}, false
	}
	base := filepath.Join(r.homeDir, ".local", "bin", executableName)
	for _, candidate := range []string{base, base + ".exe"} {
		if r.fileExists(candidate) {
			return ServerLocation{Available: true, Command: candidate}, true
		}
	}
	return ServerLocation{}, false
}

// resolvePathProbe attempts to run the standalone executable by bare name,
// relying on process-launch path resolution.
func (r *Resolver) resolvePathProbe(ctx context.Context) (ServerLocation, bool) {
	if r.probe(ctx, executableName, "--version") {
		return ServerLocation{Available: true, Command: executableName}, true
	}
	return ServerLocation{}, false
}

// resolveInterpreters probes known interpreter names for an importable
// server module. The first interpreter that succeeds wins.
func (r *Resolver) resolveInterpreters(ctx context.Context) (ServerLocation, bool) {
	for _, interp := range []string{"python3", "python", "py"} {
		if r.probe(ctx, interp, "-c", "import "+serverModule) {
			return ServerLocation{Available: true, Command: interp, Args: []string{"-m", serverModule}}, true
		}
	}
	return ServerLocation{}, false
}

// probe runs one bounded spawn probe. Every failure mode (missing binary,
// spawn error, non-zero exit, timeout) means "this strategy failed" and is
// never escalated.
func (r *Resolver) probe(ctx context.Context, name string, args ...string) bool {
	ctx, cancel := context.WithTimeout(ctx, r.probeTimeout)
	defer cancel()

	err := r.runner.Run(ctx, name, args...)
	if err != nil {
		r.logger.Debug().Err(err).Str("command", name).Msg("discovery: probe failed")
		return false
	}
	return true
}

func (r *Resolver) fileExists(path string) bool {
	info, err := r.fs.Stat(path)
	return err == nil && !info.IsDir()
}
