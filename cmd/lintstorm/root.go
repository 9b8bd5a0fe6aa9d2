package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/dshills/lintstorm/internal/config"
	"github.com/dshills/lintstorm/internal/config/store"
	"github.com/dshills/lintstorm/internal/interp"
	"github.com/dshills/lintstorm/internal/lsp"
	"github.com/dshills/lintstorm/internal/notify"
	"github.com/dshills/lintstorm/internal/session"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "lintstorm",
		Short:         "Language-server bridge for a Pylint-style lint tool",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newRunCmd(), newVersionCmd())
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "lintstorm %s (commit %s, built %s)\n", version, commit, date)
		},
	}
}

type runOptions struct {
	workspaces  []string
	configPath  string
	serverPath  string
	interpreter []string
	logLevel    string
}

func newRunCmd() *cobra.Command {
	var opts runOptions

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start the bridge for one or more workspace folders",
		Long: `Run starts one lint server per workspace folder, resolves its
configuration from lintstorm.toml and .vscode/settings.json files, and
streams findings to stdout as JSON lines. The server is restarted
automatically when a recognized setting, the active interpreter, or a
lint configuration file changes.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runBridge(cmd.Context(), opts)
		},
	}

	cmd.Flags().StringSliceVarP(&opts.workspaces, "workspace", "w", nil, "workspace folder (repeatable)")
	cmd.Flags().StringVarP(&opts.configPath, "config", "c", "", "global TOML configuration file")
	cmd.Flags().StringVar(&opts.serverPath, "server", "", "bundled lint server entry point")
	cmd.Flags().StringSliceVar(&opts.interpreter, "interpreter", nil, "interpreter command for the bundled server")
	cmd.Flags().StringVar(&opts.logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	return cmd
}

func runBridge(ctx context.Context, opts runOptions) error {
	level, err := zapcore.ParseLevel(opts.logLevel)
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", opts.logLevel, err)
	}
	logger, err := newLogger(level)
	if err != nil {
		return fmt.Errorf("initializing logger: %w", err)
	}
	defer logger.Sync() //nolint:errcheck // stderr sync failure is unactionable

	workspaces, roots, err := resolveWorkspaces(opts.workspaces)
	if err != nil {
		return err
	}

	st := store.Layered{
		store.NewJSONStore("", roots),
		store.NewTOMLStore(opts.configPath, roots),
	}

	var provider interp.Provider
	if len(opts.interpreter) > 0 {
		provider = interp.NewStatic(opts.interpreter...)
	} else {
		provider = interp.NewPathProvider()
	}

	loader := config.NewLoader(st, provider, workspaces, logger)

	mgr := session.NewManager(loader, provider, notify.New(), logger,
		session.WithServerPath(opts.serverPath),
		session.WithLogLevel(level),
		session.WithDiagnosticsHandler(printDiagnostics),
		session.WithUserNotifier(func(scope, msg string) {
			logger.Warn("user notification", zap.String("scope", scope), zap.String("message", msg))
		}),
	)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := mgr.Start(ctx); err != nil {
		logger.Error("startup incomplete", zap.Error(err))
	}
	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return mgr.Stop(shutdownCtx)
}

func newLogger(level zapcore.Level) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(level)
	cfg.OutputPaths = []string{"stderr"}
	cfg.ErrorOutputPaths = []string{"stderr"}
	return cfg.Build()
}

// resolveWorkspaces turns folder arguments into workspace records and
// the scope-to-root map the stores index by. With no folders given, the
// current directory is the single workspace.
func resolveWorkspaces(folders []string) ([]config.Workspace, map[string]string, error) {
	if len(folders) == 0 {
		wd, err := os.Getwd()
		if err != nil {
			return nil, nil, err
		}
		folders = []string{wd}
	}

	workspaces := make([]config.Workspace, 0, len(folders))
	roots := make(map[string]string, len(folders))
	for _, folder := range folders {
		abs, err := filepath.Abs(folder)
		if err != nil {
			return nil, nil, fmt.Errorf("resolving workspace %q: %w", folder, err)
		}
		uri := string(lsp.FilePathToURI(abs))
		workspaces = append(workspaces, config.Workspace{
			Name: filepath.Base(abs),
			Path: abs,
			URI:  uri,
		})
		roots[uri] = abs
	}
	return workspaces, roots, nil
}

// finding is one diagnostic line written to stdout.
type finding struct {
	Scope       string           `json:"scope,omitempty"`
	URI         lsp.DocumentURI  `json:"uri"`
	Diagnostics []lsp.Diagnostic `json:"diagnostics"`
}

func printDiagnostics(scope string, uri lsp.DocumentURI, diagnostics []lsp.Diagnostic) {
	enc := json.NewEncoder(os.Stdout)
	_ = enc.Encode(finding{Scope: scope, URI: uri, Diagnostics: diagnostics})
}
