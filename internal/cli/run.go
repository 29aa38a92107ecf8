package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/roach88/dspec/internal/generator"
	"github.com/roach88/dspec/internal/pipeline"
	"github.com/roach88/dspec/internal/store"
)

const defaultModel = "gemini-2.0-flash"

// watchDebounce coalesces editor save bursts into one re-run.
const watchDebounce = 250 * time.Millisecond

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Pipeline string
	OutDir   string
	DBPath   string
	Workers  int
	Model    string
	Watch    bool

	service generator.Service // created once, reused across watch re-runs
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <specs-dir>",
		Short: "Run the generation pipeline",
		Long: `Compile the spec directory and execute the pipeline definition.

Steps whose inputs are unchanged since the last run are skipped; their
artifacts are restored from the provenance database if the files on disk
drifted. Delegated steps call the configured model and record which model
produced each artifact.

Exit code 0 means every step completed, 1 means optional steps failed,
2 means a required step failed or an override conflict stopped the run.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPipeline(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Pipeline, "pipeline", "p", "pipeline.yaml", "pipeline definition file")
	cmd.Flags().StringVarP(&opts.OutDir, "out", "o", "dist", "artifact output directory")
	cmd.Flags().StringVar(&opts.DBPath, "db", ".dspec/dspec.db", "provenance database path")
	cmd.Flags().IntVar(&opts.Workers, "workers", 0, "worker pool size (0 = default)")
	cmd.Flags().StringVar(&opts.Model, "model", defaultModel, "model for delegated steps")
	cmd.Flags().BoolVarP(&opts.Watch, "watch", "w", false, "re-run when spec or pipeline files change")

	return cmd
}

func runPipeline(opts *RunOptions, specsDir string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)
	ctx := cmd.Context()

	st, err := openStore(formatter, opts.DBPath, false)
	if err != nil {
		return err
	}
	defer st.Close()

	if opts.Watch {
		return watchLoop(ctx, formatter, opts, specsDir, st)
	}
	return executeOnce(ctx, formatter, opts, specsDir, st)
}

// executeOnce loads the pipeline definition and specs fresh, so watch
// re-runs pick up edits to either.
func executeOnce(ctx context.Context, formatter *OutputFormatter, opts *RunOptions, specsDir string, st *store.Store) error {
	def, defErrs := pipeline.Load(opts.Pipeline)
	if len(defErrs) > 0 {
		return outputFindings(formatter, ExitCommandError, "pipeline preflight", errorFindings(defErrs))
	}

	system, err := BuildSystem(formatter, specsDir, def.System.Name, def.System.Version)
	if err != nil {
		return err
	}

	execOpts := pipeline.Options{OutDir: opts.OutDir, Workers: opts.Workers}
	if hasDelegated(def) {
		if opts.service == nil {
			svc, err := generator.NewGemini(ctx, opts.Model)
			if err != nil {
				return outputCommandError(formatter, ErrCodeService, err.Error())
			}
			opts.service = svc
		}
		execOpts.Service = opts.service
	}

	exec, err := pipeline.New(def, system, st, execOpts)
	if err != nil {
		return outputFindings(formatter, ExitCommandError, "pipeline preflight", errorFindings([]error{err}))
	}

	result, err := exec.Run(ctx)
	if err != nil {
		return outputCommandError(formatter, ErrCodeStore, err.Error())
	}
	return outputRunResult(formatter, result)
}

func hasDelegated(def *pipeline.Definition) bool {
	for i := range def.Steps {
		if def.Steps[i].Kind == pipeline.KindDelegated {
			return true
		}
	}
	return false
}

func outputRunResult(formatter *OutputFormatter, result *pipeline.RunResult) error {
	if formatter.Format == "json" {
		if err := formatter.Success(result); err != nil {
			return err
		}
	} else {
		fmt.Fprintf(formatter.Writer, "Run %s: %s\n", result.RunID, result.Outcome)
		for _, s := range result.Steps {
			line := fmt.Sprintf("  %-20s %-10s %s", s.Step, s.Status, s.OutputPath)
			if s.Model != "" {
				line += fmt.Sprintf("  [%s]", s.Model)
			}
			if s.CacheHit {
				line += "  (cached)"
			}
			fmt.Fprintln(formatter.Writer, line)
			if s.Error != "" {
				fmt.Fprintf(formatter.Writer, "      %s\n", s.Error)
			}
			for _, d := range s.Diagnostics {
				fmt.Fprintf(formatter.Writer, "      %s\n", d)
			}
		}
	}

	switch result.Outcome {
	case pipeline.OutcomeSuccess:
		return nil
	case pipeline.OutcomePartial:
		return NewExitError(ExitFailure, "run completed partially")
	default:
		return NewExitError(ExitCommandError, "run failed")
	}
}

// watchLoop runs the pipeline once, then again after every change to the
// spec directory or the pipeline definition. Run failures do not end the
// loop; the next save gets another chance.
func watchLoop(ctx context.Context, formatter *OutputFormatter, opts *RunOptions, specsDir string, st *store.Store) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return outputCommandError(formatter, ErrCodeService, fmt.Sprintf("starting watcher: %v", err))
	}
	defer watcher.Close()

	if err := watchTree(watcher, specsDir); err != nil {
		return outputCommandError(formatter, ErrCodeService, fmt.Sprintf("watching %s: %v", specsDir, err))
	}
	if err := watcher.Add(filepath.Dir(opts.Pipeline)); err != nil {
		return outputCommandError(formatter, ErrCodeService, fmt.Sprintf("watching %s: %v", opts.Pipeline, err))
	}

	run := func() {
		if err := executeOnce(ctx, formatter, opts, specsDir, st); err != nil {
			formatter.VerboseLog("run finished: %v", err)
		}
	}
	run()
	formatter.VerboseLog("Watching %s for changes", specsDir)

	var pending <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			// New subdirectories need their own watch.
			if ev.Op&fsnotify.Create != 0 {
				if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
					_ = watchTree(watcher, ev.Name)
				}
			}
			formatter.VerboseLog("change: %s", ev.Name)
			pending = time.After(watchDebounce)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			formatter.VerboseLog("watch error: %v", err)
		case <-pending:
			pending = nil
			run()
		}
	}
}

// watchTree registers a directory and all its subdirectories.
func watchTree(watcher *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return watcher.Add(path)
		}
		return nil
	})
}
