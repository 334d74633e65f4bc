package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"github.com/vango-dev/trackstate/internal/config"
	"github.com/vango-dev/trackstate/internal/errors"
	"github.com/vango-dev/trackstate/internal/source"
	"github.com/vango-dev/trackstate/pkg/extension"
	"github.com/vango-dev/trackstate/pkg/state"
)

func runCmd() *cobra.Command {
	var (
		verbose  bool
		logLevel string
	)

	cmd := &cobra.Command{
		Use:   "run <document> <script.yaml>",
		Short: "Replay a script of writes against a document",
		Long: `Load a document, mount the observers declared in the script, and apply
each step in order. After every step the observers that were notified are
printed and re-render their reads.

Steps with an expect list fail the run when the notified set differs.

Examples:
  trackstate run todo.json script.yaml
  trackstate run s3://bucket/state.yaml script.yaml -v`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(cmd.Context(), cmd.OutOrStdout(), cmd.ErrOrStderr(), args[0], args[1], verbose, logLevel)
		},
	}

	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Print each mutation")
	cmd.Flags().StringVar(&logLevel, "log-level", "", "Log store activity at this level to stderr")

	return cmd
}

func runReplay(ctx context.Context, w, errw io.Writer, docPath, scriptPath string, verbose bool, logLevel string) error {
	if ctx == nil {
		ctx = context.Background()
	}

	sc, err := LoadScript(scriptPath)
	if err != nil {
		return err
	}
	doc, err := source.Load(ctx, docPath)
	if err != nil {
		return err
	}

	var opts []state.Option
	if logLevel != "" {
		logger, err := newLogger(config.LogConfig{Level: logLevel, Format: "text"}, errw)
		if err != nil {
			return err
		}
		opts = append(opts, state.WithExtensions(extension.Logging(logger)))
	}

	s, err := state.New(doc, opts...)
	if err != nil {
		return err
	}
	defer s.Destroy()

	r, err := NewReplayer(s, sc)
	if err != nil {
		return errors.New("E404").WithPath(scriptPath).Wrap(err)
	}

	info(w, "%s: %d observers, %d steps", docPath, len(sc.Observers), len(sc.Steps))

	failed := 0
	for i, st := range sc.Steps {
		res := r.Apply(st)
		if res.Err != nil {
			return fmt.Errorf("step %d (%s): %w", i+1, st.describe(), res.Err)
		}
		notified := "none"
		if len(res.Notified) > 0 {
			notified = fmt.Sprint(res.Notified)
		}
		fmt.Fprintf(w, "%3d  %-40s -> %s\n", i+1, st.describe(), notified)
		if verbose && res.Mutation != "" {
			info(w, "     %s", res.Mutation)
		}
		if err := res.Check(); err != nil {
			fmt.Fprintf(w, "     \033[31m✗\033[0m %v\n", err)
			failed++
		}
	}

	if failed > 0 {
		return errors.New("E404").WithPath(scriptPath).
			WithDetail(fmt.Sprintf("%d of %d steps notified unexpected observers", failed, len(sc.Steps)))
	}
	success(w, "replayed %d steps, edition %d", len(sc.Steps), s.Edition())
	return nil
}
