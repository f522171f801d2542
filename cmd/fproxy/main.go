// fproxy is an interactive shell over a foreign object graph.
//
// It drives either a Python interpreter or the built-in toyflow namespace
// through the proxy layer:
//
//	fproxy repl --backend python --import tensorflow=tf
//	fproxy eval 'x = tf.constant([1, 2])' 'with tf.Session() as s: s.run(x)'
//	fproxy dir tf.train
package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/feather-lang/foreign"
	"github.com/feather-lang/foreign/graph"
	"github.com/feather-lang/foreign/internal/expr"
	"github.com/feather-lang/foreign/internal/toyflow"
	"github.com/feather-lang/foreign/python"
)

type options struct {
	backend string
	python  string
	imports []string
	verbose bool
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:          "fproxy",
		Short:        "Explore and call into a foreign object graph",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&opts.backend, "backend", "toy", "foreign runtime: python or toy")
	root.PersistentFlags().StringVar(&opts.python, "python", "", "python interpreter (default $"+python.EnvExecutable+" or python3)")
	root.PersistentFlags().StringArrayVar(&opts.imports, "import", nil, "module to bind on startup, as module or module=alias")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "log runtime traffic to stderr")

	root.AddCommand(
		&cobra.Command{
			Use:   "repl",
			Short: "Start an interactive session",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				s, err := opts.open(cmd.ErrOrStderr())
				if err != nil {
					return err
				}
				defer s.Close()
				return runREPL(s.env, cmd.InOrStdin(), cmd.OutOrStdout(), cmd.ErrOrStderr())
			},
		},
		&cobra.Command{
			Use:   "eval STATEMENT...",
			Short: "Evaluate statements in order and print their results",
			Args:  cobra.MinimumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				s, err := opts.open(cmd.ErrOrStderr())
				if err != nil {
					return err
				}
				defer s.Close()
				for _, src := range args {
					p, err := s.env.Exec(src)
					if err != nil {
						return err
					}
					if p != nil {
						fmt.Fprintln(cmd.OutOrStdout(), expr.Format(p))
					}
				}
				return nil
			},
		},
		&cobra.Command{
			Use:   "dir PATH",
			Short: "List the members of a namespace or object",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				s, err := opts.open(cmd.ErrOrStderr())
				if err != nil {
					return err
				}
				defer s.Close()
				root, _, _ := strings.Cut(args[0], ".")
				if _, ok := s.env.Lookup(root); !ok {
					if err := s.env.Import(root, ""); err != nil {
						return err
					}
				}
				p, err := s.env.Exec(args[0])
				if err != nil {
					return err
				}
				names, err := p.Dir()
				if err != nil {
					return err
				}
				for _, name := range names {
					fmt.Fprintln(cmd.OutOrStdout(), name)
				}
				return nil
			},
		},
	)
	return root
}

type session struct {
	rt  foreign.Runtime
	env *expr.Env
}

func (s *session) Close() error { return s.rt.Close() }

// open starts the selected runtime and binds the requested imports. The toy
// backend binds toyflow as tf unless imports are given.
func (o *options) open(stderr io.Writer) (*session, error) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	if o.verbose {
		logger = slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}

	var rt foreign.Runtime
	imports := o.imports
	switch o.backend {
	case "toy":
		g := graph.New(graph.WithLogger(logger))
		if err := toyflow.Register(g, toyflow.Name); err != nil {
			g.Close()
			return nil, err
		}
		rt = g
		if len(imports) == 0 {
			imports = []string{toyflow.Name + "=tf"}
		}
	case "python":
		py, err := python.Start(python.Config{Executable: o.python, Stderr: stderr, Logger: logger})
		if err != nil {
			return nil, err
		}
		logger.Debug("python started", "version", py.Version())
		rt = py
	default:
		return nil, fmt.Errorf("unknown backend %q", o.backend)
	}

	s := &session{rt: rt, env: expr.NewEnv(rt)}
	for _, spec := range imports {
		module, alias, _ := strings.Cut(spec, "=")
		if err := s.env.Import(module, alias); err != nil {
			s.Close()
			return nil, err
		}
	}
	return s, nil
}
