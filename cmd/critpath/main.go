package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/joshharrison/critpath/internal/claude"
	"github.com/joshharrison/critpath/internal/config"
	"github.com/joshharrison/critpath/internal/cpm"
	"github.com/joshharrison/critpath/internal/ctxlog"
	"github.com/joshharrison/critpath/internal/graph"
	"github.com/joshharrison/critpath/internal/project"
	"github.com/joshharrison/critpath/internal/reporter"
	"github.com/joshharrison/critpath/internal/server"
	"github.com/joshharrison/critpath/internal/ui"
	"github.com/joshharrison/critpath/internal/watch"
)

var (
	flagConfig    string
	flagNoColor   bool
	flagEdges     string
	flagDurations string
	flagWatch     bool
	flagOutput    string
	flagPost      string
	flagExplain   bool

	cfg config.Config
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "critpath",
		Short: "Compute critical path schedules for project activity networks",
		Long: `Critpath reads a project as activities with durations and precedence edges,
runs the Critical Path Method, and reports earliest/latest start and finish
times, slack and the critical path that fixes the project duration.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: setup,
	}

	cobra.OnInitialize(initConfig)

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flagConfig, "config", "", "config file (default .critpath.yaml)")
	pf.String("log-level", "info", "log level: debug, info, warn, error")
	pf.String("on-missing-duration", "fail", "missing duration policy: fail or default-zero")
	pf.String("marker", "-", "no-successor marker in edge lists")
	pf.BoolVar(&flagNoColor, "no-color", false, "disable colored output")
	pf.StringVar(&flagEdges, "edges", "", "edge list file (predecessor,successor,...)")
	pf.StringVar(&flagDurations, "durations", "", "durations CSV file (activity,duration)")

	_ = viper.BindPFlag("log_level", pf.Lookup("log-level"))
	_ = viper.BindPFlag("on_missing_duration", pf.Lookup("on-missing-duration"))
	_ = viper.BindPFlag("no_successor_marker", pf.Lookup("marker"))

	rootCmd.AddCommand(scheduleCmd())
	rootCmd.AddCommand(validateCmd())
	rootCmd.AddCommand(vizCmd())
	rootCmd.AddCommand(exampleCmd())
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(inferDepsCmd())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		ui.Errorf(os.Stderr, "%v", err)
		os.Exit(1)
	}
}

func initConfig() {
	if flagConfig != "" {
		viper.SetConfigFile(flagConfig)
	} else {
		viper.SetConfigName(".critpath")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			viper.AddConfigPath(home)
		}
	}

	viper.SetEnvPrefix("CRITPATH")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// It's fine if no config file is found; we use defaults.
	_ = viper.ReadInConfig()
}

// setup loads configuration and installs the logger on the command context.
func setup(cmd *cobra.Command, args []string) error {
	var err error
	cfg, err = config.Load()
	if err != nil {
		return err
	}

	if flagNoColor {
		ui.SetEnabled(false)
	}

	logger, err := ctxlog.New(os.Stderr, cfg.LogLevel)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)
	if used := viper.ConfigFileUsed(); used != "" {
		logger.Debug("loaded config", "file", used)
	}
	cmd.SetContext(ctxlog.WithLogger(cmd.Context(), logger))
	return nil
}

func sources(args []string) inputSources {
	src := inputSources{
		edgesPath:     flagEdges,
		durationsPath: flagDurations,
		marker:        cfg.NoSuccessorMarker,
	}
	if len(args) > 0 {
		src.projectPath = args[0]
	}
	return src
}

// analyze loads inputs and computes the schedule, warning about durations
// for activities that are not in the graph.
func analyze(ctx context.Context, src inputSources) (*inputs, *cpm.CPMResult, error) {
	in, err := loadInputs(src)
	if err != nil {
		return nil, nil, err
	}

	if unknown := in.durations.Unknown(in.graph); len(unknown) > 0 {
		ui.Warnf(os.Stderr, "durations given for unknown activities: %s", strings.Join(unknown, ", "))
	}

	result, err := cpm.Analyze(in.graph, in.durations, cpm.Options{OnMissingDuration: cfg.Policy()})
	if err != nil {
		return nil, nil, err
	}

	ctxlog.FromContext(ctx).Debug("schedule computed",
		"activities", in.graph.Len(),
		"critical", len(result.CriticalPath),
		"total_duration", result.TotalDuration)
	return in, result, nil
}

func newReporter(in *inputs, result *cpm.CPMResult) *reporter.Reporter {
	rpt := reporter.New(in.graph, result)
	rpt.Name = in.name
	rpt.Descriptions = in.descriptions
	return rpt
}

func scheduleCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schedule [project-file]",
		Short: "Compute and print the CPM schedule",
		Long: `Computes ES, EF, LS, LF and slack for every activity and prints the
critical path. Input is a project file (.toml, .yaml, .json) or an edge list
given with --edges plus a durations CSV given with --durations.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			src := sources(args)

			in, err := renderSchedule(ctx, cmd.OutOrStdout(), src)
			if err != nil {
				return err
			}

			if !flagWatch {
				return nil
			}
			return watchSchedule(ctx, cmd.OutOrStdout(), src, in.files)
		},
	}

	cmd.Flags().String("format", "table", "output format: table, json, csv, dot, ascii")
	cmd.Flags().BoolVar(&flagWatch, "watch", false, "recompute when input files change")
	cmd.Flags().StringVarP(&flagOutput, "output", "o", "", "write output to file instead of stdout")
	cmd.Flags().StringVar(&flagPost, "post", "", "also send the schedule to a running critpath server (e.g. http://localhost:7171)")
	cmd.Flags().BoolVar(&flagExplain, "explain", false, "ask Claude to explain the schedule")
	_ = viper.BindPFlag("format", cmd.Flags().Lookup("format"))

	return cmd
}

// renderSchedule computes one schedule and writes it in the configured format.
func renderSchedule(ctx context.Context, stdout io.Writer, src inputSources) (*inputs, error) {
	in, result, err := analyze(ctx, src)
	if err != nil {
		return nil, err
	}
	rpt := newReporter(in, result)

	var out bytes.Buffer
	if err := rpt.Write(&out, cfg.Format); err != nil {
		return nil, err
	}
	if flagOutput != "" {
		if err := os.WriteFile(flagOutput, out.Bytes(), 0644); err != nil {
			return nil, err
		}
		fmt.Fprintf(stdout, "Wrote schedule for %d activities to %s\n", in.graph.Len(), flagOutput)
	} else if _, err := stdout.Write(out.Bytes()); err != nil {
		return nil, err
	}

	if flagPost != "" {
		resp, err := server.Post(ctx, strings.TrimRight(flagPost, "/"), scheduleRequest(in))
		if err != nil {
			return nil, err
		}
		fmt.Fprintf(stdout, "📡 Posted schedule %s to %s\n", ui.Bold(resp.ID), flagPost)
	}

	if flagExplain {
		var table bytes.Buffer
		if err := rpt.WriteCSV(&table); err != nil {
			return nil, err
		}
		client, err := claude.NewClient("", cfg.Claude.Model)
		if err != nil {
			return nil, err
		}
		text, err := client.ExplainSchedule(ctx, table.String()+"\nCritical path: "+result.CriticalPathString(""))
		if err != nil {
			return nil, fmt.Errorf("explain schedule: %w", err)
		}
		fmt.Fprintf(stdout, "\n🧠 %s\n%s\n", ui.BoldCyan("Claude's take"), text)
	}

	return in, nil
}

func scheduleRequest(in *inputs) *server.Request {
	req := &server.Request{
		Name:              in.name,
		Durations:         in.durations,
		Descriptions:      in.descriptions,
		OnMissingDuration: cfg.OnMissingDuration,
		Marker:            cfg.NoSuccessorMarker,
	}
	for _, id := range in.graph.Activities {
		req.Declarations = append(req.Declarations, graph.EdgeDecl{From: id, To: in.graph.Successors(id)})
	}
	return req
}

// watchSchedule re-renders the schedule whenever one of files changes.
func watchSchedule(ctx context.Context, stdout io.Writer, src inputSources, files []string) error {
	logger := ctxlog.FromContext(ctx)

	w, err := watch.New(files...)
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer w.Stop()
	if err := w.Start(); err != nil {
		return fmt.Errorf("start watcher: %w", err)
	}

	fmt.Fprintf(stdout, "\n👀 Watching %s for changes (Ctrl+C to stop)\n", strings.Join(files, ", "))

	for {
		select {
		case <-ctx.Done():
			return nil
		case change, ok := <-w.Changes:
			if !ok {
				return nil
			}
			logger.Debug("input changed", "file", change.File, "removed", change.Removed)
			if change.Removed {
				ui.Warnf(os.Stderr, "%s was removed; waiting for it to come back", change.File)
				continue
			}
			fmt.Fprintln(stdout)
			if _, err := renderSchedule(ctx, stdout, src); err != nil {
				ui.Errorf(os.Stderr, "%v", err)
			}
		}
	}
}

func validateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate [project-file]",
		Short: "Check the activity network and durations without printing a schedule",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in, result, err := analyze(cmd.Context(), sources(args))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %d activities, %d edges, no cycles, project duration %s\n",
				ui.BoldGreen("✅ Valid:"),
				in.graph.Len(), len(in.graph.Edges()),
				reporter.FormatNumber(result.TotalDuration))
			return nil
		},
	}
}

func vizCmd() *cobra.Command {
	var flagVizFormat string

	cmd := &cobra.Command{
		Use:   "viz [project-file]",
		Short: "Visualise the activity network",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in, result, err := analyze(cmd.Context(), sources(args))
			if err != nil {
				return err
			}
			rpt := newReporter(in, result)

			switch flagVizFormat {
			case "dot":
				return rpt.WriteDOT(cmd.OutOrStdout())
			case "ascii":
				rpt.PrintWaves(cmd.OutOrStdout())
				return nil
			default:
				return fmt.Errorf("unsupported viz format %q (use ascii or dot)", flagVizFormat)
			}
		},
	}

	cmd.Flags().StringVar(&flagVizFormat, "format", "ascii", "Output format: ascii, dot")
	return cmd
}

func exampleCmd() *cobra.Command {
	var flagRun bool

	cmd := &cobra.Command{
		Use:   "example",
		Short: "Print the built-in example project",
		Long: `Prints the built-in water pump project as TOML. Save it to a file and pass
it to schedule, or use --schedule to see its schedule directly.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			if !flagRun {
				_, err := out.Write(project.ExampleTOML())
				return err
			}

			p := project.Example()
			g, err := graph.Build(p.Declarations(), graph.WithMarker(cfg.NoSuccessorMarker))
			if err != nil {
				return err
			}
			result, err := cpm.Analyze(g, p.Durations(), cpm.Options{OnMissingDuration: cfg.Policy()})
			if err != nil {
				return err
			}
			ui.PrintLogo(out)
			rpt := newReporter(&inputs{name: p.Name, graph: g, descriptions: p.Descriptions()}, result)
			return rpt.Write(out, cfg.Format)
		},
	}

	cmd.Flags().BoolVar(&flagRun, "schedule", false, "print the example's schedule instead of its source")
	return cmd
}

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP scheduling service",
		Long: `Serves POST /schedule, GET /schedule/{id} and GET /healthz. Results are kept
in memory for read-back by a visualiser and are lost on exit.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := ctxlog.FromContext(ctx)

			fmt.Fprintf(cmd.OutOrStdout(), "🌐 critpath server listening on %s\n", ui.Bold(cfg.Server.Addr))
			return server.New(logger).Serve(ctx, cfg.Server.Addr)
		},
	}

	cmd.Flags().String("addr", ":7171", "listen address")
	_ = viper.BindPFlag("server.addr", cmd.Flags().Lookup("addr"))
	return cmd
}

func inferDepsCmd() *cobra.Command {
	var (
		flagApply    bool
		flagFromFile string
		flagJSON     bool
	)

	cmd := &cobra.Command{
		Use:   "infer-deps [project-file]",
		Short: "Use Claude to infer precedence edges from activity descriptions",
		Long: `Sends the project's activities to Claude and infers precedence edges.
Edges that name unknown activities, already exist, or would close a cycle are
skipped. By default runs in dry-run mode; use --apply to write the accepted
edges back to the project file.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			in, err := loadInputs(sources(args))
			if err != nil {
				return err
			}
			if flagApply && in.project == nil {
				return fmt.Errorf("--apply needs a project file")
			}

			summaries := make([]claude.ActivitySummary, 0, in.graph.Len())
			for _, id := range in.graph.Activities {
				s := claude.ActivitySummary{Name: id, Description: in.descriptions[id]}
				if d, ok := in.durations[id]; ok {
					s.Duration = &d
				}
				summaries = append(summaries, s)
			}

			var result *claude.InferDepsResult
			if flagFromFile != "" {
				data, err := os.ReadFile(flagFromFile)
				if err != nil {
					return fmt.Errorf("read from-file: %w", err)
				}
				result = &claude.InferDepsResult{}
				if err := json.Unmarshal(data, result); err != nil {
					return fmt.Errorf("parse from-file: %w", err)
				}
				fmt.Fprintf(out, "📂 Loaded %s edges from %s\n", ui.Bold(len(result.Edges)), ui.Dim(flagFromFile))
			} else {
				fmt.Fprintf(out, "🔍 Sending %s activities to Claude for dependency inference...\n", ui.Bold(len(summaries)))

				client, err := claude.NewClient("", cfg.Claude.Model)
				if err != nil {
					return err
				}
				result, err = client.InferDeps(ctx, summaries)
				if err != nil {
					return fmt.Errorf("infer deps: %w", err)
				}
			}

			accepted, rejected := claude.Accept(in.graph.Activities, in.graph.Edges(), result.Edges)
			for _, r := range rejected {
				fmt.Fprintf(out, "  %s %s -> %s: %s\n", ui.Yellow("⏭️  SKIP:"), r.Edge.Predecessor, r.Edge.Successor, r.Reason)
			}

			if flagJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(struct {
					Edges   []graph.Edge `json:"edges"`
					Summary string       `json:"summary"`
				}{Edges: accepted, Summary: result.Summary})
			}

			fmt.Fprintf(out, "\n🔗 Inferred %s edges (%d from Claude, %d after validation):\n\n",
				ui.Bold(len(accepted)), len(result.Edges), len(accepted))
			for _, e := range accepted {
				fmt.Fprintf(out, "%s,%s\n", e.From, e.To)
			}
			if result.Summary != "" {
				fmt.Fprintf(out, "\n%s %s\n", ui.Dim("Summary:"), result.Summary)
			}

			if !flagApply {
				if len(accepted) > 0 {
					fmt.Fprintf(out, "\n%s\n", ui.Dim("Dry run. Use --apply to write these edges to the project file."))
				}
				return nil
			}

			added := in.project.AddEdges(accepted)
			if err := in.project.Save(in.projectPath); err != nil {
				return err
			}
			fmt.Fprintf(out, "\n%s Added %d edges to %s\n", ui.Green("✓"), added, in.projectPath)
			return nil
		},
	}

	cmd.Flags().BoolVar(&flagApply, "apply", false, "write accepted edges to the project file")
	cmd.Flags().String("model", "", "Claude model to use")
	cmd.Flags().StringVar(&flagFromFile, "from-file", "", "read inferred edges from a JSON file instead of calling Claude")
	cmd.Flags().BoolVar(&flagJSON, "json", false, "print accepted edges as JSON")
	_ = viper.BindPFlag("claude.model", cmd.Flags().Lookup("model"))
	return cmd
}
