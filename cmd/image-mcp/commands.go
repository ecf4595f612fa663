package main

import (
	"encoding/json"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/ironsheep/image-match-mcp/internal/config"
	"github.com/ironsheep/image-match-mcp/internal/logging"
	"github.com/ironsheep/image-match-mcp/internal/server"
)

type globalFlags struct {
	configPath string
	logLevel   string
	logFormat  string
}

// server loads the configuration and builds a server and logger from it.
// Flags take precedence over the file and environment.
func (f *globalFlags) server() (*server.Server, *slog.Logger, error) {
	cfg, err := config.Load(f.configPath)
	if err != nil {
		return nil, nil, err
	}
	if f.logLevel != "" {
		cfg.Log.Level = f.logLevel
	}
	if f.logFormat != "" {
		cfg.Log.Format = f.logFormat
	}

	logger, err := logging.New(logging.Options{Level: cfg.Log.Level, Format: cfg.Log.Format})
	if err != nil {
		return nil, nil, err
	}
	return server.NewWithConfig(cfg, logger), logger, nil
}

// templateFlags select the template for find and wait.
type templateFlags struct {
	name      string
	path      string
	threshold float64
}

func (t *templateFlags) register(cmd *cobra.Command) {
	fs := cmd.Flags()
	fs.StringVarP(&t.name, "template", "t", "", "template name from the configuration")
	fs.StringVar(&t.path, "template-path", "", "template image path")
	fs.Float64Var(&t.threshold, "threshold", 0, "minimum score in (0, 1]; 0 uses the template or configured default")
	cmd.MarkFlagsOneRequired("template", "template-path")
	cmd.MarkFlagsMutuallyExclusive("template", "template-path")
}

func (t *templateFlags) args() map[string]interface{} {
	args := map[string]interface{}{}
	if t.name != "" {
		args["template"] = t.name
	}
	if t.path != "" {
		args["template_path"] = t.path
	}
	if t.threshold != 0 {
		args["threshold"] = t.threshold
	}
	return args
}

func newFindCmd(flags *globalFlags) *cobra.Command {
	var (
		tmpl        templateFlags
		all         bool
		maxResults  int
		minDistance float64
	)

	cmd := &cobra.Command{
		Use:   "find [flags] SOURCE",
		Short: "Search a source image for a template",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			srv, _, err := flags.server()
			if err != nil {
				return err
			}

			toolArgs := tmpl.args()
			toolArgs["path"] = args[0]
			tool := "image_find_template"
			if all {
				tool = "image_find_all_templates"
				toolArgs["max_results"] = maxResults
				if cmd.Flags().Changed("min-distance") {
					toolArgs["min_distance"] = minDistance
				}
			}
			return printTool(cmd, srv, tool, toolArgs)
		},
	}
	tmpl.register(cmd)
	fs := cmd.Flags()
	fs.BoolVarP(&all, "all", "a", false, "report every non-overlapping match")
	fs.IntVar(&maxResults, "max-results", 0, "with --all, cap the number of matches; 0 is unlimited")
	fs.Float64Var(&minDistance, "min-distance", 0, "with --all, minimum distance between match centers")
	return cmd
}

func newWaitCmd(flags *globalFlags) *cobra.Command {
	var (
		tmpl     templateFlags
		file     string
		display  int
		interval int
		timeout  int
	)

	cmd := &cobra.Command{
		Use:   "wait",
		Short: "Poll the screen or a file until a template appears",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			srv, _, err := flags.server()
			if err != nil {
				return err
			}

			toolArgs := tmpl.args()
			if file != "" {
				toolArgs["source"] = "file"
				toolArgs["path"] = file
			} else if cmd.Flags().Changed("display") {
				toolArgs["display"] = display
			}
			if cmd.Flags().Changed("interval") {
				toolArgs["interval_ms"] = interval
			}
			if cmd.Flags().Changed("timeout") {
				toolArgs["timeout_ms"] = timeout
			}
			return printTool(cmd, srv, "image_wait_for_template", toolArgs)
		},
	}
	tmpl.register(cmd)
	fs := cmd.Flags()
	fs.StringVarP(&file, "file", "f", "", "poll this image file instead of the screen")
	fs.IntVarP(&display, "display", "d", 0, "display index to capture")
	fs.IntVar(&interval, "interval", 0, "milliseconds between polls")
	fs.IntVar(&timeout, "timeout", 0, "maximum wait in milliseconds; 0 checks once")
	cmd.MarkFlagsMutuallyExclusive("file", "display")
	return cmd
}

func newTemplatesCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "templates",
		Short: "List the configured templates",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			srv, _, err := flags.server()
			if err != nil {
				return err
			}
			return printTool(cmd, srv, "image_list_templates", map[string]interface{}{})
		},
	}
}

// printTool runs a tool and writes its result as indented JSON.
func printTool(cmd *cobra.Command, srv *server.Server, tool string, args map[string]interface{}) error {
	result, err := srv.CallTool(cmd.Context(), tool, args)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}
