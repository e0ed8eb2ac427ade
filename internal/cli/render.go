package cli

import (
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/hirecs/hirecs/pkg/hig"
	"github.com/hirecs/hirecs/pkg/hirecs"
	"github.com/hirecs/hirecs/pkg/render"
)

// renderOpts holds the command-line flags for the render command.
type renderOpts struct {
	output     string // output file; extension decides the default format
	format     string // dot or svg
	detailed   bool   // include weights in labels
	noValidate bool
	fast       bool
	shuffle    bool
	seed       int64
	margin     float64
}

// newRenderCmd creates the render command: cluster the input and draw the
// resulting hierarchy as a node-link diagram.
func newRenderCmd() *cobra.Command {
	opts := renderOpts{margin: hirecs.DefaultModProfitMargin}

	cmd := &cobra.Command{
		Use:   "render [file.hig]",
		Short: "Render the cluster hierarchy as a DOT or SVG diagram",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRender(cmd, args[0], &opts)
		},
	}

	cmd.Flags().StringVarP(&opts.output, "output", "O", "", "output file (default: input name with .svg, or .dot with --format dot)")
	cmd.Flags().StringVar(&opts.format, "format", "", "diagram format: svg (default), dot")
	cmd.Flags().BoolVar(&opts.detailed, "detailed", false, "include weights in node labels")
	cmd.Flags().BoolVarP(&opts.noValidate, "no-validate", "c", false, "trust the input, skip link validation")
	cmd.Flags().BoolVarP(&opts.fast, "fast", "f", false, "quasi-mutual clustering")
	cmd.Flags().BoolVarP(&opts.shuffle, "shuffle", "r", false, "randomise node and link order on construction")
	cmd.Flags().Int64Var(&opts.seed, "seed", 0, "shuffle seed (0 uses the wall clock)")
	cmd.Flags().Float64VarP(&opts.margin, "margin", "m", opts.margin, "modularity profit margin in [-1, 1]")

	return cmd
}

func runRender(cmd *cobra.Command, path string, opts *renderOpts) error {
	ctx := cmd.Context()
	logger := loggerFromContext(ctx)

	format := opts.format
	output := opts.output
	if output == "" {
		ext := ".svg"
		if format == "dot" {
			ext = ".dot"
		}
		output = strings.TrimSuffix(path, filepath.Ext(path)) + ext
	}
	if format == "" {
		if strings.HasSuffix(output, ".dot") {
			format = "dot"
		} else {
			format = "svg"
		}
	}
	if format != "dot" && format != "svg" {
		return fmt.Errorf("unknown diagram format %q (must be dot or svg)", format)
	}

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	var popts hig.Options
	if opts.shuffle {
		popts.Shuffle = true
		if opts.seed != 0 {
			popts.Rand = rand.New(rand.NewSource(opts.seed))
		}
	}
	parsed, err := hig.Parse(f, popts)
	f.Close()
	if err != nil {
		return err
	}

	track := newProgress(logger)
	spin := newSpinner(ctx, "clustering "+path)
	if isTerminal() {
		spin.Start()
		defer spin.Stop()
	}
	h, err := hirecs.Run(parsed.Nodes, hirecs.Options{
		Symmetric:       !parsed.Directed,
		Validate:        !opts.noValidate,
		Fast:            opts.fast,
		ModProfitMargin: opts.margin,
		Logger:          logger,
	})
	if err != nil {
		return err
	}

	dot := render.ToDOT(h, render.Options{Detailed: opts.detailed})
	var data []byte
	if format == "dot" {
		data = []byte(dot)
	} else {
		data, err = render.SVG(ctx, dot)
		if err != nil {
			return err
		}
	}
	if err := os.WriteFile(output, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", output, err)
	}

	track.done(fmt.Sprintf("Rendered %d clusters to %s", len(h.Clusters()), output))
	return nil
}
