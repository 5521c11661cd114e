package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"meriscorr/internal/models"
	"meriscorr/pkg/correction"
	"meriscorr/pkg/raster"
)

func newInspectCmd(c *cli) *cobra.Command {
	var input string
	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Validate a product and show the target layout without processing pixels",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.cfg.Validate(); err != nil {
				return err
			}
			src, err := raster.ReadProduct(input)
			if err != nil {
				return err
			}
			p, err := correction.NewPipeline(src, pipelineParams(c, nil))
			if err != nil {
				return err
			}
			return printInspection(cmd.OutOrStdout(), src, p, c.cfg.GenerationHint())
		},
	}
	cmd.Flags().StringVarP(&input, "input", "i", "", "Source product directory")
	cmd.MarkFlagRequired("input")
	return cmd
}

func printInspection(w io.Writer, src raster.Source, p *correction.Pipeline, hint models.Generation) error {
	st := p.State()
	origin := "auto-detected"
	if hint != models.GenerationUndetermined {
		origin = "configured"
	}
	fmt.Fprintf(w, "Product:     %s (%s, %dx%d)\n", src.Name(), src.ProductType(), src.Width(), src.Height())
	fmt.Fprintf(w, "Generation:  %s (%s), effective %s\n", st.Detected, origin, st.Effective)
	fmt.Fprintf(w, "Resolution:  %s, %d detectors\n", st.Resolution, st.Resolution.Detectors())
	fmt.Fprintf(w, "Stages:      calibrate=%t smile=%t equalize=%t reflectance=%t\n",
		st.Stages.Calibrate, st.Stages.SmileCorrect, st.Stages.Equalize, st.Stages.RadianceToReflectance)
	for _, warning := range st.Warnings {
		fmt.Fprintf(w, "Warning:     %s\n", warning)
	}

	s := p.Schema()
	fmt.Fprintf(w, "\nTarget %s (%s)\n", s.ProductType, s.AutoGrouping)
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "BAND\tTYPE\tUNIT\tMAX\tSOURCE")
	for _, b := range s.Bands {
		from := b.SourceName
		if b.Copied {
			from += " (copied)"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%g\t%s\n", b.Name, b.DataType, b.Unit, b.MaxValue, from)
	}
	return tw.Flush()
}
