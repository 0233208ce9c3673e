package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"optionsworth/internal/config"
	"optionsworth/internal/core"
	"optionsworth/internal/report"
	"optionsworth/internal/scenario"
)

const (
	formatText = "text"
	formatYAML = "yaml"
)

type valueOptions struct {
	file    string
	pdf     string
	out     string
	format  string
	envFile string
}

func newValueCommand() *cobra.Command {
	opts := valueOptions{}

	cmd := &cobra.Command{
		Use:   "value",
		Short: "Value a portfolio file without starting the server",
		Example: `  optionsworth value -f portfolio.yaml
  optionsworth value -f portfolio.yaml --pdf report.pdf
  optionsworth value -f partial.yaml --out full.yaml
  cat portfolio.yaml | optionsworth value -f -`,
		Args: cobra.ExactArgs(0),
		PreRunE: func(cmd *cobra.Command, args []string) error {
			if opts.file == "" {
				return errors.New("--file is required")
			}
			switch opts.format {
			case formatText, formatYAML:
				return nil
			}
			return fmt.Errorf("--format must be %s or %s, got %q", formatText, formatYAML, opts.format)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValue(cmd.InOrStdin(), cmd.OutOrStdout(), opts)
		},
	}

	fs := cmd.Flags()
	fs.StringVarP(&opts.file, "file", "f", "", "portfolio YAML file, - for stdin")
	fs.StringVar(&opts.pdf, "pdf", "", "also write a PDF report to this path")
	fs.StringVar(&opts.out, "out", "", "also save the portfolio, with defaulted rates filled in, to this path")
	fs.StringVar(&opts.format, "format", formatText, "output format: text or yaml")
	fs.StringVar(&opts.envFile, envFileFlag, ".env", "optional env file providing default rates")
	return cmd
}

func runValue(stdin io.Reader, out io.Writer, opts valueOptions) error {
	cfg, err := config.Load(opts.envFile)
	if err != nil {
		return err
	}

	var f *scenario.File
	if opts.file == "-" {
		f, err = scenario.Decode(stdin, cfg.DefaultRates())
	} else {
		f, err = scenario.Load(opts.file, cfg.DefaultRates())
	}
	if err != nil {
		return err
	}

	v := f.Portfolio().Snapshot()

	switch opts.format {
	case formatYAML:
		err = scenario.EncodeValuation(out, v)
	default:
		err = printValuation(out, v)
	}
	if err != nil {
		return err
	}

	if opts.out != "" {
		if err := scenario.Save(opts.out, f); err != nil {
			return err
		}
		fmt.Fprintf(out, "portfolio written to %s\n", opts.out)
	}

	if opts.pdf == "" {
		return nil
	}
	source := opts.file
	if source == "-" {
		source = "stdin"
	}
	pdf, err := report.Generate(v, report.Options{GeneratedAt: time.Now(), Source: source})
	if err != nil {
		return err
	}
	if err := os.WriteFile(opts.pdf, pdf, 0o644); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	fmt.Fprintf(out, "report written to %s\n", opts.pdf)
	return nil
}

func printValuation(out io.Writer, v core.Valuation) error {
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', tabwriter.AlignRight)

	for _, f := range core.RateFields {
		fmt.Fprintf(tw, "%s\t%s\t\n", f.Label(), core.FormatInput(v.Rates.Value(f)))
	}
	fmt.Fprintln(tw, "\t\t")

	header := []string{"#"}
	for _, f := range core.GrantFields {
		header = append(header, f.Label())
	}
	header = append(header, "Cost To Exercise", "Taxes", "After Tax Return")
	fmt.Fprintln(tw, strings.Join(header, "\t")+"\t")

	for i, g := range v.Grants {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\t%s\t\n",
			i+1,
			core.FormatInput(g.NumShares),
			core.FormatInput(g.StrikePrice),
			core.FormatInput(g.ExercisePrice),
			core.FormatAmount(g.CostToExercise),
			core.FormatAmount(g.Taxes),
			core.FormatAmount(g.AfterTaxReturn))
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	_, err := fmt.Fprintf(out, "\n%s\n", report.TotalLine(v.Total))
	return err
}
