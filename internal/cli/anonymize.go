package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"dicom-deidentifier/internal/anonymizer"
)

type anonymizeOptions struct {
	output     string
	recursive  bool
	imagesOnly bool
	rejectSR   bool
	rejectSC   bool
}

func (a *app) anonymizeCommand() *cobra.Command {
	var opts anonymizeOptions
	cmd := &cobra.Command{
		Use:   "anonymize <input>",
		Short: "Anonymize every DICOM file in a folder into the submission tree",
		Long: `anonymize replaces patient and accession identifiers with surrogate
integers, clears identifying tags and truncates dates, then files each
result under <output>/<patient>/Study-<date>T<time>/Series-<n>/.
Every anonymized file is recorded in the identity index.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.anonymize(cmd, args[0], opts)
		},
	}
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "submission directory (overrides outputDir)")
	cmd.Flags().BoolVarP(&opts.recursive, "recursive", "r", true, "search subdirectories")
	cmd.Flags().BoolVar(&opts.imagesOnly, "images-only", true, "skip objects without pixel data")
	cmd.Flags().BoolVar(&opts.rejectSR, "reject-sr", false, "skip Structured Reports")
	cmd.Flags().BoolVar(&opts.rejectSC, "reject-sc", false, "skip Secondary Captures")
	return cmd
}

func (a *app) anonymize(cmd *cobra.Command, input string, opts anonymizeOptions) error {
	info, err := os.Stat(input)
	if err != nil {
		return fmt.Errorf("input folder does not exist: %s", input)
	}
	if !info.IsDir() {
		return fmt.Errorf("input path is not a directory: %s", input)
	}
	if opts.output == "" {
		opts.output = a.cfg.OutputDir
	}

	out := cmd.OutOrStdout()
	printHeader(out, input, opts)

	wf := &anonymizer.Workflow{
		Engine:     anonymizer.NewMetadataEngine(),
		IDs:        a.table,
		Index:      a.index,
		OutputDir:  opts.output,
		ImagesOnly: opts.imagesOnly,
		RejectSR:   opts.rejectSR,
		RejectSC:   opts.rejectSC,
		Log:        a.log.Logger,
	}
	pb := newProgressBar(out, 50)
	stats, err := wf.ProcessFolder(cmd.Context(), input, opts.recursive, func(current, total int, _, _ string) {
		pb.update(current, total)
	})
	if stats != nil && stats.Success+stats.Failed+stats.Skipped > 0 {
		fmt.Fprintln(out)
	}
	if err != nil {
		return fmt.Errorf("processing failed: %w", err)
	}

	printSummary(out, stats, opts.output)
	a.printAllocations(out)
	return nil
}

func printHeader(w io.Writer, input string, opts anonymizeOptions) {
	fmt.Fprintln(w, "DICOM De-identifier")
	fmt.Fprintln(w, strings.Repeat("=", 50))
	fmt.Fprintf(w, "Input:     %s\n", input)
	fmt.Fprintf(w, "Output:    %s\n", opts.output)

	var options []string
	if opts.recursive {
		options = append(options, "Recursive")
	}
	if opts.imagesOnly {
		options = append(options, "Images only")
	}
	if opts.rejectSR {
		options = append(options, "No SR")
	}
	if opts.rejectSC {
		options = append(options, "No SC")
	}
	if len(options) > 0 {
		fmt.Fprintf(w, "Options:   %s\n", strings.Join(options, ", "))
	}
	fmt.Fprintln(w)
}

func printSummary(w io.Writer, stats *anonymizer.Stats, output string) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, strings.Repeat("=", 50))
	fmt.Fprintf(w, "Complete! %d succeeded, %d failed, %d skipped\n",
		stats.Success, stats.Failed, stats.Skipped)
	fmt.Fprintf(w, "Patients:  %d\n", stats.Patients)
	if abs, err := filepath.Abs(output); err == nil {
		output = abs
	}
	fmt.Fprintf(w, "Output:    %s\n", output)
}

// printAllocations reports the allocation counters gathered during the run.
func (a *app) printAllocations(w io.Writer) {
	families, err := a.registry.Gather()
	if err != nil {
		a.log.Debug().Err(err).Msg("gather metrics")
		return
	}
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			labels := make([]string, 0, len(m.GetLabel()))
			for _, l := range m.GetLabel() {
				labels = append(labels, l.GetName()+"="+l.GetValue())
			}
			fmt.Fprintf(w, "%s{%s} %.0f\n", mf.GetName(), strings.Join(labels, ","), m.GetCounter().GetValue())
		}
	}
}

// progressBar draws a single-line terminal progress bar.
type progressBar struct {
	w     io.Writer
	width int
}

func newProgressBar(w io.Writer, width int) *progressBar {
	return &progressBar{w: w, width: width}
}

func (pb *progressBar) update(current, total int) {
	if total == 0 {
		return
	}

	percent := float64(current) / float64(total)
	filled := int(percent * float64(pb.width))
	if filled > pb.width {
		filled = pb.width
	}

	bar := strings.Repeat("#", filled) + strings.Repeat("-", pb.width-filled)
	fmt.Fprintf(pb.w, "\r[%s] %3.0f%%  (%d/%d)", bar, percent*100, current, total)
}
