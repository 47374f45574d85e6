package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"dicom-deidentifier/internal/submission"
)

func (a *app) reportCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "report [submission-dir]",
		Short: "Pair anonymized patients and studies with their original identities",
		Long: `report walks a submission tree (default: outputDir) and prints, for each
patient directory found in the identity index, the original patient and
the original date and accession of each study. Directories that are not
fully indexed are skipped with a warning.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			root := a.cfg.OutputDir
			if len(args) == 1 {
				root = args[0]
			}
			r := &submission.Reporter{Index: a.index, Log: a.log.Logger}
			patients, err := r.Build(root)
			if err != nil {
				return err
			}

			w := newTabWriter(cmd.OutOrStdout())
			for _, p := range patients {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", p.AnonName, p.AnonID, p.Sex, p.Original)
				for _, s := range p.Studies {
					fmt.Fprintf(w, "\t%s\t%s\t%d series\t%s\n", s.Modality, s.PatientAge, s.Series, s.PHI)
				}
			}
			return w.Flush()
		},
	}
}
