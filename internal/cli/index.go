package cli

import (
	"errors"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newTabWriter(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
}

func (a *app) indexCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "index",
		Short: "Inspect the identity index",
	}
	cmd.AddCommand(a.indexPatientsCommand(), a.indexLookupCommand(), a.indexStudiesCommand())
	return cmd
}

func (a *app) indexPatientsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "patients",
		Short: "List every indexed patient",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			patients, err := a.index.Patients()
			if err != nil {
				return err
			}
			w := newTabWriter(cmd.OutOrStdout())
			fmt.Fprintln(w, "ORIGINAL\tANONYMIZED")
			for _, p := range patients {
				fmt.Fprintf(w, "%s\t%s\n", p.Key, p)
			}
			return w.Flush()
		},
	}
}

func (a *app) indexLookupCommand() *cobra.Command {
	var anon, original string
	cmd := &cobra.Command{
		Use:   "lookup",
		Short: "Look up a patient by original or anonymized name",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			switch {
			case anon != "" && original != "":
				return errors.New("use only one of --anon and --original")
			case anon != "":
				e, ok := a.index.GetInvEntry(anon)
				if !ok {
					return fmt.Errorf("%q is not in the index", anon)
				}
				fmt.Fprintln(cmd.OutOrStdout(), e)
			case original != "":
				e, ok := a.index.GetFwdEntry(original)
				if !ok {
					return errors.New("original name is not in the index")
				}
				fmt.Fprintln(cmd.OutOrStdout(), e)
			default:
				return errors.New("one of --anon or --original is required")
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&anon, "anon", "", "anonymized patient name")
	cmd.Flags().StringVar(&original, "original", "", "original patient name")
	return cmd
}

func (a *app) indexStudiesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "studies <original-id>",
		Short: "List the studies correlated with an original patient id",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			w := newTabWriter(cmd.OutOrStdout())
			fmt.Fprintln(w, "DATE\tACCESSION\tANON DATE\tANON ACCESSION")
			for _, s := range a.index.ListStudiesFor(args[0]) {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", s.PHIDate, s.PHIAccession, s.AnonDate, s.AnonAccession)
			}
			return w.Flush()
		},
	}
}
