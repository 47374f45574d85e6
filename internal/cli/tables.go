package cli

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"dicom-deidentifier/internal/idtable"
)

func (a *app) integerCommand() *cobra.Command {
	var width int
	cmd := &cobra.Command{
		Use:   "integer <category> <text>",
		Short: "Print the surrogate integer for a value, assigning one if needed",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			v := a.table.GetInteger(args[0], args[1], width)
			if v == idtable.ErrorValue {
				return errors.New("no integer could be assigned")
			}
			fmt.Fprintln(cmd.OutOrStdout(), v)
			return nil
		},
	}
	cmd.Flags().IntVarP(&width, "width", "w", 0, "zero-pad to this many digits")
	return cmd
}

func (a *app) skipRangeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "skip-range <category> <low> <high>",
		Short: "Reserve a block of integers in a category",
		Long: `skip-range makes the next allocation that would land inside [low, high]
jump to high+1 instead. The range is dropped once an allocation passes it.
Setting a new range replaces the current one.`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			low, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("low: %w", err)
			}
			high, err := strconv.Atoi(args[2])
			if err != nil {
				return fmt.Errorf("high: %w", err)
			}
			if !a.table.SetSkipRange(args[0], low, high) {
				return errors.New("skip range not installed")
			}
			r, _ := a.table.SkipRange(args[0])
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", args[0], r)
			return nil
		},
	}
}

func (a *app) tableCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "table",
		Short: "List the integer table",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			entries, err := a.table.Entries()
			if err != nil {
				return err
			}
			w := newTabWriter(cmd.OutOrStdout())
			for _, e := range entries {
				fmt.Fprintf(w, "%s\t%s\n", e.Key, e.Value)
			}
			return w.Flush()
		},
	}
}
