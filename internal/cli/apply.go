package cli

import (
	kstore "github.com/goliatone/go-kstore"
	"github.com/goliatone/go-kstore/pkg/store"
	"github.com/spf13/cobra"
)

func (a *App) applyCommand() *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "apply BASE DIFF...",
		Short: "Apply JSON diffs in order to a snapshot file",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			base, err := readSnapshot(args[0])
			if err != nil {
				return err
			}
			diffs := make([]kstore.SnapshotDiff, 0, len(args)-1)
			for _, path := range args[1:] {
				diff, err := readDiff(path)
				if err != nil {
					return err
				}
				diffs = append(diffs, diff)
			}
			result, err := kstore.ApplyDiff(base, diffs...)
			if err != nil {
				return err
			}
			if output != "" {
				return store.WriteSnapshotFile(output, result)
			}
			return writeYAML(cmd.OutOrStdout(), result)
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "write the result to this file instead of stdout")
	return cmd
}
