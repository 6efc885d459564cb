package cli

import (
	"fmt"
	"path/filepath"
	"slices"
	"strings"
	"text/tabwriter"

	kstore "github.com/goliatone/go-kstore"
	"github.com/goliatone/go-kstore/layering"
	"github.com/goliatone/go-kstore/pkg/store"
	"github.com/spf13/cobra"
)

func (a *App) mergeCommand() *cobra.Command {
	var provenance bool
	cmd := &cobra.Command{
		Use:   "merge MUTABLE [SHARED...]",
		Short: "Print the composite view of a mutable file over shared files",
		Long: "Shared files are listed strongest first. The mutable file wins every\n" +
			"dataset it defines; each shared file wins over the ones after it.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mutable := store.NewFileStore(args[0], store.WithLogger(a.logger))
			shared := make([]kstore.SnapshotReader, 0, len(args)-1)
			names := make([]string, 0, len(args)-1)
			for _, path := range args[1:] {
				shared = append(shared, store.NewFileStore(path, store.WithReadOnly(), store.WithLogger(a.logger)))
				names = append(names, filepath.Base(path))
			}
			composite := kstore.NewComposite(mutable, shared,
				kstore.WithLogger(a.logger),
				kstore.WithSharedNames(names...),
			)

			if provenance {
				sources, err := composite.Provenance(cmd.Context())
				if err != nil {
					return err
				}
				return writeProvenance(cmd, sources)
			}
			snapshot, err := composite.GetSnapshot(cmd.Context())
			if err != nil {
				return err
			}
			return writeYAML(cmd.OutOrStdout(), snapshot)
		},
	}
	cmd.Flags().BoolVar(&provenance, "provenance", false, "list which layer supplies each dataset instead of the snapshot")
	return cmd
}

func writeProvenance(cmd *cobra.Command, sources map[kstore.DatasetKey]layering.Provenance) error {
	keys := make([]kstore.DatasetKey, 0, len(sources))
	for key := range sources {
		keys = append(keys, key)
	}
	slices.SortFunc(keys, kstore.DatasetKey.Compare)

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "DATASET\tLAYER\tSHADOWED")
	for _, key := range keys {
		src := sources[key]
		shadowed := "-"
		if len(src.Shadowed) > 0 {
			shadowed = strings.Join(src.Shadowed, ",")
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", key, src.Name, shadowed)
	}
	return tw.Flush()
}
