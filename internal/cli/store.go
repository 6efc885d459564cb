package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/goliatone/go-kstore/pkg/activity"
	"github.com/spf13/cobra"
)

func (a *App) storeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "store",
		Short: "Read and change the configured knowledge store",
		Long: "Operates on the mutable store in --data-dir (or memory) layered over\n" +
			"the --shared files. Changes pass through the --policy rules.",
	}
	cmd.AddCommand(
		a.storeInitCommand(),
		a.storeShowCommand(),
		a.storeMutateCommand(),
		a.storeRevisionsCommand(),
		a.storeRevisionCommand(),
	)
	return cmd
}

func (a *App) storeInitCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "init FILE",
		Short: "Seed an empty mutable store from a snapshot file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			snapshot, err := readSnapshot(args[0])
			if err != nil {
				return err
			}
			st, err := a.openStack()
			if err != nil {
				return err
			}
			return st.backend.Init(cmd.Context(), snapshot)
		},
	}
}

func (a *App) storeShowCommand() *cobra.Command {
	var provenance bool
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print the composite snapshot",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			st, err := a.openStack()
			if err != nil {
				return err
			}
			if provenance {
				sources, err := st.composite.Provenance(cmd.Context())
				if err != nil {
					return err
				}
				return writeProvenance(cmd, sources)
			}
			snapshot, err := st.composite.GetSnapshot(cmd.Context())
			if err != nil {
				return err
			}
			return writeYAML(cmd.OutOrStdout(), snapshot)
		},
	}
	cmd.Flags().BoolVar(&provenance, "provenance", false, "list which layer supplies each dataset")
	return cmd
}

func (a *App) storeMutateCommand() *cobra.Command {
	var (
		title       string
		description string
		automerge   bool
		actor       string
	)
	cmd := &cobra.Command{
		Use:   "mutate AFTER",
		Short: "Change the store so its composite view matches a snapshot file",
		Long: "AFTER is a full composite snapshot, usually an edited copy of\n" +
			"`kstore store show`. Shared datasets must be left as they are.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			after, err := readSnapshot(args[0])
			if err != nil {
				return err
			}
			st, err := a.openStack()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			if actor != "" {
				ctx = activity.ContextWithActor(ctx, activity.Actor{ActorID: actor})
			}
			before, err := st.composite.GetSnapshot(ctx)
			if err != nil {
				return err
			}
			url, err := st.composite.Mutate(ctx, title, description, automerge, before, after)
			if err != nil {
				return err
			}
			if url == "" {
				_, err = fmt.Fprintln(cmd.OutOrStdout(), "no changes")
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), url)
			return err
		},
	}
	flags := cmd.Flags()
	flags.StringVarP(&title, "title", "t", "", "change title")
	flags.StringVarP(&description, "description", "d", "", "change description")
	flags.BoolVar(&automerge, "automerge", false, "merge without review when policy allows")
	flags.StringVar(&actor, "actor", "", "actor recorded on the activity event")
	_ = cmd.MarkFlagRequired("title")
	return cmd
}

func (a *App) storeRevisionsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "revisions",
		Short: "List recorded revisions, oldest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			st, err := a.openStack()
			if err != nil {
				return err
			}
			revisions, err := st.backend.Revisions(cmd.Context())
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tTITLE\tCHANGES\tAUTOMERGE")
			for _, rev := range revisions {
				fmt.Fprintf(tw, "%s\t%s\t%d\t%t\n", rev.ID, rev.Title, rev.Stats.Total(), rev.Automerge)
			}
			return tw.Flush()
		},
	}
}

func (a *App) storeRevisionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "revision ID",
		Short: "Print one revision as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := a.openStack()
			if err != nil {
				return err
			}
			rev, err := st.backend.Revision(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), rev)
		},
	}
}
