package cli

import (
	"fmt"
	"path/filepath"

	kstore "github.com/goliatone/go-kstore"
	"github.com/goliatone/go-kstore/pkg/render"
	"github.com/spf13/cobra"
)

func (a *App) diffCommand() *cobra.Command {
	var format, title string
	cmd := &cobra.Command{
		Use:   "diff BEFORE AFTER",
		Short: "Show the structural difference between two snapshot files",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			before, err := readSnapshot(args[0])
			if err != nil {
				return err
			}
			after, err := readSnapshot(args[1])
			if err != nil {
				return err
			}
			diff, err := kstore.ComputeDiff(before, after)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			switch format {
			case "json":
				return writeJSON(out, diff)
			case "summary":
				_, err := fmt.Fprint(out, render.Summary(title, diff))
				return err
			case "patch":
				text, err := render.PatchText(before, after, render.PatchOptions{
					OrigName: "a/" + filepath.Base(args[0]),
					NewName:  "b/" + filepath.Base(args[1]),
				})
				if err != nil {
					return err
				}
				_, err = fmt.Fprint(out, text)
				return err
			default:
				return fmt.Errorf("unknown format %q (want json, summary or patch)", format)
			}
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "json", "output format: json, summary or patch")
	cmd.Flags().StringVar(&title, "title", "", "heading of the summary format")
	return cmd
}
