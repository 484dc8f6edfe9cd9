package main

import (
	"fmt"

	"github.com/Domenick1991/jcsyfill/internal/bootstrap"
	"github.com/Domenick1991/jcsyfill/internal/render"
	"github.com/spf13/cobra"
)

func newShowCmd(flags *globalFlags) *cobra.Command {
	var markdown, text bool
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show a stored list",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withApp(cmd, flags, func(app *bootstrap.App) error {
				list, err := app.Repo.GetList(cmd.Context(), id)
				if err != nil {
					return err
				}
				switch {
				case markdown:
					md, err := render.Markdown(list, render.TemplatesFrom(app.Config.Render))
					if err != nil {
						return err
					}
					fmt.Fprint(cmd.OutOrStdout(), md)
				case text:
					fmt.Fprint(cmd.OutOrStdout(), list.ProcessedText)
				default:
					render.Table(cmd.OutOrStdout(), list)
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&markdown, "markdown", false, "print as markdown")
	cmd.Flags().BoolVar(&text, "text", false, "print the annotated list text")
	return cmd
}

func newHistoryCmd(flags *globalFlags) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recently processed lists",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, flags, func(app *bootstrap.App) error {
				lists, err := app.Repo.RecentLists(cmd.Context(), limit)
				if err != nil {
					return err
				}
				render.ListsTable(cmd.OutOrStdout(), lists)
				return nil
			})
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of lists")
	return cmd
}

func newSearchCmd(flags *globalFlags) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "search <term>",
		Short: "Find lists by flight code or airport",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, flags, func(app *bootstrap.App) error {
				lists, err := app.Repo.SearchLists(cmd.Context(), args[0], limit)
				if err != nil {
					return err
				}
				render.ListsTable(cmd.OutOrStdout(), lists)
				return nil
			})
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of lists")
	return cmd
}
