package cli

import (
	"github.com/spf13/cobra"

	"github.com/kittclouds/novelkit/internal/store"
	"github.com/kittclouds/novelkit/pkg/apperr"
)

type deleted struct {
	Deleted string `json:"deleted"`
}

func requireYes(cmd *cobra.Command, what string) error {
	if yes, _ := cmd.Flags().GetBool("yes"); !yes {
		return apperr.Validation("%s is destructive; pass --yes to confirm", what)
	}
	return nil
}

func (a *app) novelCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "novel", Short: "Manage novels"}

	list := &cobra.Command{
		Use:   "list",
		Short: "List every novel",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			novels, err := a.rt.Facade.Novels(cmd.Context())
			if err != nil {
				return err
			}
			return a.print(cmd, novels)
		},
	}

	get := &cobra.Command{
		Use:   "get [id]",
		Short: "Show one novel",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := a.rt.Facade.Novel(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return a.print(cmd, n)
		},
	}

	create := &cobra.Command{
		Use:   "create",
		Short: "Create a novel",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := a.rt.Facade.CreateNovel(cmd.Context(), store.Novel{
				ID:          deref(optString(cmd, "id")),
				Title:       deref(optString(cmd, "title")),
				Description: deref(optString(cmd, "description")),
				Cover:       deref(optString(cmd, "cover")),
			})
			if err != nil {
				return err
			}
			return a.print(cmd, n)
		},
	}
	create.Flags().String("id", "", "novel id (generated when empty)")

	update := &cobra.Command{
		Use:   "update [id]",
		Short: "Change the given fields of a novel",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := a.rt.Facade.UpdateNovel(cmd.Context(), args[0], store.NovelPatch{
				Title:       optString(cmd, "title"),
				Description: optString(cmd, "description"),
				Cover:       optString(cmd, "cover"),
			})
			if err != nil {
				return err
			}
			return a.print(cmd, n)
		},
	}

	for _, c := range []*cobra.Command{create, update} {
		c.Flags().String("title", "", "title")
		c.Flags().String("description", "", "description")
		c.Flags().String("cover", "", "cover image reference")
	}

	del := &cobra.Command{
		Use:   "delete [id]",
		Short: "Delete a novel with its characters, chapters and plots",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireYes(cmd, "novel delete"); err != nil {
				return err
			}
			if err := a.rt.Facade.DeleteNovel(cmd.Context(), args[0]); err != nil {
				return err
			}
			return a.print(cmd, deleted{args[0]})
		},
	}
	del.Flags().Bool("yes", false, "confirm the cascade delete")

	cmd.AddCommand(list, get, create, update, del)
	return cmd
}

func (a *app) characterCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "character", Short: "Manage characters"}

	list := &cobra.Command{
		Use:   "list [novel-id]",
		Short: "List characters, optionally of one novel",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			chars, err := a.rt.Facade.Characters(cmd.Context(), firstArg(args))
			if err != nil {
				return err
			}
			return a.print(cmd, chars)
		},
	}

	create := &cobra.Command{
		Use:   "create [novel-id]",
		Short: "Create a character in a novel",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.rt.Facade.CreateCharacter(cmd.Context(), store.Character{
				NovelID:       args[0],
				Name:          deref(optString(cmd, "name")),
				Gender:        deref(optString(cmd, "gender")),
				Personality:   deref(optString(cmd, "personality")),
				Background:    deref(optString(cmd, "background")),
				Relationships: deref(optString(cmd, "relationships")),
				Notes:         deref(optString(cmd, "notes")),
				Summary:       deref(optString(cmd, "summary")),
			})
			if err != nil {
				return err
			}
			return a.print(cmd, c)
		},
	}

	update := &cobra.Command{
		Use:   "update [id]",
		Short: "Change the given fields of a character",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.rt.Facade.UpdateCharacter(cmd.Context(), args[0], store.CharacterPatch{
				Name:          optString(cmd, "name"),
				Gender:        optString(cmd, "gender"),
				Personality:   optString(cmd, "personality"),
				Background:    optString(cmd, "background"),
				Relationships: optString(cmd, "relationships"),
				Notes:         optString(cmd, "notes"),
				Summary:       optString(cmd, "summary"),
			})
			if err != nil {
				return err
			}
			return a.print(cmd, c)
		},
	}

	for _, c := range []*cobra.Command{create, update} {
		for _, f := range []string{"name", "gender", "personality", "background", "relationships", "notes", "summary"} {
			c.Flags().String(f, "", f)
		}
	}

	del := &cobra.Command{
		Use:   "delete [id]",
		Short: "Delete a character",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.rt.Facade.DeleteCharacter(cmd.Context(), args[0]); err != nil {
				return err
			}
			return a.print(cmd, deleted{args[0]})
		},
	}

	cmd.AddCommand(list, create, update, del)
	return cmd
}

func (a *app) plotCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "plot", Short: "Manage plot notes"}

	list := &cobra.Command{
		Use:   "list [novel-id]",
		Short: "List plots, optionally of one novel",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			plots, err := a.rt.Facade.Plots(cmd.Context(), firstArg(args))
			if err != nil {
				return err
			}
			return a.print(cmd, plots)
		},
	}

	create := &cobra.Command{
		Use:   "create [novel-id]",
		Short: "Create a plot note in a novel",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			content, err := textFlag(cmd, "content")
			if err != nil {
				return err
			}
			p, err := a.rt.Facade.CreatePlot(cmd.Context(), store.Plot{
				NovelID: args[0],
				Title:   deref(optString(cmd, "title")),
				Content: deref(content),
			})
			if err != nil {
				return err
			}
			return a.print(cmd, p)
		},
	}

	update := &cobra.Command{
		Use:   "update [id]",
		Short: "Change the given fields of a plot note",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			content, err := textFlag(cmd, "content")
			if err != nil {
				return err
			}
			p, err := a.rt.Facade.UpdatePlot(cmd.Context(), args[0], store.PlotPatch{
				Title:   optString(cmd, "title"),
				Content: content,
			})
			if err != nil {
				return err
			}
			return a.print(cmd, p)
		},
	}

	for _, c := range []*cobra.Command{create, update} {
		c.Flags().String("title", "", "title")
		c.Flags().String("content", "", "content")
		c.Flags().String("content-file", "", "read content from a file (- for stdin)")
	}

	del := &cobra.Command{
		Use:   "delete [id]",
		Short: "Delete a plot note",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.rt.Facade.DeletePlot(cmd.Context(), args[0]); err != nil {
				return err
			}
			return a.print(cmd, deleted{args[0]})
		},
	}

	cmd.AddCommand(list, create, update, del)
	return cmd
}

func firstArg(args []string) string {
	if len(args) == 0 {
		return ""
	}
	return args[0]
}
