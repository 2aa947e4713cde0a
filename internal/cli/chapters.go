package cli

import (
	"github.com/spf13/cobra"

	"github.com/kittclouds/novelkit/internal/store"
	"github.com/kittclouds/novelkit/pkg/apperr"
)

func statusFlag(cmd *cobra.Command) (*store.ChapterStatus, error) {
	s := optString(cmd, "status")
	if s == nil {
		return nil, nil
	}
	st := store.ChapterStatus(*s)
	if !st.Valid() {
		return nil, apperr.Validation("unknown chapter status %q", *s)
	}
	return &st, nil
}

func (a *app) chapterCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "chapter", Short: "Manage chapters"}

	list := &cobra.Command{
		Use:   "list [novel-id]",
		Short: "List chapters; one novel's are ordered by chapter order",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			chs, err := a.rt.Facade.Chapters(cmd.Context(), firstArg(args))
			if err != nil {
				return err
			}
			return a.print(cmd, chs)
		},
	}

	get := &cobra.Command{
		Use:   "get [id]",
		Short: "Show one chapter",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ch, err := a.rt.Facade.Chapter(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return a.print(cmd, ch)
		},
	}

	create := &cobra.Command{
		Use:   "create [novel-id]",
		Short: "Append a chapter to a novel",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			content, err := textFlag(cmd, "content")
			if err != nil {
				return err
			}
			status, err := statusFlag(cmd)
			if err != nil {
				return err
			}
			c := store.Chapter{
				NovelID:     args[0],
				Title:       deref(optString(cmd, "title")),
				Description: deref(optString(cmd, "description")),
				Content:     deref(content),
			}
			if status != nil {
				c.Status = *status
			}
			ch, err := a.rt.Facade.CreateChapter(cmd.Context(), c)
			if err != nil {
				return err
			}
			return a.print(cmd, ch)
		},
	}

	update := &cobra.Command{
		Use:   "update [id]",
		Short: "Change the given fields of a chapter",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			content, err := textFlag(cmd, "content")
			if err != nil {
				return err
			}
			status, err := statusFlag(cmd)
			if err != nil {
				return err
			}
			ch, err := a.rt.Facade.UpdateChapter(cmd.Context(), args[0], store.ChapterPatch{
				Title:       optString(cmd, "title"),
				Description: optString(cmd, "description"),
				Content:     content,
				Status:      status,
			})
			if err != nil {
				return err
			}
			return a.print(cmd, ch)
		},
	}

	for _, c := range []*cobra.Command{create, update} {
		c.Flags().String("title", "", "title")
		c.Flags().String("description", "", "description")
		c.Flags().String("content", "", "content")
		c.Flags().String("content-file", "", "read content from a file (- for stdin)")
		c.Flags().String("status", "", "draft, in-progress or completed")
	}

	del := &cobra.Command{
		Use:   "delete [id]",
		Short: "Delete a chapter and close the gap in the order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.rt.Facade.DeleteChapter(cmd.Context(), args[0]); err != nil {
				return err
			}
			return a.print(cmd, deleted{args[0]})
		},
	}

	up := &cobra.Command{
		Use:   "up [id]",
		Short: "Swap a chapter with the one before it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			chs, err := a.rt.Facade.MoveChapterUp(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return a.print(cmd, chs)
		},
	}

	down := &cobra.Command{
		Use:   "down [id]",
		Short: "Swap a chapter with the one after it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			chs, err := a.rt.Facade.MoveChapterDown(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return a.print(cmd, chs)
		},
	}

	cmd.AddCommand(list, get, create, update, del, up, down)
	return cmd
}
