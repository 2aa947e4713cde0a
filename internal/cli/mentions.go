package cli

import (
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/kittclouds/novelkit/internal/store"
	"github.com/kittclouds/novelkit/pkg/mentions"
)

type mentionReport struct {
	NovelID    string                     `json:"novelId"`
	Characters map[string]string          `json:"characters"`
	Skipped    []string                   `json:"skipped,omitempty"`
	Chapters   []mentions.ChapterMentions `json:"chapters"`
	Candidates []mentions.Candidate       `json:"candidates,omitempty"`
}

func (a *app) mentionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mentions [novel-id]",
		Short: "Count character mentions in each chapter of a novel",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			f := a.rt.Facade
			novelID := args[0]
			if _, err := f.Novel(ctx, novelID); err != nil {
				return err
			}

			var (
				chars []store.Character
				chs   []store.Chapter
			)
			eg, ctx := errgroup.WithContext(ctx)
			eg.Go(func() (err error) {
				chars, err = f.Characters(ctx, novelID)
				return err
			})
			eg.Go(func() (err error) {
				chs, err = f.Chapters(ctx, novelID)
				return err
			})
			if err := eg.Wait(); err != nil {
				return err
			}

			noAliases, _ := cmd.Flags().GetBool("no-aliases")
			idx, err := mentions.Build(chars, mentions.WithAliases(!noAliases))
			if err != nil {
				return err
			}

			report := mentionReport{
				NovelID:    novelID,
				Characters: make(map[string]string, len(chars)),
				Skipped:    idx.Skipped(),
				Chapters:   idx.Chapters(chs),
			}
			if n, _ := cmd.Flags().GetInt("discover"); n > 0 {
				report.Candidates = idx.Discover(chs, n)
			}
			for _, c := range chars {
				if name, ok := idx.Name(c.ID); ok {
					report.Characters[c.ID] = name
				}
			}
			return a.print(cmd, report)
		},
	}
	cmd.Flags().Bool("no-aliases", false, "match full names only")
	cmd.Flags().Int("discover", 0, "also suggest unknown names seen at least this many times")
	return cmd
}
