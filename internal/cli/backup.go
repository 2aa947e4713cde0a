package cli

import (
	"io"

	"github.com/spf13/cobra"

	"github.com/kittclouds/novelkit/pkg/apperr"
	"github.com/kittclouds/novelkit/pkg/backup"
	"github.com/kittclouds/novelkit/pkg/settings"
)

func (a *app) codec() *backup.Codec {
	return backup.New(a.rt.Facade, backup.WithLogger(a.log))
}

func (a *app) backupCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "backup", Short: "Export or restore every entity"}

	export := &cobra.Command{
		Use:   "export",
		Short: "Write every novel, character, chapter and plot as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			file, _ := cmd.Flags().GetString("file")
			return writeOutput(cmd, file, func(w io.Writer) error {
				return a.codec().Export(cmd.Context(), w)
			})
		},
	}
	export.Flags().String("file", "", "write to a file instead of stdout")

	imp := &cobra.Command{
		Use:   "import [file]",
		Short: "Replace every entity in the active backend with a backup (- for stdin)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireYes(cmd, "backup import"); err != nil {
				return err
			}
			r, err := openInput(cmd, args[0])
			if err != nil {
				return err
			}
			defer r.Close()
			sum, err := a.codec().Import(cmd.Context(), r)
			if err != nil {
				return err
			}
			return a.print(cmd, sum)
		},
	}
	imp.Flags().Bool("yes", false, "confirm replacing the active backend's contents")

	cmd.AddCommand(export, imp)
	return cmd
}

type storageView struct {
	StorageType settings.StorageType `json:"storageType"`
	Mode        string               `json:"mode"`
	Available   []string             `json:"available"`
}

func (a *app) settingsCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "settings", Short: "Inspect and change the persisted settings"}

	show := &cobra.Command{
		Use:   "show",
		Short: "Print the migrated settings blob",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.print(cmd, a.rt.Facade.Settings())
		},
	}

	export := &cobra.Command{
		Use:   "export",
		Short: "Write a settings backup",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			file, _ := cmd.Flags().GetString("file")
			return writeOutput(cmd, file, func(w io.Writer) error {
				return a.codec().ExportSettings(cmd.Context(), w)
			})
		},
	}
	export.Flags().String("file", "", "write to a file instead of stdout")

	imp := &cobra.Command{
		Use:   "import [file]",
		Short: "Load a settings backup (- for stdin); entities are not touched",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := openInput(cmd, args[0])
			if err != nil {
				return err
			}
			defer r.Close()
			s, err := a.codec().ImportSettings(cmd.Context(), r)
			if err != nil {
				return err
			}
			return a.print(cmd, s)
		},
	}

	setStorage := &cobra.Command{
		Use:   "set-storage [type]",
		Short: "Switch the active backend (localStorage, indexedDB, mongodb)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, ok := settings.ParseStorageType(args[0])
			if !ok {
				return apperr.Validation("unknown storage type %q", args[0])
			}
			f := a.rt.Facade
			s := f.Settings()
			s.StorageType = st
			if err := f.SaveSettings(cmd.Context(), s); err != nil {
				return err
			}
			view := storageView{StorageType: st, Mode: string(f.Mode())}
			for _, m := range f.Modes() {
				view.Available = append(view.Available, string(m))
			}
			return a.print(cmd, view)
		},
	}

	cmd.AddCommand(show, export, imp, setStorage)
	return cmd
}
