package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/ayusman/tinsel/internal/gallery"
	"github.com/ayusman/tinsel/internal/store"
)

func importCommand() *cobra.Command {
	var title string

	cmd := &cobra.Command{
		Use:   "import <image>...",
		Short: "Add photos to the tree",
		Long:  "Copy JPEG, PNG or WebP images into the data directory and add them to the tree. --title applies to every file; without it the file name is used.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			st, err := store.New(cfg.DBPath())
			if err != nil {
				return fmt.Errorf("failed to initialize store: %w", err)
			}
			defer st.Close()

			im := gallery.NewImporter(st, cfg.PhotoDir())
			failed := 0
			for _, path := range args {
				name := title
				if name == "" {
					name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
				}
				p, err := im.ImportFile(path, name)
				if err != nil {
					log.Error().Err(err).Str("path", path).Msg("import failed")
					failed++
					continue
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", p.ID, p.Title)
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d imports failed", failed, len(args))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "Photo title")
	return cmd
}

func photosCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "photos",
		Short: "List photos on the tree",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			st, err := store.New(cfg.DBPath())
			if err != nil {
				return fmt.Errorf("failed to initialize store: %w", err)
			}
			defer st.Close()

			photos, err := st.Photos().List()
			if err != nil {
				return err
			}
			if len(photos) == 0 {
				fmt.Fprintln(os.Stderr, "No photos yet. Add some with: tinsel import <image>")
				return nil
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tTITLE\tSIZE\tTAGS")
			for _, p := range photos {
				fmt.Fprintf(w, "%s\t%s\t%dx%d\t%s\n", p.ID, p.Title, p.Width, p.Height, strings.Join(p.Tags, ","))
			}
			return w.Flush()
		},
	}
}
