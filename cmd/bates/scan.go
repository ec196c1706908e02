package main

import (
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Veraticus/bates-must-flow/internal/bates"
	"github.com/Veraticus/bates-must-flow/internal/cli"
	"github.com/Veraticus/bates-must-flow/internal/config"
	"github.com/Veraticus/bates-must-flow/internal/engine"
	"github.com/Veraticus/bates-must-flow/internal/pdftext"
)

func scanCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scan FILE.pdf...",
		Short: "Read and validate the Bates stamps of local PDFs",
		Long: `Extract the footer text of every page, report the stamp found on each page
and judge whether the stamps are consecutive. Nothing is renamed or moved.

With --disc the canonical filename a consistent document would be given is
printed as well.`,
		Args: cobra.MinimumNArgs(1),
		RunE: runScan,
	}

	cmd.Flags().String("disc", "", "disc number used to preview the canonical filename")
	cmd.Flags().Float64("region", 0, "bottom fraction of the page to read (default from pdf.region_bottom)")
	return cmd
}

func runScan(cmd *cobra.Command, args []string) error {
	disc, _ := cmd.Flags().GetString("disc")
	if cmd.Flags().Changed("region") {
		region, _ := cmd.Flags().GetFloat64("region")
		viper.Set("pdf.region_bottom", region)
	}

	cfg, err := config.LoadEngineConfig(viper.GetViper())
	if err != nil {
		return err
	}
	scanner, err := bates.NewScanner(cfg.BatesPattern)
	if err != nil {
		return err
	}
	extractor := pdftext.NewExtractor(slog.Default())
	composer := bates.NewComposer(cfg.Width)
	fs := afero.NewOsFs()
	out := cmd.OutOrStdout()

	failed := 0
	for _, path := range args {
		data, err := afero.ReadFile(fs, path)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", path, err)
		}
		doc, err := extractor.Open(data)
		if err != nil {
			fmt.Fprintln(out, cli.FormatError(fmt.Sprintf("%s: %v", path, err)))
			failed++
			continue
		}

		readings, err := engine.ReadStamps(doc, scanner, cfg.Region)
		if err != nil {
			fmt.Fprintln(out, cli.FormatError(fmt.Sprintf("%s: %v", path, err)))
			failed++
			continue
		}
		verdict := bates.Validate(readings, doc.NumPages())

		fmt.Fprintln(out, cli.FormatTitle(filepath.Base(path)))
		fmt.Fprintln(out, cli.FormatScan(readings, verdict))
		if verdict.Consistent() && disc != "" {
			fmt.Fprintln(out, cli.FormatInfo("Would be filed as "+composer.Compose(verdict, disc, filepath.Base(path))))
		}
		if !verdict.Consistent() {
			failed++
		}
		fmt.Fprintln(out)
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d file(s) failed validation", failed, len(args))
	}
	return nil
}
