package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/kitten-tts-server/internal/catalog"
	"github.com/dgnsrekt/kitten-tts-server/internal/hub"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var precacheCmd = &cobra.Command{
	Use:     "precache [MODEL...]",
	Short:   "Download model weights ahead of time",
	Long:    paragraph(fmt.Sprintf("\n%s the weights of every known model (or only the ones named) into the models directory, so the first request for a model does not wait on the network.", keyword("Download"))),
	Example: paragraph("kitten-tts-server precache\nkitten-tts-server precache KittenML/kitten-tts-nano-0.8"),
	RunE: func(cmd *cobra.Command, args []string) error {
		models := args
		if len(models) == 0 {
			models = catalog.Models()
		}
		for _, id := range models {
			if !catalog.IsModel(id) {
				return fmt.Errorf("unknown model: %s", id)
			}
		}

		client, err := hub.NewClient(hub.Config{
			Endpoint:          viper.GetString("precache.endpoint"),
			Root:              modelsDir(),
			RequestsPerMinute: viper.GetInt("precache.requests_per_minute"),
		})
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		for _, id := range models {
			fmt.Printf("Downloading %s ...\n", id)
			res, err := client.Download(ctx, id)
			if err != nil {
				return fmt.Errorf("unable to download %s: %w", id, err)
			}
			log.Debug("Model cached", "model", id, "dir", res.Dir, "revision", res.Revision)
			fmt.Printf("  Done: %s (%d downloaded, %d already present, %s)\n",
				id, res.Downloaded, res.Skipped, humanize.Bytes(uint64(res.Bytes))) //nolint:gosec
		}

		fmt.Println("All models pre-cached in", modelsDir())
		return nil
	},
}
