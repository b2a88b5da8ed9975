package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/dgnsrekt/kitten-tts-server/internal/audio"
	"github.com/dgnsrekt/kitten-tts-server/internal/cache"
	"github.com/dgnsrekt/kitten-tts-server/internal/catalog"
	"github.com/dgnsrekt/kitten-tts-server/internal/tts/engines"
	"github.com/dgnsrekt/kitten-tts-server/utils"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

var (
	sayVoice  string
	sayModel  string
	sayOutput string
)

var sayCmd = &cobra.Command{
	Use:     "say [TEXT]",
	Short:   "Synthesize text to a WAV file without starting the server",
	Long:    paragraph(fmt.Sprintf("\n%s text with the configured engine and write it to a WAV file. Reads the text from stdin when no argument is given or the argument is %s.", keyword("Speak"), keyword("-"))),
	Example: paragraph("kitten-tts-server say 'Hello there' --voice Luna -o hello.wav\necho 'Hello' | kitten-tts-server say --engine mock"),
	Args:    cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		text, err := sayText(args)
		if err != nil {
			return err
		}

		scfg, err := serverConfig()
		if err != nil {
			return err
		}
		req := catalog.Request{Text: text, Voice: sayVoice, Model: sayModel}.WithDefaults()
		if err := req.Validate(scfg.MaxTextLength); err != nil {
			return err
		}

		ecfg, err := engineConfig()
		if err != nil {
			return err
		}
		engine, err := engines.New(ecfg)
		if err != nil {
			return fmt.Errorf("unable to create engine: %w", err)
		}
		defer engine.Close() //nolint:errcheck

		models := cache.NewModelCache(engine)
		defer models.Close() //nolint:errcheck

		start := time.Now()
		model, err := models.Get(cmd.Context(), req.Model)
		if err != nil {
			return err
		}
		samples, err := model.Generate(cmd.Context(), req.Text, req.Voice)
		if err != nil {
			return err
		}

		out := utils.ExpandPath(sayOutput)
		if err := audio.WriteFile(out, samples, catalog.SampleRate); err != nil {
			return err
		}

		format := audio.Format{AudioFormat: audio.FormatPCM, Channels: 1, SampleRate: catalog.SampleRate, BitsPerSample: 16}
		fmt.Printf("Wrote %s (%s of audio, %s, took %s)\n",
			out,
			format.Duration(len(samples)*format.BlockAlign()).Round(time.Millisecond),
			humanize.Bytes(uint64(len(samples)*format.BlockAlign())), //nolint:gosec
			time.Since(start).Round(time.Millisecond))
		return nil
	},
}

// sayText reads the text from the argument, or stdin for "-" or no argument.
func sayText(args []string) (string, error) {
	if len(args) == 1 && args[0] != "-" {
		return args[0], nil
	}
	b, err := io.ReadAll(os.Stdin)
	if err != nil {
		return "", fmt.Errorf("unable to read from stdin: %w", err)
	}
	text := strings.TrimSpace(string(b))
	if text == "" {
		return "", errors.New("no text given")
	}
	return text, nil
}

func init() {
	sayCmd.Flags().StringVar(&sayVoice, "voice", catalog.DefaultVoice, "voice to speak with")
	sayCmd.Flags().StringVar(&sayModel, "model", catalog.DefaultModel(), "model to synthesize with")
	sayCmd.Flags().StringVarP(&sayOutput, "output", "o", "output.wav", "WAV file to write")
}
