package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"krishi-mitra/internal/chat"
	"krishi-mitra/internal/config"
	"krishi-mitra/internal/infra/logger"
	"krishi-mitra/internal/infra/provider"
	"krishi-mitra/internal/infra/services"
)

func newChatCommand() *cobra.Command {
	var (
		language string
		noSpeech bool
		verbose  bool
	)

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Talk to the assistant in the terminal",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			lang, ok := chat.ParseLanguage(language)
			if !ok {
				return fmt.Errorf("unknown language %q", language)
			}

			// stdout belongs to the conversation
			log := logger.NewDiscardLogger()
			if verbose {
				log = logger.NewWriterLogger(os.Stderr, "debug")
			}

			opts := chat.Options{
				ClientID:       "terminal",
				Language:       lang,
				Chatbot:        services.NewChatbotService(cfg.ChatbotAPIBase, cfg.ChatbotTimeout, log),
				Logger:         log,
				AutoSpeakDelay: cfg.AutoSpeakDelay,
				SpeechRate:     cfg.SpeechRate,
			}
			if !noSpeech {
				var synth provider.ISpeechProvider = provider.NewEspeakProvider(cfg.TTSCommand, log)
				if synth.Available() {
					opts.SpeechOutput = synth
					log.Debug(fmt.Sprintf("Speaking replies with %s", synth.Name()))
				}
			}

			session := chat.NewSession(opts)
			defer session.Close()

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "Type /help for commands.")
			return NewTerminal(session, out).Run(cmd.Context(), cmd.InOrStdin())
		},
	}

	cmd.Flags().StringVarP(&language, "language", "l", "en", "starting language (en or te)")
	cmd.Flags().BoolVar(&noSpeech, "no-speech", false, "do not read replies aloud")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "log to stderr")
	return cmd
}
