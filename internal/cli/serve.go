package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"krishi-mitra/internal/chat"
	"krishi-mitra/internal/config"
	"krishi-mitra/internal/domain/entities"
	Iservices "krishi-mitra/internal/domain/interfaces/services"
	"krishi-mitra/internal/infra/handlers"
	"krishi-mitra/internal/infra/logger"
	"krishi-mitra/internal/infra/repository"
	"krishi-mitra/internal/infra/routes"
	"krishi-mitra/internal/infra/services"
	"krishi-mitra/internal/middleware"
	client "krishi-mitra/internal/pkg"
)

const shutdownTimeout = 5 * time.Second

func newServeCommand() *cobra.Command {
	var port string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Host chat sessions over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if port != "" {
				cfg.Port = port
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return serve(ctx, cfg)
		},
	}

	cmd.Flags().StringVarP(&port, "port", "p", "", "listen port (overrides PORT)")
	return cmd
}

func serve(ctx context.Context, cfg *config.Config) error {
	log := logger.NewLogger(ctx, cfg.LogLevel, cfg.LogJSON)

	var archive *services.ConversationArchiveService
	if cfg.MongoURI != "" {
		mongoClient, err := client.MongoClient(ctx, cfg.MongoURI)
		if err != nil {
			return err
		}
		defer func() {
			if err := mongoClient.Disconnect(context.Background()); err != nil {
				log.Warn(fmt.Sprintf("Failed to disconnect MongoDB: %v", err))
			}
		}()

		conversationDB := mongoClient.Database(cfg.MongoDatabase)
		conversationRepo := repository.NewMongoRepository[entities.ConversationRecord](conversationDB)
		archive = services.NewConversationArchiveService(conversationRepo, context.Background(), log)
		log.Info("Transcript archive enabled", logrus.Fields{"database": cfg.MongoDatabase})
	}

	var chatbotService Iservices.IChatbotService = services.NewChatbotService(cfg.ChatbotAPIBase, cfg.ChatbotTimeout, log)

	manager := chat.NewManager(func(clientID string, lang chat.Language) *chat.Session {
		opts := chat.Options{
			ClientID:       clientID,
			Language:       lang,
			Chatbot:        chatbotService,
			Logger:         log,
			AutoSpeakDelay: cfg.AutoSpeakDelay,
			SpeechRate:     cfg.SpeechRate,
		}
		if archive != nil {
			opts.OnClose = archive.ArchiveSnapshot
		}
		return chat.NewSession(opts)
	}, log)

	var archiveService Iservices.IConversationArchiveService
	if archive != nil {
		archiveService = archive
	}
	httpHandlers := handlers.NewHttpHandlers(log, manager, archiveService)
	eventsHandler := handlers.NewEventsHandler(log, httpHandlers, nil)

	router := mux.NewRouter()
	router.Use(middleware.LoggingMiddleware(log))
	routes.NewRoutes(router, httpHandlers, eventsHandler).Init()

	server := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info(fmt.Sprintf("Server is running on port %s", cfg.Port))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error(fmt.Sprintf("Error running HTTP server: %s", err))
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		err := server.Shutdown(shutdownCtx)
		manager.CloseAll()
		if err != nil {
			log.Error(fmt.Sprintf("Server forced to shutdown: %v", err))
			return err
		}
		log.Info("Server stopped gracefully.")
		return nil
	})

	return g.Wait()
}
