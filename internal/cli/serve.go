package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/nexus-im/estatechat/internal/auth"
	"github.com/nexus-im/estatechat/internal/database"
	"github.com/nexus-im/estatechat/internal/httpapi"
	"github.com/nexus-im/estatechat/internal/messaging"
	"github.com/nexus-im/estatechat/internal/realtime"
	"github.com/nexus-im/estatechat/store/conversation"
	"github.com/nexus-im/estatechat/store/listing"
	"github.com/nexus-im/estatechat/store/message"
	"github.com/nexus-im/estatechat/store/user"
)

const shutdownTimeout = 10 * time.Second

// ServeCmd returns the serve command, which runs the HTTP API and the
// websocket hub until interrupted.
func ServeCmd() *cobra.Command {
	var (
		addr    string
		migrate bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the messaging API",
		Long: `Run the messaging HTTP API and the realtime websocket endpoint.

Examples:
  nexus serve                  # listen on $ADDR (default :8080)
  nexus serve --addr :9000     # override the listen address
  nexus serve --migrate        # apply the schema before serving`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if err := cfg.RequireSecret(); err != nil {
				return err
			}
			if cmd.Flags().Changed("addr") {
				cfg.Addr = addr
			}

			log, err := newLogger(cfg)
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			db, err := openDB(ctx, cfg)
			if err != nil {
				return err
			}
			defer func() {
				if err := db.Close(); err != nil {
					log.Warn("error closing db", zap.Error(err))
				}
			}()
			log.Info("connected to database")

			if migrate {
				if err := database.Migrate(ctx, db); err != nil {
					return err
				}
				log.Info("schema applied")
			}

			hub := realtime.NewHub(log.Named("realtime"))
			go hub.Run(ctx)

			authn := auth.NewAuthenticator(cfg.JWTSecret, cfg.JWTIssuer, cfg.TokenTTL)
			service := messaging.NewService(messaging.Deps{
				Conversations: conversation.NewSQLStore(db),
				Messages:      message.NewSQLStore(db),
				Directory:     user.NewSQLStore(db),
				Catalog:       listing.NewSQLStore(db),
				Notifier:      hub,
				Logger:        log.Named("messaging"),
			}, messaging.Options{
				MaxContentLength: cfg.MessageMaxLength,
				DefaultPageSize:  cfg.PageSizeDefault,
				MaxPageSize:      cfg.PageSizeMax,
			})

			api := httpapi.NewServer(service, authn, realtime.ServeWs(hub, authn), log.Named("http"))
			server := &http.Server{
				Addr:              cfg.Addr,
				Handler:           api.Handler(),
				ReadHeaderTimeout: 10 * time.Second,
			}

			errCh := make(chan error, 1)
			go func() {
				log.Info("server starting", zap.String("addr", cfg.Addr))
				errCh <- server.ListenAndServe()
			}()

			select {
			case err := <-errCh:
				if !errors.Is(err, http.ErrServerClosed) {
					return fmt.Errorf("listen: %w", err)
				}
				return nil
			case <-ctx.Done():
			}

			log.Info("shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return server.Shutdown(shutdownCtx)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", ":8080", "http service address")
	cmd.Flags().BoolVar(&migrate, "migrate", false, "apply the schema before serving")

	return cmd
}
