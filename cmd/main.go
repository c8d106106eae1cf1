package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/klauspost/compress/gzhttp"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/ukydev/worx-notes/internal/auth"
	"github.com/ukydev/worx-notes/internal/changefeed"
	"github.com/ukydev/worx-notes/internal/config"
	"github.com/ukydev/worx-notes/internal/db"
	"github.com/ukydev/worx-notes/internal/feedback"
	"github.com/ukydev/worx-notes/internal/handlers"
	"github.com/ukydev/worx-notes/internal/middleware"
	"github.com/ukydev/worx-notes/internal/notify"
	"github.com/ukydev/worx-notes/internal/prefs"
	"golang.org/x/sync/errgroup"
)

var envFile string

var rootCmd = &cobra.Command{
	Use:           "worx-notes",
	Short:         "Repair sheet records for the shop floor",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the web app, JSON API and live updates",
	RunE:  runServe,
}

var keygenCmd = &cobra.Command{
	Use:   "keygen",
	Short: "Mint an API key signed with JWT_SECRET",
	Long: `Mint an API key for the JSON API.

The anon role is the public key the web app and seeder use. The service role
passes every role check.`,
	RunE: runKeygen,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "Optional dotenv file read before the environment")

	keygenCmd.Flags().String("role", string(auth.RoleAnon), "Key role (anon or service)")
	keygenCmd.Flags().String("subject", "public", "Key subject")
	keygenCmd.Flags().Duration("ttl", 0, "Key lifetime, 0 for no expiry")
	keygenCmd.Flags().String("secret", "", "Signing secret (default: JWT_SECRET)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(keygenCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.WithError(err).Fatal("worx-notes failed")
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(envFile)
	if err != nil {
		return err
	}
	log.SetFormatter(&log.JSONFormatter{})
	log.SetLevel(cfg.LogLevel)

	authService, err := auth.NewService(cfg.JWTSecret)
	if err != nil {
		return err
	}
	if _, err := authService.ValidateToken(cfg.PublicAPIKey); err != nil {
		return fmt.Errorf("PUBLIC_API_KEY is not signed with JWT_SECRET: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client, err := db.ConnectMongo(ctx, cfg.MongoURI)
	if err != nil {
		return fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	defer client.Disconnect(context.Background())
	log.WithField("database", cfg.MongoDB).Info("Connected to MongoDB")

	repo, err := db.NewMongoRepository(client.Database(cfg.MongoDB))
	if err != nil {
		return err
	}

	channel := notify.NewChannel()
	sessions := notify.NewSessions(channel, notify.DefaultTTL, notify.DefaultSessionIdle)
	defer sessions.Close()
	channel.Subscribe(func(n notify.Notification) {
		log.WithFields(log.Fields{"severity": n.Severity, "description": n.Description}).Info(n.Title)
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           newHandler(cfg, repo, channel, sessions, authService),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.WithField("port", cfg.Port).Info("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if cfg.MQTT.BrokerURL != "" {
		pub, err := changefeed.ConnectMQTT(changefeed.MQTTOptions{
			BrokerURL: cfg.MQTT.BrokerURL,
			ClientID:  cfg.MQTT.ClientID,
			Username:  cfg.MQTT.Username,
			Password:  cfg.MQTT.Password,
			QoS:       1,
		})
		if err != nil {
			log.WithError(err).Warn("MQTT change feed disabled")
		} else {
			defer pub.Close()
			bridge := changefeed.NewBridge(repo, pub, cfg.MQTT.Topic)
			g.Go(func() error {
				if err := bridge.Run(gctx); err != nil {
					log.WithError(err).Warn("MQTT change feed stopped")
				}
				return nil
			})
		}
	}

	return g.Wait()
}

// newHandler assembles routes and middleware.
func newHandler(cfg *config.Config, repo db.Repository, channel *notify.Channel, sessions *notify.Sessions, authService *auth.Service) http.Handler {
	mailer := newMailer(cfg.Feedback)
	if mailer == nil {
		log.Warn("No RESEND_API_KEY or SMTP_HOST set, suggestions cannot be emailed")
	}
	server := handlers.NewServer(repo, channel, sessions, handlers.Options{
		Feedback: feedback.NewService(mailer, cfg.Feedback.From, cfg.Feedback.To),
		Prefs:    prefs.NewStore(cfg.SecureCookie),
	})
	routes := server.Routes(middleware.NewAuthMiddleware(authService), middleware.NewRateLimitMiddleware(cfg.TrustedProxies...))
	return middleware.Logging(middleware.CORS(cfg.CORSOrigin)(compress(routes)))
}

// compress gzips everything except websocket upgrades.
func compress(next http.Handler) http.Handler {
	gz := gzhttp.GzipHandler(next)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/ws/") {
			next.ServeHTTP(w, r)
			return
		}
		gz.ServeHTTP(w, r)
	})
}

// newMailer prefers Resend over SMTP and returns nil when neither is set.
func newMailer(cfg config.FeedbackConfig) feedback.Mailer {
	switch {
	case cfg.ResendAPIKey != "":
		return feedback.NewResendMailer(cfg.ResendAPIKey)
	case cfg.SMTPHost != "":
		return &feedback.SMTPMailer{Config: feedback.SMTPConfig{
			Host:       cfg.SMTPHost,
			Port:       cfg.SMTPPort,
			Username:   cfg.SMTPUsername,
			Password:   cfg.SMTPPassword,
			TLSEnabled: cfg.SMTPTLS,
		}}
	default:
		return nil
	}
}

func runKeygen(cmd *cobra.Command, args []string) error {
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("load %s: %w", envFile, err)
	}
	role, _ := cmd.Flags().GetString("role")
	subject, _ := cmd.Flags().GetString("subject")
	ttl, _ := cmd.Flags().GetDuration("ttl")
	secret, _ := cmd.Flags().GetString("secret")
	if secret == "" {
		secret = os.Getenv("JWT_SECRET")
	}

	authService, err := auth.NewService(secret)
	if err != nil {
		return err
	}
	key, err := authService.IssueKey(auth.Role(role), subject, ttl)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), key)
	return nil
}
