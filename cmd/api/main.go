package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/harentsoaR/clinic-booking-api/internal/config"
	"github.com/harentsoaR/clinic-booking-api/internal/handlers"
	"github.com/harentsoaR/clinic-booking-api/internal/middleware"
	"github.com/harentsoaR/clinic-booking-api/internal/models"
	"github.com/harentsoaR/clinic-booking-api/internal/schedule"
	"github.com/harentsoaR/clinic-booking-api/internal/services"
	"github.com/harentsoaR/clinic-booking-api/internal/store"
	"github.com/harentsoaR/clinic-booking-api/internal/utils"
)

func main() {
	rootCmd := &cobra.Command{
		Use:          "clinic-api",
		Short:        "Clinic appointment booking API",
		SilenceUsage: true,
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(indexesCmd())
	rootCmd.AddCommand(slotsCmd())
	rootCmd.AddCommand(createUserCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			inMemory, _ := cmd.Flags().GetBool("in-memory")
			return runServer(inMemory)
		},
	}
	cmd.Flags().Bool("in-memory", false, "Keep all data in process memory instead of MongoDB (development only)")
	return cmd
}

func runServer(inMemory bool) error {
	cfg, err := config.Load(!inMemory)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	logger := utils.NewLogger(cfg.Env, cfg.LogLevel)
	if inMemory && cfg.IsProduction() {
		return errors.New("--in-memory is not allowed in production")
	}

	loc, err := cfg.Location()
	if err != nil {
		return err
	}

	if cfg.SentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:         cfg.SentryDSN,
			Environment: cfg.Env,
		}); err != nil {
			return fmt.Errorf("init sentry: %w", err)
		}
		defer sentry.Flush(2 * time.Second)
		logger.Info().Msg("sentry error reporting enabled")
	}

	// --- Storage ---
	var stores *store.Stores
	if inMemory {
		stores = store.NewMemory().Stores()
		logger.Warn().Msg("using in-memory storage, data is lost on exit")
	} else {
		client, db, err := connectMongo(cfg)
		if err != nil {
			return err
		}
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = client.Disconnect(ctx)
		}()
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		err = store.EnsureIndexes(ctx, db)
		cancel()
		if err != nil {
			return err
		}
		stores = store.NewMongoStores(db)
		logger.Info().Str("database", cfg.MongoDatabase).Msg("connected to MongoDB")
	}

	// --- Services ---
	var publisher services.EventPublisher
	if cfg.KafkaEnabled() {
		publisher = services.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
		logger.Info().Strs("brokers", cfg.KafkaBrokers).Str("topic", cfg.KafkaTopic).Msg("publishing events to kafka")
	} else {
		publisher = services.NewLogPublisher(logger)
	}
	notifications := services.NewNotificationService(publisher, logger)
	defer func() {
		if err := notifications.Close(); err != nil {
			logger.Error().Err(err).Msg("failed to close event publisher")
		}
	}()

	sweeper := services.NewPaymentSweeper(stores, notifications, cfg.PaymentTTL, logger)
	if err := sweeper.Start(cfg.PaymentSweepSpec); err != nil {
		return err
	}
	defer sweeper.Stop()

	secret := cfg.JWTSecret
	if secret == "" {
		// Validate only lets this through in development.
		secret, err = randomSecret()
		if err != nil {
			return err
		}
		logger.Warn().Msg("JWT_SECRET is not set, using a random secret; tokens will not survive a restart")
	}
	tokens := utils.NewTokenManager(secret, cfg.JWTTTL)

	h := handlers.NewHandler(stores, notifications, tokens, loc, logger)
	h.WebhookToken = cfg.WebhookToken
	if h.WebhookToken == "" {
		logger.Warn().Msg("PAYMENT_WEBHOOK_TOKEN is not set, the payment webhook accepts unauthenticated calls")
	}

	// --- Gin Router ---
	if !cfg.IsDev() {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.ReportServerErrors())
	r.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORSOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", middleware.RequestIDHeader},
		ExposeHeaders:    []string{middleware.RequestIDHeader},
		AllowCredentials: true,
	}))
	r.GET("/healthz", func(c *gin.Context) {
		utils.SendSuccess(c, http.StatusOK, gin.H{"status": "ok"}, "")
	})
	h.RegisterRoutes(r)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("port", cfg.Port).Str("env", cfg.Env).Msg("starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case <-quit:
	}

	logger.Info().Msg("shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	logger.Info().Msg("server stopped")
	return nil
}

func connectMongo(cfg *config.Config) (*mongo.Client, *mongo.Database, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	client, err := store.Connect(ctx, cfg.MongoURI)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to MongoDB: %w", err)
	}
	return client, client.Database(cfg.MongoDatabase), nil
}

func randomSecret() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

func indexesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "indexes",
		Short: "Create the MongoDB indexes and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(true)
			if err != nil {
				return err
			}
			client, db, err := connectMongo(cfg)
			if err != nil {
				return err
			}
			defer client.Disconnect(context.Background())

			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			if err := store.EnsureIndexes(ctx, db); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Indexes ready on %s\n", cfg.MongoDatabase)
			return nil
		},
	}
}

func slotsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "slots",
		Short: "Print the daily slot templates",
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%-6s %-6s %s\n", "SLOT", "START", "END")
			for _, t := range schedule.Templates() {
				fmt.Fprintf(out, "%-6d %-6s %s\n", t.Index, t.Start, t.End)
			}
		},
	}
}

// createUserCmd bootstraps staff accounts; public registration only
// creates patients.
func createUserCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create-user",
		Short: "Create a user with any role",
		RunE: func(cmd *cobra.Command, args []string) error {
			email, _ := cmd.Flags().GetString("email")
			name, _ := cmd.Flags().GetString("name")
			password, _ := cmd.Flags().GetString("password")
			phone, _ := cmd.Flags().GetString("phone")
			role, _ := cmd.Flags().GetString("role")

			switch role {
			case models.RolePatient, models.RoleDoctor, models.RoleStaff, models.RoleAdmin:
			default:
				return fmt.Errorf("unknown role %q", role)
			}
			if email == "" || name == "" || len(password) < 8 {
				return errors.New("--email, --name and a --password of at least 8 characters are required")
			}

			cfg, err := config.Load(true)
			if err != nil {
				return err
			}
			client, db, err := connectMongo(cfg)
			if err != nil {
				return err
			}
			defer client.Disconnect(context.Background())

			hash, err := utils.HashPassword(password)
			if err != nil {
				return err
			}
			u := models.User{
				FullName: name,
				Email:    strings.ToLower(strings.TrimSpace(email)),
				Password: hash,
				Role:     role,
				Phone:    phone,
			}
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := store.NewMongoStores(db).Users.Create(ctx, &u); err != nil {
				if errors.Is(err, store.ErrDuplicate) {
					return fmt.Errorf("a user with email %s already exists", u.Email)
				}
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created %s %s (%s)\n", u.Role, u.Email, u.ID.Hex())
			return nil
		},
	}
	cmd.Flags().String("email", "", "Login email")
	cmd.Flags().String("name", "", "Full name")
	cmd.Flags().String("password", "", "Password, at least 8 characters")
	cmd.Flags().String("phone", "", "Phone number")
	cmd.Flags().String("role", models.RoleAdmin, "One of patient, doctor, staff, admin")
	return cmd
}
