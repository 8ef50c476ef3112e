package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/E-PPAW-TI503P-2025/PRKPAW-20230140217/internal/config"
	"github.com/E-PPAW-TI503P-2025/PRKPAW-20230140217/internal/domain/attendance"
	"github.com/E-PPAW-TI503P-2025/PRKPAW-20230140217/internal/domain/user"
	appHTTP "github.com/E-PPAW-TI503P-2025/PRKPAW-20230140217/internal/handler/http"
	"github.com/E-PPAW-TI503P-2025/PRKPAW-20230140217/internal/pkg/database"
	"github.com/E-PPAW-TI503P-2025/PRKPAW-20230140217/internal/pkg/jwt"
	"github.com/E-PPAW-TI503P-2025/PRKPAW-20230140217/internal/pkg/metrics"
	"github.com/E-PPAW-TI503P-2025/PRKPAW-20230140217/internal/pkg/storage"
	"github.com/E-PPAW-TI503P-2025/PRKPAW-20230140217/internal/repository/memory"
	"github.com/E-PPAW-TI503P-2025/PRKPAW-20230140217/internal/repository/postgresql"
	attendanceService "github.com/E-PPAW-TI503P-2025/PRKPAW-20230140217/internal/service/attendance"
	"github.com/E-PPAW-TI503P-2025/PRKPAW-20230140217/internal/service/evidence"
	reportService "github.com/E-PPAW-TI503P-2025/PRKPAW-20230140217/internal/service/report"
	"github.com/go-chi/httplog/v3"
)

const version = "v1.0.0"

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Println("Error loading config:", err)
		os.Exit(1)
	}

	logFormat := httplog.SchemaECS.Concise(cfg.IsProduction())
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level:       cfg.SlogLevel(),
		ReplaceAttr: logFormat.ReplaceAttr,
	})).With(
		slog.String("app", "presensi"),
		slog.String("version", version),
		slog.String("env", cfg.App.Env),
	)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var (
		tx             database.Transactor
		attendanceRepo attendance.AttendanceRepository
		userRepo       user.UserRepository
	)
	switch cfg.Database.Driver {
	case config.DriverPostgres:
		db, err := database.NewPostgreSQLDB(ctx, cfg.DatabaseURL(), database.PoolConfig{})
		if err != nil {
			fatal("Error connecting to database", err)
		}
		defer db.Close()

		if cfg.Database.Migrate {
			if err := postgresql.Migrate(ctx, db); err != nil {
				fatal("Error migrating database", err)
			}
		}

		tx = postgresql.NewTransactor(db)
		attendanceRepo = postgresql.NewAttendanceRepository(db)
		userRepo = postgresql.NewUserRepository(db)
	case config.DriverMemory:
		slog.Warn("using in-memory attendance store; records are lost on restart")
		store := memory.NewStore()
		tx, attendanceRepo, userRepo = store, store, store
	}

	var fileStorage storage.FileStorage
	uploadsDir := ""
	switch cfg.Storage.Type {
	case "local":
		fileStorage, err = storage.NewLocalStorage(
			cfg.Storage.BasePath,
			cfg.Storage.BaseURL,
		)
		if err != nil {
			fatal("Failed to initialize local storage", err)
		}
		uploadsDir = cfg.Storage.BasePath
	default:
		fatal("Unsupported storage type", fmt.Errorf("%q", cfg.Storage.Type))
	}

	appMetrics := metrics.New()
	JWTService := jwt.NewJWTService(cfg.JWT.Secret, cfg.JWT.AccessExpiration)

	evidenceSvc := evidence.NewEvidenceService(fileStorage, cfg.App.Location, evidence.Options{
		Required: cfg.Evidence.Required,
		MaxBytes: cfg.Evidence.MaxBytes,
	}, appMetrics)
	attendanceSvc := attendanceService.NewAttendanceService(
		tx,
		attendanceRepo,
		userRepo,
		evidenceSvc,
		appMetrics,
		cfg.App.Location,
		time.Now,
	)
	reportSvc := reportService.NewReportService(attendanceRepo, evidenceSvc, cfg.App.Location, time.Now)

	attendanceHandler := appHTTP.NewAttendanceHandler(attendanceSvc, cfg.Evidence.MaxBytes)
	reportHandler := appHTTP.NewReportHandler(reportSvc)

	router := appHTTP.NewRouter(
		appHTTP.RouterOptions{
			Logger:         logger,
			LogLevel:       cfg.SlogLevel(),
			AllowedOrigins: cfg.App.AllowedOrigins,
			Metrics:        appMetrics.Handler(),
			UploadsDir:     uploadsDir,
		},
		JWTService,
		attendanceHandler,
		reportHandler,
	)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.App.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		slog.Info("server running", "addr", srv.Addr, "timezone", cfg.App.Timezone, "db_driver", cfg.Database.Driver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			fatal("Server error", err)
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("graceful shutdown failed", "error", err)
	}
}

func fatal(msg string, err error) {
	slog.Error(msg, "error", err)
	os.Exit(1)
}
