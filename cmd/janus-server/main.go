package main

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/BrandonDHaskell/janus/internal/config"
	"github.com/BrandonDHaskell/janus/internal/db"
	"github.com/BrandonDHaskell/janus/internal/health"
	"github.com/BrandonDHaskell/janus/internal/httpapi"
	"github.com/BrandonDHaskell/janus/internal/janus/bus"
	"github.com/BrandonDHaskell/janus/internal/janus/bus/memory"
	"github.com/BrandonDHaskell/janus/internal/janus/bus/redisbus"
	"github.com/BrandonDHaskell/janus/internal/janus/correlate"
	"github.com/BrandonDHaskell/janus/internal/janus/liveness"
	"github.com/BrandonDHaskell/janus/internal/janus/service"
	"github.com/BrandonDHaskell/janus/internal/janus/store"
	memstore "github.com/BrandonDHaskell/janus/internal/janus/store/memory"
	"github.com/BrandonDHaskell/janus/internal/janus/store/sqlite"
	"github.com/BrandonDHaskell/janus/internal/janus/verify"
)

type stores struct {
	doors    store.DoorStore
	subjects store.SubjectStore
	grants   store.GrantStore
	schedule store.ScheduleStore
	events   store.AccessEventStore
	ping     func(ctx context.Context) error
	close    func()
}

func main() {
	logger := log.New(os.Stdout, "janus-server ", log.LstdFlags|log.LUTC)

	cfg, err := config.FromEnv()
	if err != nil {
		logger.Fatalf("config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Stores
	st, err := openStores(ctx, cfg, logger)
	if err != nil {
		logger.Fatalf("store: %v", err)
	}
	defer st.close()

	// Bus
	b, busPing, err := openBus(ctx, cfg, logger)
	if err != nil {
		logger.Fatalf("bus: %v", err)
	}
	defer b.Close()

	codec, err := correlate.CodecByName(cfg.BusCodec)
	if err != nil {
		logger.Fatalf("bus codec: %v", err)
	}
	broker := correlate.NewBroker(b, codec, logger)
	if err := broker.Start(ctx); err != nil {
		logger.Fatalf("broker: %v", err)
	}
	defer broker.Close()

	// Verification provider
	var provider verify.Provider
	switch cfg.Provider {
	case "twilio":
		provider, err = verify.NewTwilio(verify.TwilioConfig{
			AccountSID: cfg.TwilioAccountSID,
			AuthToken:  cfg.TwilioAuthToken,
			ServiceSID: cfg.TwilioVerifySID,
		})
		if err != nil {
			logger.Fatalf("twilio: %v", err)
		}
	default:
		logger.Printf("using static verification code (dev only)")
		provider = verify.Static{Code: cfg.StaticOTPCode}
	}

	if cfg.Responder {
		responder := verify.NewResponder(b, codec, provider, verify.ResponderConfig{}, logger)
		if err := responder.Start(ctx); err != nil {
			logger.Fatalf("responder: %v", err)
		}
		defer responder.Stop()
	}

	challenger := verify.NewChallenger(provider, cfg.OTPSendsPerMinute, logger)
	go challenger.RunSweeper(ctx, 5*time.Minute)

	// Liveness
	detector := liveness.DefaultConfig()
	detector.Threshold = cfg.EARThreshold
	detector.ConsecFrames = cfg.EARConsecFrames
	detector.MinBlinks = cfg.MinBlinks
	detector.Adaptive = cfg.AdaptiveEAR
	detector.TextureThreshold = cfg.TextureThreshold
	sessions, err := liveness.NewSessions(liveness.SessionsConfig{
		Detector: detector,
		Timeout:  cfg.LivenessTimeout,
	}, logger)
	if err != nil {
		logger.Fatalf("liveness: %v", err)
	}
	go sessions.RunSweeper(ctx, 30*time.Second)

	// Audit
	audit := service.NewAuditSink(st.events, 0, logger)
	defer audit.Close()

	pruner := service.NewAuditPruner(st.events, service.PrunerConfig{
		RetentionDays: cfg.AuditRetentionDays,
		IntervalHours: cfg.PruneIntervalHours,
	}, logger)
	pruner.Start(ctx)
	defer pruner.Stop()

	// Services
	admin := service.NewAdminService(st.subjects, st.grants, st.schedule, st.events, b, codec, logger)
	if cfg.ScheduleFile != "" {
		days, err := config.LoadScheduleFile(cfg.ScheduleFile)
		if err != nil {
			logger.Fatalf("schedule: %v", err)
		}
		if err := admin.LoadSchedule(ctx, days); err != nil {
			logger.Fatalf("schedule: %v", err)
		}
		logger.Printf("schedule: loaded %d day(s) from %s", len(days), cfg.ScheduleFile)
	}

	access := service.NewAccessService(service.AccessConfig{
		Location:      cfg.Location,
		VerifyTimeout: cfg.VerifyTimeout,
		FaceThreshold: cfg.FaceMatchThreshold,
	}, service.AccessDeps{
		Doors:      service.NewDoorRegistry(st.doors),
		Subjects:   st.subjects,
		Grants:     st.grants,
		Schedule:   st.schedule,
		Verifier:   broker,
		Challenger: challenger,
		Liveness:   sessions,
		Audit:      audit,
		Logger:     logger,
	})

	if cfg.AdminToken == "" {
		logger.Printf("admin API disabled (JANUS_ADMIN_TOKEN not set)")
	}

	// HTTP
	srv := httpapi.NewServer(httpapi.Dependencies{
		Logger:        logger,
		Addr:          cfg.HTTPAddr,
		AccessService: access,
		AdminService:  admin,
		Liveness:      sessions,
		Location:      cfg.Location,
		AdminToken:    cfg.AdminToken,
	})

	go func() {
		logger.Printf("listening on %s", cfg.HTTPAddr)
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Printf("server error: %v", err)
			stop()
		}
	}()

	// gRPC health
	if cfg.GRPCAddr != "" {
		hs := health.New([]health.Probe{
			{Name: "janus.bus", Check: busPing},
			{Name: "janus.store", Check: st.ping},
		}, logger)
		lis, err := net.Listen("tcp", cfg.GRPCAddr)
		if err != nil {
			logger.Fatalf("grpc listen: %v", err)
		}
		go hs.Run(ctx, 10*time.Second)
		go func() {
			logger.Printf("grpc health on %s", cfg.GRPCAddr)
			if err := hs.Serve(lis); err != nil {
				logger.Printf("grpc error: %v", err)
				stop()
			}
		}()
		defer hs.Stop()
	}

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
}

func openStores(ctx context.Context, cfg config.Config, logger *log.Logger) (*stores, error) {
	if cfg.Store == "memory" {
		subjects := memstore.NewSubjectStore()
		return &stores{
			doors:    memstore.NewDoorStore(defaultDoors(cfg.KnownDoors)),
			subjects: subjects,
			grants:   subjects,
			schedule: memstore.NewScheduleStore(),
			events:   memstore.NewAccessEventStore(),
			ping:     func(context.Context) error { return nil },
			close:    func() {},
		}, nil
	}

	sqlDB, err := db.Open(ctx, db.Config{Path: cfg.DBPath, Env: cfg.Env})
	if err != nil {
		return nil, err
	}
	if cfg.Env == "dev" || len(cfg.KnownDoors) > 0 {
		if err := db.SeedDev(ctx, sqlDB, db.SeedDevOptions{
			KnownDoors:   cfg.KnownDoors,
			WeekdayHours: cfg.Env == "dev" && cfg.ScheduleFile == "",
		}); err != nil {
			_ = sqlDB.Close()
			return nil, err
		}
	}
	logger.Printf("sqlite store at %s", cfg.DBPath)

	writer := db.NewWorker(sqlDB)
	return &stores{
		doors:    sqlite.NewDoorStore(sqlDB, writer),
		subjects: sqlite.NewSubjectStore(sqlDB, writer),
		grants:   sqlite.NewGrantStore(sqlDB, writer),
		schedule: sqlite.NewScheduleStore(sqlDB, writer),
		events:   sqlite.NewAccessEventStore(sqlDB, writer),
		ping:     sqlDB.PingContext,
		close: func() {
			writer.Close()
			closeDB(sqlDB, logger)
		},
	}, nil
}

func closeDB(sqlDB *sql.DB, logger *log.Logger) {
	if err := sqlDB.Close(); err != nil {
		logger.Printf("close db: %v", err)
	}
}

func openBus(ctx context.Context, cfg config.Config, logger *log.Logger) (bus.Bus, func(context.Context) error, error) {
	if cfg.Bus == "redis" {
		rb, err := redisbus.Dial(ctx, redisbus.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		}, logger)
		if err != nil {
			return nil, nil, err
		}
		logger.Printf("redis bus at %s", cfg.RedisAddr)
		return rb, rb.Ping, nil
	}
	return memory.New(logger), func(context.Context) error { return nil }, nil
}

func defaultDoors(doors []string) []string {
	if len(doors) == 0 {
		return []string{"door-001"}
	}
	return doors
}
