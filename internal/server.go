package internal

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/IBM/pgxpoolprometheus"
	"github.com/getsentry/sentry-go"
	"github.com/go-redis/redis/v8"
	"github.com/go-redis/redis_rate/v9"
	"github.com/gorilla/mux"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gorilla/mux/otelmux"

	"github.com/stridept/stridept-backend/internal/achievements"
	"github.com/stridept/stridept-backend/internal/adherence"
	"github.com/stridept/stridept-backend/internal/auth"
	"github.com/stridept/stridept-backend/internal/checkins"
	"github.com/stridept/stridept-backend/internal/config"
	"github.com/stridept/stridept-backend/internal/db"
	"github.com/stridept/stridept-backend/internal/exercises"
	"github.com/stridept/stridept-backend/internal/goals"
	"github.com/stridept/stridept-backend/internal/middleware"
	"github.com/stridept/stridept-backend/internal/program"
	"github.com/stridept/stridept-backend/internal/stats"
	"github.com/stridept/stridept-backend/internal/store"
	"github.com/stridept/stridept-backend/internal/telemetry/metrics"
	"github.com/stridept/stridept-backend/internal/telemetry/tracing"
	"github.com/stridept/stridept-backend/internal/users"
	"github.com/stridept/stridept-backend/pkg"
)

type Server struct {
	httpServer        *http.Server
	metricsHttpServer *http.Server
	versionInfo       string

	config      *config.Config
	dbPool      *pgxpool.Pool
	docStore    store.Client
	redisClient *redis.Client

	authService  *auth.Service
	loginChecker *auth.LoginChecker

	// metrics
	metricsManager *metrics.Manager
	promRegistry   *prometheus.Registry
	otelShutdown   func()
}

type NewServerParams struct {
	Config                  *config.Config
	VersionInfo             string
	RedisPassword           string
	HoneycombTracingEnabled bool
}

func NewServer(
	ctx context.Context,
	params NewServerParams,
) (*Server, error) {
	dbPool, err := db.NewDBPool(ctx, db.NewDBPoolParams{
		DBHost:         params.Config.PostgresHost,
		DBPort:         params.Config.PostgresPort,
		DBName:         params.Config.PostgresDBName,
		TracingEnabled: params.HoneycombTracingEnabled,
	})
	if err != nil {
		return nil, fmt.Errorf("new db pool: %w", err)
	}

	if err := dbPool.Ping(ctx); err != nil {
		log.Warnf("failed to ping db: %s", err)
	}

	docStore := store.NewPsqlStore(dbPool)
	if err := docStore.CreateSchema(ctx); err != nil {
		return nil, fmt.Errorf("create store schema: %w", err)
	}

	pgxpoolCollector := pgxpoolprometheus.NewCollector(
		dbPool,
		map[string]string{"db_name": "stridept_db"},
	)
	promRegistry := metrics.SetupPrometheus(pgxpoolCollector)
	metricsManager := metrics.NewManager("stridept", "main", promRegistry)
	metricsManager.GaugeLifeSignal.Set(0)

	rdb := redis.NewClient(&redis.Options{
		Addr:     net.JoinHostPort(params.Config.RedisHost, params.Config.RedisPort),
		Password: params.RedisPassword,
		DB:       0, // use default DB
	})

	rdbStatus := rdb.Ping(ctx)
	if err := rdbStatus.Err(); err != nil {
		log.Errorf("--> failed to ping redis: %s", err)
	} else {
		log.Debugf("redis ping: %s", rdbStatus.Val())
	}

	authService := auth.NewService(auth.DefaultTTL, rdb)
	go func() {
		for range time.Tick(time.Hour * 8) {
			authService.ScanAndClean(ctx)
		}
	}()

	// use honeycomb distro to setup OpenTelemetry SDK
	otelShutdown, err := tracing.HoneycombSetup(params.HoneycombTracingEnabled, "stridept-backend")
	if err != nil {
		return nil, err
	}

	return &Server{
		config:      params.Config,
		versionInfo: params.VersionInfo,
		dbPool:      dbPool,
		docStore:    docStore,
		redisClient: rdb,

		authService:  authService,
		loginChecker: auth.NewLoginChecker(auth.DefaultTTL, rdb),

		// telemetry
		metricsManager: metricsManager,
		promRegistry:   promRegistry,
		otelShutdown:   otelShutdown,
	}, nil
}

func (s *Server) routerSetup() *mux.Router {
	r := mux.NewRouter()
	r.Use(otelmux.Middleware("main-router"))

	usersRepo := users.NewRepo(s.docStore)
	programsRepo := program.NewRepo(s.docStore)
	achievementsRepo := achievements.NewRepo(s.docStore)
	exercisesRepo := exercises.NewRepo(s.docStore)
	goalsRepo := goals.NewRepo(s.docStore)
	checkinsRepo := checkins.NewRepo(s.docStore)

	statsService := stats.NewService(usersRepo, programsRepo, s.redisClient)
	adherenceService := adherence.NewService(
		usersRepo, programsRepo, achievementsRepo, exercisesRepo,
		statsService, s.metricsManager,
	)

	r.HandleFunc("/", func(w http.ResponseWriter, _ *http.Request) {
		pkg.WriteTextResponseOK(w, "stridept backend")
	}).Methods("GET").Name("root")
	r.HandleFunc("/version", func(w http.ResponseWriter, _ *http.Request) {
		pkg.WriteTextResponseOK(w, s.versionInfo)
	}).Methods("GET").Name("version")

	reqRateLimiter := redis_rate.NewLimiter(s.redisClient)
	authHandler := auth.NewHandler(s.authService, usersRepo)
	loginRateLimit := middleware.RateLimit(
		reqRateLimiter, "login", s.config.LoginRateLimitAllowedPerMin, s.metricsManager,
	)
	r.Handle("/api/login",
		loginRateLimit(http.HandlerFunc(authHandler.HandleLogin)),
	).Methods("POST", "OPTIONS").Name("login")
	r.HandleFunc("/api/logout", authHandler.HandleLogout).Methods("POST", "OPTIONS").Name("logout")

	usersHandler := users.NewHandler(usersRepo, programsRepo)
	r.HandleFunc("/api/users/register", usersHandler.HandleRegister).Methods("POST", "OPTIONS").Name("register")
	r.HandleFunc("/api/users/me", usersHandler.HandleGetMe).Methods("GET", "OPTIONS").Name("get-me")
	r.HandleFunc("/api/users/me", usersHandler.HandleUpdateMe).Methods("PUT", "OPTIONS").Name("update-me")
	r.HandleFunc("/api/users/me/therapist", usersHandler.HandleAssignTherapist).Methods("POST", "OPTIONS").Name("assign-therapist")
	r.HandleFunc("/api/therapist/patients", usersHandler.HandleGetPatients).Methods("GET", "OPTIONS").Name("get-patients")
	r.HandleFunc("/api/therapist/patients/{patientId}", usersHandler.HandleGetPatient).Methods("GET", "OPTIONS").Name("get-patient")

	adherenceHandler := adherence.NewHandler(adherenceService, usersRepo)
	r.HandleFunc("/api/program", adherenceHandler.HandleGetProgram).Methods("GET", "OPTIONS").Name("get-program")
	r.HandleFunc("/api/program/order", adherenceHandler.HandleReorderProgram).Methods("PUT", "OPTIONS").Name("reorder-program")
	r.HandleFunc("/api/program/exercises/{exerciseId}/complete", adherenceHandler.HandleCompleteExercise).Methods("POST", "OPTIONS").Name("complete-exercise")
	r.HandleFunc("/api/program/exercises/{exerciseId}/skip", adherenceHandler.HandleSkipExercise).Methods("POST", "OPTIONS").Name("skip-exercise")
	r.HandleFunc("/api/program/exercises/{exerciseId}/defer", adherenceHandler.HandleDeferExercise).Methods("POST", "OPTIONS").Name("defer-exercise")
	r.HandleFunc("/api/therapist/patients/{patientId}/program", adherenceHandler.HandleAssignProgram).Methods("PUT", "OPTIONS").Name("assign-program")

	statsHandler := stats.NewHandler(statsService)
	r.HandleFunc("/api/stats", statsHandler.HandleGetStats).Methods("GET", "OPTIONS").Name("get-stats")
	r.HandleFunc("/api/stats/weekly", statsHandler.HandleGetWeeklyProgress).Methods("GET", "OPTIONS").Name("get-weekly-progress")

	achievementsHandler := achievements.NewHandler(achievementsRepo, statsService)
	r.HandleFunc("/api/achievements", achievementsHandler.HandleGetAchievements).Methods("GET", "OPTIONS").Name("get-achievements")

	goalsHandler := goals.NewHandler(goalsRepo, usersRepo)
	r.HandleFunc("/api/goals", goalsHandler.HandleGetGoals).Methods("GET", "OPTIONS").Name("get-goals")
	r.HandleFunc("/api/goals/assign", goalsHandler.HandleAssignGoals).Methods("POST", "OPTIONS").Name("assign-goals")
	r.HandleFunc("/api/therapist/patients/{patientId}/goals/{goalId}", goalsHandler.HandleSetLockStatus).Methods("PUT", "OPTIONS").Name("set-goal-lock-status")

	checkinsHandler := checkins.NewHandler(checkinsRepo, s.metricsManager)
	r.HandleFunc("/api/checkins", checkinsHandler.HandleAddCheckIn).Methods("POST", "OPTIONS").Name("add-checkin")
	r.HandleFunc("/api/checkins", checkinsHandler.HandleGetCheckIns).Methods("GET", "OPTIONS").Name("list-checkins")
	r.HandleFunc("/api/checkins/today", checkinsHandler.HandleGetTodayStatus).Methods("GET", "OPTIONS").Name("checkin-today-status")
	r.HandleFunc("/api/checkins/stats", checkinsHandler.HandleGetStats).Methods("GET", "OPTIONS").Name("checkin-stats")

	exercisesHandler := exercises.NewHandler(exercisesRepo)
	r.HandleFunc("/api/exercises", exercisesHandler.HandleGetExercises).Methods("GET", "OPTIONS").Name("list-exercises")
	r.HandleFunc("/api/exercises/{exerciseId}", exercisesHandler.HandleGetExercise).Methods("GET", "OPTIONS").Name("get-exercise")

	// all the rest - unhandled paths
	r.HandleFunc("/{unknown}", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}).Methods("GET", "POST", "PUT", "OPTIONS").Name("unknown")

	authMiddleware := middleware.NewAuthMiddlewareHandler(s.loginChecker)

	r.Use(middleware.PanicRecovery(s.metricsManager))
	r.Use(middleware.LogRequest())
	r.Use(middleware.RequestMetrics(s.metricsManager))
	r.Use(middleware.Cors())
	r.Use(authMiddleware.AuthCheck())
	r.Use(middleware.DrainAndCloseRequest())

	return r
}

func (s *Server) Serve(_ context.Context, host string, port int) {
	router := s.routerSetup()

	ipAndPort := net.JoinHostPort(host, strconv.Itoa(port))
	s.httpServer = &http.Server{
		Handler:      router,
		Addr:         ipAndPort,
		WriteTimeout: time.Minute,
		ReadTimeout:  time.Minute,
		ConnState:    s.connStateMetrics,
	}

	metricsRouter := mux.NewRouter()
	metricsRouter.Handle("/metrics", promhttp.HandlerFor(
		s.promRegistry,
		promhttp.HandlerOpts{},
	))
	metricsAddr := net.JoinHostPort(s.config.PrometheusMetricsHost, s.config.PrometheusMetricsPort)
	s.metricsHttpServer = &http.Server{
		Addr:    metricsAddr,
		Handler: metricsRouter,
	}

	go func() {
		log.Infof(" > server listening on: [%s]", ipAndPort)
		err := s.httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("main service, listen and serve: %s", err)
		}
	}()

	go func() {
		log.Debugf(" > metrics listening on: [%s]", metricsAddr)
		err := s.metricsHttpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("metrics service, listen and serve: %s", err)
		}
	}()

	s.metricsManager.GaugeLifeSignal.Set(1)
}

func (s *Server) GracefulShutdown() {
	log.Debug("graceful shutdown initiated ...")

	s.metricsManager.GaugeLifeSignal.Set(0)

	s.otelShutdown()
	log.Trace("otel shut down ...")

	if s.redisClient != nil {
		if err := s.redisClient.Close(); err != nil {
			log.Errorf("failed to close redis client conn: %s", err)
		}
	}

	if s.dbPool != nil {
		log.Debugln("closing db pool ...")
		s.dbPool.Close() // blocking operation
		log.Debugln("db pool closed")
	}

	if ok := sentry.Flush(5 * time.Second); ok {
		log.Debugf("sentry flush ok: %t", ok)
	}

	maxWaitDuration := time.Second * 15
	ctx, timeoutCancel := context.WithTimeout(context.Background(), maxWaitDuration)
	defer timeoutCancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		log.Error(" >>> failed to gracefully shutdown http server")
	}
	log.Warnln("server shut down")

	if err := s.metricsHttpServer.Shutdown(ctx); err != nil {
		log.Error(" >>> failed to gracefully shutdown metrics http server")
	}
	log.Warnln("metrics server shut down")
}

func (s *Server) connStateMetrics(_ net.Conn, state http.ConnState) {
	switch state {
	case http.StateNew:
		s.metricsManager.GaugeRequests.Add(1)
	case http.StateClosed:
		s.metricsManager.GaugeRequests.Add(-1)
	default:
		// do nothing
	}
}
