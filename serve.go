package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/beka-birhanu/mazesync/api"
	gameapi "github.com/beka-birhanu/mazesync/api/game"
	api_i "github.com/beka-birhanu/mazesync/api/i"
	"github.com/beka-birhanu/mazesync/api/identity"
	"github.com/beka-birhanu/mazesync/config"
	"github.com/beka-birhanu/mazesync/infrastruture/logger"
	"github.com/beka-birhanu/mazesync/infrastruture/repo"
	"github.com/beka-birhanu/mazesync/infrastruture/store"
	"github.com/beka-birhanu/mazesync/infrastruture/telemetry"
	"github.com/beka-birhanu/mazesync/infrastruture/token"
	"github.com/beka-birhanu/mazesync/service"
	"github.com/beka-birhanu/mazesync/service/i"
	"github.com/charmbracelet/lipgloss"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.opentelemetry.io/otel/trace"
)

// Global variables for dependencies
var (
	appLogger        *logger.Logger
	redisClient      *redis.Client
	mongoClient      *mongo.Client
	sqliteRepo       *repo.SQLiteRoundRepo
	gameStore        i.GameStore
	roundRepo        i.RoundRepo
	jwtTokenizer     i.Tokenizer
	tracer           trace.Tracer
	traceShutdown    func(context.Context) error
	gameSession      *service.Session
	gameController   api_i.Controller
	playerController api_i.Controller
	router           *api.Router
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	Long: `Start the HTTP API. Configuration comes from the environment, an
optional .env file and the YAML file named by CONFIG_FILE.`,
	Run: runServe,
}

func newLogger(prefix string, color lipgloss.Color) *logger.Logger {
	l, err := logger.New(prefix, color, os.Stdout)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Creating %s logger: %v\n", prefix, err)
		os.Exit(1)
	}
	l.SetDebug(config.Envs.Debug)
	return l
}

func initTelemetry(ctx context.Context) {
	if !config.Envs.OtelEnabled {
		tracer = telemetry.NoopTracer()
		return
	}
	var err error
	traceShutdown, err = telemetry.Setup(ctx)
	if err != nil {
		appLogger.Error(fmt.Sprintf("Setting up telemetry: %v", err))
		os.Exit(1)
	}
	tracer = telemetry.Tracer("session")
	appLogger.Info("Telemetry initialized")
}

func initRedis(ctx context.Context) {
	redisClient = redis.NewClient(&redis.Options{
		Addr:     config.Envs.RedisAddr,
		Password: config.Envs.RedisPassword,
		DB:       config.Envs.RedisDB,
	})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		appLogger.Error(fmt.Sprintf("Redis ping failed: %v", err))
		os.Exit(1)
	}
	appLogger.Info("Connected to Redis")
}

func initStore(ctx context.Context) {
	switch config.Envs.StoreBackend {
	case config.StoreRedis:
		initRedis(ctx)
		var err error
		gameStore, err = store.NewRedisStore(redisClient, config.Envs.StorePrefix, newLogger("STORE", config.ColorCyan))
		if err != nil {
			appLogger.Error(fmt.Sprintf("Creating redis store: %v", err))
			os.Exit(1)
		}
	default:
		gameStore = store.NewMemoryStore()
	}
	appLogger.Info(fmt.Sprintf("Game store initialized (%s)", config.Envs.StoreBackend))
}

func initMongo(ctx context.Context) {
	uri := fmt.Sprintf("mongodb://%s:%s@%s:%v", config.Envs.DBUser, config.Envs.DBPassword, config.Envs.DBHost, config.Envs.DBPort)

	clientOptions := options.Client().ApplyURI(uri)
	var err error
	mongoClient, err = mongo.Connect(ctx, clientOptions)
	if err != nil {
		appLogger.Error(fmt.Sprintf("Failed to connect to MongoDB: %v", err))
		os.Exit(1)
	}
	if err = mongoClient.Ping(ctx, nil); err != nil {
		appLogger.Error(fmt.Sprintf("MongoDB ping failed: %v", err))
		os.Exit(1)
	}
	appLogger.Info("Connected to MongoDB")
}

func initRoundRepo(ctx context.Context) {
	switch config.Envs.RoundBackend {
	case config.RoundsMongo:
		initMongo(ctx)
		roundRepo = repo.NewRoundRepo(mongoClient, config.Envs.DBName, "rounds")
	case config.RoundsSQLite:
		var err error
		sqliteRepo, err = repo.OpenSQLiteRoundRepo(config.Envs.SQLitePath)
		if err != nil {
			appLogger.Error(fmt.Sprintf("Opening round history: %v", err))
			os.Exit(1)
		}
		roundRepo = sqliteRepo
	default:
		appLogger.Warning("Round history disabled")
		return
	}
	appLogger.Info(fmt.Sprintf("Round repository initialized (%s)", config.Envs.RoundBackend))
}

func initJWTTokenizer() {
	jwtTokenizer = token.NewJwtService(config.Envs.JWTSecret, config.Envs.JWTIssuer)
	appLogger.Info("JWT Tokenizer initialized")
}

func initSession() {
	var err error
	gameSession, err = service.NewSession(service.Config{
		Store:  gameStore,
		Rounds: roundRepo,
		Width:  config.Envs.MazeWidth,
		Height: config.Envs.MazeHeight,
		Logger: newLogger("SESSION", config.ColorMagenta),
		Tracer: tracer,
	})
	if err != nil {
		appLogger.Error(fmt.Sprintf("Creating session: %v", err))
		os.Exit(1)
	}
	appLogger.Info("Session initialized")
}

func initControllers() {
	gameController = gameapi.NewGameController(gameSession)
	ttl := time.Duration(config.Envs.TokenTTLMinutes) * time.Minute
	playerController = identity.NewPlayerController(gameSession, jwtTokenizer, ttl)
	appLogger.Info("Controllers initialized")
}

func initRouter(t i.Tokenizer) {
	gin.SetMode(config.Envs.GinMode)
	router = api.NewRouter(api.Config{
		Addr:                    fmt.Sprintf("%s:%v", config.Envs.HostIP, config.Envs.RESTPort),
		BaseURL:                 "/api",
		Controllers:             []api_i.Controller{gameController, playerController},
		AuthorizationMiddleware: identity.Authoriz(t),
		Logger:                  newLogger("HTTP", config.ColorBlue),
	})
	appLogger.Info("Router initialized")
}

func cleanup() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if traceShutdown != nil {
		_ = traceShutdown(ctx)
	}
	if mongoClient != nil {
		_ = mongoClient.Disconnect(ctx)
	}
	if sqliteRepo != nil {
		_ = sqliteRepo.Close()
	}
	if redisClient != nil {
		_ = redisClient.Close()
	}
}

func runServe(_ *cobra.Command, _ []string) {
	config.MustLoad()
	appLogger = newLogger("APP", config.ColorGreen)
	appLogger.Debug(fmt.Sprintf("Config: maze %dx%d, store %s (prefix %q), rounds %s, otel %t",
		config.Envs.MazeWidth, config.Envs.MazeHeight, config.Envs.StoreBackend,
		config.Envs.StorePrefix, config.Envs.RoundBackend, config.Envs.OtelEnabled))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	defer cleanup()

	initCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	initTelemetry(initCtx)
	initStore(initCtx)
	initRoundRepo(initCtx)
	cancel()

	initJWTTokenizer()
	initSession()
	initControllers()
	initRouter(jwtTokenizer)

	sessionErr := make(chan error, 1)
	go func() {
		sessionErr <- gameSession.Start(ctx)
	}()

	select {
	case <-gameSession.Ready():
	case err := <-sessionErr:
		appLogger.Error(fmt.Sprintf("Starting session: %v", err))
		return
	case <-ctx.Done():
		return
	}

	appLogger.Info(fmt.Sprintf("Listening on %s:%d", config.Envs.HostIP, config.Envs.RESTPort))
	if err := router.Run(ctx); err != nil {
		appLogger.Error(fmt.Sprintf("Running server: %v", err))
	}
	stop()
	if err := <-sessionErr; err != nil {
		appLogger.Error(fmt.Sprintf("Session stopped: %v", err))
	}
	appLogger.Info("Shut down")
}
