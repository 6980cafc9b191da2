package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"tunevault/cache"
	"tunevault/core/audio"
	"tunevault/core/auth"
	"tunevault/core/ingest"
	"tunevault/core/metadata"
	"tunevault/core/search"
	"tunevault/core/share"
	"tunevault/db"
	"tunevault/logger"
	"tunevault/repository"
	"tunevault/server"
	"tunevault/storage"

	"github.com/spf13/cobra"
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "启动 tunevault HTTP 服务",
	Long:  `连接 MySQL、MinIO 和可选的 Redis，迁移表结构后启动 HTTP API 服务。`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return runServer(ctx)
	},
}

var serverSkipMigrate bool

func init() {
	rootCmd.AddCommand(serverCmd)
	serverCmd.Flags().BoolVar(&serverSkipMigrate, "skip-migrate", false, "启动时不迁移表结构（已单独执行 tunevault migrate）")
}

func runServer(ctx context.Context) error {
	tokens, err := auth.NewTokens(cfg.JWTSecret, cfg.JWTTTL)
	if err != nil {
		return err
	}

	gdb, err := db.ConnectGormDB(cfg)
	if err != nil {
		return err
	}
	defer db.CloseGormDB()

	var fullText bool
	if serverSkipMigrate {
		// 表结构由 migrate 命令维护，这里只检测全文索引是否存在
		fullText = cfg.CatalogFullText && db.HasFullText(gdb)
	} else if fullText, err = db.Migrate(gdb, cfg.CatalogFullText); err != nil {
		return err
	}

	store, err := storage.NewMinioStore(ctx, cfg)
	if err != nil {
		return err
	}

	catalogCache, checks, err := buildCache()
	if err != nil {
		return err
	}
	defer db.CloseRedis()
	checks["mysql"] = func(ctx context.Context) error {
		sqlDB, err := gdb.DB()
		if err != nil {
			return err
		}
		return sqlDB.PingContext(ctx)
	}
	checks["minio"] = func(ctx context.Context) error {
		_, err := store.Exists(ctx, ".healthz")
		return err
	}

	if err := os.MkdirAll(cfg.UploadTmpDir, 0o755); err != nil {
		return fmt.Errorf("create upload dir: %w", err)
	}

	records := repository.NewGormRecordRepository(gdb, fullText)
	users := repository.NewGormUserRepository(gdb)
	links := repository.NewGormShareRepository(gdb)

	extractor := metadata.NewTagExtractor(audio.NewFFprobe(cfg.FFprobePath))
	pipeline := ingest.NewPipeline(records, store, extractor, catalogCache)
	searcher := search.NewService(records, catalogCache)
	shares := share.NewService(links, records, store)
	accounts := auth.NewService(users, tokens)

	handler := server.NewAPIHandler(pipeline, searcher, shares, accounts, tokens, server.Options{
		UploadMaxBytes: cfg.UploadMaxBytes(),
		UploadTmpDir:   cfg.UploadTmpDir,
		HealthChecks:   checks,
	})

	logger.Info("tunevault starting",
		logger.String("addr", cfg.HTTPAddr),
		logger.Bool("fullText", fullText),
		logger.Bool("redis", cfg.RedisEnabled))
	return server.Run(ctx, cfg.HTTPAddr, server.NewRouter(handler))
}

// buildCache 启用 Redis 时使用 Redis，否则使用进程内 LRU
func buildCache() (cache.CatalogCache, map[string]server.HealthCheck, error) {
	checks := map[string]server.HealthCheck{}
	if !cfg.RedisEnabled {
		return cache.NewMemoryCache(cfg.CacheSize, cfg.CacheTTL), checks, nil
	}
	client, err := db.ConnectRedis(cfg)
	if err != nil {
		return nil, nil, err
	}
	checks["redis"] = func(ctx context.Context) error { return client.Ping(ctx).Err() }
	return cache.NewRedisCache(client, cfg.CacheTTL), checks, nil
}
