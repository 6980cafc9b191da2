package db

import (
	"fmt"
	"net"
	"time"

	"tunevault/config"
	"tunevault/logger"
	"tunevault/model"

	mysqldriver "github.com/go-sql-driver/mysql"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// fullTextIndex 覆盖 title/artist/album/album_artist/composers/comment/lyrics 的全文索引
const fullTextIndex = "ft_catalog_text"

// GormDB 是 GORM 数据库连接实例
var GormDB *gorm.DB

// DSN 根据配置构造 MySQL 连接串
func DSN(cfg *config.Config) string {
	dc := mysqldriver.NewConfig()
	dc.User = cfg.DBUser
	dc.Passwd = cfg.DBPassword
	dc.Net = "tcp"
	dc.Addr = net.JoinHostPort(cfg.DBHost, cfg.DBPort)
	dc.DBName = cfg.DBName
	dc.ParseTime = true
	dc.Loc = time.Local
	// UPDATE 的 RowsAffected 按匹配行计算，用于判断记录是否存在
	dc.ClientFoundRows = true
	dc.Params = map[string]string{"charset": "utf8mb4"}
	return dc.FormatDSN()
}

// ConnectGormDB 建立 GORM 数据库连接
func ConnectGormDB(cfg *config.Config) (*gorm.DB, error) {
	level := gormlogger.Warn
	if cfg.LogLevel == "debug" {
		level = gormlogger.Info
	}

	gdb, err := gorm.Open(mysql.Open(DSN(cfg)), &gorm.Config{
		Logger: gormlogger.Default.LogMode(level),
		// 禁用外键约束
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect database with GORM: %w", err)
	}

	// 获取底层的 sql.DB 并配置连接池
	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	GormDB = gdb
	logger.Info("connected to MySQL", logger.String("host", cfg.DBHost), logger.String("database", cfg.DBName))
	return gdb, nil
}

// CloseGormDB 关闭 GORM 数据库连接
func CloseGormDB() error {
	if GormDB == nil {
		return nil
	}
	sqlDB, err := GormDB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Models 需要迁移的全部模型
func Models() []interface{} {
	return []interface{}{&model.User{}, &model.Record{}, &model.ShareLink{}}
}

// Migrate 自动迁移表结构并确保全文索引存在。
// 返回值表示全文检索是否可用；索引创建失败时降级为子串匹配，不视为错误。
func Migrate(gdb *gorm.DB, wantFullText bool) (bool, error) {
	if err := gdb.AutoMigrate(Models()...); err != nil {
		return false, fmt.Errorf("failed to auto migrate models: %w", err)
	}
	if !wantFullText {
		logger.Info("full-text search disabled by configuration, using substring matching")
		return false, nil
	}

	if gdb.Migrator().HasIndex(&model.Record{}, fullTextIndex) {
		return true, nil
	}
	err := gdb.Exec("CREATE FULLTEXT INDEX " + fullTextIndex +
		" ON catalog_records (title, artist, album, album_artist, composers, comment, lyrics)").Error
	if err != nil {
		logger.Warn("could not create full-text index, search degrades to substring matching",
			logger.ErrorField(err))
		return false, nil
	}
	logger.Info("full-text index created", logger.String("index", fullTextIndex))
	return true, nil
}

// HasFullText 检查全文索引是否已存在（server 启动时不执行迁移的场景）
func HasFullText(gdb *gorm.DB) bool {
	return gdb.Migrator().HasIndex(&model.Record{}, fullTextIndex)
}
