package cmd

import (
	"fmt"

	"tunevault/db"

	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "迁移数据库表结构",
	Long:  `创建或更新 users、catalog_records、share_links 表，并在启用时创建全文索引。`,
	RunE: func(cmd *cobra.Command, args []string) error {
		gdb, err := db.ConnectGormDB(cfg)
		if err != nil {
			return err
		}
		defer db.CloseGormDB()

		fullText, err := db.Migrate(gdb, cfg.CatalogFullText)
		if err != nil {
			return err
		}
		mode := "子串匹配（降级模式）"
		if fullText {
			mode = "全文索引"
		}
		fmt.Printf("迁移完成，搜索模式: %s\n", mode)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
