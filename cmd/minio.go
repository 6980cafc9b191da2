package cmd

import (
	"context"
	"fmt"
	"strconv"

	"tunevault/storage"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

var (
	minioPrefix string
	minioStats  bool
	minioDelete bool
)

var minioCmd = &cobra.Command{
	Use:   "minio",
	Short: "MinIO存储桶管理",
	Long:  `查看和管理MinIO存储桶中的文件，支持列出文件、查看统计信息、删除目录等功能。`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		fmt.Printf("MinIO配置: %s, Bucket: %s\n", cfg.MinioEndpoint, cfg.MinioBucket)

		store, err := storage.NewMinioStore(ctx, cfg)
		if err != nil {
			return fmt.Errorf("无法连接到MinIO: %w", err)
		}

		if minioDelete {
			if minioPrefix == "" {
				return fmt.Errorf("删除操作需要指定目录前缀")
			}
			n, err := store.DeletePrefix(ctx, minioPrefix)
			if err != nil {
				return err
			}
			fmt.Printf("已删除 %d 个对象 (前缀: %s)\n", n, minioPrefix)
			return nil
		}

		objects, err := store.List(ctx, minioPrefix)
		if err != nil {
			return err
		}

		if minioStats {
			stats := storage.Summarize(objects)
			rows := make([][]string, 0, len(stats.ByPrefix))
			for _, p := range stats.Prefixes() {
				ps := stats.ByPrefix[p]
				rows = append(rows, []string{p, strconv.FormatInt(ps.Objects, 10), humanize.Bytes(uint64(ps.Size))})
			}
			rows = append(rows, []string{"合计", strconv.FormatInt(stats.TotalObjects, 10), humanize.Bytes(uint64(stats.TotalSize))})
			fmt.Println(renderTable([]string{"Prefix", "Objects", "Size"}, rows, 1, 2))
			if !stats.LastModified.IsZero() {
				fmt.Printf("最近修改: %s\n", humanize.Time(stats.LastModified))
			}
			return nil
		}

		rows := make([][]string, 0, len(objects))
		for _, obj := range objects {
			rows = append(rows, []string{
				obj.Key,
				storage.InferKind(obj.Key),
				humanize.Bytes(uint64(obj.Size)),
				obj.LastModified.Format("2006-01-02 15:04:05"),
			})
		}
		fmt.Println(renderTable([]string{"Key", "Kind", "Size", "Modified"}, rows, 2))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(minioCmd)

	minioCmd.Flags().StringVarP(&minioPrefix, "prefix", "p", "", "按前缀过滤文件或指定要操作的目录")
	minioCmd.Flags().BoolVarP(&minioStats, "stats", "s", false, "显示存储桶统计信息")
	minioCmd.Flags().BoolVarP(&minioDelete, "delete", "d", false, "删除指定目录及其下的所有文件")

	minioCmd.Example = `  # 列出所有文件
  tunevault minio

  # 按前缀过滤文件
  tunevault minio -p "audio/"

  # 显示存储桶统计信息
  tunevault minio -s

  # 删除目录及其下的所有文件
  tunevault minio -d -p "covers/42/"`
}
