package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"tunevault/core/ingest"
	"tunevault/db"
	"tunevault/repository"
	"tunevault/storage"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

var reconcileDryRun bool

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "清理没有记录引用的孤立文件",
	Long: `列出 audio/ 与 covers/ 下的对象，删除未被任何记录引用且超过宽限期
(RECONCILE_GRACE) 的文件。可重复执行。`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		gdb, err := db.ConnectGormDB(cfg)
		if err != nil {
			return err
		}
		defer db.CloseGormDB()

		store, err := storage.NewMinioStore(ctx, cfg)
		if err != nil {
			return err
		}

		records := repository.NewGormRecordRepository(gdb, false)
		report, err := ingest.NewReconciler(records, store, cfg.ReconcileGrace).Sweep(ctx, reconcileDryRun)
		if err != nil {
			return err
		}
		printSweep(report)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(reconcileCmd)
	reconcileCmd.Flags().BoolVar(&reconcileDryRun, "dry-run", false, "只列出孤立文件，不删除")
	reconcileCmd.Example = `  # 预览将被删除的文件
  tunevault reconcile --dry-run

  # 执行清理
  tunevault reconcile`
}

func printSweep(report *ingest.SweepReport) {
	if len(report.Orphans) > 0 {
		rows := make([][]string, 0, len(report.Orphans))
		var total int64
		for _, o := range report.Orphans {
			status := "deleted"
			switch {
			case report.DryRun:
				status = "would delete"
			case !o.Deleted:
				status = "failed"
			}
			total += o.Size
			rows = append(rows, []string{o.Key, humanize.Bytes(uint64(o.Size)), humanize.Time(o.LastModified), status})
		}
		fmt.Println(renderTable([]string{"Key", "Size", "Modified", "Status"}, rows, 1))
		fmt.Printf("孤立文件总大小: %s\n", humanize.Bytes(uint64(total)))
	}
	fmt.Println(renderTable(
		[]string{"Scanned", "Orphans", "Within grace", "Failed"},
		[][]string{{
			strconv.Itoa(report.Scanned),
			strconv.Itoa(len(report.Orphans)),
			strconv.Itoa(report.Young),
			strconv.Itoa(report.Failed),
		}},
		0, 1, 2, 3,
	))
}
