package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"pulse-monitor/common/database"
	"pulse-monitor/internal/config"
	"pulse-monitor/internal/repository"

	"go.uber.org/zap"
)

// 查看某个病人的跳变审计记录（Postgres 审计表）
// 用法: pulse-jumps <patientId> [limit]
func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "usage: pulse-jumps <patientId> [limit]")
		os.Exit(2)
	}
	patientID := os.Args[1]

	limit := 20
	if len(os.Args) > 2 {
		n, err := strconv.Atoi(os.Args[2])
		if err != nil || n <= 0 {
			log.Fatalf("Invalid limit: %s", os.Args[2])
		}
		limit = n
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if cfg.Analyzer.AuditBackend != "postgres" {
		log.Fatalf("Audit backend is %s, only postgres can be listed", cfg.Analyzer.AuditBackend)
	}

	ctx := context.Background()
	db, err := database.NewPostgresDB(ctx, &cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	store := repository.NewPostgresJumpStore(db, cfg.Analyzer.Tables.Jumps, zap.NewNop())
	records, err := store.ListJumps(ctx, patientID, limit)
	if err != nil {
		log.Fatalf("Failed to list jumps: %v", err)
	}

	fmt.Println(strings.Repeat("=", 80))
	fmt.Printf("Jumps for patient %s (%s, latest %d)\n", patientID, cfg.Analyzer.Tables.Jumps, limit)
	fmt.Println(strings.Repeat("=", 80))

	if len(records) == 0 {
		fmt.Println("  (no records)")
		return
	}
	for _, r := range records {
		fmt.Printf("  %s  %4d -> %-4d  ts=%s  id=%s\n",
			r.RecordedAt.Format("2006-01-02 15:04:05"),
			r.PreviousValue,
			r.CurrentValue,
			r.Timestamp,
			r.RecordID,
		)
	}
	fmt.Printf("\nTotal: %d\n", len(records))
}
