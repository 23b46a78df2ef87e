package main

import (
	"context"
	"flag"
	"log"
	"os"
	"strings"
	"time"

	"github.com/mhmpets/mhm_server/config"
	"github.com/mhmpets/mhm_server/internal/database"
	"github.com/mhmpets/mhm_server/internal/repository"
)

var (
	dryRun = flag.Bool("dry-run", true, "Dry run mode, only count expired verification codes")
)

func main() {
	flag.Parse()

	log.Println("🧹 Starting verification code cleanup...")
	log.Printf("Mode: dry-run=%v", *dryRun)

	// 加载配置
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.yaml"
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// 连接数据库
	db, err := database.NewMySQL(&cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	codeRepo := repository.NewVerificationRepository(db)
	now := time.Now().UTC()

	expired, err := codeRepo.CountExpired(ctx, now)
	if err != nil {
		log.Fatalf("Failed to count expired codes: %v", err)
	}

	deleted := int64(0)
	if !*dryRun {
		deleted, err = codeRepo.DeleteExpired(ctx, now)
		if err != nil {
			log.Fatalf("Failed to delete expired codes: %v", err)
		}
	}

	// 输出统计
	log.Println(strings.Repeat("=", 60))
	log.Println("📊 Cleanup Summary")
	log.Println(strings.Repeat("=", 60))
	log.Printf("Expired codes: %d", expired)
	log.Printf("Deleted codes: %d", deleted)
	if *dryRun {
		log.Println("⚠️  DRY RUN MODE - No codes were actually deleted")
		log.Println("   Run with -dry-run=false to actually delete them")
	} else {
		log.Println("✅ Cleanup completed!")
	}
	log.Println(strings.Repeat("=", 60))
}
