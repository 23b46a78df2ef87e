package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/mhmpets/mhm_server/config"
	"github.com/mhmpets/mhm_server/internal/pkg/jwt"
)

var (
	subject = flag.String("subject", "admin", "Token subject, usually the operator name")
	hours   = flag.Int("hours", 0, "Token lifetime in hours, defaults to admin.expire_hours")
)

// 签发管理接口使用的 Bearer token
func main() {
	flag.Parse()

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.yaml"
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if cfg.Admin.JWTSecret == "" {
		log.Fatal("admin.jwt_secret is empty, nothing to sign with")
	}

	expire := *hours
	if expire <= 0 {
		expire = cfg.Admin.ExpireHours
	}

	token, err := jwt.GenerateToken(*subject, cfg.Admin.JWTSecret, expire)
	if err != nil {
		log.Fatalf("Failed to generate token: %v", err)
	}
	fmt.Println(token)
}
