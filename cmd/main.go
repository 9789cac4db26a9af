package main

import (
	"context"
	"fmt"
	"log"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"betmarket/internal/account"
	"betmarket/internal/api"
	"betmarket/internal/bet"
	"betmarket/internal/config"
	"betmarket/internal/database"
	"betmarket/internal/logger"
	"betmarket/internal/market"
	"betmarket/internal/metrics"
	"betmarket/internal/settlement"
	"betmarket/internal/wallet"
)

func main() {

	if err := godotenv.Load(); err != nil {
		fmt.Println("Error loading .env file", err)
	}

	cfg := config.Load()

	zlog, err := logger.New(cfg.ServiceName, cfg.Env)
	if err != nil {
		log.Fatalln(err)
	}
	defer zlog.Sync()

	db, err := database.Connect(cfg.DBConnStr)
	if err != nil {
		zlog.Fatal("failed to connect to database", zap.Error(err))
	}

	if cfg.AutoMigrate {
		if err := db.AutoMigrate(
			&account.User{},
			&account.WalletHistory{},
			&market.Event{},
			&market.Outcome{},
			&bet.Bet{},
			&bet.PendingCommission{},
			&bet.EventReferral{},
			&wallet.Transaction{},
		); err != nil {
			zlog.Fatal("auto migration failed", zap.Error(err))
		}
		zlog.Info("auto migration completed")
	}

	ledger := account.NewLedger(db)
	betService := bet.NewService(db, ledger, cfg.PlatformAccountID, zlog)
	marketService := market.NewService(db, zlog)
	walletService := wallet.NewService(db, ledger, zlog)
	engine := settlement.NewEngine(db, ledger, zlog)

	metricsSrv := metrics.StartServer(cfg.MetricsPort, func(ctx context.Context) error {
		sqlDB, err := db.DB()
		if err != nil {
			return err
		}
		return sqlDB.PingContext(ctx)
	})
	defer metricsSrv.Close()

	server := api.NewServer(betService, marketService, walletService, engine, ledger, zlog)
	router := server.Router([]byte(cfg.JWTSecret))

	zlog.Info("server started", zap.String("port", cfg.HTTPPort))
	if err := router.Run(":" + cfg.HTTPPort); err != nil {
		zlog.Fatal("server stopped", zap.Error(err))
	}
}
