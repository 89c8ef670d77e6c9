package main

import (
	"context"
	"fmt"

	"ridebook/config"
	"ridebook/pkg/logger"
	"ridebook/storage/postgres"
)

func main() {
	cfg := config.Load()
	log := logger.New(cfg.ServiceName, cfg.LoggerLevel)
	pg, err := postgres.New(context.Background(), cfg, log)

	if err != nil {
		panic(err)
	}
	defer pg.Close()

	// CASCADE takes the ledger, chats, fan-out rows and templates with the
	// users. Order codes start again from AA0001.
	_, err = pg.GetPool().Exec(context.Background(),
		`TRUNCATE TABLE users, providers, orders, provider_orders, chats, messages, point_history, cleaner_templates CASCADE;
		ALTER SEQUENCE order_code_seq RESTART WITH 1`)
	if err != nil {
		log.Error(fmt.Sprintf("Failed to truncate tables: %v", err))
	} else {
		log.Info("Successfully truncated all ridebook tables.")
	}
}
