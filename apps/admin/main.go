package main

import (
	"context"
	"log"
	"os"

	"github.com/trezcool/academia/core"
	logsvc "github.com/trezcool/academia/services/logger"
	"github.com/trezcool/academia/storage/database"
)

func main() {
	conf := core.NewConfig()
	logger := logsvc.NewRollbarLogger(log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile), conf)
	logger.Enable(!conf.Debug)

	// set up DB
	ctx := context.Background()
	if err := database.CreateIfNotExist(ctx, conf); err != nil {
		logger.Fatal("creating database", err)
	}
	db, err := database.Open(conf)
	if err != nil {
		logger.Fatal("opening database", err)
	}
	defer db.Close()
	if err = database.Ping(ctx, db); err != nil {
		logger.Fatal("pinging database", err)
	}

	// start CLI
	cli := &commandLine{
		db:      db,
		usrRepo: database.NewUserRepository(db),
	}
	if err = cli.rootCommand().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}
