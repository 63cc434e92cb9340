package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"

	"github.com/kulmistechsolutions/kulmis-acadmy-LMS/core"
	logsvc "github.com/kulmistechsolutions/kulmis-acadmy-LMS/services/logger"
	"github.com/kulmistechsolutions/kulmis-acadmy-LMS/storage/database"
	sqlxrepos "github.com/kulmistechsolutions/kulmis-acadmy-LMS/storage/database/sqlx"
)

func main() {
	conf := core.NewConfig()
	logger := logsvc.NewRollbarLogger(logsvc.NewZapLogger(conf).Named("admin"), conf)
	logger.Enable(false)
	defer logger.Sync()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// set up DB
	db, err := database.Open(ctx, conf)
	if err != nil {
		logger.Fatal(fmt.Sprintf("opening database: %v", err), err)
	}
	defer func() { _ = db.Close() }()

	// start CLI
	cli := commandLine{
		db:      db.DB,
		usrRepo: sqlxrepos.NewUserRepository(db),
		out:     os.Stdout,
	}
	if err := cli.run(os.Args); err != nil {
		if err != errHelp {
			_, _ = color.New(color.FgRed).Fprintf(os.Stderr, "\nerror: %s\n", err)
		}
		logger.Sync()
		_ = db.Close()
		os.Exit(1)
	}
}
