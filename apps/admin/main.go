package main

import (
	"context"
	"log"
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/user"
	appfs "github.com/trezcool/academia/fs"
	emailsvc "github.com/trezcool/academia/services/email"
	"github.com/trezcool/academia/storage/database"
	"github.com/trezcool/academia/storage/database/sqlxrepos"
)

func main() {
	std := log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	logger := core.NewStdLogger(std)
	conf := core.NewConfig()

	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	user.LoadCommonPasswords(appfs.FS, logger)

	// set up DB
	db := openDB(conf, std)
	defer func() { _ = db.Close() }()

	// start CLI
	cli := commandLine{
		db:       db.DB,
		usrSvc:   user.NewService(sqlxrepos.New(db).Users, emailsvc.NewConsoleService(conf, std, logger), conf),
		validate: validate,
		out:      os.Stdout,
	}
	if err := cli.run(os.Args); err != nil {
		if err != errHelp {
			std.Printf("\nerror: %s\n", err)
		}
		os.Exit(1)
	}
}

func openDB(conf *core.Config, std *log.Logger) *sqlx.DB {
	if conf.IsMemoryDB() {
		std.Fatal("the admin commands need a postgres database engine")
	}
	ctx, cancel := context.WithTimeout(context.Background(), conf.Server.ShutdownTimeout*6)
	defer cancel()

	db, err := database.Open(conf)
	errAndDie(std, err)
	errAndDie(std, database.Ping(ctx, db))
	return db
}

func errAndDie(std *log.Logger, err error) {
	if err != nil {
		std.Fatal(err)
	}
}
