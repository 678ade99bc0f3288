package main

import (
	"github.com/pkg/errors"

	"github.com/trezcool/academia/storage/database"
)

var gooseRunFunc = database.RunMigrations // mockable

var errNoDatabase = errors.New("migrations need a postgres database")

func (cli *commandLine) migrate(args []string) error {
	if cli.db == nil {
		return errNoDatabase
	}
	return gooseRunFunc(cli.db, args[0], args[1:]...)
}
