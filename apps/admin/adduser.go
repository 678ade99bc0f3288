package main

import (
	"context"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/user"
)

type addUserInput struct {
	Username  string
	Email     string
	FirstName string
	LastName  string
	Role      string
	Password  string
}

// addUser updates or creates a user.User, which is (re)activated.
func (cli *commandLine) addUser(ctx context.Context, au addUserInput) (user.User, error) {
	uname := core.CleanString(au.Username, true /* lower */)
	email := core.CleanString(au.Email, true /* lower */)

	usr, err := cli.findUser(ctx, uname, email)
	if err != nil {
		if !core.IsNotFound(err) {
			return user.User{}, err
		}
		nu := user.NewUser{
			Username:        uname,
			Email:           email,
			FirstName:       au.FirstName,
			LastName:        au.LastName,
			Password:        au.Password,
			PasswordConfirm: au.Password,
			Role:            au.Role,
		}
		if nu.FirstName == "" {
			nu.FirstName = uname
		}
		if nu.LastName == "" {
			nu.LastName = "Admin"
		}
		if err = nu.Validate(ctx, cli.validate, cli.usrSvc); err != nil {
			return user.User{}, err
		}
		return cli.usrSvc.Create(ctx, nu)
	}

	active := true
	uu := user.UpdateUser{
		IsActive:        &active,
		Role:            &au.Role,
		Password:        au.Password,
		PasswordConfirm: au.Password,
	}
	if au.FirstName != "" {
		uu.FirstName = &au.FirstName
	}
	if au.LastName != "" {
		uu.LastName = &au.LastName
	}
	if err = uu.Validate(ctx, usr, cli.validate, cli.usrSvc); err != nil {
		return user.User{}, err
	}
	return cli.usrSvc.Update(ctx, usr.ID, uu)
}

func (cli *commandLine) findUser(ctx context.Context, uname, email string) (user.User, error) {
	if uname != "" {
		usr, err := cli.usrSvc.GetByUsernameOrEmail(ctx, uname)
		if err == nil || !core.IsNotFound(err) || email == "" {
			return usr, err
		}
	}
	return cli.usrSvc.GetByUsernameOrEmail(ctx, email)
}
