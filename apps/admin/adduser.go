package main

import (
	"context"

	"github.com/trezcool/eduassist/core/user"
)

// addUser creates a user; existing usernames or emails are rejected by
// the service's uniqueness check.
func (cli *commandLine) addUser(uname, email, pwd string, isAdmin bool) error {
	nu := user.NewUser{
		Name:            uname,
		Username:        uname,
		Email:           email,
		Password:        pwd,
		PasswordConfirm: pwd,
	}
	if isAdmin {
		nu.Roles = user.AllRoles
	}

	usr, err := cli.usrSvc.Create(context.Background(), nu)
	if err != nil {
		return err
	}
	logger.Printf("user %q created\n", usr.Username)
	return nil
}
