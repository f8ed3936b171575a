package main

import (
	"github.com/Maad-exe/projectgo/core/user"
)

// addAdmin creates an active admin account.
func (cli *commandLine) addAdmin(name, email, pwd string) error {
	data := user.NewUser{
		Name:            name,
		Email:           email,
		Password:        pwd,
		PasswordConfirm: pwd,
		Kind:            user.KindAdmin,
	}
	if err := data.Validate(cli.usrSvc); err != nil {
		return err
	}
	_, err := cli.usrSvc.Create(data)
	return err
}
