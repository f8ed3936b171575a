package main

import (
	"github.com/Maad-exe/projectgo/core/user"
)

// resetPassword sets a new password for the user matching uname.
func (cli *commandLine) resetPassword(uname, pwd string) error {
	usr, err := cli.usrSvc.GetByUsernameOrEmail(uname)
	if err != nil {
		return err
	}
	data := user.UpdateUser{
		Password:        pwd,
		PasswordConfirm: pwd,
	}
	if err = data.Validate(usr, cli.usrSvc); err != nil {
		return err
	}
	_, err = cli.usrSvc.Update(usr.ID, data)
	return err
}
