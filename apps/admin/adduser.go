package main

import (
	"context"

	"github.com/pkg/errors"

	"github.com/kulmistechsolutions/kulmis-acadmy-LMS/core"
	"github.com/kulmistechsolutions/kulmis-acadmy-LMS/core/user"
)

// addUser updates or creates a user.User
func (cli *commandLine) addUser(email, phone, pwd string, isAdmin, isPro bool) (user.User, bool, error) {
	ctx := context.Background()
	email = core.CleanString(email, true /* lower */)
	now := core.NowFunc()

	usr, err := cli.usrRepo.GetUser(ctx, user.GetFilter{Email: email})
	created := false
	if err != nil {
		if errors.Cause(err) != user.ErrNotFound {
			return user.User{}, false, err
		}
		usr = user.User{Email: email, Role: user.RoleStudent, CreatedAt: now}
		created = true
	}
	if phone = core.CleanString(phone); phone != "" {
		usr.Phone = phone
	}
	if isAdmin {
		usr.Role = user.RoleAdmin
	}
	if isPro {
		usr.IsPro = true
	}
	if err := usr.SetPassword(pwd); err != nil {
		return user.User{}, false, err
	}
	usr.UpdatedAt = now

	if created {
		usr, err = cli.usrRepo.CreateUser(ctx, usr)
	} else {
		usr, err = cli.usrRepo.UpdateUser(ctx, usr)
	}
	return usr, created, err
}
