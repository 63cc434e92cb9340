package main

import (
	"context"

	"github.com/kulmistechsolutions/kulmis-acadmy-LMS/core"
	"github.com/kulmistechsolutions/kulmis-acadmy-LMS/core/user"
)

func (cli *commandLine) grantPro(email string, isPro bool) error {
	ctx := context.Background()
	usr, err := cli.usrRepo.GetUser(ctx, user.GetFilter{Email: core.CleanString(email, true /* lower */)})
	if err != nil {
		return err
	}
	return cli.usrRepo.SetPro(ctx, usr.ID, isPro)
}
