package main

import (
	"context"

	"github.com/kulmistechsolutions/kulmis-acadmy-LMS/core"
	"github.com/kulmistechsolutions/kulmis-acadmy-LMS/core/user"
)

func (cli *commandLine) resetPassword(email, pwd string) error {
	ctx := context.Background()
	usr, err := cli.usrRepo.GetUser(ctx, user.GetFilter{Email: core.CleanString(email, true /* lower */)})
	if err != nil {
		return err
	}
	if err := usr.SetPassword(pwd); err != nil {
		return err
	}
	usr.UpdatedAt = core.NowFunc()
	if _, err := cli.usrRepo.UpdateUser(ctx, usr); err != nil {
		return err
	}
	// links sent before the reset must not work anymore
	return cli.usrRepo.DeleteResetTokens(ctx, usr.ID)
}
