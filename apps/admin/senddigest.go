package main

import (
	"context"

	"github.com/pkg/errors"
)

// sendDigest emails the user their current top recommendations.
func (cli *commandLine) sendDigest(uname string) error {
	ctx := context.Background()

	usr, err := cli.usrSvc.GetByUsernameOrEmail(ctx, uname)
	if err != nil {
		return errors.Wrap(err, "finding user")
	}
	if err = cli.recSvc.SendDigest(ctx, usr); err != nil {
		return errors.Wrap(err, "sending digest")
	}
	logger.Printf("digest sent to %q\n", usr.Email)
	return nil
}
