package main

import (
	"errors"
	"flag"
	"fmt"
	"syscall"

	"github.com/jmoiron/sqlx"
	"golang.org/x/term"

	"github.com/trezcool/eduassist/core/recommendation"
	"github.com/trezcool/eduassist/core/user"
)

var (
	readPasswordFunc = term.ReadPassword // mockable

	errHelp = errors.New("help provided")
)

type commandLine struct {
	db     *sqlx.DB
	usrSvc *user.Service
	recSvc *recommendation.Service
}

func (cli *commandLine) printUsage() {
	fmt.Println("Usage:")
	fmt.Println("  migrate                                 - apply pending database migrations")
	fmt.Println("  adduser -username UNAME -email EMAIL    - create a user; add -admin for an admin")
	fmt.Println("  senddigest -username USERNAME|EMAIL     - email the user their recommendation digest")
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	addUserCmd := flag.NewFlagSet("adduser", flag.ExitOnError)
	addUserUname := addUserCmd.String("username", "", "The user's username. The password will be prompted next.")
	addUserEmail := addUserCmd.String("email", "", "The user's email.")
	addUserIsAdmin := addUserCmd.Bool("admin", false, "Grant all roles.")

	sendDigestCmd := flag.NewFlagSet("senddigest", flag.ExitOnError)
	sendDigestUname := sendDigestCmd.String("username", "", "The user's username or email.")

	switch args[1] {
	case "migrate":
		return cli.migrate()
	case "adduser":
		if err := addUserCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *addUserUname == "" && *addUserEmail == "" {
			addUserCmd.Usage()
			return errHelp
		}
		fmt.Print("Enter password:")
		pwd, err := readPasswordFunc(syscall.Stdin)
		fmt.Println()
		if err != nil {
			return err
		}
		if len(pwd) == 0 {
			addUserCmd.Usage()
			return errHelp
		}
		return cli.addUser(*addUserUname, *addUserEmail, string(pwd), *addUserIsAdmin)
	case "senddigest":
		if err := sendDigestCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *sendDigestUname == "" {
			sendDigestCmd.Usage()
			return errHelp
		}
		return cli.sendDigest(*sendDigestUname)
	default:
		cli.printUsage()
		return errHelp
	}
}
