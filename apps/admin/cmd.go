package main

import (
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/kulmistechsolutions/kulmis-acadmy-LMS/core/user"
)

var (
	readPasswordFunc = term.ReadPassword // mockable

	errHelp        = errors.New("help provided")
	errNoPassword  = errors.New("no password provided")
	errPwdMismatch = errors.New("passwords do not match")
)

type commandLine struct {
	db      *sql.DB
	usrRepo user.Repository
	out     io.Writer
}

func (cli *commandLine) success(format string, args ...interface{}) {
	_, _ = color.New(color.FgGreen).Fprintf(cli.out, format+"\n", args...)
}

func (cli *commandLine) warn(format string, args ...interface{}) {
	_, _ = color.New(color.FgYellow).Fprintf(cli.out, format+"\n", args...)
}

// promptPassword reads a password twice without echoing it.
func (cli *commandLine) promptPassword() (string, error) {
	read := func(prompt string) (string, error) {
		_, _ = fmt.Fprint(cli.out, prompt)
		pwd, err := readPasswordFunc(int(syscall.Stdin))
		_, _ = fmt.Fprintln(cli.out)
		return strings.TrimSpace(string(pwd)), err
	}

	pwd, err := read("Enter password: ")
	if err != nil {
		return "", err
	}
	if pwd == "" {
		return "", errNoPassword
	}
	confirm, err := read("Confirm password: ")
	if err != nil {
		return "", err
	}
	if pwd != confirm {
		return "", errPwdMismatch
	}
	return pwd, nil
}

func (cli *commandLine) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "admin",
		Short:         "Kulmis Academy administration commands",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_ = cmd.Help()
			return errHelp
		},
	}
	root.SetOut(cli.out)
	root.SetErr(cli.out)

	var (
		email, phone   string
		isAdmin, isPro bool
		revoke         bool
	)

	addUserCmd := &cobra.Command{
		Use:   "adduser",
		Short: "Create a user, or update the user with the same email",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if email == "" {
				_ = cmd.Usage()
				return errHelp
			}
			pwd, err := cli.promptPassword()
			if err != nil {
				return err
			}
			usr, created, err := cli.addUser(email, phone, pwd, isAdmin, isPro)
			if err != nil {
				return err
			}
			if created {
				cli.success("created %s (%s)", usr.Email, usr.Role)
			} else {
				cli.success("updated %s (%s)", usr.Email, usr.Role)
			}
			return nil
		},
	}
	addUserCmd.Flags().StringVar(&email, "email", "", "the user's email")
	addUserCmd.Flags().StringVar(&phone, "phone", "", "the user's phone number")
	addUserCmd.Flags().BoolVar(&isAdmin, "admin", false, "grant the admin role")
	addUserCmd.Flags().BoolVar(&isPro, "pro", false, "grant Pro access")

	resetPasswordCmd := &cobra.Command{
		Use:   "resetpassword",
		Short: "Reset a user's password. The password is prompted next.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if email == "" {
				_ = cmd.Usage()
				return errHelp
			}
			pwd, err := cli.promptPassword()
			if err != nil {
				return err
			}
			if err := cli.resetPassword(email, pwd); err != nil {
				return err
			}
			cli.success("password of %s has been reset", email)
			return nil
		},
	}
	resetPasswordCmd.Flags().StringVar(&email, "email", "", "the user's email")

	grantProCmd := &cobra.Command{
		Use:   "grantpro",
		Short: "Grant (or revoke) Pro access without a payment request",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if email == "" {
				_ = cmd.Usage()
				return errHelp
			}
			if err := cli.grantPro(email, !revoke); err != nil {
				return err
			}
			if revoke {
				cli.warn("Pro access of %s has been revoked", email)
			} else {
				cli.success("%s is now Pro", email)
			}
			return nil
		},
	}
	grantProCmd.Flags().StringVar(&email, "email", "", "the user's email")
	grantProCmd.Flags().BoolVar(&revoke, "revoke", false, "revoke Pro access instead")

	migrateCmd := &cobra.Command{
		Use:   "migrate COMMAND [ARGS...]",
		Short: "Run a database migration command (up, down, status, version, redo, reset...)",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				_ = cmd.Usage()
				return errHelp
			}
			return cli.migrate(args)
		},
	}

	root.AddCommand(addUserCmd, resetPasswordCmd, grantProCmd, migrateCmd)
	return root
}

// run executes the command line. args include the program name.
func (cli *commandLine) run(args []string) error {
	if cli.out == nil {
		cli.out = os.Stdout
	}
	root := cli.rootCmd()
	root.SetArgs(args[1:])
	return root.Execute()
}
