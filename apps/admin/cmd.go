package main

import (
	"context"
	"syscall"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/user"
	"github.com/trezcool/academia/storage/database"
)

var (
	// mockable
	readPasswordFunc = term.ReadPassword
	gooseRunFunc     = database.RunMigrations

	errEmptyPassword = errors.New("password cannot be empty")
)

type commandLine struct {
	db      *sqlx.DB
	usrRepo user.Repository
}

func (cli *commandLine) rootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:          "admin",
		Short:        "Academia administration commands",
		SilenceUsage: true,
	}
	root.AddCommand(
		cli.migrateCommand(),
		cli.addUserCommand(),
		cli.resetPasswordCommand(),
	)
	return root
}

func (cli *commandLine) migrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate COMMAND [ARGS...]",
		Short: "Run a goose migration command (up, up-by-one, up-to, down, down-to, redo, reset, status, version, fix)",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return gooseRunFunc(cli.db, args[0], args[1:]...)
		},
	}
}

func (cli *commandLine) addUserCommand() *cobra.Command {
	var name, email, role string
	cmd := &cobra.Command{
		Use:   "adduser",
		Short: "Create a user, or update the password and role of an existing one",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !user.IsValidRole(role) {
				return errors.Errorf("invalid role %q", role)
			}
			pwd, err := promptPassword(cmd)
			if err != nil {
				return err
			}
			usr, err := cli.addUser(cmd.Context(), name, email, role, pwd)
			if err != nil {
				return err
			}
			cmd.Printf("user %s (%s) saved\n", usr.Email, usr.Role)
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "The user's full name")
	cmd.Flags().StringVar(&email, "email", "", "The user's email")
	cmd.Flags().StringVar(&role, "role", user.RoleAdmin, "The user's role: student, instructor or admin")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func (cli *commandLine) resetPasswordCommand() *cobra.Command {
	var email string
	cmd := &cobra.Command{
		Use:   "resetpassword",
		Short: "Reset a user's password; the password is prompted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			pwd, err := promptPassword(cmd)
			if err != nil {
				return err
			}
			return cli.resetPassword(cmd.Context(), email, pwd)
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "The user's email")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func promptPassword(cmd *cobra.Command) (string, error) {
	cmd.Print("Enter password:")
	pwd, err := readPasswordFunc(int(syscall.Stdin))
	cmd.Println()
	if err != nil {
		return "", errors.Wrap(err, "reading password")
	}
	if len(pwd) == 0 {
		return "", errEmptyPassword
	}
	return string(pwd), nil
}

// addUser updates or creates an active user.User
func (cli *commandLine) addUser(ctx context.Context, name, email, role, pwd string) (user.User, error) {
	email = core.CleanString(email, true /* lower */)
	now := core.NowFunc()

	usr, err := cli.usrRepo.GetUserByEmail(ctx, email)
	created := false
	switch {
	case errors.Cause(err) == user.ErrNotFound:
		created = true
		usr = user.User{ID: core.NewID(), Email: email, CreatedAt: now}
	case err != nil:
		return user.User{}, errors.Wrap(err, "finding user by email")
	}

	if name = core.CleanString(name); name != "" {
		usr.Name = name
	}
	if usr.Name == "" {
		usr.Name = email
	}
	usr.Role = role
	usr.IsActive = true
	usr.UpdatedAt = now
	if err = usr.SetPassword(pwd); err != nil {
		return user.User{}, errors.Wrap(err, "hashing password")
	}

	if created {
		return cli.usrRepo.CreateUser(ctx, usr)
	}
	return cli.usrRepo.UpdateUser(ctx, usr)
}

func (cli *commandLine) resetPassword(ctx context.Context, email, pwd string) error {
	usr, err := cli.usrRepo.GetUserByEmail(ctx, core.CleanString(email, true /* lower */))
	if err != nil {
		return err
	}
	if err = usr.SetPassword(pwd); err != nil {
		return errors.Wrap(err, "hashing password")
	}
	usr.UpdatedAt = core.NowFunc()
	if _, err = cli.usrRepo.UpdateUser(ctx, usr); err != nil {
		return errors.Wrap(err, "updating user")
	}
	return nil
}
