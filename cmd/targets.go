package cmd

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/isdelr/dirback/internal/commands"
	"github.com/spf13/cobra"
)

// dispatchAndPrint runs one command and writes its result as indented JSON.
func dispatchAndPrint(cmd *cobra.Command, opts *rootOptions, c commands.Command) error {
	a, err := openApp(opts.cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	result, err := a.dispatcher.Dispatch(cmd.Context(), c)
	if err != nil {
		return err
	}
	out, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(out))
	return nil
}

func parseBackupID(arg string) (int, error) {
	id, err := strconv.Atoi(arg)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid backup id %q", arg)
	}
	return id, nil
}

func newListCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List targets and their backups",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return dispatchAndPrint(cmd, opts, commands.ListTargets{})
		},
	}
}

func newShowCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show <target-id>",
		Short: "Show one target; prints null when it does not exist",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return dispatchAndPrint(cmd, opts, commands.GetTarget{TargetID: args[0]})
		},
	}
}

func newRegisterCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "register <name> <path>",
		Short: "Register a directory as a backup target",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return dispatchAndPrint(cmd, opts, commands.RegisterTarget{Name: args[0], Path: args[1]})
		},
	}
}

func newBackupCmd(opts *rootOptions) *cobra.Command {
	var note string
	c := &cobra.Command{
		Use:   "backup <target-id>",
		Short: "Archive a target and append a backup entry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return dispatchAndPrint(cmd, opts, commands.BackupTarget{TargetID: args[0], Note: note})
		},
	}
	c.Flags().StringVarP(&note, "note", "n", "", "note attached to the backup")
	return c
}

func newRestoreCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "restore <target-id> <backup-id>",
		Short: "Extract a backup over the target directory",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseBackupID(args[1])
			if err != nil {
				return err
			}
			return dispatchAndPrint(cmd, opts, commands.RestoreTarget{TargetID: args[0], BackupID: id})
		},
	}
}

func newDeleteBackupCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "delete-backup <target-id> <backup-id>",
		Short: "Delete one backup and its archive",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseBackupID(args[1])
			if err != nil {
				return err
			}
			return dispatchAndPrint(cmd, opts, commands.DeleteBackup{TargetID: args[0], BackupID: id})
		},
	}
}

func newDeleteTargetCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "delete-target <target-id>",
		Short: "Delete a target together with all of its backups",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return dispatchAndPrint(cmd, opts, commands.DeleteTarget{TargetID: args[0]})
		},
	}
}

func newExecCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "exec <envelope-json>",
		Short: `Execute a raw command envelope, e.g. '{"type":"ListTargets"}'`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := commands.Decode([]byte(args[0]))
			if err != nil {
				return err
			}
			return dispatchAndPrint(cmd, opts, c)
		},
	}
}
