package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var lockCmd = &cobra.Command{
	Use:   "lock",
	Short: "Acquire and release module/datastore locks",
}

var lockModuleCmd = &cobra.Command{
	Use:   "module [name]",
	Short: "Lock a module against edits from other sessions",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		sess, err := connectSession(cmd)
		if err != nil {
			return err
		}
		defer sess.Stop()

		ok, err := sess.LockModule(args[0])
		if err != nil {
			return err
		}
		fmt.Printf("locked=%v\n", ok)
		return nil
	},
}

var unlockModuleCmd = &cobra.Command{
	Use:   "unlock-module [name]",
	Short: "Release a module lock",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		sess, err := connectSession(cmd)
		if err != nil {
			return err
		}
		defer sess.Stop()

		ok, err := sess.UnlockModule(args[0])
		if err != nil {
			return err
		}
		fmt.Printf("unlocked=%v\n", ok)
		return nil
	},
}

var lockDatastoreCmd = &cobra.Command{
	Use:   "datastore",
	Short: "Lock the whole target datastore",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		sess, err := connectSession(cmd)
		if err != nil {
			return err
		}
		defer sess.Stop()

		ok, err := sess.LockDatastore()
		if err != nil {
			return err
		}
		fmt.Printf("locked=%v\n", ok)
		return nil
	},
}

var unlockDatastoreCmd = &cobra.Command{
	Use:   "unlock-datastore",
	Short: "Release the target datastore's lock",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		sess, err := connectSession(cmd)
		if err != nil {
			return err
		}
		defer sess.Stop()

		ok, err := sess.UnlockDatastore()
		if err != nil {
			return err
		}
		fmt.Printf("unlocked=%v\n", ok)
		return nil
	},
}

func init() {
	lockCmd.AddCommand(lockModuleCmd, unlockModuleCmd, lockDatastoreCmd, unlockDatastoreCmd)
}
