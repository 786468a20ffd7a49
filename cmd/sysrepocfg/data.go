package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/sysrepo-go/sysrepod/datastore"
	"github.com/sysrepo-go/sysrepod/rpc/common"
)

var dataCmd = &cobra.Command{
	Use:   "data",
	Short: "Read and edit datastore content",
}

var getCmd = &cobra.Command{
	Use:   "get [path]",
	Short: "Read the value at path",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		sess, err := connectSession(cmd)
		if err != nil {
			return err
		}
		defer sess.Stop()

		v, err := sess.GetItem(args[0])
		if err != nil {
			return err
		}
		fmt.Printf("%s = %s\n", args[0], formatValue(v))
		return nil
	},
}

var getAllCmd = &cobra.Command{
	Use:   "get-all [path]",
	Short: "Read every leaf value under path",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		sess, err := connectSession(cmd)
		if err != nil {
			return err
		}
		defer sess.Stop()

		paths, values, err := sess.GetItems(args[0])
		if err != nil {
			return err
		}
		for i, p := range paths {
			fmt.Printf("%s = %s\n", p, formatValue(&values[i]))
		}
		return nil
	},
}

var setCmd = &cobra.Command{
	Use:   "set [path] [value]",
	Short: "Set the value at path",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		sess, err := connectSession(cmd)
		if err != nil {
			return err
		}
		defer sess.Stop()

		if err := sess.SetItem(args[0], common.Value{Str: args[1]}, datastore.FlagDefault); err != nil {
			return err
		}
		fmt.Println("set ok")
		return nil
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete [path]",
	Short: "Delete the node at path",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		sess, err := connectSession(cmd)
		if err != nil {
			return err
		}
		defer sess.Stop()

		if err := sess.DeleteItem(args[0], datastore.FlagDefault); err != nil {
			return err
		}
		fmt.Println("delete ok")
		return nil
	},
}

var commitCmd = &cobra.Command{
	Use:   "commit",
	Short: "Validate and commit the session's pending edits",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		sess, err := connectSession(cmd)
		if err != nil {
			return err
		}
		defer sess.Stop()

		if err := sess.Commit(); err != nil {
			return err
		}
		fmt.Println("commit ok")
		return nil
	},
}

var validateCmd = &cobra.Command{
	Use:   "validate [module]",
	Short: "Validate module without committing",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		sess, err := connectSession(cmd)
		if err != nil {
			return err
		}
		defer sess.Stop()

		if err := sess.Validate(args[0]); err != nil {
			return err
		}
		fmt.Println("valid")
		return nil
	},
}

var discardCmd = &cobra.Command{
	Use:   "discard",
	Short: "Discard the session's pending edits",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		sess, err := connectSession(cmd)
		if err != nil {
			return err
		}
		defer sess.Stop()
		return sess.DiscardChanges()
	},
}

var listSchemasCmd = &cobra.Command{
	Use:   "list-schemas",
	Short: "List installed modules",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		sess, err := connectSession(cmd)
		if err != nil {
			return err
		}
		defer sess.Stop()

		names, err := sess.ListSchemas()
		if err != nil {
			return err
		}
		for _, n := range names {
			fmt.Println(n)
		}
		return nil
	},
}

var subscribeCmd = &cobra.Command{
	Use:   "subscribe [module] [event]",
	Short: "Subscribe to module_install, feature_enable, module_change, or rpc events until interrupted",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		sess, err := connectSession(cmd)
		if err != nil {
			return err
		}
		defer sess.Stop()

		durable, _ := cmd.Flags().GetBool("durable")
		if err := sess.Subscribe(args[0], args[1], durable); err != nil {
			return err
		}

		fmt.Println("subscribed, press Ctrl+C to stop")
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()
		<-ctx.Done()

		return sess.Unsubscribe(args[0])
	},
}

var unsubscribeCmd = &cobra.Command{
	Use:   "unsubscribe [module]",
	Short: "Cancel the subscriptions on a module held by the session this command opens",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		sess, err := connectSession(cmd)
		if err != nil {
			return err
		}
		defer sess.Stop()
		return sess.Unsubscribe(args[0])
	},
}

var rpcSendCmd = &cobra.Command{
	Use:   "rpc-send [module] [path] [value]",
	Short: "Invoke the rpc event bound to module and print the reply",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		sess, err := connectSession(cmd)
		if err != nil {
			return err
		}
		defer sess.Stop()

		reply, err := sess.RPCSend(args[0], args[1], common.Value{Str: args[2]})
		if err != nil {
			return err
		}
		fmt.Printf("reply = %s\n", formatValue(reply))
		return nil
	},
}

func formatValue(v *common.Value) string {
	if v == nil {
		return "<nil>"
	}
	if v.Str != "" {
		return v.Str
	}
	if v.Bin != nil {
		return fmt.Sprintf("%x", v.Bin)
	}
	return fmt.Sprintf("%+v", *v)
}

func init() {
	subscribeCmd.Flags().Bool("durable", false, "Flag the subscription as durable (it is still removed when the session stops and is not written to disk)")
	dataCmd.AddCommand(getCmd, getAllCmd, setCmd, deleteCmd, commitCmd, validateCmd, discardCmd, listSchemasCmd, subscribeCmd, unsubscribeCmd, rpcSendCmd)
}
