package cmd

import (
	"github.com/spf13/cobra"
	"github.com/ssargent/freyjawire/pkg/dberror"
	"github.com/ssargent/freyjawire/pkg/storage"
)

// deleteCmd represents the delete command
var deleteCmd = &cobra.Command{
	Use:   "delete <container> <key>",
	Short: "Delete a value",
	Long: `Delete a value from a container.

Example:
  freyjawire delete records greeting`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		h, err := container.Handle(args[0])
		if err != nil {
			return err
		}
		key := []byte(args[1])

		err = container.Env().Update(func(txn *storage.Txn) error {
			return container.Pipeline().Delete(txn, h.Container, key)
		})
		if err != nil {
			return dberror.FromError(err)
		}

		cmd.Printf("Deleted %s/%s\n", args[0], args[1])
		return nil
	},
}

func init() {
	rootCmd.AddCommand(deleteCmd)
}
