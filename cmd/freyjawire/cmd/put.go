package cmd

import (
	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
	"github.com/ssargent/freyjawire/pkg/dberror"
	"github.com/ssargent/freyjawire/pkg/storage"
	"github.com/ssargent/freyjawire/pkg/text"
)

// putCmd represents the put command
var putCmd = &cobra.Command{
	Use:   "put <container> <key> <value>",
	Short: "Store a value",
	Long: `Store a value in a container. Versioned containers require --version.

Example:
  freyjawire put records greeting hi --version 3`,
	Args: cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		h, err := container.Handle(args[0])
		if err != nil {
			return err
		}
		key := []byte(args[1])
		value := []byte(args[2])

		version, _ := cmd.Flags().GetFloat64("version")
		hasVersion := cmd.Flags().Changed("version")
		asUTF16, _ := cmd.Flags().GetBool("utf16")
		noOverwrite, _ := cmd.Flags().GetBool("no-overwrite")

		switch {
		case h.Container.HasVersions && !hasVersion:
			return errors.Newf("container %q requires --version", args[0])
		case !h.Container.HasVersions && hasVersion:
			return errors.Newf("container %q does not store versions", args[0])
		}

		if asUTF16 {
			if value, err = text.EncodeUTF16(args[2]); err != nil {
				return err
			}
		}

		var flags storage.PutFlags
		if noOverwrite {
			flags |= storage.NoOverwrite
		}

		pipeline := container.Pipeline()
		err = container.Env().Update(func(txn *storage.Txn) error {
			if h.Container.HasVersions {
				return pipeline.WriteVersioned(txn, h.Container, key, value, version, flags)
			}
			return pipeline.Write(txn, h.Container, key, value, flags)
		})
		if err != nil {
			return dberror.FromError(err)
		}

		cmd.Printf("Stored %d bytes at %s/%s\n", len(value), args[0], args[1])
		return nil
	},
}

func init() {
	rootCmd.AddCommand(putCmd)
	putCmd.Flags().Float64("version", 0, "Version tag for versioned containers")
	putCmd.Flags().Bool("utf16", false, "Store the value as zero-terminated UTF-16")
	putCmd.Flags().Bool("no-overwrite", false, "Fail if the key already exists")
}
