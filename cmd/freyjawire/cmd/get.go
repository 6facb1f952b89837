package cmd

import (
	"strconv"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
	"github.com/ssargent/freyjawire/pkg/dberror"
	"github.com/ssargent/freyjawire/pkg/storage"
	"github.com/ssargent/freyjawire/pkg/text"
	"github.com/ssargent/freyjawire/pkg/transcode"
)

// getCmd represents the get command
var getCmd = &cobra.Command{
	Use:   "get <container> <key>",
	Short: "Read a value",
	Long: `Read a value from a container. The value is decoded into a pooled
buffer; values that do not fit fall back to an allocating read.

Example:
  freyjawire get records greeting --encoding utf8 --meta`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		h, err := container.Handle(args[0])
		if err != nil {
			return err
		}
		key := []byte(args[1])
		encoding, _ := cmd.Flags().GetString("encoding")
		meta, _ := cmd.Flags().GetBool("meta")

		pipeline := container.Pipeline()
		pool := container.Pool()

		err = container.Env().View(func(txn *storage.Txn) error {
			scope := pool.Get()
			defer pool.Put(scope)

			path := "fast"
			res, err := pipeline.ReadAndTranscode(txn, h.Container, key, scope)
			if err == nil && res.Kind == transcode.TooLarge {
				path = "alloc"
				res, err = pipeline.ReadAlloc(txn, h.Container, key)
			}
			if err != nil {
				return err
			}

			var out string
			switch encoding {
			case "raw", "utf8":
				out = text.UTF8(res.Value)
			case "utf16":
				if out, err = text.UTF16(res.Value); err != nil {
					return err
				}
			case "latin1":
				out = text.Unsafe(res.Value).String()
			default:
				return errors.Newf("unsupported encoding %q", encoding)
			}

			if meta {
				version := "-"
				if res.HasVersion {
					version = strconv.FormatFloat(res.Version, 'g', -1, 64)
				}
				cmd.Printf("kind=%s version=%s size=%d path=%s\n", res.Kind, version, res.Value.Len(), path)
			}
			cmd.Printf("%s\n", out)
			return nil
		})
		return dberror.FromError(err)
	},
}

func init() {
	rootCmd.AddCommand(getCmd)
	getCmd.Flags().String("encoding", "utf8", "Decode as raw, utf8, utf16 or latin1")
	getCmd.Flags().Bool("meta", false, "Print kind, version, size and read path")
}
