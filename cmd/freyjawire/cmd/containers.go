package cmd

import (
	"github.com/spf13/cobra"
)

// containersCmd represents the containers command
var containersCmd = &cobra.Command{
	Use:   "containers",
	Short: "List configured containers",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		for _, h := range container.Handles() {
			info := h.Info()
			compression := "none"
			if info.Compression != "" {
				compression = info.Compression
			}
			cmd.Printf("%-16s versions=%-5t compression=%s\n", info.Name, info.Versions, compression)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(containersCmd)
}
