package main

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/msawatzky/christmas-list/pkg/logger"
)

var rosterFile string

var rosterCmd = &cobra.Command{
	Use:   "roster",
	Short: "Validate and print the family roster",
	Long: `roster loads the roster the service would use (--file, then ROSTER_PATH,
then the built-in family) and prints it in display order.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		path := rosterFile
		if path == "" {
			path = os.Getenv("ROSTER_PATH")
		}

		roster, err := loadRoster(path, logger.New("warn"))
		if err != nil {
			return err
		}

		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "RANK\tID\tNAME\tTELEGRAM\tMANAGES")
		for _, m := range roster.Members() {
			rank, _ := roster.DisplayRank(m.ID)
			fmt.Fprintf(tw, "%d\t%s\t%s %s\t%s\t%s\n",
				rank, m.ID, m.Avatar, m.DisplayName(), m.Telegram, strings.Join(m.CanManageLists, ","))
		}
		return tw.Flush()
	},
}

func init() {
	rosterCmd.Flags().StringVarP(&rosterFile, "file", "f", "", "roster YAML file")
}
