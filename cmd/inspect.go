package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Bitlatte/readnext/internal/outline"
)

var (
	relatedVisitor string
	relatedLimit   int
)

var relatedCmd = &cobra.Command{
	Use:   "related <slug>",
	Short: "Lists the posts ranked as related to a post",
	Long: `Ranks the content directory against the given post. With --visitor the
ranking is personalised with that reader's stored profile.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		be, err := openBackend(appConfig, log, true)
		if err != nil {
			return err
		}
		defer be.close()

		scored, err := be.engine.Related(cmd.Context(), relatedVisitor, args[0], relatedLimit)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		for i, s := range scored {
			fmt.Fprintf(out, "%d. %-40s %4d  %s\n", i+1, s.Item.Title, s.Score, s.Item.Permalink)
		}
		return nil
	},
}

var outlineCmd = &cobra.Command{
	Use:   "outline <slug>",
	Short: "Prints the heading outline of a post",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		be, err := openBackend(appConfig, log, true)
		if err != nil {
			return err
		}
		defer be.close()

		toc, err := be.engine.Outline(args[0])
		if err != nil {
			return err
		}
		flat := outline.Flatten(toc)
		if len(flat) == 0 {
			return nil
		}
		top := flat[0].Level
		for _, h := range flat {
			if h.Level < top {
				top = h.Level
			}
		}
		out := cmd.OutOrStdout()
		for _, h := range flat {
			fmt.Fprintf(out, "%s- %s (#%s)\n", strings.Repeat("  ", h.Level-top), h.Text, h.ID)
		}
		return nil
	},
}

func init() {
	relatedCmd.Flags().StringVar(&relatedVisitor, "visitor", "", "personalise with this visitor's profile")
	relatedCmd.Flags().IntVarP(&relatedLimit, "limit", "n", 0, "number of posts (default ranking.limit)")
	rootCmd.AddCommand(relatedCmd, outlineCmd)
}
