package cmd

import (
	"github.com/spf13/cobra"

	"github.com/Bitlatte/readnext/internal/logger"
	"github.com/Bitlatte/readnext/internal/site"
)

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Builds the static site and its relations index",
	Long: `The build command processes Markdown files from the content directory,
ranks related posts and extracts a heading outline for every item, applies
templates from the layouts directory (including partials), copies static
assets, and writes the site plus relations.json to the output directory.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		res, err := site.NewBuilder(siteOptions(appConfig), log).Build()
		if err != nil {
			return err
		}
		log.Info("Site built",
			logger.String("output_dir", appConfig.OutputDir),
			logger.Int("items", len(res.Site.ContentItems)),
			logger.Int("posts", len(res.Site.Posts)),
		)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(buildCmd)
}
