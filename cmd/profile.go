package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v2"

	"github.com/Bitlatte/readnext/internal/engine"
	"github.com/Bitlatte/readnext/internal/model"
	"github.com/Bitlatte/readnext/internal/prefs"
)

var (
	profileVisitor string
	profileFormat  string

	recordCategory   string
	recordBookmark   string
	recordPercentage float64
	recordTimeOnPage int64
	recordPlatform   string
)

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Inspects and updates reader profiles in the configured store",
}

var profileShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Prints a reader profile",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		be, err := openBackend(appConfig, log, false)
		if err != nil {
			return err
		}
		defer be.close()

		return writeProfile(cmd.OutOrStdout(), be.engine.Profile(cmd.Context(), profileVisitor), profileFormat)
	},
}

var profileRecordCmd = &cobra.Command{
	Use:   "record <view|bookmark|scroll|share> <slug>",
	Short: "Records an interaction against a reader profile",
	Long: `Records one interaction exactly as the HTTP API would: the profile is
updated in the configured store and an analytics event is emitted. The slug
must exist in the content directory.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ev := prefs.Event{
			Action:   prefs.Action(args[0]),
			Slug:     args[1],
			Category: recordCategory,
			Bookmark: prefs.BookmarkAction(recordBookmark),
			Platform: recordPlatform,
		}
		if cmd.Flags().Changed("percentage") {
			ev.ScrollPercentage = &recordPercentage
		}
		if cmd.Flags().Changed("time-on-page") {
			ev.TimeOnPage = &recordTimeOnPage
		}

		be, err := openBackend(appConfig, log, true)
		if err != nil {
			return err
		}
		defer be.close()

		p, err := be.engine.Record(cmd.Context(), profileVisitor, ev)
		if err != nil {
			return err
		}
		return writeProfile(cmd.OutOrStdout(), p, profileFormat)
	},
}

var profileWatchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Prints a reader profile every time another process changes it",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		be, err := openBackend(appConfig, log, false)
		if err != nil {
			return err
		}
		defer be.close()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		store := prefs.NewStore(be.kv, log, prefs.WithKey(engine.VisitorKey(profileVisitor)))
		out := cmd.OutOrStdout()
		if err := writeProfile(out, store.Profile(ctx), profileFormat); err != nil {
			return err
		}
		err = store.Watch(ctx, func(p model.Profile) {
			if err := writeProfile(out, p, profileFormat); err != nil {
				fmt.Fprintln(cmd.ErrOrStderr(), err)
			}
		})
		if err != nil {
			return err
		}
		<-ctx.Done()
		return nil
	},
}

// writeProfile prints p as indented JSON or as YAML with the JSON field
// names.
func writeProfile(w io.Writer, p model.Profile, format string) error {
	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return fmt.Errorf("encode profile: %w", err)
	}

	switch format {
	case "", "json":
		_, err = fmt.Fprintln(w, string(data))
		return err
	case "yaml":
		// JSON is valid YAML; MapSlice keeps the field order.
		var doc yaml.MapSlice
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return fmt.Errorf("convert profile to yaml: %w", err)
		}
		out, err := yaml.Marshal(doc)
		if err != nil {
			return fmt.Errorf("encode profile as yaml: %w", err)
		}
		_, err = w.Write(out)
		return err
	default:
		return fmt.Errorf("unknown format %q (want json or yaml)", format)
	}
}

func init() {
	profileCmd.PersistentFlags().StringVar(&profileVisitor, "visitor", "", "visitor id (empty selects the shared profile)")
	profileCmd.PersistentFlags().StringVarP(&profileFormat, "format", "f", "json", "output format: json or yaml")

	profileRecordCmd.Flags().StringVar(&recordCategory, "category", "", "category of a viewed post (defaults to the post's own)")
	profileRecordCmd.Flags().StringVar(&recordBookmark, "bookmark", string(prefs.BookmarkAdd), "bookmark action: add or remove")
	profileRecordCmd.Flags().Float64Var(&recordPercentage, "percentage", 0, "scroll percentage of a scroll event")
	profileRecordCmd.Flags().Int64Var(&recordTimeOnPage, "time-on-page", 0, "time on page in milliseconds of a scroll event")
	profileRecordCmd.Flags().StringVar(&recordPlatform, "platform", "", "platform of a share event")

	profileCmd.AddCommand(profileShowCmd, profileRecordCmd, profileWatchCmd)
	rootCmd.AddCommand(profileCmd)
}
