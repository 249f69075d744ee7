package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v3"
	"go.uber.org/zap"
)

func exitErrHandler(ctx context.Context, _ *cli.Command, err error) {
	e := envFromContext(ctx)
	e.log.Debug("Command failed", zap.Error(err))
}

func durationFlag() cli.Flag {
	return &cli.DurationFlag{Name: "duration", Aliases: []string{"t"}, Usage: "show the page for `DURATION` instead of the default interval"}
}

func main() {
	ctx, stop := signal.NotifyContext(contextWithEnv(context.Background()), os.Interrupt, syscall.SIGTERM)

	app := &cli.Command{
		Name:            "storyctl",
		Usage:           "edit and play picture stories",
		HideHelpCommand: true,
		Before:          initializeEnv,
		After:           destroyEnv,
		ExitErrHandler:  exitErrHandler,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "server", Aliases: []string{"s"}, Usage: "story server `URL`; local storage is used when empty"},
			&cli.StringFlag{Name: "data", Usage: "local data `DIR` (overrides STORYWEAVE_DATA)"},
			&cli.BoolFlag{Name: "debug", Aliases: []string{"d"}, Usage: "log at debug level"},
		},
		Commands: []*cli.Command{
			{
				Name:   "list",
				Usage:  "Lists the pages of the story",
				Action: listPages,
			},
			{
				Name:      "add-text",
				Usage:     "Appends a text page",
				ArgsUsage: "TEXT",
				Flags:     []cli.Flag{durationFlag()},
				Action:    addText,
			},
			{
				Name:  "add-media",
				Usage: "Appends an image or video page",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "type", Usage: "page `TYPE`: image or video (default: from the file content)"},
					&cli.StringFlag{Name: "file", Aliases: []string{"f"}, Usage: "media `FILE` to store"},
					&cli.StringFlag{Name: "url", Aliases: []string{"u"}, Usage: "remote media `URL`"},
					durationFlag(),
				},
				Action: addMedia,
			},
			{
				Name:      "replace",
				Usage:     "Replaces the page at INDEX",
				ArgsUsage: "INDEX",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "type", Usage: "page `TYPE`: text, image or video (default: keep)"},
					&cli.StringFlag{Name: "text", Usage: "page `TEXT`"},
					&cli.StringFlag{Name: "file", Aliases: []string{"f"}, Usage: "media `FILE` to store"},
					&cli.StringFlag{Name: "url", Aliases: []string{"u"}, Usage: "remote media `URL`"},
					durationFlag(),
				},
				Action: replacePage,
			},
			{
				Name:      "delete",
				Usage:     "Deletes the page at INDEX",
				ArgsUsage: "INDEX",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "purge", Usage: "also delete the page's locally stored media"},
				},
				Action: deletePage,
			},
			{
				Name:  "settings",
				Usage: "Shows or changes player settings",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "autoplay", Usage: "`on` or off"},
					&cli.DurationFlag{Name: "interval", Usage: "default page `DURATION`"},
					&cli.StringFlag{Name: "text-size", Usage: "text `SIZE` in points"},
				},
				Action: changeSettings,
			},
			{
				Name:  "play",
				Usage: "Plays the story in the terminal until interrupted",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "from", Usage: "start at page `INDEX`"},
				},
				Action: play,
			},
			{
				Name:  "export",
				Usage: "Exports the story with its media",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "dir", Usage: "write story.json and media files to `DIR`"},
					&cli.StringFlag{Name: "out", Aliases: []string{"o"}, Usage: "write only the manifest to `FILE` (- for stdout)"},
				},
				Action: exportStory,
			},
			{
				Name:  "import",
				Usage: "Replaces the story with an exported one",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "dir", Usage: "read story.json and media files from `DIR`"},
					&cli.StringFlag{Name: "file", Aliases: []string{"f"}, Usage: "read only the manifest from `FILE`"},
					&cli.BoolFlag{Name: "yes", Aliases: []string{"y"}, Usage: "do not ask for confirmation"},
				},
				Action: importStory,
			},
		},
	}

	err := app.Run(ctx, os.Args)
	stop()
	if err != nil {
		if !envFromContext(ctx).notices.reported(err) {
			fmt.Fprintf(os.Stderr, "storyctl: %v\n", err)
		}
		os.Exit(1)
	}
}
