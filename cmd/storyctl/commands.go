package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/urfave/cli/v3"
	"go.uber.org/multierr"

	"storyweave/media"
	"storyweave/models"
	"storyweave/story"
	"storyweave/transfer"
)

func listPages(ctx context.Context, _ *cli.Command) error {
	e := envFromContext(ctx)
	s, err := e.open(ctx, nil)
	if err != nil {
		return err
	}
	printPages(os.Stdout, s.View())
	return e.finish(s)
}

func durationSec(cmd *cli.Command) *float64 {
	if !cmd.IsSet("duration") {
		return nil
	}
	return models.Seconds(cmd.Duration("duration").Seconds())
}

func addText(ctx context.Context, cmd *cli.Command) error {
	e := envFromContext(ctx)
	text := strings.Join(cmd.Args().Slice(), " ")
	s, err := e.open(ctx, nil)
	if err != nil {
		return err
	}
	p, err := s.AddPage(ctx, models.Draft{Type: models.PageText, Text: text, DurationSec: durationSec(cmd)})
	if err != nil {
		s.Close()
		return err
	}
	fmt.Printf("added text page %d (%s)\n", len(s.Pages())-1, p.ID)
	return e.finish(s)
}

func readMediaFile(file string) (media.File, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return media.File{}, fmt.Errorf("read media file: %w", err)
	}
	name := filepath.Base(file)
	return media.File{Name: name, Mime: media.SniffMime(data, name), Data: data}, nil
}

// mediaFlags reads --file and --url. f is nil unless --file is given.
func mediaFlags(cmd *cli.Command) (f *media.File, url string, err error) {
	file, url := cmd.String("file"), cmd.String("url")
	if file != "" && url != "" {
		return nil, "", fmt.Errorf("%w: use either --file or --url", models.ErrValidation)
	}
	if file == "" {
		return nil, url, nil
	}
	mf, err := readMediaFile(file)
	if err != nil {
		return nil, "", err
	}
	return &mf, "", nil
}

// mediaRef stores f or wraps url; ok is false when neither is given.
func mediaRef(ctx context.Context, s *story.Session, f *media.File, url string, t models.PageType) (ref models.MediaRef, ok bool, err error) {
	switch {
	case f != nil:
		ref, err := s.AttachMedia(ctx, *f, t)
		return ref, err == nil, err
	case url != "":
		return models.RemoteURL(url), true, nil
	}
	return models.MediaRef{}, false, nil
}

// mediaPageType parses --type, or derives it from the content type of the
// file or the extension of the URL when --type is empty.
func mediaPageType(typeFlag string, f *media.File, url string) (models.PageType, error) {
	if typeFlag != "" {
		t, err := models.ParsePageType(typeFlag)
		if err != nil {
			return "", err
		}
		if !t.IsMedia() {
			return "", fmt.Errorf("%w: add-media needs --type image or video", models.ErrValidation)
		}
		return t, nil
	}
	var mimeType string
	switch {
	case f != nil:
		mimeType = f.Mime
	case url != "":
		mimeType = media.MimeForExtension(path.Ext(strings.SplitN(url, "?", 2)[0]))
	}
	if t, ok := media.TypeForMime(mimeType); ok {
		return t, nil
	}
	if f != nil {
		return "", fmt.Errorf("%w: cannot tell whether %s is an image or a video, pass --type", models.ErrValidation, f.Name)
	}
	return models.PageImage, nil
}

func addMedia(ctx context.Context, cmd *cli.Command) error {
	e := envFromContext(ctx)
	f, url, err := mediaFlags(cmd)
	if err != nil {
		return err
	}
	t, err := mediaPageType(cmd.String("type"), f, url)
	if err != nil {
		return err
	}
	s, err := e.open(ctx, nil)
	if err != nil {
		return err
	}
	ref, _, err := mediaRef(ctx, s, f, url, t)
	if err != nil {
		s.Close()
		return err
	}
	p, err := s.AddPage(ctx, models.Draft{Type: t, Media: ref, DurationSec: durationSec(cmd)})
	if err != nil {
		s.Close()
		return err
	}
	fmt.Printf("added %s page %d (%s)\n", strings.ToLower(t.Label()), len(s.Pages())-1, p.Media)
	return e.finish(s)
}

// pageAt returns the page at the INDEX argument.
func pageAt(cmd *cli.Command, s *story.Session) (models.Page, error) {
	arg := cmd.Args().First()
	if arg == "" {
		return models.Page{}, fmt.Errorf("%w: missing page INDEX", models.ErrValidation)
	}
	i, err := strconv.Atoi(arg)
	if err != nil {
		return models.Page{}, fmt.Errorf("%w: bad page index %q", models.ErrValidation, arg)
	}
	pages := s.Pages()
	if i < 0 || i >= len(pages) {
		return models.Page{}, fmt.Errorf("%w: page %d out of range [0, %d)", models.ErrValidation, i, len(pages))
	}
	return pages[i], nil
}

func replacePage(ctx context.Context, cmd *cli.Command) error {
	e := envFromContext(ctx)
	s, err := e.open(ctx, nil)
	if err != nil {
		return err
	}
	defer s.Close()

	cur, err := pageAt(cmd, s)
	if err != nil {
		return err
	}
	d := models.Draft{Type: cur.Type, Text: cur.Text, Media: cur.Media, OriginURL: cur.OriginURL, DurationSec: cur.DurationSec}
	if cmd.IsSet("type") {
		if d.Type, err = models.ParsePageType(cmd.String("type")); err != nil {
			return err
		}
	}
	if cmd.IsSet("text") {
		d.Text = cmd.String("text")
	}
	if cmd.IsSet("duration") {
		d.DurationSec = durationSec(cmd)
	}
	f, url, err := mediaFlags(cmd)
	if err != nil {
		return err
	}
	ref, ok, err := mediaRef(ctx, s, f, url, d.Type)
	if err != nil {
		return err
	}
	if ok {
		d.Media, d.OriginURL = ref, ""
	}

	p, err := s.ReplacePage(ctx, cur.ID, d)
	if err != nil {
		return err
	}
	fmt.Printf("replaced page %s\n", p.ID)
	return e.finish(s)
}

func deletePage(ctx context.Context, cmd *cli.Command) error {
	e := envFromContext(ctx)
	s, err := e.open(ctx, nil)
	if err != nil {
		return err
	}
	defer s.Close()

	cur, err := pageAt(cmd, s)
	if err != nil {
		return err
	}
	if _, err := s.DeletePage(ctx, cur.ID); err != nil {
		return err
	}
	fmt.Printf("deleted page %s, %d left\n", cur.ID, len(s.Pages()))
	if cmd.Bool("purge") && cur.Media.Kind == models.MediaLocalBlob {
		if shared := pagesUsing(s.Pages(), cur.Media); shared > 0 {
			fmt.Printf("kept media %s, %d other page(s) use it\n", cur.Media.Value, shared)
		} else if err := s.DeleteMedia(ctx, cur.Media); err != nil {
			return err
		} else {
			fmt.Printf("deleted media %s\n", cur.Media.Value)
		}
	}
	return e.finish(s)
}

func pagesUsing(pages []models.Page, ref models.MediaRef) int {
	n := 0
	for _, p := range pages {
		if p.Media == ref {
			n++
		}
	}
	return n
}

func changeSettings(ctx context.Context, cmd *cli.Command) error {
	e := envFromContext(ctx)
	s, err := e.open(ctx, nil)
	if err != nil {
		return err
	}
	defer s.Close()

	var apply []func(*models.Settings)
	if cmd.IsSet("autoplay") {
		var on bool
		switch strings.ToLower(cmd.String("autoplay")) {
		case "on", "true", "yes", "1":
			on = true
		case "off", "false", "no", "0":
		default:
			return fmt.Errorf("%w: --autoplay must be on or off", models.ErrValidation)
		}
		apply = append(apply, func(st *models.Settings) { st.AutoPlay = on })
	}
	if cmd.IsSet("interval") {
		d := cmd.Duration("interval")
		if d <= 0 {
			return fmt.Errorf("%w: --interval must be positive", models.ErrValidation)
		}
		apply = append(apply, func(st *models.Settings) { st.AutoPlayIntervalSec = d.Seconds() })
	}
	if cmd.IsSet("text-size") {
		size, err := strconv.Atoi(cmd.String("text-size"))
		if err != nil || size <= 0 {
			return fmt.Errorf("%w: --text-size must be a positive number", models.ErrValidation)
		}
		apply = append(apply, func(st *models.Settings) { st.TextSize = size })
	}
	if len(apply) > 0 {
		err := s.UpdateSettings(ctx, func(st *models.Settings) {
			for _, fn := range apply {
				fn(st)
			}
		})
		if err != nil {
			return err
		}
	}
	printSettings(os.Stdout, s.Settings())
	return e.finish(s)
}

func play(ctx context.Context, cmd *cli.Command) error {
	e := envFromContext(ctx)
	s, err := e.open(ctx, &terminalRenderer{out: os.Stdout})
	if err != nil {
		return err
	}
	defer s.Close()

	if cmd.IsSet("from") {
		i, err := strconv.Atoi(cmd.String("from"))
		if err != nil {
			return fmt.Errorf("%w: bad --from %q", models.ErrValidation, cmd.String("from"))
		}
		if err := s.SetCurrentIndex(ctx, i); err != nil {
			return err
		}
	}
	if !s.Settings().AutoPlay {
		if err := s.UpdateSettings(ctx, func(st *models.Settings) { st.AutoPlay = true }); err != nil {
			return err
		}
		// leave the stored preference as it was
		defer func() {
			_ = s.UpdateSettings(context.WithoutCancel(ctx), func(st *models.Settings) { st.AutoPlay = false })
		}()
	}
	<-ctx.Done()
	fmt.Println()
	return nil
}

func exportStory(ctx context.Context, cmd *cli.Command) error {
	e := envFromContext(ctx)
	dir, out := cmd.String("dir"), cmd.String("out")
	if (dir == "") == (out == "") {
		return fmt.Errorf("%w: export needs exactly one of --dir or --out", models.ErrValidation)
	}
	s, err := e.open(ctx, nil)
	if err != nil {
		return err
	}
	defer s.Close()

	var (
		target transfer.Target
		osDir  *transfer.OSDir
	)
	switch {
	case dir != "":
		osDir = transfer.NewOSDir(dir)
		target.Dir = osDir
	case out == "-":
		target.Fallback = os.Stdout
	default:
		f, err := os.Create(out)
		if err != nil {
			return fmt.Errorf("create %s: %w", out, err)
		}
		defer f.Close()
		target.Fallback = f
	}

	res, err := transfer.Export(ctx, s.Pages(), e.media, target, e.log)
	if err != nil {
		return err
	}
	report := os.Stdout
	if out == "-" {
		report = os.Stderr
	}
	fmt.Fprintf(report, "exported %d pages, %d media files (%s)\n", len(res.Manifest.Pages), res.Files, humanize.Bytes(uint64(res.Bytes)))
	if osDir != nil {
		fmt.Fprintf(report, "written to %s\n", osDir.Root())
	}
	if res.Lossy > 0 {
		fmt.Fprintf(report, "warning: %d page(s) lost their media\n", res.Lossy)
	}
	if res.Warning != "" {
		fmt.Fprintln(report, "warning: "+res.Warning)
	}
	return nil
}

func confirmOnTerminal(in io.Reader, out io.Writer) transfer.Confirm {
	return func(pages int) bool {
		fmt.Fprintf(out, "Replace the current story with %d page(s)? [y/N] ", pages)
		answer, _ := bufio.NewReader(in).ReadString('\n')
		answer = strings.ToLower(strings.TrimSpace(answer))
		return answer == "y" || answer == "yes"
	}
}

func importStory(ctx context.Context, cmd *cli.Command) error {
	e := envFromContext(ctx)
	dir, file := cmd.String("dir"), cmd.String("file")
	if (dir == "") == (file == "") {
		return fmt.Errorf("%w: import needs exactly one of --dir or --file", models.ErrValidation)
	}
	var src transfer.Source
	if dir != "" {
		src.Dir = transfer.NewOSDir(dir)
	} else {
		f, err := os.Open(file)
		if err != nil {
			return fmt.Errorf("open %s: %w", file, err)
		}
		defer f.Close()
		src.Manifest = f
	}
	confirm := confirmOnTerminal(os.Stdin, os.Stdout)
	if cmd.Bool("yes") {
		confirm = nil
	}

	s, err := e.open(ctx, nil)
	if err != nil {
		return err
	}
	defer s.Close()

	res, err := transfer.Import(ctx, src, e.media, confirm, e.log)
	if errors.Is(err, transfer.ErrImportDeclined) {
		fmt.Println("import cancelled, story unchanged")
		return nil
	}
	if err != nil {
		return err
	}
	if err := s.ReplaceAll(ctx, res.Pages); err != nil {
		return err
	}
	fmt.Printf("imported %d pages, %d media files stored\n", len(res.Pages), res.Stored)
	for _, err := range multierr.Errors(res.Errors) {
		fmt.Fprintf(os.Stderr, "warning: %v\n", err)
	}
	if res.URLFallbacks > 0 {
		fmt.Printf("%d page(s) use their URL because the file could not be read\n", res.URLFallbacks)
	}
	if res.Failed > 0 {
		fmt.Printf("%d page(s) have no media\n", res.Failed)
	}
	if res.Reattach > 0 {
		fmt.Printf("%d media page(s) need their file attached again (import with --dir to load files)\n", res.Reattach)
	}
	return e.finish(s)
}
