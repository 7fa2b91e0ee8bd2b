package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"image"
	"io"
	"os"
	"strings"

	"github.com/timmy/neonmeme/internal/catalog"
	"github.com/timmy/neonmeme/internal/logger"
	"github.com/timmy/neonmeme/internal/render"
)

type options struct {
	image        string
	template     string
	templatesDir string
	fontsDir     string
	list         bool
	out          string
	maxPixels    int64
	params       render.Params
}

func main() {
	appLogger := logger.New(&logger.Config{
		Level:       "warn",
		Format:      "text",
		ServiceName: "neonmeme-render",
		Environment: logger.EnvLocal,
		Output:      os.Stderr,
	})
	logger.SetDefault(appLogger)

	opts, err := parseFlags(os.Args[1:])
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	ctx := logger.SetComponent(appLogger.WithContext(context.Background()), "render_cli")
	if err := run(ctx, opts, os.Stdout); err != nil {
		appLogger.WithError(err).Error("Render failed")
		os.Exit(1)
	}
}

func parseFlags(args []string) (*options, error) {
	defaults := render.DefaultParams()
	opts := &options{}

	fs := flag.NewFlagSet("render", flag.ContinueOnError)
	fs.StringVar(&opts.image, "image", "", "Path to a JPG or PNG base image")
	fs.StringVar(&opts.template, "template", "", "Template name from -templates")
	fs.StringVar(&opts.templatesDir, "templates", "./templates", "Template directory")
	fs.StringVar(&opts.fontsDir, "fonts", "./Fonts", "Font directory")
	fs.BoolVar(&opts.list, "list", false, "List templates and fonts, then exit")
	fs.StringVar(&opts.out, "out", render.DownloadName, "Output PNG path")
	fs.Int64Var(&opts.maxPixels, "max-pixels", render.DefaultMaxPixels, "Largest accepted base image in pixels")
	fs.StringVar(&opts.params.TopText, "top", defaults.TopText, "Top caption")
	fs.StringVar(&opts.params.BottomText, "bottom", defaults.BottomText, "Bottom caption")
	fs.StringVar(&opts.params.Font, "font", defaults.Font, "Font file name from -fonts")
	fs.IntVar(&opts.params.FontSize, "size", defaults.FontSize, "Font size in pixels")
	fs.IntVar(&opts.params.OutlineThickness, "thickness", defaults.OutlineThickness, "Outline thickness in pixels")
	fill := fs.String("fill", defaults.FillColor.String(), "Text colour (#RRGGBB)")
	outline := fs.String("outline", defaults.OutlineColor.String(), "Outline colour (#RRGGBB)")
	mode := fs.String("mode", string(render.OutlineOffset), "Outline mode: offset or dilate")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	var err error
	if opts.params.FillColor, err = render.ParseColor(*fill); err != nil {
		return nil, fmt.Errorf("-fill: %w", err)
	}
	if opts.params.OutlineColor, err = render.ParseColor(*outline); err != nil {
		return nil, fmt.Errorf("-outline: %w", err)
	}
	if opts.params.OutlineMode, err = render.ParseOutlineMode(*mode); err != nil {
		return nil, fmt.Errorf("-mode: %w", err)
	}
	if !opts.list && (opts.image == "") == (opts.template == "") {
		return nil, errors.New("select exactly one of -image or -template")
	}
	return opts, nil
}

func run(ctx context.Context, opts *options, stdout io.Writer) error {
	templates := catalog.NewDirProvider(opts.templatesDir, catalog.TemplateExtensions...)
	fonts := catalog.NewDirProvider(opts.fontsDir, catalog.FontExtensions...)

	fontItems, err := fonts.List(ctx)
	if err != nil {
		return err
	}

	if opts.list {
		return list(ctx, templates, fontItems, stdout)
	}
	if len(fontItems) == 0 {
		fmt.Fprintf(stdout, "warning: no fonts found in %s; captions use %s\n", opts.fontsDir, render.FallbackFontName)
	}

	base, err := loadBase(ctx, opts, templates)
	if err != nil {
		return err
	}

	res, err := render.NewRenderer(render.NewFontSet(fonts), render.DefaultLimits()).Render(ctx, base, opts.params)
	if err != nil {
		return err
	}
	for _, w := range res.Warnings {
		fmt.Fprintf(stdout, "warning: %s\n", w)
	}

	data, err := render.EncodePNG(res.Image)
	if err != nil {
		return err
	}
	if err := os.WriteFile(opts.out, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", opts.out, err)
	}

	b := res.Image.Bounds()
	fmt.Fprintf(stdout, "wrote %s (%dx%d)\n", opts.out, b.Dx(), b.Dy())
	return nil
}

func list(ctx context.Context, templates catalog.Provider, fonts []catalog.Resource, stdout io.Writer) error {
	items, err := catalog.Gallery(ctx, templates, catalog.DefaultGalleryLimit)
	if err != nil && !errors.Is(err, catalog.ErrNoTemplates) {
		return err
	}
	fmt.Fprintf(stdout, "templates: %s\n", strings.Join(catalog.Names(items), ", "))
	fmt.Fprintf(stdout, "fonts: %s\n", strings.Join(catalog.Names(fonts), ", "))
	return nil
}

func loadBase(ctx context.Context, opts *options, templates catalog.Provider) (image.Image, error) {
	if opts.image != "" {
		if !catalog.HasExtension(opts.image, catalog.TemplateExtensions) {
			return nil, fmt.Errorf("%s: %w", opts.image, render.ErrUnsupportedFormat)
		}
		data, err := os.ReadFile(opts.image)
		if err != nil {
			return nil, err
		}
		img, _, err := render.DecodeBounded(data, opts.maxPixels)
		return img, err
	}

	if err := catalog.InGallery(ctx, templates, catalog.DefaultGalleryLimit, opts.template); err != nil {
		return nil, err
	}
	rc, err := templates.Open(ctx, opts.template)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, err
	}
	img, _, err := render.DecodeBounded(data, opts.maxPixels)
	return img, err
}
