package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"qrwatermark"
	"qrwatermark/config"
	"qrwatermark/converter"
	"qrwatermark/core"
	"qrwatermark/logger"
	"qrwatermark/server"

	"github.com/spf13/pflag"
	"gonum.org/v1/gonum/mat"
)

// Mode 子命令
type Mode int

const (
	ModeEmbed Mode = iota + 1
	ModeExtract
	ModeQR
	ModeServe
)

func parseMode(s string) (Mode, error) {
	switch s {
	case "embed":
		return ModeEmbed, nil
	case "extract":
		return ModeExtract, nil
	case "qr":
		return ModeQR, nil
	case "serve":
		return ModeServe, nil
	}
	return 0, fmt.Errorf("invalid mode %q, use embed, extract, qr or serve", s)
}

const usage = `Usage:
  qrmark embed   --watermark <wm> --out <out> (--cover <qr> | --content <text>) [--variant hybrid|block|reference] [--key <key>]
  qrmark extract --in <img> [--variant cover|block|reference] [--original <qr>] [--key <key>]
                 [--reference-watermark <wm>] [--out <estimate>]
  qrmark qr      --content <text> --out <qr>
  qrmark serve   [--addr :8080]

Common flags: --config <file.yaml> --alpha <strength>
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	mode, err := parseMode(os.Args[1])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	if err := run(mode, os.Args[2:]); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

type options struct {
	configPath string
	alpha      float64

	cover     string
	content   string
	watermark string
	in        string
	out       string
	original  string
	reference string
	variant   string
	key       string
	addr      string
}

func run(mode Mode, args []string) error {
	var opts options
	fs := pflag.NewFlagSet(os.Args[0], pflag.ContinueOnError)
	fs.StringVar(&opts.configPath, "config", "", "path to YAML config (default $"+config.EnvConfig+")")
	fs.Float64Var(&opts.alpha, "alpha", 0, "embedding strength, overrides config")
	fs.StringVar(&opts.cover, "cover", "", "cover QR code image")
	fs.StringVar(&opts.content, "content", "", "generate the cover QR code from this text")
	fs.StringVar(&opts.watermark, "watermark", "", "watermark image")
	fs.StringVar(&opts.in, "in", "", "watermarked image")
	fs.StringVar(&opts.out, "out", "", "output image")
	fs.StringVar(&opts.original, "original", "", "original cover, required by the cover extractor")
	fs.StringVar(&opts.reference, "reference-watermark", "", "reference watermark used for verification")
	fs.StringVar(&opts.variant, "variant", "", "algorithm variant")
	fs.StringVar(&opts.key, "key", "", "reference artifact key (default from config)")
	fs.StringVar(&opts.addr, "addr", "", "listen address for serve (default from config)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return err
	}
	if fs.Changed("alpha") {
		cfg.Alpha = opts.alpha
		if err := cfg.Validate(); err != nil {
			return err
		}
	}
	if opts.key == "" {
		opts.key = cfg.Reference.Key
	}

	log, err := logger.New(cfg.Log)
	if err != nil {
		return err
	}
	defer log.Sync()

	wm, err := qrwatermark.NewFromConfig(cfg, log)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch mode {
	case ModeEmbed:
		return runEmbed(ctx, wm, opts)
	case ModeExtract:
		return runExtract(ctx, wm, opts)
	case ModeQR:
		return runQR(wm, opts)
	case ModeServe:
		return runServe(ctx, wm, cfg, log, opts)
	}
	return nil
}

func runEmbed(ctx context.Context, wm *qrwatermark.Watermarker, opts options) error {
	if opts.watermark == "" || opts.out == "" || (opts.cover == "" && opts.content == "") {
		return errors.New("embed requires --watermark, --out and one of --cover or --content")
	}
	variant, err := core.ParseEmbedVariant(orDefault(opts.variant, "hybrid"))
	if err != nil {
		return err
	}

	var cover *mat.Dense
	if opts.cover != "" {
		cover, err = converter.LoadFile(opts.cover)
	} else {
		cover, err = wm.NewQRCover(opts.content)
	}
	if err != nil {
		return fmt.Errorf("load cover: %w", err)
	}
	watermark, err := converter.LoadFile(opts.watermark)
	if err != nil {
		return fmt.Errorf("load watermark: %w", err)
	}

	out, err := wm.Embed(ctx, variant, opts.key, cover, watermark)
	if err != nil {
		return err
	}
	if err := converter.SaveFile(opts.out, out); err != nil {
		return err
	}
	fmt.Printf("Watermarked QR saved at %s (variant %s, extract with --variant %s)\n", opts.out, variant, variant.Pair())
	return nil
}

func runExtract(ctx context.Context, wm *qrwatermark.Watermarker, opts options) error {
	if opts.in == "" {
		return errors.New("extract requires --in")
	}
	variant, err := core.ParseExtractVariant(orDefault(opts.variant, "cover"))
	if err != nil {
		return err
	}

	marked, err := converter.LoadFile(opts.in)
	if err != nil {
		return fmt.Errorf("load watermarked image: %w", err)
	}
	var original *mat.Dense
	if opts.original != "" {
		if original, err = converter.LoadFile(opts.original); err != nil {
			return fmt.Errorf("load original: %w", err)
		}
	}

	est, err := wm.Extract(ctx, variant, opts.key, marked, original)
	if err != nil {
		return err
	}
	rows, cols := est.Matrix.Dims()
	fmt.Printf("Extracted %dx%d watermark estimate (%s)\n", rows, cols, variant)
	if est.Warning != nil {
		fmt.Printf("Warning: %v\n", est.Warning)
	}
	if opts.out != "" {
		if err := converter.SaveFile(opts.out, est.Matrix); err != nil {
			return err
		}
	}

	if opts.reference == "" {
		return nil
	}
	reference, err := converter.LoadFile(opts.reference)
	if err != nil {
		return fmt.Errorf("load reference watermark: %w", err)
	}
	res, err := wm.Verify(reference, est.Matrix)
	if err != nil {
		return err
	}
	fmt.Printf("SSIM similarity score: %.4f\n", res.Score)
	fmt.Printf("Result: %s\n", strings.ToUpper(res.Classification.String()))
	return nil
}

func runQR(wm *qrwatermark.Watermarker, opts options) error {
	if opts.content == "" || opts.out == "" {
		return errors.New("qr requires --content and --out")
	}
	cover, err := wm.NewQRCover(opts.content)
	if err != nil {
		return err
	}
	return converter.SaveFile(opts.out, cover)
}

func runServe(ctx context.Context, wm *qrwatermark.Watermarker, cfg *config.Config, log *logger.Logger, opts options) error {
	addr := orDefault(opts.addr, cfg.Server.Addr)
	srv := &http.Server{
		Addr:              addr,
		Handler:           server.NewHandler(wm, cfg, log),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("server listening", nil, map[string]interface{}{"addr": addr})
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
