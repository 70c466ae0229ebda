package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"docembed/internal/chunker"
	"docembed/internal/config"
	"docembed/internal/decoder"
	"docembed/internal/embedding"
	"docembed/internal/embedding/hashing"
	"docembed/internal/embedding/ollama"
	"docembed/internal/embedding/openai"
	"docembed/internal/export"
	"docembed/internal/logging"
	"docembed/internal/pipeline"
	"docembed/internal/tui"
)

func main() {
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, "docembed:", err)
		os.Exit(1)
	}
}

type options struct {
	configPath string
	headless   bool
	outDir     string
	input      string
}

func parseArgs(args []string, stderr io.Writer) (options, error) {
	var o options
	fs := flag.NewFlagSet("docembed", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&o.configPath, "config", "", "Path to YAML config file (optional; uses ~/.config/docembed/config.yaml if not provided)")
	fs.BoolVar(&o.headless, "headless", false, "Run without the terminal UI and export on completion")
	fs.StringVar(&o.outDir, "out", "", "Directory for export files (overrides export.dir)")
	if err := fs.Parse(args); err != nil {
		return o, err
	}
	if fs.NArg() != 1 {
		return o, errors.New("usage: docembed [--config=config.yaml] [--headless] [--out=dir] <file>")
	}
	o.input = fs.Arg(0)
	return o, nil
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	opts, err := parseArgs(args, stderr)
	if err != nil {
		return err
	}

	var cfg *config.AppConfig
	if opts.configPath == "" {
		cfg, _, err = config.LoadDefault()
	} else {
		cfg, err = config.Load(opts.configPath)
	}
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if opts.outDir != "" {
		cfg.Export.Dir = opts.outDir
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logOut := stderr
	if !opts.headless {
		f, err := os.OpenFile(cfg.Log.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		defer f.Close()
		logOut = f
	}
	logger := logging.New(cfg.Log.Level, logOut)

	emb, err := buildEmbedder(cfg, logger)
	if err != nil {
		return err
	}
	wc, err := chunker.NewWordChunker(cfg.Chunker.MaxWordsPerChunk)
	if err != nil {
		return err
	}
	driver, err := pipeline.NewDriver(emb, cfg.Checkpoint(), logger)
	if err != nil {
		return err
	}
	ctrl := pipeline.NewController(wc, driver, logger)

	source := filepath.Base(opts.input)
	text, err := readDocument(opts.input)
	if err != nil {
		return err
	}
	logger.Info().Str("source", source).Str("embedder", emb.Name()).Int("max_words", wc.MaxWords()).Msg("Document loaded")

	writer := export.Writer{Dir: cfg.Export.Dir, Formats: cfg.Export.Formats, Logger: logger}

	if opts.headless {
		return runHeadless(ctx, ctrl, writer, source, text, stdout, logger)
	}

	submitErr := ctrl.SubmitDocument(source, text)
	if submitErr != nil {
		logger.Warn().Err(submitErr).Str("source", source).Msg("Document not chunked")
	}
	m := tui.New(ctrl, tui.Options{Source: source, Text: text, Export: writer.Save, SubmitErr: submitErr})
	if _, err := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx)).Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return err
	}
	return nil
}

func runHeadless(ctx context.Context, ctrl *pipeline.Controller, writer export.Writer, source, text string, stdout io.Writer, logger zerolog.Logger) error {
	if err := ctrl.SubmitDocument(source, text); err != nil {
		return err
	}
	start := time.Now()
	err := ctrl.StartEmbedding(ctx, func(p float64) {
		logger.Info().Str("progress", fmt.Sprintf("%.1f%%", p)).Msg("Embedding")
	})
	if err != nil {
		return fmt.Errorf("embed %s: %w", source, err)
	}
	doc, err := ctrl.Export()
	if err != nil {
		return err
	}
	paths, err := writer.Save(ctx, doc, ctrl.Snapshot().RunID)
	if err != nil {
		return fmt.Errorf("export: %w", err)
	}
	logger.Info().Int("chunks", len(doc.Items)).Int("dimension", doc.Dimension).Dur("took", time.Since(start)).Msg("Done")
	for _, p := range paths {
		fmt.Fprintln(stdout, p)
	}
	return nil
}

func readDocument(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	text, err := decoder.Decode(data, decoder.DetectMIME(path, data))
	if err != nil {
		return "", fmt.Errorf("decode %s: %w", path, err)
	}
	return text, nil
}

func buildEmbedder(cfg *config.AppConfig, logger zerolog.Logger) (embedding.Embedder, error) {
	switch cfg.Embedder.Type {
	case "hashing":
		dim := 0
		if cfg.Embedder.Hashing != nil {
			dim = cfg.Embedder.Hashing.Dimension
		}
		return hashing.NewEmbedder(dim), nil
	case "openai":
		oc := cfg.Embedder.OpenAI
		if oc == nil {
			return nil, errors.New("openai embedder config missing")
		}
		retries := openai.DefaultMaxRetries
		if oc.MaxRetries != nil {
			retries = *oc.MaxRetries
		}
		client, err := openai.NewClient(openai.Config{
			BaseURL:    oc.BaseURL,
			APIKey:     os.Getenv(oc.APIKeyEnv),
			Model:      oc.Model,
			Timeout:    time.Duration(oc.TimeoutSecs) * time.Second,
			MaxRetries: retries,
		})
		if err != nil {
			return nil, fmt.Errorf("openai embedder init failed: %w", err)
		}
		return client, nil
	case "ollama":
		oc := cfg.Embedder.Ollama
		if oc == nil {
			return nil, errors.New("ollama embedder config missing")
		}
		return ollama.New(ollama.Config{ServerURL: oc.ServerURL, Model: oc.Model}, logger), nil
	}
	return nil, fmt.Errorf("unknown embedder: %s", cfg.Embedder.Type)
}
