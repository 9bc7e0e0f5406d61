// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/poiesic/ragnote"
	"github.com/poiesic/ragnote/api"
	"github.com/poiesic/ragnote/chat"
	"github.com/poiesic/ragnote/config"
	"github.com/poiesic/ragnote/core"
	"github.com/poiesic/ragnote/tracing"
	"github.com/urfave/cli/v2"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := newApp(os.Stdout).Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

// runner holds what every command shares. Tests add assistant options to
// replace the AI services.
type runner struct {
	stdout  io.Writer
	options []ragnote.Option
}

func newApp(stdout io.Writer, opts ...ragnote.Option) *cli.App {
	r := &runner{stdout: stdout, options: opts}
	return &cli.App{
		Name:  "ragnote",
		Usage: "Personal assistant that answers from your notes",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
			},
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to the YAML configuration file (default ./" + config.DefaultPath + " when present)",
				EnvVars: []string{"RAGNOTE_CONFIG"},
			},
		},
		Before: setupLogger,
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Serve the HTTP API",
				Action: r.serveCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "addr",
						Usage: "Listen address (overrides server.addr)",
					},
				},
			},
			{
				Name:   "ingest",
				Usage:  "Add a note to the knowledge base",
				Action: r.ingestCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "text",
						Aliases: []string{"t"},
						Usage:   "Note text",
					},
					&cli.StringFlag{
						Name:    "file",
						Aliases: []string{"f"},
						Usage:   "Read the note from a file (- for stdin)",
					},
				},
			},
			{
				Name:      "ask",
				Usage:     "Ask the assistant a question",
				ArgsUsage: "<question>",
				Action:    r.askCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "conversation",
						Usage: "Continue an existing conversation",
					},
					&cli.StringFlag{
						Name:  "user",
						Usage: "User id (defaults to persona.default_user_id)",
					},
				},
			},
			{
				Name:  "profile",
				Usage: "Manage user profiles",
				Subcommands: []*cli.Command{
					{
						Name:   "set",
						Usage:  "Replace a user's profile",
						Action: r.profileSetCommand,
						Flags: []cli.Flag{
							&cli.StringFlag{
								Name:  "user",
								Usage: "User id (defaults to persona.default_user_id)",
							},
							&cli.StringFlag{
								Name:  "info",
								Usage: "Profile text",
							},
							&cli.StringFlag{
								Name:  "file",
								Usage: "Read the profile text from a file (- for stdin)",
							},
						},
					},
				},
			},
			{
				Name:   "delete",
				Usage:  "Delete a chunk and its vector",
				Action: r.deleteCommand,
				Flags: []cli.Flag{
					&cli.Uint64Flag{
						Name:     "id",
						Usage:    "Chunk id",
						Required: true,
					},
				},
			},
			{
				Name:   "resume",
				Usage:  "Finish interrupted ingestions",
				Action: r.resumeCommand,
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "retry-partial",
						Usage: "Also re-run ingestions that finished with failed chunks",
					},
				},
			},
			{
				Name:   "reindex",
				Usage:  "Re-embed every chunk into the vector index",
				Action: r.reindexCommand,
			},
		},
	}
}

// open loads the configuration, installs tracing and opens the assistant.
// The returned func releases all of it.
func (r *runner) open(c *cli.Context) (*config.Config, *ragnote.Assistant, func(), error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, nil, nil, err
	}

	shutdownTracing, err := tracing.Setup(c.Context, cfg.Tracing)
	if err != nil {
		return nil, nil, nil, err
	}

	assistant, err := ragnote.Open(cfg, r.options...)
	if err != nil {
		_ = shutdownTracing(context.Background())
		return nil, nil, nil, fmt.Errorf("failed to open assistant: %w", err)
	}

	closeAll := func() {
		if err := assistant.Close(); err != nil {
			slog.Error("error closing assistant", "err", err)
		}
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := shutdownTracing(ctx); err != nil {
			slog.Error("error flushing traces", "err", err)
		}
	}
	return cfg, assistant, closeAll, nil
}

func (r *runner) serveCommand(c *cli.Context) error {
	cfg, assistant, closeAll, err := r.open(c)
	if err != nil {
		return err
	}
	defer closeAll()

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	resumed, err := assistant.Resume(ctx, false)
	if err != nil {
		slog.Error("failed to resume ingestions", "err", err)
	} else if resumed > 0 {
		slog.Info("resumed ingestions", "count", resumed)
	}

	addr := cfg.Server.Addr
	if c.String("addr") != "" {
		addr = c.String("addr")
	}
	server := &http.Server{
		Addr:              addr,
		Handler:           api.NewRouter(api.NewHandler(assistant, slog.Default())),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("listening", "addr", addr)
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
	case <-ctx.Done():
		slog.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown failed: %w", err)
		}
	}
	assistant.Wait()
	return nil
}

func (r *runner) ingestCommand(c *cli.Context) error {
	text, err := textFromFlags(c, "text", "file")
	if err != nil {
		return err
	}

	_, assistant, closeAll, err := r.open(c)
	if err != nil {
		return err
	}
	defer closeAll()

	instanceID, err := assistant.Ingest(c.Context, text)
	if err != nil {
		return fmt.Errorf("ingestion failed: %w", err)
	}
	assistant.Wait()

	instance, err := assistant.Instance(c.Context, instanceID)
	if err != nil {
		return fmt.Errorf("failed to read ingestion status: %w", err)
	}
	fmt.Fprintf(r.stdout, "%s %s\n", instance.ID, instance.Status)
	if instance.Status == core.WorkflowPartial {
		return fmt.Errorf("ingestion %s finished with failed chunks; run `ragnote resume --retry-partial`", instance.ID)
	}
	return nil
}

func (r *runner) askCommand(c *cli.Context) error {
	question := strings.TrimSpace(strings.Join(c.Args().Slice(), " "))
	if question == "" {
		return fmt.Errorf("a question is required")
	}

	_, assistant, closeAll, err := r.open(c)
	if err != nil {
		return err
	}
	defer closeAll()

	resp, err := assistant.Chat(c.Context, chat.Request{
		Text:           question,
		ConversationID: c.String("conversation"),
		UserID:         c.String("user"),
	})
	if err != nil {
		return err
	}
	// Links found in the question are ingested before exiting.
	assistant.Wait()

	fmt.Fprintln(r.stdout, resp.Response)
	slog.Info("answered", "conversation", resp.ConversationID, "model", resp.Model,
		"contextUsed", resp.ContextUsed, "urlsExtracted", resp.URLsExtracted)
	return nil
}

func (r *runner) profileSetCommand(c *cli.Context) error {
	info, err := textFromFlags(c, "info", "file")
	if err != nil {
		return err
	}

	_, assistant, closeAll, err := r.open(c)
	if err != nil {
		return err
	}
	defer closeAll()

	profile, err := assistant.UpdateProfile(c.Context, c.String("user"), info)
	if err != nil {
		return err
	}
	fmt.Fprintf(r.stdout, "profile updated for %s\n", profile.UserID)
	return nil
}

func (r *runner) deleteCommand(c *cli.Context) error {
	_, assistant, closeAll, err := r.open(c)
	if err != nil {
		return err
	}
	defer closeAll()

	id := core.ID(c.Uint64("id"))
	if err := assistant.DeleteChunk(c.Context, id); err != nil {
		return err
	}
	fmt.Fprintf(r.stdout, "deleted chunk %d\n", id)
	return nil
}

func (r *runner) resumeCommand(c *cli.Context) error {
	_, assistant, closeAll, err := r.open(c)
	if err != nil {
		return err
	}
	defer closeAll()

	count, err := assistant.Resume(c.Context, c.Bool("retry-partial"))
	if err != nil {
		return fmt.Errorf("resume failed: %w", err)
	}
	assistant.Wait()
	fmt.Fprintf(r.stdout, "resumed %d ingestions\n", count)
	return nil
}

func (r *runner) reindexCommand(c *cli.Context) error {
	cfg, assistant, closeAll, err := r.open(c)
	if err != nil {
		return err
	}
	defer closeAll()

	fmt.Fprintf(os.Stderr, "Data dir: %s\n", cfg.Storage.DataDir)
	fmt.Fprintf(os.Stderr, "Vector index: %s\n", cfg.Storage.VectorIndex)
	fmt.Fprintf(os.Stderr, "Embedding model: %s\n", cfg.Embedding.Model)
	fmt.Fprintln(os.Stderr)

	if _, err := assistant.Reindex(c.Context, os.Stderr); err != nil {
		return fmt.Errorf("reindex failed: %w", err)
	}
	return nil
}

// textFromFlags returns the value of textFlag, or the contents of the file
// named by fileFlag. Exactly one must be set.
func textFromFlags(c *cli.Context, textFlag, fileFlag string) (string, error) {
	text, file := c.String(textFlag), c.String(fileFlag)
	switch {
	case text != "" && file != "":
		return "", fmt.Errorf("--%s and --%s are mutually exclusive", textFlag, fileFlag)
	case text != "":
		return text, nil
	case file == "-":
		data, err := io.ReadAll(os.Stdin)
		return string(data), err
	case file != "":
		data, err := os.ReadFile(file)
		if err != nil {
			return "", fmt.Errorf("failed to read %s: %w", file, err)
		}
		return string(data), nil
	}
	return "", fmt.Errorf("one of --%s or --%s is required", textFlag, fileFlag)
}

func setupLogger(c *cli.Context) error {
	levelStr := strings.ToLower(c.String("log-level"))

	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", levelStr)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	return nil
}
