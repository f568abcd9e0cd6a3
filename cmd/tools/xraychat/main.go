package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"

	"github.com/sahaay-health/sahaay/backend/internal/config"
	"github.com/sahaay-health/sahaay/backend/internal/model/knowledge"
	"github.com/sahaay-health/sahaay/backend/internal/service/ai"
	"github.com/sahaay-health/sahaay/backend/internal/service/chat"
	"github.com/sahaay-health/sahaay/backend/internal/service/dispatch"
	"github.com/sahaay-health/sahaay/backend/internal/service/upload"
	"github.com/sahaay-health/sahaay/backend/internal/service/vision"
	"github.com/sahaay-health/sahaay/backend/pkg/log"
)

const usage = `commands:
  /image <path>   upload a chest X-ray (jpg, jpeg, png)
  /history        print the transcript, most recent first
  /quit           exit
anything else is sent as a question`

func main() {
	imagePath := flag.String("image", "", "chest X-ray to classify before the first question")
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}
	if err := log.Init(cfg.Log.Level, "console", ""); err != nil {
		fmt.Fprintf(os.Stderr, "logger error: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	ctx := context.Background()

	topics, err := knowledge.Build(cfg.Knowledge.File)
	if err != nil {
		log.Fatal("failed to load knowledge table", err)
	}

	var generator dispatch.Generator
	if aiService, err := ai.NewService(ctx, cfg.AI); err != nil {
		log.Warnw("generative responder unavailable", "error", err)
	} else {
		generator = aiService
	}

	uploads, err := upload.NewStore(ctx, cfg.Upload)
	if err != nil {
		log.Fatal("failed to initialise upload storage", err)
	}

	svc := chat.NewService(dispatch.New(topics, generator), vision.NewClient(cfg.Classifier), uploads)
	session, err := svc.CreateSession(ctx)
	if err != nil {
		log.Fatal("failed to create session", err)
	}

	fmt.Println("Sahaay - chest X-ray assistant")
	fmt.Println(usage)

	if *imagePath != "" {
		uploadImage(ctx, svc, session.ID, *imagePath)
	}

	run(ctx, svc, session.ID, os.Stdin, os.Stdout)
}

func run(ctx context.Context, svc *chat.Service, sessionID string, in io.Reader, out io.Writer) {
	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "\n> ")
		if !scanner.Scan() {
			return
		}
		line := strings.TrimSpace(scanner.Text())

		switch {
		case line == "":
			continue
		case line == "/quit":
			return
		case line == "/history":
			view, err := svc.View(ctx, sessionID)
			if err != nil {
				fmt.Fprintf(out, "error: %v\n", err)
				continue
			}
			printHistory(out, view)
		case strings.HasPrefix(line, "/image "):
			uploadImage(ctx, svc, sessionID, strings.TrimSpace(strings.TrimPrefix(line, "/image ")))
		default:
			view, err := svc.Submit(ctx, sessionID, line)
			if err != nil {
				fmt.Fprintf(out, "error: %v\n", err)
				continue
			}
			printLatest(out, view)
		}
	}
}

func uploadImage(ctx context.Context, svc *chat.Service, sessionID, path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		fmt.Printf("cannot read %s: %v\n", path, err)
		return
	}
	view, err := svc.Upload(ctx, sessionID, filepath.Base(path), data)
	if err != nil {
		fmt.Printf("error: %v\n", err)
		return
	}
	if view.Classification != nil && view.Error == "" {
		fmt.Printf("Classification: %s (confidence %s)\n", view.Classification.Label, view.Classification.Confidence)
	}
	printLatest(os.Stdout, view)
}

func printLatest(out io.Writer, view chat.View) {
	if view.Error != "" {
		fmt.Fprintf(out, "! %s\n", view.Error)
		return
	}
	if len(view.Messages) > 0 {
		fmt.Fprintf(out, "assistant: %s\n", view.Messages[0].Content)
	}
}

func printHistory(out io.Writer, view chat.View) {
	for _, msg := range view.Messages {
		fmt.Fprintf(out, "[%s] %s\n", msg.Role, msg.Content)
	}
}
