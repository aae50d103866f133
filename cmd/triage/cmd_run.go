package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"mailtriage/internal/collab"
	"mailtriage/internal/config"
	"mailtriage/internal/graph"
	"mailtriage/internal/llm"
	"mailtriage/internal/model"
	"mailtriage/internal/repository"
	"mailtriage/internal/service"
	"mailtriage/internal/workflow"
	"mailtriage/pkg/logger"
)

var runFlags struct {
	file    string
	id      string
	sender  string
	subject string
	body    string
	history string
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Triage one email locally and print the resulting run",
	Long: `Runs a single email through the graph with in-memory storage and prints
the RunState as JSON. The email comes from --file (JSON, "-" for stdin) or
from the --sender/--subject/--body flags.

Usage:
  triage run --body "Can we book a demo next week?" --sender jane@example.com
  triage run --file email.json
  cat email.json | triage run --file -`,
	Args: cobra.NoArgs,
	RunE: runRun,
}

func init() {
	f := runCmd.Flags()
	f.StringVarP(&runFlags.file, "file", "f", "", "Email JSON file, - for stdin")
	f.StringVar(&runFlags.id, "id", "", "Email id (default: random)")
	f.StringVar(&runFlags.sender, "sender", "", "Sender address")
	f.StringVar(&runFlags.subject, "subject", "", "Subject line")
	f.StringVar(&runFlags.body, "body", "", "Email body")
	f.StringVar(&runFlags.history, "history", "", "Previous conversation for context")
}

func runRun(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	log := logger.NewLogger(cfg.Debug)
	defer log.Sync()

	email, err := readEmail(cmd.InOrStdin())
	if err != nil {
		return err
	}

	client := llm.NewOllamaClient(cfg.Ollama, log)
	st, drafts, runErr := triageOnce(cmd.Context(), cfg, client, email, log)
	if st == nil {
		return runErr
	}

	out := struct {
		Run    *model.RunState    `json:"run"`
		Drafts []model.DraftReply `json:"persisted_drafts"`
	}{Run: st, Drafts: drafts}
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		return err
	}
	return runErr
}

// triageOnce runs one email against in-memory stores and returns the run
// and the drafts that reached the outbound store.
func triageOnce(ctx context.Context, cfg *config.Config, client llm.ModelClient, email model.Email, log *zap.Logger) (*model.RunState, []model.DraftReply, error) {
	drafts := repository.NewMemoryDraftRepository()
	engine, err := workflow.NewEngine(workflow.Deps{
		Client:   client,
		Calendar: newCalendar(cfg),
		Alerter:  collab.NewLogAlerter(log),
		Store:    drafts,
		Audit:    graph.NewLogSink(log),
		Policy:   cfg.Policy,
		Logger:   log,
	})
	if err != nil {
		return nil, nil, err
	}

	svc := service.NewTriageService(engine, repository.NewMemoryRunRepository(), nil, 1, log)
	st, err := svc.Process(ctx, email)
	return st, drafts.Drafts(), err
}

func readEmail(stdin io.Reader) (model.Email, error) {
	var email model.Email
	switch runFlags.file {
	case "":
		if runFlags.body == "" {
			return email, fmt.Errorf("--body or --file is required")
		}
		email = model.Email{
			ID:      runFlags.id,
			Sender:  runFlags.sender,
			Subject: runFlags.subject,
			Body:    runFlags.body,
			History: runFlags.history,
		}
	default:
		r := stdin
		if runFlags.file != "-" {
			f, err := os.Open(runFlags.file)
			if err != nil {
				return email, err
			}
			defer f.Close()
			r = f
		}
		if err := json.NewDecoder(r).Decode(&email); err != nil {
			return email, fmt.Errorf("decode email: %w", err)
		}
	}

	if email.ID == "" {
		email.ID = uuid.NewString()
	}
	if email.ReceivedAt.IsZero() {
		email.ReceivedAt = time.Now().UTC()
	}
	return email, nil
}
