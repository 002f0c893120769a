package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/afero"

	"github.com/elee1766/orbital/src/conversation"
	"github.com/elee1766/orbital/src/search"
	"github.com/elee1766/orbital/src/window"
)

// PromptCmd represents the single prompt command
type PromptCmd struct {
	Text      []string `arg:"" optional:"" help:"The prompt text to send"`
	File      string   `short:"f" help:"Load prompt from file"`
	Model     string   `short:"m" help:"Model to use (provider/model)"`
	Output    string   `short:"o" help:"Output format (text, json)" default:"text" enum:"text,json"`
	Resume    string   `short:"r" help:"Continue a conversation by id, id prefix or list position"`
	Reasoning bool     `help:"Print reasoning while streaming"`
}

// promptOutput is the json output of a prompt
type promptOutput struct {
	ConversationID string                `json:"conversation_id"`
	Message        *conversation.Message `json:"message"`
	Search         searchSummary         `json:"search"`
	Stats          window.Stats          `json:"stats"`
	Stopped        bool                  `json:"stopped"`
	Error          string                `json:"error,omitempty"`
}

type searchSummary struct {
	State   search.State `json:"state"`
	Queries []string     `json:"queries,omitempty"`
	Results int          `json:"results"`
}

func (p *PromptCmd) Run(cli *CLI) error {
	text, err := p.promptText(afero.NewOsFs())
	if err != nil {
		return err
	}

	cfg, err := loadConfig(cli)
	if err != nil {
		return err
	}
	logger := createCLILogger(cfg.Logging.Level)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	a, err := openApp(ctx, cli, cfg, logger, nil)
	if err != nil {
		return err
	}
	defer a.Close()

	return runPrompt(ctx, a.Store, os.Stdout, promptParams{
		Text:      text,
		Model:     p.Model,
		Resume:    p.Resume,
		JSON:      p.Output == "json",
		Reasoning: p.Reasoning,
		Styles:    stylesFor(cli),
	})
}

func (p *PromptCmd) promptText(fsys afero.Fs) (string, error) {
	text := strings.Join(p.Text, " ")
	if p.File != "" {
		data, err := afero.ReadFile(fsys, p.File)
		if err != nil {
			return "", fmt.Errorf("failed to read prompt file: %w", err)
		}
		if text != "" {
			text += "\n\n"
		}
		text += string(data)
	}
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("prompt text is required: %w", conversation.ErrEmptyMessage)
	}
	return text, nil
}
