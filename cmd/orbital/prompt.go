package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/elee1766/orbital/src/conversation"
	"github.com/elee1766/orbital/src/theme"
)

type promptParams struct {
	Text      string
	Model     string
	Resume    string
	JSON      bool
	Reasoning bool
	Styles    theme.Styles
}

// runPrompt sends one turn. Text output streams as it arrives; json output
// is written once the turn has finished.
func runPrompt(ctx context.Context, store *conversation.Store, out io.Writer, params promptParams) error {
	id := ""
	if params.Resume != "" {
		var err error
		if id, err = resolveConversation(store, params.Resume); err != nil {
			return err
		}
	} else {
		provider, model := "", ""
		if params.Model != "" {
			provider, model = splitModel(params.Model)
		}
		id = store.NewChat(provider, model).ID
	}
	if params.Model != "" && params.Resume != "" {
		provider, model := splitModel(params.Model)
		if err := store.SetModel(ctx, id, provider, model); err != nil {
			return err
		}
	}

	var opts []conversation.SendOption
	if !params.JSON {
		printer := newStreamPrinter(out, params.Styles, params.Reasoning)
		opts = append(opts, conversation.WithEvents(conversation.NewSyncEventSink(nil, printer)))
	}

	res, err := store.Send(ctx, id, params.Text, opts...)
	if err != nil {
		return err
	}

	if params.JSON {
		output := promptOutput{
			ConversationID: res.ConversationID,
			Message:        res.Message,
			Search: searchSummary{
				State:   res.Search.State,
				Results: len(res.Search.Results),
			},
			Stats:   res.Stats,
			Stopped: res.Stopped,
		}
		for _, q := range res.Search.Plan.Searches {
			output.Search.Queries = append(output.Search.Queries, q.Query)
		}
		if res.Err != nil {
			output.Error = res.Err.Error()
		}
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(output); err != nil {
			return fmt.Errorf("failed to write output: %w", err)
		}
	}

	if res.Stopped {
		return context.Canceled
	}
	return res.Err
}
