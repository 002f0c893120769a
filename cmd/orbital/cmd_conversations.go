package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/afero"

	"github.com/elee1766/orbital/src/render"
)

// ConversationsCmd manages stored conversations
type ConversationsCmd struct {
	List   ConversationsListCmd   `cmd:"" default:"1" aliases:"ls" help:"List conversations"`
	Show   ConversationsShowCmd   `cmd:"" help:"Print a conversation"`
	Rename ConversationsRenameCmd `cmd:"" help:"Rename a conversation"`
	Delete ConversationsDeleteCmd `cmd:"" aliases:"rm" help:"Delete a conversation"`
	Export ConversationsExportCmd `cmd:"" help:"Export a conversation as JSON"`
}

// ConversationsListCmd lists conversations
type ConversationsListCmd struct {
	Format string `help:"Output format (table, json)" default:"table" enum:"table,json"`
}

func (c *ConversationsListCmd) Run(cli *CLI) error {
	a, err := openOffline(context.Background(), cli)
	if err != nil {
		return err
	}
	defer a.Close()

	if c.Format == "json" {
		type row struct {
			ID        string `json:"id"`
			Title     string `json:"title"`
			ModelID   string `json:"modelId"`
			Messages  int    `json:"messages"`
			UpdatedAt string `json:"updatedAt"`
		}
		rows := []row{}
		for _, conv := range a.Store.List() {
			rows = append(rows, row{conv.ID, conv.Title, conv.ModelID, len(conv.Messages), conv.UpdatedAt.UTC().Format("2006-01-02T15:04:05Z07:00")})
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(rows)
	}

	printConversationList(os.Stdout, a.Store, stylesFor(cli))
	return nil
}

// ConversationsShowCmd prints a conversation
type ConversationsShowCmd struct {
	Ref       string `arg:"" help:"Conversation id, id prefix or list position"`
	Reasoning bool   `help:"Show reasoning of every reply"`
}

func (c *ConversationsShowCmd) Run(cli *CLI) error {
	a, err := openOffline(context.Background(), cli)
	if err != nil {
		return err
	}
	defer a.Close()

	id, err := resolveConversation(a.Store, c.Ref)
	if err != nil {
		return err
	}
	conv, err := a.Store.Get(id)
	if err != nil {
		return err
	}
	styles := stylesFor(cli)
	r := render.New(render.Options{Styles: styles, Highlight: !cli.NoColor})
	printConversation(os.Stdout, conv, a.Store, r, styles, c.Reasoning)
	return nil
}

// ConversationsRenameCmd renames a conversation
type ConversationsRenameCmd struct {
	Ref   string   `arg:"" help:"Conversation id, id prefix or list position"`
	Title []string `arg:"" help:"New title"`
}

func (c *ConversationsRenameCmd) Run(cli *CLI) error {
	ctx := context.Background()
	a, err := openOffline(ctx, cli)
	if err != nil {
		return err
	}
	defer a.Close()

	id, err := resolveConversation(a.Store, c.Ref)
	if err != nil {
		return err
	}
	return a.Store.Rename(ctx, id, joinArgs(c.Title))
}

// ConversationsDeleteCmd deletes a conversation
type ConversationsDeleteCmd struct {
	Ref string `arg:"" help:"Conversation id, id prefix or list position"`
}

func (c *ConversationsDeleteCmd) Run(cli *CLI) error {
	ctx := context.Background()
	a, err := openOffline(ctx, cli)
	if err != nil {
		return err
	}
	defer a.Close()

	id, err := resolveConversation(a.Store, c.Ref)
	if err != nil {
		return err
	}
	if err := a.Store.Delete(ctx, id); err != nil {
		return err
	}
	fmt.Printf("deleted %s\n", id)
	return nil
}

// ConversationsExportCmd exports a conversation
type ConversationsExportCmd struct {
	Ref    string `arg:"" help:"Conversation id, id prefix or list position"`
	Output string `short:"o" help:"Output file or directory (default: title-derived name, - for stdout)"`
}

func (c *ConversationsExportCmd) Run(cli *CLI) error {
	a, err := openOffline(context.Background(), cli)
	if err != nil {
		return err
	}
	defer a.Close()

	id, err := resolveConversation(a.Store, c.Ref)
	if err != nil {
		return err
	}
	if c.Output == "-" {
		return a.Store.Export(id, os.Stdout)
	}
	path, err := exportConversation(afero.NewOsFs(), a.Store, id, c.Output)
	if err != nil {
		return err
	}
	fmt.Printf("exported to %s\n", path)
	return nil
}
