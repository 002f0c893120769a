package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/afero"

	"github.com/elee1766/orbital/src/aisdk"
	"github.com/elee1766/orbital/src/app"
	"github.com/elee1766/orbital/src/config"
	"github.com/elee1766/orbital/src/conversation"
	"github.com/elee1766/orbital/src/render"
	"github.com/elee1766/orbital/src/theme"
)

const titleWidth = 40

// openApp builds the application for commands that talk to the model.
func openApp(ctx context.Context, cli *CLI, cfg *config.Config, logger *slog.Logger, events conversation.EventSink) (*app.App, error) {
	if err := requireAPIKey(cfg); err != nil {
		return nil, err
	}
	return app.New(ctx, app.Options{
		Config:    cfg,
		Events:    events,
		Ephemeral: cli.Ephemeral,
		Logger:    logger,
	})
}

// openOffline builds the application for commands that only read or edit
// stored conversations.
func openOffline(ctx context.Context, cli *CLI) (*app.App, error) {
	cfg, err := loadConfig(cli)
	if err != nil {
		return nil, err
	}
	return app.New(ctx, app.Options{
		Config: cfg,
		Logger: createCLILogger(cfg.Logging.Level),
	})
}

func stylesFor(cli *CLI) theme.Styles {
	return theme.Default(cli.NoColor)
}

// splitModel splits "provider/model" into its parts. A bare model id keeps
// an empty provider.
func splitModel(ref string) (providerID, modelID string) {
	if provider, _, ok := strings.Cut(ref, "/"); ok {
		return provider, ref
	}
	return "", ref
}

// resolveConversation finds a conversation by id, unique id prefix, or its
// 1-based position in the listing.
func resolveConversation(store *conversation.Store, ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "", fmt.Errorf("no conversation given")
	}
	list := store.List()
	if n, err := strconv.Atoi(ref); err == nil && n >= 1 && n <= len(list) {
		return list[n-1].ID, nil
	}

	var matches []string
	for _, conv := range list {
		if conv.ID == ref {
			return conv.ID, nil
		}
		if strings.HasPrefix(conv.ID, ref) {
			matches = append(matches, conv.ID)
		}
	}
	switch len(matches) {
	case 0:
		return "", fmt.Errorf("%s: %w", ref, conversation.ErrConversationNotFound)
	case 1:
		return matches[0], nil
	default:
		return "", fmt.Errorf("%q matches %d conversations", ref, len(matches))
	}
}

func joinArgs(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// printConversationList writes a table of stored conversations.
func printConversationList(out io.Writer, store *conversation.Store, styles theme.Styles) {
	list := store.List()
	if len(list) == 0 {
		fmt.Fprintln(out, styles.Muted.Render("no conversations"))
		return
	}
	active := store.ActiveID()
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "#\tID\tTITLE\tMODEL\tMESSAGES\tUPDATED")
	for i, conv := range list {
		marker := ""
		if conv.ID == active {
			marker = "*"
		}
		fmt.Fprintf(w, "%d%s\t%s\t%s\t%s\t%d\t%s\n",
			i+1, marker,
			shortID(conv.ID),
			render.Truncate(conv.Title, titleWidth),
			conv.ModelID,
			len(conv.Messages),
			conv.UpdatedAt.Local().Format("2006-01-02 15:04"),
		)
	}
	w.Flush()
}

// printConversation writes every message of conv.
func printConversation(out io.Writer, conv *conversation.Conversation, store *conversation.Store, r *render.Renderer, styles theme.Styles, allReasoning bool) {
	fmt.Fprintln(out, styles.Title.Render(conv.Title))
	fmt.Fprintln(out, styles.Muted.Render(fmt.Sprintf("%s · %s", conv.ModelID, conv.CreatedAt.Local().Format("2006-01-02 15:04"))))
	for _, m := range conv.Messages {
		fmt.Fprintln(out)
		switch m.Role {
		case aisdk.RoleUser:
			fmt.Fprintln(out, styles.Role.Render("you"))
			fmt.Fprintln(out, styles.User.Render(m.Content))
		default:
			fmt.Fprintln(out, styles.Role.Render(m.Role))
			if m.Reasoning != "" && (allReasoning || store.ReasoningVisible(m.ID)) {
				fmt.Fprintln(out, r.Reasoning(m.Reasoning))
				fmt.Fprintln(out)
			}
			fmt.Fprintln(out, r.Content(m.Content))
			for _, img := range m.Images {
				fmt.Fprintln(out, styles.Citation.Render(img.URL))
			}
		}
	}
}

// exportConversation writes conversation id as JSON to path on fsys. An
// empty path or a directory uses the title-derived file name.
func exportConversation(fsys afero.Fs, store *conversation.Store, id, path string) (string, error) {
	conv, err := store.Get(id)
	if err != nil {
		return "", err
	}
	if path == "" {
		path = conversation.ExportFilename(conv)
	} else if isDir, _ := afero.IsDir(fsys, path); isDir {
		path = filepath.Join(path, conversation.ExportFilename(conv))
	}

	f, err := fsys.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := store.Export(id, f); err != nil {
		f.Close()
		return "", err
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", path, err)
	}
	return path, nil
}
