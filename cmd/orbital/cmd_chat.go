package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/spf13/afero"

	"github.com/elee1766/orbital/src/aisdk"
	"github.com/elee1766/orbital/src/app"
	"github.com/elee1766/orbital/src/conversation"
	"github.com/elee1766/orbital/src/render"
	"github.com/elee1766/orbital/src/theme"
)

// ChatCmd starts the interactive chat
type ChatCmd struct {
	Resume    string `short:"r" help:"Resume a conversation by id, id prefix or list position"`
	Model     string `short:"m" help:"Model for new conversations (provider/model)"`
	Reasoning bool   `help:"Show reasoning while streaming"`
}

func (c *ChatCmd) Run(cli *CLI) error {
	cfg, err := loadConfig(cli)
	if err != nil {
		return err
	}
	// Logs go to a file so they never interleave with streamed output.
	logger := createChatLogger(cfg.Logging.Level)

	ctx := context.Background()
	a, err := openApp(ctx, cli, cfg, logger, nil)
	if err != nil {
		return err
	}
	defer a.Close()

	if c.Model != "" {
		provider, model := splitModel(c.Model)
		if err := a.Store.SetSelectedModel(ctx, provider, model); err != nil {
			return err
		}
	}
	if c.Resume != "" {
		id, err := resolveConversation(a.Store, c.Resume)
		if err != nil {
			return err
		}
		if err := a.Store.SetActive(ctx, id); err != nil {
			return err
		}
	} else {
		a.Store.NewChat("", "")
	}

	interrupts := make(chan os.Signal, 1)
	signal.Notify(interrupts, os.Interrupt)
	defer signal.Stop(interrupts)

	styles := stylesFor(cli)
	r := &repl{
		app:       a,
		in:        os.Stdin,
		out:       os.Stdout,
		fs:        afero.NewOsFs(),
		styles:    styles,
		renderer:  render.New(render.Options{Styles: styles, Highlight: !cli.NoColor}),
		reasoning: c.Reasoning,
		logger:    logger,
	}
	return r.run(ctx, interrupts)
}

const stopRetryInterval = 10 * time.Millisecond

type repl struct {
	app       *app.App
	in        io.Reader
	out       io.Writer
	fs        afero.Fs
	styles    theme.Styles
	renderer  *render.Renderer
	reasoning bool
	logger    *slog.Logger
}

const chatHelp = `commands:
  /new [provider/model]   start a new conversation
  /list                   list conversations
  /open <ref>             switch to a conversation (id, prefix or #)
  /show                   print the current conversation
  /model [provider/model] show or change the model of the current conversation
  /rename <title>         rename the current conversation
  /delete [ref]           delete a conversation (default: current)
  /export [path]          export the current conversation as JSON
  /reasoning              toggle reasoning of the last reply
  /quit                   exit
ctrl-c stops a reply in progress, ctrl-d exits`

func (r *repl) run(ctx context.Context, interrupts <-chan os.Signal) error {
	scanner := bufio.NewScanner(r.in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	fmt.Fprintln(r.out, r.styles.Muted.Render("type /help for commands"))
	for {
		fmt.Fprint(r.out, r.styles.Prompt.Render("› "))
		if !scanner.Scan() {
			fmt.Fprintln(r.out)
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, "/") {
			quit, err := r.command(ctx, line)
			if err != nil {
				fmt.Fprintln(r.out, r.styles.Error.Render(err.Error()))
			}
			if quit {
				return nil
			}
			continue
		}

		r.send(ctx, line, interrupts)
	}
}

// send streams one turn, stopping it when an interrupt arrives.
func (r *repl) send(ctx context.Context, text string, interrupts <-chan os.Signal) {
	// An interrupt pressed at the prompt must not stop this turn.
	select {
	case <-interrupts:
	default:
	}

	id := r.current()
	if id == "" {
		id = r.app.Store.NewChat("", "").ID
	}

	printer := newStreamPrinter(r.out, r.styles, r.reasoning)
	sink := conversation.NewSyncEventSink(r.logger, printer)
	done := make(chan struct{})
	go r.stopOnInterrupt(id, interrupts, done)

	_, err := r.app.Store.Send(ctx, id, text, conversation.WithEvents(sink))
	close(done)
	if err != nil {
		fmt.Fprintln(r.out, r.styles.Error.Render(err.Error()))
	}
}

// stopOnInterrupt stops the stream of conversation id once an interrupt
// arrives. An interrupt that lands before the stream opens is held until
// it does.
func (r *repl) stopOnInterrupt(id string, interrupts <-chan os.Signal, done <-chan struct{}) {
	select {
	case <-interrupts:
	case <-done:
		return
	}
	ticker := time.NewTicker(stopRetryInterval)
	defer ticker.Stop()
	for {
		err := r.app.Store.Stop(id)
		if !errors.Is(err, conversation.ErrNotStreaming) {
			if err != nil {
				r.logger.Debug("stop ignored", "error", err)
			}
			return
		}
		select {
		case <-ticker.C:
		case <-done:
			return
		}
	}
}

// current returns the id of the draft or the active conversation.
func (r *repl) current() string {
	if d := r.app.Store.Draft(); d != nil {
		return d.ID
	}
	return r.app.Store.ActiveID()
}

func (r *repl) command(ctx context.Context, line string) (bool, error) {
	name, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)
	store := r.app.Store

	switch name {
	case "/quit", "/exit", "/q":
		return true, nil

	case "/help", "/?":
		fmt.Fprintln(r.out, chatHelp)

	case "/new":
		provider, model := "", ""
		if arg != "" {
			provider, model = splitModel(arg)
		}
		draft := store.NewChat(provider, model)
		fmt.Fprintln(r.out, r.styles.Muted.Render("new chat with "+draft.ModelID))

	case "/list", "/ls":
		printConversationList(r.out, store, r.styles)

	case "/open":
		id, err := resolveConversation(store, arg)
		if err != nil {
			return false, err
		}
		if err := store.SetActive(ctx, id); err != nil {
			return false, err
		}
		conv, err := store.Get(id)
		if err != nil {
			return false, err
		}
		fmt.Fprintln(r.out, r.styles.Muted.Render("switched to "+conv.Title))

	case "/show":
		conv, err := r.currentConversation()
		if err != nil {
			return false, err
		}
		printConversation(r.out, conv, store, r.renderer, r.styles, false)

	case "/model":
		if arg == "" {
			conv, err := r.currentConversation()
			if err != nil {
				return false, err
			}
			fmt.Fprintln(r.out, conv.ModelID)
			return false, nil
		}
		provider, model := splitModel(arg)
		id := store.ActiveID()
		if store.Draft() != nil {
			id = ""
		}
		if err := store.SetModel(ctx, id, provider, model); err != nil {
			return false, err
		}
		if err := store.SetSelectedModel(ctx, provider, model); err != nil {
			return false, err
		}
		fmt.Fprintln(r.out, r.styles.Muted.Render("model set to "+model))

	case "/rename":
		id := store.ActiveID()
		if id == "" {
			return false, errors.New("no conversation to rename")
		}
		if err := store.Rename(ctx, id, arg); err != nil {
			return false, err
		}

	case "/delete", "/rm":
		id := store.ActiveID()
		if arg != "" {
			var err error
			if id, err = resolveConversation(store, arg); err != nil {
				return false, err
			}
		}
		if id == "" {
			return false, fmt.Errorf("no conversation to delete")
		}
		if err := store.Delete(ctx, id); err != nil {
			return false, err
		}
		fmt.Fprintln(r.out, r.styles.Muted.Render("deleted "+shortID(id)))

	case "/export":
		id := store.ActiveID()
		if id == "" {
			return false, fmt.Errorf("no conversation to export")
		}
		path, err := exportConversation(r.fs, store, id, arg)
		if err != nil {
			return false, err
		}
		fmt.Fprintln(r.out, r.styles.Muted.Render("exported to "+path))

	case "/reasoning":
		conv, err := r.currentConversation()
		if err != nil {
			return false, err
		}
		var last *conversation.Message
		for i := len(conv.Messages) - 1; i >= 0; i-- {
			if conv.Messages[i].Role == aisdk.RoleAssistant {
				last = conv.Messages[i]
				break
			}
		}
		if last == nil || last.Reasoning == "" {
			return false, errors.New("no reasoning to show")
		}
		visible, err := store.ToggleReasoning(ctx, last.ID)
		if err != nil {
			return false, err
		}
		if visible {
			fmt.Fprintln(r.out, r.renderer.Reasoning(last.Reasoning))
		} else {
			fmt.Fprintln(r.out, r.styles.Muted.Render("reasoning hidden"))
		}

	default:
		return false, fmt.Errorf("unknown command %s, try /help", name)
	}
	return false, nil
}

func (r *repl) currentConversation() (*conversation.Conversation, error) {
	if d := r.app.Store.Draft(); d != nil {
		return d, nil
	}
	id := r.app.Store.ActiveID()
	if id == "" {
		return nil, conversation.ErrConversationNotFound
	}
	return r.app.Store.Get(id)
}
