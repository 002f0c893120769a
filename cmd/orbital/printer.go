package main

import (
	"fmt"
	"io"
	"sync"

	"github.com/elee1766/orbital/src/conversation"
	"github.com/elee1766/orbital/src/render"
	"github.com/elee1766/orbital/src/search"
	"github.com/elee1766/orbital/src/theme"
)

// streamPrinter writes a turn to the terminal as its events arrive.
type streamPrinter struct {
	out       io.Writer
	styles    theme.Styles
	renderer  *render.Renderer
	reasoning bool

	mu          sync.Mutex
	inReasoning bool
}

var _ conversation.EventProcessor = (*streamPrinter)(nil)

func newStreamPrinter(out io.Writer, styles theme.Styles, showReasoning bool) *streamPrinter {
	return &streamPrinter{
		out:       out,
		styles:    styles,
		renderer:  render.New(render.Options{Styles: styles}),
		reasoning: showReasoning,
	}
}

func (p *streamPrinter) Process(event conversation.ConversationEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch e := event.(type) {
	case *conversation.UserMessageEvent:
		if e.Title != "" {
			fmt.Fprintln(p.out, p.styles.Muted.Render("new conversation: "+e.Title))
		}
	case *conversation.SearchCompleteEvent:
		if e.State == search.StateFormatted {
			fmt.Fprintln(p.out, p.styles.Muted.Render(fmt.Sprintf("searched the web, %d results", e.Results)))
		}
	case *conversation.DeltaAppliedEvent:
		if e.Delta.Reasoning != "" && p.reasoning {
			p.inReasoning = true
			fmt.Fprint(p.out, p.renderer.Reasoning(e.Delta.Reasoning))
		}
		if e.Delta.Content != "" {
			if p.inReasoning {
				fmt.Fprint(p.out, "\n\n")
				p.inReasoning = false
			}
			fmt.Fprint(p.out, e.Delta.Content)
		}
		for _, img := range e.Delta.Images {
			fmt.Fprintf(p.out, "\n%s\n", p.styles.Citation.Render(img.URL))
		}
	case *conversation.StreamFinishedEvent:
		fmt.Fprintln(p.out)
	case *conversation.StreamFailedEvent:
		// The marker was folded into the message after the last delta.
		switch {
		case e.Stopped:
			fmt.Fprintln(p.out, p.styles.Notice.Render("\n\n[Stopped]"))
		case e.Message == nil:
			fmt.Fprintln(p.out, p.styles.Muted.Render("\n"+e.Error))
		default:
			fmt.Fprintln(p.out, p.styles.Error.Render(fmt.Sprintf("\n\n[Error: %s]", e.Error)))
		}
	}
	return nil
}

func (p *streamPrinter) Close() error { return nil }
