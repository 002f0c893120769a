package main

import (
	"github.com/alecthomas/kong"
)

// CLI represents the main CLI structure
type CLI struct {
	Config    string `short:"c" help:"Path to a config file" type:"path"`
	APIKey    string `env:"ORBITAL_API_KEY" help:"OpenRouter API key"`
	BaseURL   string `help:"Custom API base URL"`
	LogLevel  string `help:"Log level (debug, info, warn, error)"`
	NoColor   bool   `env:"NO_COLOR" help:"Disable colored output"`
	NoSearch  bool   `help:"Disable web search"`
	Ephemeral bool   `help:"Keep conversations in memory only"`

	Chat          ChatCmd          `cmd:"" default:"1" help:"Start an interactive chat (default)"`
	Prompt        PromptCmd        `cmd:"" help:"Send a single prompt and print the reply"`
	Conversations ConversationsCmd `cmd:"" aliases:"conv" help:"Manage stored conversations"`
	Model         ModelCmd         `cmd:"" help:"Model information"`
	Serve         ServeCmd         `cmd:"" help:"Serve the chat engine over HTTP"`
}

func main() {
	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("orbital"),
		kong.Description("Streaming chat client for OpenRouter models"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
		}),
	)

	err := ctx.Run(&cli)
	if err != nil {
		NewErrorHandler(createCLILogger(cli.LogLevel)).HandleError(err)
	}
}
