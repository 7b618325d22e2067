package conductor

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/kiosk404/conductor/internal/conductor/config"
	"github.com/kiosk404/conductor/internal/conductor/options"
	"github.com/kiosk404/conductor/pkg/app"
	"github.com/kiosk404/conductor/pkg/logger"
)

const (
	AppName = "conductor"
)

const commandDesc = `conductor runs a request through a pipeline of language-model agents.

Agents call tools on MCP servers that are started for the run and stopped
when it ends, hand the conversation to each other, and finish with an answer
that must match the last agent's output contract.

Without a configuration file the meal-planning pipeline is used:
IngredientExtractor extracts the base ingredients of the request and hands
off to PublicHolidayAgent, which checks next week's public holidays in
Victoria, Australia. It needs OPENAI_API_KEY.`

func NewApp(basename string) *app.App {
	opts := options.NewOptions()
	application := app.NewApp("conductor",
		basename,
		app.WithOptions(opts),
		app.WithDescription(commandDesc),
		app.WithDefaultValidArgs(),
		app.WithRunFunc(run(opts)),
	)
	return application
}

func run(opts *options.Options) app.RunFunc {
	return func(basename string) error {
		if err := logger.SetLevel(opts.LogOptions.Level); err != nil {
			return err
		}
		if err := logger.SetFormat(opts.LogOptions.Format); err != nil {
			return err
		}
		if err := logger.InitLog(opts.LogOptions.File); err != nil {
			return err
		}
		defer logger.FlushLog()

		cfg, err := config.CreateConfigFromOptions(opts)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		return Run(ctx, cfg, os.Stdout)
	}
}
