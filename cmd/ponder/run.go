package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/go-go-golems/ponder/pkg/conversation"
	"github.com/go-go-golems/ponder/pkg/events"
	"github.com/go-go-golems/ponder/pkg/inference/engine"
	"github.com/go-go-golems/ponder/pkg/inference/engine/factory"
	"github.com/go-go-golems/ponder/pkg/reasoning/chain"
	"github.com/mattn/go-isatty"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const eventTopic = "ponder"

type runSettings struct {
	Question       string
	SaveTranscript string
	PrintSteps     bool
	RawEvents      bool
	Render         bool
}

func newRunCommand() *cobra.Command {
	rs := &runSettings{}

	cmd := &cobra.Command{
		Use:   "run <question>",
		Short: "Reason about a question step by step and print the final answer",
		Example: `  ponder run "How many Rs are in strawberry?" --min-steps 3
  ponder run --max-steps 5 --save-transcript out.yaml "Is 1001 prime?"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rs.Question = strings.Join(args, " ")

			s, err := loadSettings(cmd)
			if err != nil {
				return err
			}
			eng, err := factory.NewEngineFromSettings(s)
			if err != nil {
				return err
			}

			rs.Render = rs.Render && isatty.IsTerminal(os.Stdout.Fd())
			opts := []chain.Option{chain.WithRunConfiguration(s.Run)}
			return runQuestion(cmd.Context(), eng, rs, cmd.OutOrStdout(), opts...)
		},
	}

	addSettingsFlags(cmd)
	cmd.Flags().StringVar(&rs.SaveTranscript, "save-transcript", "", "Save the transcript to a .json or .yaml file")
	cmd.Flags().BoolVar(&rs.PrintSteps, "print-steps", true, "Print each reasoning step as it arrives")
	cmd.Flags().BoolVar(&rs.RawEvents, "raw-events", false, "Print the raw events instead of the formatted steps")
	cmd.Flags().BoolVar(&rs.Render, "render", true, "Render the final answer as markdown when stdout is a terminal")

	return cmd
}

// runQuestion runs the chain with its events routed through an in-process watermill bus
// to the step printer.
func runQuestion(ctx context.Context, eng engine.Engine, rs *runSettings, w io.Writer, opts ...chain.Option) error {
	if ctx == nil {
		ctx = context.Background()
	}

	routerOptions := []events.EventRouterOption{events.WithOutput(w)}
	if rs.RawEvents {
		routerOptions = append(routerOptions, events.WithVerbose(true))
	}
	router, err := events.NewEventRouter(routerOptions...)
	if err != nil {
		return errors.Wrap(err, "failed to create event router")
	}
	defer func() {
		_ = router.Close()
	}()

	showSteps := rs.PrintSteps || rs.RawEvents
	if showSteps {
		if rs.RawEvents {
			router.AddHandler("raw", eventTopic, router.DumpRawEvents)
		} else {
			router.AddHandler("steps", eventTopic, events.StepPrinterFunc("", w))
		}
		opts = append(opts, chain.WithEventSinks(events.NewWatermillSink(router.Publisher, eventTopic)))
	}

	c, err := chain.New(eng, opts...)
	if err != nil {
		return err
	}

	var transcript conversation.Conversation

	eg := errgroup.Group{}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if showSteps {
		eg.Go(func() error {
			defer cancel()
			return router.Run(ctx)
		})
	}

	eg.Go(func() error {
		defer cancel()
		if showSteps {
			<-router.Running()
		}

		var err error
		transcript, err = c.Run(ctx, rs.Question)
		if err != nil {
			log.Error().Err(err).Int("messages", len(transcript)).Msg("Reasoning run failed")
			return err
		}
		return nil
	})

	runErr := eg.Wait()

	if rs.SaveTranscript != "" && len(transcript) > 0 {
		if err := transcript.SaveToFile(rs.SaveTranscript); err != nil {
			return errors.Wrap(err, "could not save transcript")
		}
		log.Info().Str("file", rs.SaveTranscript).Int("messages", len(transcript)).Msg("Saved transcript")
	}
	if runErr != nil {
		return runErr
	}

	// the step printer already showed the answer
	if showSteps {
		return nil
	}
	return printAnswer(w, transcript.LastMessage().Text, rs.Render)
}

func printAnswer(w io.Writer, answer string, render bool) error {
	if render {
		styled, err := glamour.Render(answer, "dark")
		if err == nil {
			_, err = fmt.Fprint(w, styled)
			return err
		}
		log.Warn().Err(err).Msg("Could not render answer as markdown")
	}
	_, err := fmt.Fprintln(w, strings.TrimRight(answer, "\n"))
	return err
}
