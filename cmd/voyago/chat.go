package main

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/peterh/liner"
	"github.com/spf13/cobra"

	"github.com/voyago-dev/voyago"
	"github.com/voyago-dev/voyago/internal/dialog"
)

func newChatCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Chat with the planner on the terminal",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			app, err := voyago.New(ctx, cfg)
			if err != nil {
				return err
			}
			defer func() { _ = app.Close() }()

			sess, err := app.Sessions.Create(ctx)
			if err != nil {
				return err
			}

			line := liner.NewLiner()
			defer func() { _ = line.Close() }()
			line.SetCtrlCAborts(true)

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "session %s\n", sess.ID)
			printMessage(out, sess.Messages[0])

			for {
				input, err := line.Prompt("you> ")
				if errors.Is(err, liner.ErrPromptAborted) || errors.Is(err, io.EOF) {
					fmt.Fprintln(out, "bye")
					return nil
				}
				if err != nil {
					return err
				}
				input = strings.TrimSpace(input)
				if input == "" {
					continue
				}
				if input == ":quit" || input == ":q" {
					fmt.Fprintln(out, "bye")
					return nil
				}
				if input == ":reset" {
					sess.Reset()
					printMessage(out, sess.Messages[0])
					continue
				}
				line.AppendHistory(input)

				produced := app.Orchestrator.HandleTurn(ctx, sess, input)
				if err := app.Sessions.RecordTurn(ctx, sess, produced); err != nil {
					fmt.Fprintf(out, "(warning: failed to persist turn: %v)\n", err)
				}
				for _, msg := range produced {
					printMessage(out, msg)
				}
			}
		},
	}
}

func printMessage(out io.Writer, msg dialog.Message) {
	if !msg.IsStructured() {
		fmt.Fprintf(out, "voyago> %s\n", msg.Text)
		return
	}
	for _, p := range msg.Properties {
		fmt.Fprintf(out, "voyago> [%d] %s - %s, $%.0f/night, up to %d guests", p.ID, p.Name, p.Location, p.Price, p.MaxGuests)
		if p.DistanceKm != nil {
			fmt.Fprintf(out, ", %.2f km away", *p.DistanceKm)
		}
		fmt.Fprintln(out)
		if len(p.Amenities) > 0 {
			fmt.Fprintf(out, "        amenities: %s\n", strings.Join(p.Amenities, ", "))
		}
		if p.Summary != "" {
			fmt.Fprintf(out, "        %s\n", p.Summary)
		}
	}
}
