package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/couchcryptid/ocean-query-service/internal/config"
	"github.com/couchcryptid/ocean-query-service/internal/domain"
	"github.com/couchcryptid/ocean-query-service/internal/observability"
	"github.com/couchcryptid/ocean-query-service/internal/pipeline"
)

type answerer interface {
	ResolveAndAnswer(ctx context.Context, sessionID, text string) (pipeline.Answer, error)
}

func newChatCmd() *cobra.Command {
	var verbose bool
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Ask questions interactively. Type exit or quit to leave.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			level := "warn"
			if verbose {
				level = "debug"
			}
			logger := observability.NewConsoleLogger(os.Stderr, level)
			metrics := observability.NewMetrics()

			a, err := newApp(cmd.Context(), cfg, logger, metrics)
			if err != nil {
				return err
			}
			defer a.close()

			fmt.Fprintf(cmd.OutOrStdout(), "Oceanography chatbot is ready (narrative: %s). Type 'exit' to quit.\n\n", cfg.NarrativeProvider)
			return chatLoop(cmd.Context(), a.assistant, uuid.NewString(), cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "log debug output to stderr")
	return cmd
}

// chatLoop reads one question per line until EOF, exit or quit. Errors for a
// single turn are printed and the loop continues.
func chatLoop(ctx context.Context, a answerer, sessionID string, in io.Reader, out io.Writer) error {
	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "You: ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		switch strings.ToLower(line) {
		case "":
			continue
		case "exit", "quit":
			return nil
		}

		answer, err := a.ResolveAndAnswer(ctx, sessionID, line)
		if err != nil {
			fmt.Fprintf(out, "Error: %v\n\n", err)
			continue
		}
		renderAnswer(out, answer)
		fmt.Fprintln(out)
	}
}

func renderAnswer(out io.Writer, a pipeline.Answer) {
	switch a.Kind {
	case pipeline.KindTable:
		renderTable(out, a.Columns, a.Table)
	case pipeline.KindChart:
		fmt.Fprintf(out, "Bot: %s\n", a.Text)
		fmt.Fprintf(out, "(%d profiles available for charting)\n", len(a.Chart))
	default:
		fmt.Fprintf(out, "Bot: %s\n", a.Text)
	}
}

func renderTable(out io.Writer, columns []string, rows []domain.TableRow) {
	if len(rows) == 0 {
		fmt.Fprintln(out, "Bot: "+domain.NoProfilesMessage)
		return
	}
	table := tablewriter.NewWriter(out)
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_CENTER)
	table.SetBorder(true)
	table.SetHeader(columns)
	for _, row := range rows {
		cells := make([]string, len(columns))
		for i, col := range columns {
			cells[i] = formatCell(row[col])
		}
		table.Append(cells)
	}
	table.Render()
}

func formatCell(v any) string {
	switch x := v.(type) {
	case nil:
		return "null"
	case *float64:
		if x == nil {
			return "null"
		}
		return fmt.Sprintf("%g", *x)
	case string:
		return x
	default:
		return fmt.Sprint(x)
	}
}
