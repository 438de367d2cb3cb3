package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/pkg/errors"
	"github.com/they4kman/sweepd/game"
	"gopkg.in/yaml.v2"
)

var outputFormat = "text"

func printGame(w io.Writer, g game.PublicGame) error {
	switch outputFormat {
	case "yaml":
		return printYAML(w, g)
	case "json":
		return printJSON(w, g)
	case "text":
		fmt.Fprintln(w, summary(g))
		fmt.Fprint(w, g.Board)
		return nil
	default:
		return errors.Errorf("unknown output format %q", outputFormat)
	}
}

func printGames(w io.Writer, games []game.PublicGame) error {
	switch outputFormat {
	case "yaml":
		return printYAML(w, games)
	case "json":
		return printJSON(w, games)
	case "text":
		for _, g := range games {
			fmt.Fprintln(w, summary(g))
		}
		return nil
	default:
		return errors.Errorf("unknown output format %q", outputFormat)
	}
}

func printMove(w io.Writer, move game.Move) error {
	switch outputFormat {
	case "yaml":
		return printYAML(w, move)
	case "json":
		return printJSON(w, move)
	default:
		fmt.Fprintf(w, "%s %d %d\n", strings.ToLower(move.Action.String()), move.Row, move.Column)
		return nil
	}
}

// summary is the one-line form of a game
func summary(g game.PublicGame) string {
	parts := []string{
		g.ID,
		g.State.String(),
		fmt.Sprintf("%dx%d", g.Board.RowSize, g.Board.ColumnSize),
		fmt.Sprintf("%d mines", g.Board.NumMines),
	}
	if g.Outcome != "" {
		parts = append(parts, g.Outcome)
	}
	if g.UserName != "" {
		parts = append(parts, "by "+g.UserName)
	}
	parts = append(parts, g.TimeElapsedFormatted)
	return strings.Join(parts, "  ")
}

func printYAML(w io.Writer, value any) error {
	out, err := yaml.Marshal(value)
	if err != nil {
		return errors.Wrap(err, "encode yaml")
	}
	_, err = w.Write(out)
	return err
}

func printJSON(w io.Writer, value any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return errors.Wrap(encoder.Encode(value), "encode json")
}
