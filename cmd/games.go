package cmd

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/they4kman/sweepd/game"
	"github.com/they4kman/sweepd/service"
)

var userName string

var newCmd = &cobra.Command{
	Use:   "new",
	Short: "Start a game",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withService(func(svc *service.Service) error {
			created, err := svc.CreateGame(cmd.Context(), service.NewGame{UserName: userName})
			if err != nil {
				return err
			}
			return printGame(out(cmd), created)
		})
	},
}

var moveCmd = &cobra.Command{
	Use:   "move <id> <action> <row> <column>",
	Short: "Open, flag, question-mark or clear a cell",
	Long: `Apply a move to a game. Actions are open, flag, question_mark and clear.

	sweepd move 3f1c... open 2 5
`,
	Args: cobra.ExactArgs(4),
	RunE: func(cmd *cobra.Command, args []string) error {
		move, err := parseMove(args[1], args[2], args[3])
		if err != nil {
			return err
		}
		return withService(func(svc *service.Service) error {
			played, err := svc.Play(cmd.Context(), args[0], move)
			if err != nil {
				return err
			}
			return printGame(out(cmd), played)
		})
	},
}

func parseMove(action, row, column string) (game.Move, error) {
	parsed, err := game.ParseAction(strings.ToUpper(action))
	if err != nil {
		return game.Move{}, err
	}
	rowIdx, err := strconv.Atoi(row)
	if err != nil {
		return game.Move{}, errors.Wrapf(err, "row %q", row)
	}
	columnIdx, err := strconv.Atoi(column)
	if err != nil {
		return game.Move{}, errors.Wrapf(err, "column %q", column)
	}
	return game.Move{Action: parsed, Row: rowIdx, Column: columnIdx}, nil
}

var pauseCmd = &cobra.Command{
	Use:   "pause <id>",
	Short: "Stop a game's clock",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withService(func(svc *service.Service) error {
			paused, err := svc.Pause(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printGame(out(cmd), paused)
		})
	},
}

var resumeCmd = &cobra.Command{
	Use:   "resume <id>",
	Short: "Restart a paused game's clock",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withService(func(svc *service.Service) error {
			resumed, err := svc.Resume(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printGame(out(cmd), resumed)
		})
	},
}

var showCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Print a game",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withService(func(svc *service.Service) error {
			g, err := svc.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printGame(out(cmd), g)
		})
	},
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored games, oldest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withService(func(svc *service.Service) error {
			games, err := svc.List(cmd.Context())
			if err != nil {
				return err
			}
			return printGames(out(cmd), games)
		})
	},
}

var hintDirector string

var hintCmd = &cobra.Command{
	Use:   "hint <id>",
	Short: "Suggest a move without making it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withService(func(svc *service.Service) error {
			move, err := svc.Hint(cmd.Context(), args[0], hintDirector)
			if err != nil {
				return err
			}
			return printMove(out(cmd), move)
		})
	},
}

// addGameFlags registers the board flags new games are made with
func addGameFlags(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.IntP("rows", "r", game.DefaultRowSize, "Rows on the board")
	flags.IntP("columns", "c", game.DefaultColumnSize, "Columns on the board")
	flags.IntP("mines", "m", game.DefaultMinePercentage, "Percentage of cells holding a mine")
	flags.Int64("seed", 0, "Seed for mine placement (0 picks one)")
	flags.StringVarP(&userName, "user", "u", "", "Player name")
}

// bindGameFlags points the game.* keys at cmd's flags; only the running
// command may bind them, as viper keeps one flag per key
func bindGameFlags(cmd *cobra.Command) error {
	flags := cmd.Flags()
	for name, key := range map[string]string{
		"rows":    "game.rows",
		"columns": "game.columns",
		"mines":   "game.minePercentage",
		"seed":    "game.seed",
	} {
		if err := v.BindPFlag(key, flags.Lookup(name)); err != nil {
			return err
		}
	}
	return nil
}

func init() {
	addGameFlags(newCmd)

	hintCmd.Flags().StringVarP(&hintDirector, "director", "d", "", "Director to ask: constraint or random")

	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "text", "Output format: text, yaml or json")
	rootCmd.AddCommand(newCmd, moveCmd, pauseCmd, resumeCmd, showCmd, listCmd, hintCmd)
}
