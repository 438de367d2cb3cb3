package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/they4kman/sweepd/service"
)

var autoplayDirector string

var autoplayCmd = &cobra.Command{
	Use:   "autoplay [id]",
	Short: "Make the computer play a game to the end",
	Long: `Let a director play a stored game until it is won or lost. Without an id
a fresh game is started first, sized by the board flags.

	sweepd autoplay --director constraint -r 16 -c 30 -m 20
`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withService(func(svc *service.Service) error {
			var id string
			if len(args) == 1 {
				id = args[0]
			} else {
				created, err := svc.CreateGame(cmd.Context(), service.NewGame{UserName: userName})
				if err != nil {
					return err
				}
				id = created.ID
			}

			played, moves, err := svc.Autoplay(cmd.Context(), id, autoplayDirector)
			if err != nil {
				return err
			}
			if err := printGame(out(cmd), played); err != nil {
				return err
			}
			if outputFormat == "text" {
				fmt.Fprintf(out(cmd), "%s after %d moves\n", played.Outcome, moves)
			}
			return nil
		})
	},
}

func init() {
	addGameFlags(autoplayCmd)
	autoplayCmd.Flags().StringVarP(&autoplayDirector, "director", "d", "constraint", "Director to play with: constraint or random")
	rootCmd.AddCommand(autoplayCmd)
}
