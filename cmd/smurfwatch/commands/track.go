package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/riftwatch/smurfwatch/errors"
	"github.com/riftwatch/smurfwatch/store"
)

// TrackCmd registers a player for background tracking.
var TrackCmd = &cobra.Command{
	Use:   "track <gameName#tagLine>",
	Short: "Start tracking a player",
	Long: `Register a player for background tracking.

Resolves the riot ID through the API, stores the player, and marks them
tracked so the tracker-updater and match-fetcher jobs pick them up.

Example:
  smurfwatch track Faker#KR1`,
	Args: cobra.ExactArgs(1),
	RunE: runTrack,
}

// UntrackCmd stops tracking a player.
var UntrackCmd = &cobra.Command{
	Use:   "untrack <gameName#tagLine | puuid>",
	Short: "Stop tracking a player",
	Args:  cobra.ExactArgs(1),
	RunE:  runUntrack,
}

func runTrack(cmd *cobra.Command, args []string) error {
	name, tag, ok := strings.Cut(args[0], "#")
	if !ok {
		return errors.NewValidationError("expected gameName#tagLine, got %q", args[0])
	}

	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := context.Background()
	account, err := a.client.GetAccountByRiotID(ctx, name, tag)
	if err != nil {
		return err
	}

	if err := a.players.Upsert(ctx, &store.Player{
		PUUID:    account.PUUID,
		GameName: account.GameName,
		TagLine:  account.TagLine,
		Region:   a.cfg.Riot.Platform,
	}); err != nil {
		return err
	}
	if err := a.players.SetTracked(ctx, account.PUUID, true); err != nil {
		return err
	}

	fmt.Printf("Tracking %s#%s (puuid %s)\n", account.GameName, account.TagLine, account.PUUID)
	return nil
}

func runUntrack(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := context.Background()
	puuid := args[0]
	if name, tag, ok := strings.Cut(args[0], "#"); ok {
		account, err := a.client.GetAccountByRiotID(ctx, name, tag)
		if err != nil {
			return err
		}
		puuid = account.PUUID
	}

	if err := a.players.SetTracked(ctx, puuid, false); err != nil {
		return err
	}
	fmt.Printf("Stopped tracking %s\n", args[0])
	return nil
}
