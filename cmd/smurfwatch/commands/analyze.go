package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/riftwatch/smurfwatch/store"
)

var analyzeForceFlag bool

// AnalyzeCmd scores one player on stored history.
var AnalyzeCmd = &cobra.Command{
	Use:   "analyze <gameName#tagLine | puuid>",
	Short: "Score one player on stored match history",
	Long: `Run the detection pipeline for a single player and print the verdict.

The player is identified by riot ID (gameName#tagLine, resolved through
the API) or directly by PUUID. Analysis runs on data already in the
database; it does not fetch new matches.

Examples:
  smurfwatch analyze Faker#KR1
  smurfwatch analyze Faker#KR1 --force   # Ignore the freshness cache`,
	Args: cobra.ExactArgs(1),
	RunE: runAnalyze,
}

func init() {
	AnalyzeCmd.Flags().BoolVar(&analyzeForceFlag, "force", false, "Recompute even when a fresh analysis exists")
}

func runAnalyze(cmd *cobra.Command, args []string) error {
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

	analysis, err := a.engine.Analyze(ctx, puuid, analyzeForceFlag)
	if err != nil {
		return err
	}

	printAnalysis(args[0], analysis)
	return nil
}

func printAnalysis(who string, a *store.PlayerAnalysis) {
	verdict := "clean"
	if a.IsSmurf {
		verdict = "SMURF"
	}
	fmt.Printf("Analysis for %s\n", who)
	fmt.Printf("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━\n")
	fmt.Printf("Verdict:     %s\n", verdict)
	fmt.Printf("Score:       %.3f\n", a.OverallScore)
	fmt.Printf("Confidence:  %s\n", a.Confidence)
	fmt.Printf("Sample size: %d matches\n", a.SampleSize)
	fmt.Printf("Analyzed at: %s\n\n", a.CreatedAt.Format("2006-01-02 15:04:05"))

	fmt.Printf("Factors:\n")
	printFactor("win_rate", a.WinRateScore)
	printFactor("win_rate_trend", a.WinRateTrendScore)
	printFactor("kda", a.KDAScore)
	printFactor("account_level", a.AccountLevelScore)
	printFactor("rank_progression", a.RankProgressionScore)
	printFactor("rank_discrepancy", a.RankDiscrepancyScore)
	printFactor("performance_trend", a.PerformanceTrendScore)
	printFactor("consistency", a.ConsistencyScore)
	printFactor("versatility", a.VersatilityScore)
}

func printFactor(name string, score *float64) {
	if score == nil {
		fmt.Printf("  %-18s (insufficient data)\n", name)
		return
	}
	fmt.Printf("  %-18s %.3f\n", name, *score)
}
