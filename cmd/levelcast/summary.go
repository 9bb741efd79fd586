package main

import (
	"fmt"

	"github.com/Bullnettraders/levelcast/internal/application/pipeline"
)

// printSummary renders one report in a terminal-friendly block.
func printSummary(r *pipeline.Report) {
	fmt.Printf("\n%s  spot %.2f  regime %s", r.Ticker, r.Levels.Spot, r.Levels.Regime)
	if r.Degraded {
		fmt.Print("  [degraded]")
	}
	fmt.Println()

	fmt.Printf("  gamma flip %s  call wall %s  put wall %s  hvl %s\n",
		fmtLevel(r.Levels.GammaFlip), fmtLevel(r.Levels.CallWall),
		fmtLevel(r.Levels.PutWall), fmtLevel(r.Levels.HVL))

	if len(r.Zones) > 0 {
		fmt.Println("  dark pool zones:")
		for _, z := range r.Zones {
			tag := ""
			if z.Derived {
				tag = " (derived)"
			}
			fmt.Printf("    %.2f  %dk shares  %s%s\n", z.Price, z.Volume/1000, z.Kind, tag)
		}
	}

	if len(r.Memory) > 0 {
		fmt.Printf("  sticky levels: %d active\n", len(r.Memory))
	}

	for _, sig := range r.Signals {
		fmt.Printf("  accumulation %.2f  %d days  %dk shares  %s (strength %.1f)\n",
			sig.Price, sig.DaysActive, sig.TotalVolume/1000, sig.Bias, sig.Strength)
	}

	if r.ShortVolume != nil {
		fmt.Printf("  short volume %s: %.1f%%\n", r.ShortVolume.Date, r.ShortVolume.ShortPercent)
	}
}
