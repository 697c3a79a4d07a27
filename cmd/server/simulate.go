package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"

	"github.com/KirkDiggler/hexhaven-api/internal/content"
	"github.com/KirkDiggler/hexhaven-api/internal/entities"
	"github.com/KirkDiggler/hexhaven-api/internal/orchestrators/registry"
	"github.com/KirkDiggler/hexhaven-api/internal/pkg/clock"
	"github.com/KirkDiggler/hexhaven-api/internal/pkg/idgen"
	"github.com/KirkDiggler/hexhaven-api/internal/repositories/progress"
	"github.com/KirkDiggler/hexhaven-api/internal/repositories/snapshots"
	"github.com/KirkDiggler/hexhaven-api/internal/simulate"
)

var (
	simScenario string
	simClasses  []string
	simRounds   int
	simVerbose  bool
)

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Play a scenario headless with scripted players",
	Long: `Simulate creates an in-memory room, seats one scripted player per class and
plays until the scenario ends or the round limit is hit. Events are printed as
they are broadcast, followed by the room's game log.`,
	Args: cobra.NoArgs,
	RunE: runSimulate,
}

func init() {
	simulateCmd.Flags().StringVar(&simScenario, "scenario", "black-barrow", "Scenario id")
	simulateCmd.Flags().StringSliceVar(&simClasses, "classes", []string{"brute", "spellweaver"}, "Character classes, one per player")
	simulateCmd.Flags().IntVar(&simRounds, "rounds", simulate.DefaultMaxRounds, "Stop after this many rounds")
	simulateCmd.Flags().BoolVar(&simVerbose, "verbose", false, "Log room internals at debug level")
}

func runSimulate(_ *cobra.Command, _ []string) error {
	level := slog.LevelWarn
	if simVerbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	lib, err := content.Load()
	if err != nil {
		return fmt.Errorf("failed to load content: %w", err)
	}

	seats := make([]content.Seat, 0, len(simClasses))
	for i, class := range simClasses {
		seats = append(seats, content.Seat{
			PlayerID:  fmt.Sprintf("player-%d", i+1),
			ClassType: entities.ClassType(strings.TrimSpace(class)),
		})
	}

	clk := clock.New()
	rooms, err := registry.NewOrchestrator(&registry.Config{
		Content:     lib,
		Progress:    progress.NewInMemory(clk),
		Snapshots:   snapshots.NewInMemory(clk),
		Clock:       clk,
		IDGenerator: idgen.NewSequential("sim"),
		MaxRooms:    1,
	})
	if err != nil {
		return err
	}
	defer func() { _ = rooms.Shutdown(context.Background()) }()

	res, err := simulate.Run(ctx, &simulate.Config{
		Registry:   rooms,
		Content:    lib,
		ScenarioID: simScenario,
		Seats:      seats,
		MaxRounds:  simRounds,
		Out:        os.Stdout,
	})
	if err != nil {
		return err
	}

	fmt.Println()
	for _, entry := range res.Final.Log {
		fmt.Printf("[round %d] %s\n", entry.Round, entry.Message)
	}

	outcome := string(res.Outcome)
	if outcome == "" {
		outcome = "unfinished"
	}
	fmt.Printf("\n%s after %d rounds (%d commands accepted, %d rejected)\n",
		outcome, res.Rounds, res.Accepted, res.Rejected)
	return nil
}
