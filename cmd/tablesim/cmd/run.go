package cmd

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"
	"github.com/tebeka/atexit"

	"github.com/sarchlab/tablesim/datarecording"
	"github.com/sarchlab/tablesim/monitoring"
	"github.com/sarchlab/tablesim/table"
	"github.com/sarchlab/tablesim/tracing"
)

var runFlags struct {
	actors      int
	cycles      int
	policy      string
	patience    int
	maxStall    time.Duration
	think       time.Duration
	eat         time.Duration
	seed        int64
	trace       string
	traceCSV    string
	monitor     bool
	monitorPort int
	autoOpen    bool
	verbose     bool
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Seat the actors and run all their cycles.",
	Run: func(_ *cobra.Command, _ []string) {
		runTable()
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	f := runCmd.Flags()
	f.IntVarP(&runFlags.actors, "actors", "n",
		envOrInt("TABLESIM_ACTORS", 5),
		"number of actors (and forks) at the table")
	f.IntVarP(&runFlags.cycles, "cycles", "c",
		envOrInt("TABLESIM_CYCLES", 3),
		"eat cycles each actor performs")
	f.StringVar(&runFlags.policy, "policy",
		envOrString("TABLESIM_POLICY", "ordered"),
		"arbitration policy, ordered or fair")
	f.IntVar(&runFlags.patience, "patience", 2,
		"rounds a waiting actor can be passed over (fair policy)")
	f.DurationVar(&runFlags.maxStall, "max-stall", 10*time.Second,
		"report a suspected deadlock after this long without progress")
	f.DurationVar(&runFlags.think, "think", 10*time.Millisecond,
		"upper bound of the thinking delay")
	f.DurationVar(&runFlags.eat, "eat", 10*time.Millisecond,
		"upper bound of the eating delay")
	f.Int64Var(&runFlags.seed, "seed", 1,
		"seed for the delay jitter")
	f.StringVar(&runFlags.trace, "trace", "",
		"record the task trace into this SQLite database")
	f.StringVar(&runFlags.traceCSV, "trace-csv", "",
		"record the task trace into this CSV file")
	f.BoolVar(&runFlags.monitor, "monitor", false,
		"serve the live table state over HTTP")
	f.IntVar(&runFlags.monitorPort, "monitor-port",
		envOrInt("TABLESIM_MONITOR_PORT", 0),
		"port for the monitoring server, random if 0")
	f.BoolVar(&runFlags.autoOpen, "open", false,
		"open the monitoring page in a browser")
	f.BoolVarP(&runFlags.verbose, "verbose", "v", false,
		"log every state transition and fork movement")
}

func runTable() {
	policy, err := table.ParsePolicy(runFlags.policy)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		atexit.Exit(1)
	}

	tbl, err := table.MakeBuilder().
		WithNumActors(runFlags.actors).
		WithCyclesPerActor(runFlags.cycles).
		WithPolicy(policy).
		WithPatience(runFlags.patience).
		WithMaxStall(runFlags.maxStall).
		WithThinkTime(runFlags.think).
		WithEatTime(runFlags.eat).
		WithSeed(runFlags.seed).
		Build("Table")
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		atexit.Exit(1)
	}

	eatCount := tracing.NewCycleCountTracer(tbl, tracing.KindIs(tracing.KindCycle))
	tracing.CollectTrace(tbl, eatCount)

	eatTime := tracing.NewTotalTimeTracer(tbl, tracing.KindIs(tracing.KindCycle))
	tracing.CollectTrace(tbl, eatTime)

	waitTime := tracing.NewTotalTimeTracer(tbl, tracing.KindIs(tracing.KindWait))
	tracing.CollectTrace(tbl, waitTime)

	var recorder datarecording.DataRecorder
	if runFlags.trace != "" {
		recorder = datarecording.NewDataRecorder(runFlags.trace)
		tracing.CollectTrace(tbl, tracing.NewDBTracer(tbl, recorder))
	}

	if runFlags.traceCSV != "" {
		csvTracer := tracing.NewCSVTracer(tbl, runFlags.traceCSV)
		csvTracer.Init()
		tracing.CollectTrace(tbl, csvTracer)
	}

	if runFlags.verbose {
		logger := log.New(os.Stdout, "", log.Lmicroseconds)
		tbl.AcceptHook(table.NewStateLogger(logger))
	}

	var monitor *monitoring.Monitor
	if runFlags.monitor {
		monitor = monitoring.NewMonitor().
			WithPortNumber(runFlags.monitorPort)
		if runFlags.autoOpen {
			monitor = monitor.WithAutoOpen()
		}
		monitor.RegisterTable(tbl)
		monitor.StartServer()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	outcome, runErr := tbl.Run(ctx)

	printSummary(tbl, outcome, eatCount, eatTime, waitTime)

	if monitor != nil {
		monitor.StopServer()
	}
	if recorder != nil {
		recorder.Close()
	}

	var violation *table.OwnershipViolation
	if errors.As(runErr, &violation) {
		fmt.Fprintln(os.Stderr, violation)
		atexit.Exit(2)
	}
	if runErr != nil {
		fmt.Fprintln(os.Stderr, runErr)
		atexit.Exit(1)
	}

	atexit.Exit(0)
}

func printSummary(
	tbl *table.Table,
	outcome table.Outcome,
	eatCount *tracing.CycleCountTracer,
	eatTime *tracing.TotalTimeTracer,
	waitTime *tracing.TotalTimeTracer,
) {
	if outcome.Deadlock != nil {
		fmt.Fprintf(os.Stderr,
			"Warning: %v; reporting partial results.\n", outcome.Deadlock)
		for _, stuck := range outcome.Deadlock.Stuck {
			fmt.Fprintf(os.Stderr, "  actor %d stuck in %s after %d cycles\n",
				stuck.ActorID, stuck.State, stuck.Completed)
		}
	}

	if outcome.Cancelled {
		fmt.Println("Run cancelled; reporting partial results.")
	}

	for i, p := range tbl.Actors() {
		fmt.Printf("%-14s %d/%d cycles\n",
			p.Name(), outcome.Completed[i], tbl.CyclesPerActor())
	}

	fmt.Printf("policy=%s duration=%s eats=%d eating=%s waiting=%s\n",
		tbl.Policy(), outcome.Duration.Round(time.Millisecond),
		eatCount.Total(),
		eatTime.TotalTime().Round(time.Millisecond),
		waitTime.TotalTime().Round(time.Millisecond))
}
