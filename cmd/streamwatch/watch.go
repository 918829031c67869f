package main

import (
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/edgestat/streamwatch/pkg/detectors"
	"github.com/edgestat/streamwatch/pkg/detectors/zscore"
	streamio "github.com/edgestat/streamwatch/pkg/io"
	csvsource "github.com/edgestat/streamwatch/pkg/io/csv"
	"github.com/edgestat/streamwatch/pkg/io/jsonl"
	pcapsource "github.com/edgestat/streamwatch/pkg/io/pcap"
	"github.com/edgestat/streamwatch/pkg/io/synthetic"
)

var watchFlags struct {
	windowSize int
	threshold  float64
	source     string
	input      string
	column     int
	noHeader   bool
	iface      string
	rate       time.Duration
	count      uint64
	seed       int64
	logPath    string
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Run the detection loop against a sample source",
	Long: `Watch consumes samples from a source (synthetic generator, CSV file,
or packet capture), evaluates each one against the sliding window, and
prints every anomaly with its stream-global index. Anomalies can also
be appended to a JSON-lines log file.`,
	RunE: runWatch,
}

func init() {
	f := watchCmd.Flags()
	f.IntVar(&watchFlags.windowSize, "window", 100, "sliding window size in samples")
	f.Float64Var(&watchFlags.threshold, "threshold", 3.0, "|z-score| anomaly threshold")
	f.StringVar(&watchFlags.source, "source", "synthetic", "sample source: synthetic, csv, or pcap")
	f.StringVar(&watchFlags.input, "input", "", "input file for csv and pcap sources")
	f.IntVar(&watchFlags.column, "column", 0, "CSV column holding the measurement")
	f.BoolVar(&watchFlags.noHeader, "no-header", false, "CSV file has no header row")
	f.StringVar(&watchFlags.iface, "iface", "", "capture live from this interface instead of a pcap file")
	f.DurationVar(&watchFlags.rate, "rate", 100*time.Millisecond, "emission interval for the synthetic source")
	f.Uint64Var(&watchFlags.count, "count", 0, "stop after this many synthetic samples (0 = run until interrupted)")
	f.Int64Var(&watchFlags.seed, "seed", 0, "synthetic source seed (0 = time-based)")
	f.StringVar(&watchFlags.logPath, "log", "", "append anomaly records to this JSON-lines file")
}

func runWatch(cmd *cobra.Command, args []string) error {
	detector, err := zscore.New(
		zscore.WithCapacity(watchFlags.windowSize),
		zscore.WithThreshold(watchFlags.threshold),
	)
	if err != nil {
		return err
	}

	source, err := buildSource()
	if err != nil {
		return err
	}
	defer source.Close()

	var sink streamio.Sink
	if watchFlags.logPath != "" {
		sink, err = jsonl.NewWriter(watchFlags.logPath)
		if err != nil {
			return err
		}
		defer sink.Close()
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	samples, err := source.Stream(ctx)
	if err != nil {
		return err
	}

	var logged uint64
	for sample := range samples {
		eval, err := detector.Ingest(sample.Value, sample.ArrivalOrder)
		if err != nil {
			if errors.Is(err, detectors.ErrInvalidSample) {
				fmt.Printf("skipping sample %d: %v\n", sample.ArrivalOrder, err)
				continue
			}
			return err
		}

		for _, ev := range eval.Events {
			fmt.Printf("anomaly at index %d: value=%.4f z=%.2f (window mean=%.4f std=%.4f)\n",
				ev.GlobalIndex, ev.Value, ev.ZScore, eval.Mean, eval.StdDev)
			logged++

			if sink != nil {
				rec := streamio.Record{
					GlobalIndex: ev.GlobalIndex,
					Value:       ev.Value,
					ZScore:      ev.ZScore,
				}
				if err := sink.Write(rec); err != nil {
					return err
				}
			}
		}
	}

	fmt.Printf("\nstopped. %d anomalies logged.\n", logged)
	return nil
}

func buildSource() (streamio.Source, error) {
	switch watchFlags.source {
	case "synthetic":
		opts := []synthetic.Option{
			synthetic.WithInterval(watchFlags.rate),
			synthetic.WithCount(watchFlags.count),
		}
		if watchFlags.seed != 0 {
			opts = append(opts, synthetic.WithSeed(watchFlags.seed))
		}
		return synthetic.New(opts...), nil

	case "csv":
		if watchFlags.input == "" {
			return nil, errors.New("csv source requires --input")
		}
		return csvsource.NewReader(watchFlags.input,
			csvsource.WithColumn(watchFlags.column),
			csvsource.WithHeader(!watchFlags.noHeader),
		)

	case "pcap":
		if watchFlags.iface != "" {
			return pcapsource.NewLiveReader(watchFlags.iface, 65535, false, time.Second)
		}
		if watchFlags.input == "" {
			return nil, errors.New("pcap source requires --input or --iface")
		}
		return pcapsource.NewFileReader(watchFlags.input)

	default:
		return nil, fmt.Errorf("unknown source %q", watchFlags.source)
	}
}
