package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"image"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"

	"github.com/2beens/fitanalysis/internal/analysis"
	"github.com/2beens/fitanalysis/internal/analysis/pipeline"
	"github.com/2beens/fitanalysis/internal/analysis/setup"
	"github.com/2beens/fitanalysis/internal/analysis/synth"
	"github.com/2beens/fitanalysis/internal/config"
	"github.com/2beens/fitanalysis/internal/logging"
)

// analyze runs one video through the pipeline and prints the result as JSON.
// With -generate it writes a synthetic image sequence instead, usable as
// -video input.
func main() {
	env := flag.String("env", "development", "environment [prod | production | dev | development]")
	configPath := flag.String("config", "./config.toml", "path for the TOML config file")
	testID := flag.String("test", "", "catalog test id, e.g. vertical_jump")
	videoRef := flag.String("video", "", "video file, image sequence dir, http(s):// or gs:// ref")
	cmPerUnit := flag.Float64("cm-per-unit", 0, "calibration: centimeters per pixel")
	heightCm := flag.Float64("height-cm", 0, "calibration: subject height in centimeters")
	logLevel := flag.String("log-level", "info", "log level")
	generate := flag.String("generate", "", "write a synthetic sequence [vertical_jump | broad_jump | sit_ups | sprint | shuttle | two_athletes | empty]")
	out := flag.String("out", "./synthetic", "output dir for -generate")
	frames := flag.Int("frames", 60, "frames for -generate")
	fps := flag.Float64("fps", 30, "frame rate for -generate")
	flag.Parse()

	// stdout carries the JSON output only
	log.SetOutput(os.Stderr)
	log.SetLevel(logging.GetLevel(*logLevel))

	if *generate != "" {
		if err := generateSequence(*generate, *out, *frames, *fps); err != nil {
			log.Fatalf("generate [%s]: %s", *generate, err)
		}
		log.Infof("sequence [%s] written to [%s]", *generate, *out)
		return
	}

	if *testID == "" || *videoRef == "" {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load(*env, *configPath)
	if err != nil {
		log.Fatalf("load config: %s", err)
	}
	catalog, err := cfg.Catalog()
	if err != nil {
		log.Fatalf("catalog: %s", err)
	}
	descriptor, err := catalog.Get(*testID)
	if err != nil {
		log.Fatalf("test [%s]: %s", *testID, err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	analysisSetup, err := setup.Build(ctx, cfg.Analysis)
	if err != nil {
		exitWithError(err)
	}
	defer analysisSetup.Close()

	p, err := pipeline.New(analysisSetup.Context)
	if err != nil {
		log.Fatalf("new pipeline: %s", err)
	}

	logTransitions := pipeline.ObserverFunc(func(t pipeline.Transition) {
		log.Debugf("[%s] %s -> %s (%s)", t.TestID, t.From, t.To, t.Elapsed)
	})
	result, err := p.Run(ctx, pipeline.Request{
		VideoRef:   *videoRef,
		Descriptor: descriptor,
		Calibration: analysis.Calibration{
			CmPerUnit:       *cmPerUnit,
			SubjectHeightCm: *heightCm,
		},
		Attempt: 1,
	}, logTransitions)
	if err != nil {
		exitWithError(err)
	}

	printJSON(result)
}

type errorOutput struct {
	Kind      string `json:"kind"`
	Stage     string `json:"stage,omitempty"`
	Reason    string `json:"reason"`
	Retryable bool   `json:"retryable"`
}

func exitWithError(err error) {
	out := errorOutput{Kind: "InternalError", Reason: err.Error()}
	if aErr, ok := analysis.AsError(err); ok {
		out = errorOutput{
			Kind:      string(aErr.Kind),
			Stage:     string(aErr.Stage),
			Reason:    aErr.Error(),
			Retryable: aErr.Kind.Retryable(),
		}
	}
	printJSON(map[string]errorOutput{"error": out})
	os.Exit(1)
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		log.Fatalf("encode output: %s", err)
	}
}

func generateSequence(kind, dir string, frames int, fps float64) error {
	var imgs []image.Image
	switch kind {
	case "vertical_jump":
		imgs = synth.VerticalJump(frames, 0.15)
	case "broad_jump":
		imgs = synth.BroadJump(frames, 0.4)
	case "sit_ups":
		imgs = synth.SitUps(10, max(frames/10, 4))
	case "sprint":
		imgs = synth.Sprint(frames)
	case "shuttle":
		imgs = synth.Shuttle(frames, 4)
	case "two_athletes":
		imgs = synth.TwoAthletes(frames)
	case "empty":
		imgs = synth.Empty(frames)
	default:
		return fmt.Errorf("unknown sequence kind [%s]", kind)
	}
	return synth.WriteSequence(dir, imgs, fps)
}
