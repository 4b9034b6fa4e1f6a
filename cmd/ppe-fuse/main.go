package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/akamensky/argparse"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/EricMurray-e-m-dev/SafetyMonkey/internal/engine"
	"github.com/EricMurray-e-m-dev/SafetyMonkey/internal/fusion"
	grpcserver "github.com/EricMurray-e-m-dev/SafetyMonkey/internal/grpc"
	"github.com/EricMurray-e-m-dev/SafetyMonkey/internal/logging"
	"github.com/EricMurray-e-m-dev/SafetyMonkey/internal/models"
)

func main() {
	if err := run(os.Args, os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// run fuses two saved detector responses and prints the report.
func run(args []string, stdout io.Writer) error {
	defaults := fusion.DefaultThresholds()

	parser := argparse.NewParser("ppe-fuse", "Fuse saved detector outputs into a PPE report")
	genericFile := parser.String("g", "generic", &argparse.Options{Help: "Generic detector output (JSON)", Required: true})
	classifierFile := parser.String("c", "classifier", &argparse.Options{Help: "Equipment classifier output (JSON)", Required: true})
	floor := parser.Float("", "floor", &argparse.Options{Help: "Object confidence floor", Default: defaults.ObjectConfidenceFloor})
	bypass := parser.Float("", "bypass", &argparse.Options{Help: "Single prediction bypass probability", Default: defaults.BypassProbability})
	worn := parser.Float("", "worn", &argparse.Options{Help: "Mean probability needed without evidence", Default: defaults.WornThreshold})
	evidenceWorn := parser.Float("", "evidence-worn", &argparse.Options{Help: "Mean probability needed with evidence (defaults to --worn)", Default: -1.0})
	compact := parser.Flag("", "compact", &argparse.Options{Help: "Print compact JSON"})
	debug := parser.Flag("d", "debug", &argparse.Options{Help: "Log every evaluation to stderr"})
	remote := parser.String("r", "remote", &argparse.Options{Help: "Inspector gRPC address; fuse and store there instead of locally"})
	timeout := parser.Int("", "timeout", &argparse.Options{Help: "Remote call timeout in seconds", Default: 10})
	if err := parser.Parse(args); err != nil {
		return fmt.Errorf("%s", parser.Usage(err))
	}

	thresholds := fusion.Thresholds{
		ObjectConfidenceFloor: *floor,
		BypassProbability:     *bypass,
		WornThreshold:         *worn,
		EvidenceWornThreshold: *evidenceWorn,
	}
	if thresholds.EvidenceWornThreshold < 0 {
		thresholds.EvidenceWornThreshold = thresholds.WornThreshold
	}

	level := "warn"
	if *debug {
		level = "debug"
	}
	logger, err := logging.New(level, "console")
	if err != nil {
		return err
	}
	defer logger.Sync()

	var generic models.GenericDetectionResult
	if err := readJSON(*genericFile, &generic); err != nil {
		return err
	}
	var classifier models.ClassifierResult
	if err := readJSON(*classifierFile, &classifier); err != nil {
		return err
	}

	var out interface{}
	if *remote != "" {
		// Thresholds are the inspector's own; local flags do not apply.
		ctx, cancel := context.WithTimeout(context.Background(), time.Duration(*timeout)*time.Second)
		defer cancel()

		analysis, err := analyzeRemote(ctx, *remote, filepath.Base(*genericFile), generic, classifier)
		if err != nil {
			return err
		}
		out = analysis
	} else {
		rules, err := fusion.DefaultRuleset(thresholds)
		if err != nil {
			return err
		}

		report, err := engine.NewEngine(rules, logger).Analyze(generic, classifier)
		if err != nil {
			return err
		}
		out = report
	}

	enc := json.NewEncoder(stdout)
	if !*compact {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(out)
}

// analyzeRemote sends the detector outputs to a running inspector.
func analyzeRemote(ctx context.Context, addr, imageName string, generic models.GenericDetectionResult, classifier models.ClassifierResult) (*models.Analysis, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", addr, err)
	}
	defer conn.Close()

	resp, err := grpcserver.NewAnalysisClient(conn).Analyze(ctx, &grpcserver.AnalyzeRequest{
		ImageName:  imageName,
		Generic:    &generic,
		Classifier: &classifier,
	})
	if err != nil {
		return nil, fmt.Errorf("remote analysis failed: %w", err)
	}
	return resp.Analysis, nil
}

func readJSON(path string, out interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return nil
}
