// Command pipelinedemo builds and runs a small deployment pipeline end to
// end: fetch an artifact, validate it two ways in parallel, then publish it.
// It exists to exercise the engine against a real observer and print the
// progress/events a caller would see.
package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/tailored-agentic-units/pipeline-engine/observability"
	"github.com/tailored-agentic-units/pipeline-engine/pipeline"
	"github.com/tailored-agentic-units/pipeline-engine/pipeline/config"
)

func main() {
	ctx := context.Background()

	fmt.Println("=== Deployment Pipeline Demo ===")
	fmt.Println()

	// ------------------------------------------------------------------
	// 1. Configure observability
	// ------------------------------------------------------------------
	fmt.Println("1. Configuring observability...")

	slogHandler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})
	observability.RegisterObserver("slog", observability.NewSlogObserver(slog.New(slogHandler)))

	fmt.Println("   registered slog observer")
	fmt.Println()

	// ------------------------------------------------------------------
	// 2. Define steps
	// ------------------------------------------------------------------
	fmt.Println("2. Defining steps...")

	fetch := pipeline.StepFunc{
		ID:   "fetch-artifact",
		Desc: "download the build artifact",
		Fn: func(goCtx context.Context, pc *pipeline.Context) (*pipeline.Context, error) {
			pc.UpdateStepProgress(50)
			time.Sleep(10 * time.Millisecond)
			pc.Results["artifact_size_bytes"] = 4096
			pc.UpdateStepProgress(100)
			return pc, nil
		},
	}

	checkSize := pipeline.StepFunc{
		ID:   "check-size",
		Desc: "reject oversized artifacts",
		Fn: func(goCtx context.Context, pc *pipeline.Context) (*pipeline.Context, error) {
			size, _ := pc.Results["artifact_size_bytes"].(int)
			pc.Results["size_ok"] = size < 1<<20
			return pc, nil
		},
	}

	scanVulnerabilities := pipeline.StepFunc{
		ID:   "scan-vulnerabilities",
		Desc: "run a vulnerability scan against the artifact",
		Fn: func(goCtx context.Context, pc *pipeline.Context) (*pipeline.Context, error) {
			time.Sleep(5 * time.Millisecond)
			pc.Results["vulnerabilities_found"] = 0
			return pc, nil
		},
	}

	publish := pipeline.StepFunc{
		ID:   "publish",
		Desc: "push the artifact to the release channel",
		Fn: func(goCtx context.Context, pc *pipeline.Context) (*pipeline.Context, error) {
			pc.Results["published"] = true
			return pc, nil
		},
	}

	fmt.Println("   fetch-artifact, check-size + scan-vulnerabilities (parallel), publish")
	fmt.Println()

	// ------------------------------------------------------------------
	// 3. Assemble the pipeline
	// ------------------------------------------------------------------
	fmt.Println("3. Assembling pipeline...")

	validateGroup := pipeline.ParallelGroup(
		config.ParallelConfig{Operator: config.OperatorAND, TimeoutSeconds: 2},
		checkSize, scanVulnerabilities,
	)

	var lastPercent float64
	progressCallback := func(stageIndex, totalStages int, lastStepID string, overall float64) {
		fmt.Printf("   progress: stage %d/%d (%s) -> %.0f%%\n", stageIndex+1, totalStages, lastStepID, overall)
		lastPercent = overall
	}

	p, err := pipeline.NewPipeline(
		[]pipeline.Stage{pipeline.Single(fetch), validateGroup, pipeline.Single(publish)},
		pipeline.WithConfig(config.PipelineConfig{Observer: "slog"}),
		pipeline.WithProgressCallback(progressCallback),
	)
	if err != nil {
		log.Fatalf("failed to build pipeline: %v", err)
	}

	fmt.Println("   pipeline built")
	fmt.Println()

	// ------------------------------------------------------------------
	// 4. Run it
	// ------------------------------------------------------------------
	fmt.Println("4. Running pipeline...")
	fmt.Println()

	result, err := p.Run(ctx, pipeline.NewContext(nil, nil))

	fmt.Println()
	if err != nil {
		fmt.Printf("   pipeline failed: %v\n", err)
	} else {
		fmt.Println("   pipeline succeeded")
	}
	fmt.Println()

	// ------------------------------------------------------------------
	// 5. Report
	// ------------------------------------------------------------------
	fmt.Println("5. Final results")
	fmt.Printf("   published:            %v\n", result.Results["published"])
	fmt.Printf("   size_ok:               %v\n", result.Results["size_ok"])
	fmt.Printf("   vulnerabilities_found: %v\n", result.Results["vulnerabilities_found"])
	fmt.Printf("   recorded errors:       %d\n", len(result.Errors))
	fmt.Printf("   final overall progress reported: %.0f%%\n", lastPercent)

	status := p.GetStatus()
	fmt.Printf("   run id: %s\n", status.RunID)
}
