package cucumber

import (
	"context"
	"fmt"
	"os/exec"
	"testing"

	"github.com/cucumber/godog"

	"github.com/videoreport/api/test/steps"
)

func init() {
	buildApp := exec.Command(
		"go", "build",
		"-ldflags", "-X 'github.com/videoreport/api/config.Version=cucumber-test-version'",
		"-o", "test/app",
	)
	buildApp.Dir = ".."
	if buildErr := buildApp.Run(); buildErr != nil {
		panic(buildErr)
	}
}

func InitializeScenario(ctx *godog.ScenarioContext) {
	stepContext := &steps.StepContext{}

	// Collaborators, brought up before the worker binary itself.
	ctx.Step(`^an object store is available$`, stepContext.StartObjectStore)
	ctx.Step(`^a vision OCR provider is available$`, stepContext.StartVisionProvider)
	ctx.Step(`^a second, lower-priority vision OCR provider is available$`, stepContext.StartVisionFallbackProvider)
	ctx.Step(`^a speech transcription provider is available$`, stepContext.StartSpeechProvider)
	ctx.Step(`^the worker is running$`, stepContext.StartApp)

	// Provider scripting.
	ctx.Step(`^the vision provider always returns the text "([^"]*)"$`, stepContext.ConfigureVisionText)
	ctx.Step(`^every scene shares the overlay line "([^"]*)"$`, stepContext.ConfigureVisionOverlayLine)
	ctx.Step(`^the vision provider rate-limits (\d+) calls with a (\d+) second retry-after, then returns "([^"]*)"$`, stepContext.ConfigureVisionRateLimitThenSucceed)
	ctx.Step(`^the fallback vision provider always returns the text "([^"]*)"$`, stepContext.ConfigureVisionFallbackText)
	ctx.Step(`^the speech provider transcribes (\d+(?:\.\d+)?) to (\d+(?:\.\d+)?) seconds as "([^"]*)"$`, stepContext.ConfigureSpeechTranscript)

	// Fixtures and job submission.
	ctx.Step(`^fixture "([^"]*)" is staged as upload "([^"]*)"$`, stepContext.SeedFixture)
	ctx.Step(`^upload "([^"]*)" is submitted for processing$`, stepContext.SubmitProcessRequest)
	ctx.Step(`^I get an HTTP response with code (\d+)$`, stepContext.CheckHTTPResponseCode)

	// Status/progress/report assertions.
	ctx.Step(`^upload "([^"]*)" completes with total_scenes (\d+) within (\d+) seconds$`, stepContext.CheckJobCompletedWithTotalScenesWithinSeconds)
	ctx.Step(`^upload "([^"]*)" completes with segment_count (\d+) within (\d+) seconds$`, stepContext.CheckJobCompletedWithSegmentCountWithinSeconds)
	ctx.Step(`^upload "([^"]*)" fails with an error mentioning "([^"]*)" within (\d+) seconds$`, stepContext.CheckJobFailedWithCodeWithinSeconds)
	ctx.Step(`^upload "([^"]*)"'s progress crosses "([^"]*)" within (\d+) seconds$`, stepContext.CheckProgressCrossesThresholds)
	ctx.Step(`^the task queue received exactly (\d+) calls to "([^"]*)"$`, stepContext.CheckTaskQueueCallCount)
	ctx.Step(`^the fallback vision provider serviced at least (\d+) scenes$`, stepContext.CheckVisionFallbackServicedScenes)
	ctx.Step(`^cell "([^"]*)" of upload "([^"]*)"'s report equals "([^"]*)"$`, stepContext.CheckCellEqualsStep)
	ctx.Step(`^cell "([^"]*)" of upload "([^"]*)"'s report contains "([^"]*)"$`, stepContext.CheckCellContainsStep)
	ctx.Step(`^no cell in column "([^"]*)" of upload "([^"]*)"'s report contains "([^"]*)" across (\d+) rows$`, stepContext.CheckNoCellContainsAcrossReportStep)

	// Worker lifecycle.
	ctx.Step(`^the worker receives SIGTERM$`, stepContext.SendSIGTERM)
	ctx.Step(`^the worker is restarted$`, stepContext.RestartApp)

	ctx.After(func(ctx context.Context, sc *godog.Scenario, err error) (context.Context, error) {
		if stopErr := stepContext.StopApp(); stopErr != nil {
			fmt.Println("Error while stopping worker:", stopErr.Error())
		}
		if stepContext.ObjectStore != nil {
			stepContext.ObjectStore.Close()
		}
		if stepContext.Vision != nil {
			stepContext.Vision.Close()
		}
		if stepContext.VisionFallback != nil {
			stepContext.VisionFallback.Close()
		}
		if stepContext.Speech != nil {
			stepContext.Speech.Close()
		}
		if stepContext.TaskQueue != nil {
			stepContext.TaskQueue.Close()
		}
		return ctx, nil
	})
}

func TestFeatures(t *testing.T) {
	suite := godog.TestSuite{
		ScenarioInitializer: InitializeScenario,
		Options: &godog.Options{
			TestingT:      t,
			Strict:        true,
			StopOnFailure: true,
			Format:        "cucumber",
			Paths:         []string{"features"},
		},
	}

	if suite.Run() != 0 {
		t.Fatal("non-zero status returned, failed to run feature tests")
	}
}
