// Preset scenario catalog Lambda entry point
package main

import (
	"github.com/aws/aws-lambda-go/lambda"

	"mortgage-scenario-engine/internal/handlers"
	"mortgage-scenario-engine/internal/utils"
)

func main() {
	// Initialize logger
	_ = utils.InitLogger("info")
	defer utils.Sync()

	// Start Lambda
	lambda.Start(handlers.NewPresetsHandler().Handle)
}
