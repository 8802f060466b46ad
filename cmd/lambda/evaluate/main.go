// Scenario evaluation Lambda entry point
package main

import (
	"context"

	"github.com/aws/aws-lambda-go/lambda"

	"mortgage-scenario-engine/internal/handlers"
	"mortgage-scenario-engine/internal/utils"
)

func main() {
	// Initialize logger
	_ = utils.InitLogger("info")
	defer utils.Sync()

	// Create handler
	handler, err := handlers.NewEvaluateHandler(context.Background())
	if err != nil {
		panic("Failed to create handler: " + err.Error())
	}
	defer handler.Close()

	// Start Lambda
	lambda.Start(handler.Handle)
}
