// Presigned URL Lambda entry point: scenario CSV uploads and result downloads.
package main

import (
	"context"

	"github.com/aws/aws-lambda-go/lambda"

	"mortgage-scenario-engine/internal/handlers"
	"mortgage-scenario-engine/internal/utils"
)

func main() {
	_ = utils.InitLogger("info")
	defer utils.Sync()

	handler, err := handlers.NewPresignedURLHandler(context.Background())
	if err != nil {
		panic("Failed to create handler: " + err.Error())
	}

	lambda.Start(handler.Handle)
}
