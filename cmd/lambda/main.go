package main

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"log"
	"net/http"
	"os"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"tour-details-extractor/internal/api"
	"tour-details-extractor/internal/app"
	"tour-details-extractor/internal/logger"
)

// lambdaHandler serves API Gateway proxy requests for the extract route.
type lambdaHandler struct {
	handler *api.ExtractHandler
	logger  logger.Logger
}

func responseHeaders() map[string]string {
	headers := map[string]string{"Content-Type": "application/json"}
	for k, v := range api.CORSHeaders {
		headers[k] = v
	}
	return headers
}

func (h *lambdaHandler) handleRequest(ctx context.Context, request events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	headers := responseHeaders()

	// Handle preflight OPTIONS request
	if request.HTTPMethod == http.MethodOptions {
		return events.APIGatewayProxyResponse{StatusCode: http.StatusOK, Headers: headers}, nil
	}

	h.logger.Info("Extract API request",
		logger.String("method", request.HTTPMethod),
		logger.String("path", request.Path),
	)

	var status int
	var response interface{}

	switch {
	case request.HTTPMethod == http.MethodPost && request.Path == api.ExtractPath:
		body := []byte(request.Body)
		if request.IsBase64Encoded {
			decoded, err := base64.StdEncoding.DecodeString(request.Body)
			if err != nil {
				status, response = http.StatusBadRequest, api.ErrorResponse{Message: "Invalid request body", Error: err.Error()}
				break
			}
			body = decoded
		}
		status, response = h.handler.Handle(ctx, body)

	default:
		status, response = http.StatusNotFound, api.ErrorResponse{Message: "Not found", Error: "Not found"}
	}

	// Marshal response body
	bodyJSON, err := json.Marshal(response)
	if err != nil {
		h.logger.Error("Error marshaling response body", logger.Error(err))
		return events.APIGatewayProxyResponse{
			StatusCode: http.StatusInternalServerError,
			Headers:    headers,
			Body:       `{"success":false,"error":"Internal server error"}`,
		}, nil
	}

	return events.APIGatewayProxyResponse{
		StatusCode: status,
		Headers:    headers,
		Body:       string(bodyJSON),
	}, nil
}

// main is the entry point for the Lambda function
func main() {
	a, err := app.New(context.Background(), os.Getenv("CONFIG_FILE"))
	if err != nil {
		log.Fatalf("Failed to initialize extractor: %v", err)
	}
	defer func() { _ = a.Logger.Sync() }()

	h := &lambdaHandler{
		handler: a.Handler,
		logger:  a.Logger.With(logger.Component("lambda")),
	}
	lambda.Start(h.handleRequest)
}
