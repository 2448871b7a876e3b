package stepfunctions

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sfn"
	"github.com/savaki/tutorbot/pkg/models"
)

// API is the subset of the Step Functions SDK used here
type API interface {
	StartExecution(ctx context.Context, params *sfn.StartExecutionInput, optFns ...func(*sfn.Options)) (*sfn.StartExecutionOutput, error)
}

var _ API = (*sfn.Client)(nil)

// Client starts the booking workflow
type Client struct {
	client          API
	stateMachineArn string
}

// NewClient creates a new Step Functions client
func NewClient(cfg aws.Config, stateMachineArn string) *Client {
	return NewWithAPI(sfn.NewFromConfig(cfg), stateMachineArn)
}

// NewWithAPI creates a Client on top of an existing API
func NewWithAPI(api API, stateMachineArn string) *Client {
	return &Client{client: api, stateMachineArn: stateMachineArn}
}

// StartBooking starts a Step Functions execution that reserves the chosen
// slot, returning the execution ARN
func (c *Client) StartBooking(ctx context.Context, req models.BookingRequest) (string, error) {
	if c.stateMachineArn == "" {
		return "", errors.New("booking state machine is not configured")
	}

	inputJSON, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("marshal input: %w", err)
	}

	result, err := c.client.StartExecution(ctx, &sfn.StartExecutionInput{
		StateMachineArn: &c.stateMachineArn,
		Input:           aws.String(string(inputJSON)),
		Name:            aws.String(models.NewBookingName()),
	})
	if err != nil {
		return "", fmt.Errorf("start execution: %w", err)
	}

	return aws.ToString(result.ExecutionArn), nil
}
