package stepfunctions

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sfn"
	"github.com/savaki/tutorbot/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type MockAPI struct {
	StartExecutionFunc func(ctx context.Context, in *sfn.StartExecutionInput) (*sfn.StartExecutionOutput, error)
}

func (m *MockAPI) StartExecution(ctx context.Context, in *sfn.StartExecutionInput, _ ...func(*sfn.Options)) (*sfn.StartExecutionOutput, error) {
	return m.StartExecutionFunc(ctx, in)
}

var _ API = (*MockAPI)(nil)

const arn = "arn:aws:states:eu-west-1:123456789012:stateMachine:booking"

func TestStartBooking(t *testing.T) {
	start := time.Date(2024, 3, 5, 10, 0, 0, 0, time.UTC)
	req := models.BookingRequest{
		ConversationID: "7",
		ContactID:      "42",
		Profile:        "new",
		LessonType:     "trial",
		Slot:           models.SlotCandidate{Start: start, End: start.Add(time.Hour)},
		StudentName:    "Sanne",
		CreatedAt:      "2024-03-04T07:00:00Z",
	}

	api := &MockAPI{
		StartExecutionFunc: func(ctx context.Context, in *sfn.StartExecutionInput) (*sfn.StartExecutionOutput, error) {
			assert.Equal(t, arn, *in.StateMachineArn)
			assert.True(t, strings.HasPrefix(*in.Name, "booking-"))

			var got models.BookingRequest
			require.NoError(t, json.Unmarshal([]byte(*in.Input), &got))
			assert.Equal(t, "7", got.ConversationID)
			assert.Equal(t, "trial", got.LessonType)
			assert.True(t, start.Equal(got.Slot.Start))

			return &sfn.StartExecutionOutput{ExecutionArn: aws.String(arn + ":exec-1")}, nil
		},
	}

	executionArn, err := NewWithAPI(api, arn).StartBooking(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, arn+":exec-1", executionArn)
}

func TestStartBookingErrors(t *testing.T) {
	api := &MockAPI{
		StartExecutionFunc: func(ctx context.Context, in *sfn.StartExecutionInput) (*sfn.StartExecutionOutput, error) {
			return nil, errors.New("execution limit exceeded")
		},
	}

	_, err := NewWithAPI(api, arn).StartBooking(context.Background(), models.BookingRequest{})
	assert.ErrorContains(t, err, "start execution")

	_, err = NewWithAPI(api, "").StartBooking(context.Background(), models.BookingRequest{})
	assert.ErrorContains(t, err, "not configured")
}
