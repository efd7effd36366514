package bot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/lambda"
	"github.com/rs/zerolog/log"

	"github.com/domino14/gambit/config"
	"github.com/domino14/gambit/difficulty"
)

type lambdaAPI interface {
	Invoke(ctx context.Context, params *lambda.InvokeInput, optFns ...func(*lambda.Options)) (*lambda.InvokeOutput, error)
}

// LambdaInvoker gets moves from the bot deployed as an AWS Lambda
// function (cmd/lambda), invoked synchronously.
type LambdaInvoker struct {
	api      lambdaAPI
	function string
}

// NewLambdaInvoker uses the default AWS credential chain.
func NewLambdaInvoker(ctx context.Context, cfg *config.Config) (*LambdaInvoker, error) {
	awscfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, err
	}
	return &LambdaInvoker{
		api:      lambda.NewFromConfig(awscfg),
		function: cfg.GetString(config.ConfigLambdaFunction),
	}, nil
}

// lambdaError is the payload Lambda returns when the handler errors.
type lambdaError struct {
	Message string `json:"errorMessage"`
	Type    string `json:"errorType"`
}

func (li *LambdaInvoker) RequestMove(ctx context.Context, fen string, level difficulty.Level) (string, error) {
	payload, err := json.Marshal(LambdaEvent{Request: Request{FEN: fen, Difficulty: string(level)}})
	if err != nil {
		return "", err
	}
	out, err := li.api.Invoke(ctx, &lambda.InvokeInput{
		FunctionName: aws.String(li.function),
		Payload:      payload,
	})
	if err != nil {
		return "", err
	}
	if out.FunctionError != nil {
		var le lambdaError
		if err := json.Unmarshal(out.Payload, &le); err != nil || le.Message == "" {
			return "", fmt.Errorf("lambda %s: %s", li.function, aws.ToString(out.FunctionError))
		}
		return "", errors.New("Bot returned: " + le.Message)
	}
	log.Debug().Str("function", li.function).Msgf("res: %s", out.Payload)
	// The handler returns the move as a bare JSON string.
	var mv string
	if err := json.Unmarshal(out.Payload, &mv); err != nil {
		return "", err
	}
	if mv == "" {
		return "", errors.New("empty bot response")
	}
	return mv, nil
}
