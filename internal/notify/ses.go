package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	sestypes "github.com/aws/aws-sdk-go-v2/service/sesv2/types"
	"github.com/aws/smithy-go"

	"airwatch/internal/config"
	"airwatch/internal/types"
)

// SESAPI defines the subset of the SES v2 client used by SESSender.
type SESAPI interface {
	SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

// SESSender sends mail through AWS SES v2. Authentication is handled via the
// AWS credential chain; SMTP credentials in the contact settings are ignored.
type SESSender struct {
	api    SESAPI
	logger *slog.Logger
}

// NewSESSender creates an SESSender from an AWS config.
func NewSESSender(awsCfg aws.Config, logger *slog.Logger) *SESSender {
	return NewSESSenderWithAPI(sesv2.NewFromConfig(awsCfg), logger)
}

// NewSESSenderWithAPI creates an SESSender with a pre-configured SESAPI.
func NewSESSenderWithAPI(api SESAPI, logger *slog.Logger) *SESSender {
	if logger == nil {
		logger = slog.Default()
	}
	return &SESSender{api: api, logger: logger}
}

// Send implements Sender.
func (s *SESSender) Send(ctx context.Context, msg Message, _ config.EmailSettings) error {
	input := &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(msg.From),
		Destination: &sestypes.Destination{
			ToAddresses: msg.To,
		},
		Content: &sestypes.EmailContent{
			Simple: &sestypes.Message{
				Subject: &sestypes.Content{
					Data:    aws.String(msg.Subject),
					Charset: aws.String("UTF-8"),
				},
				Body: &sestypes.Body{
					Text: &sestypes.Content{
						Data:    aws.String(msg.Body),
						Charset: aws.String("UTF-8"),
					},
				},
			},
		},
	}

	result, err := s.api.SendEmail(ctx, input)
	if err != nil {
		return mapSESError(err)
	}

	types.LoggerFromContext(ctx, s.logger).DebugContext(ctx, "SES accepted message",
		"message_id", aws.ToString(result.MessageId),
	)
	return nil
}

// authErrorCodes are AWS error codes that indicate bad or missing credentials.
var authErrorCodes = map[string]bool{
	"AccessDeniedException":       true,
	"UnrecognizedClientException": true,
	"InvalidClientTokenId":        true,
	"SignatureDoesNotMatch":       true,
	"ExpiredTokenException":       true,
}

// mapSESError translates AWS SES errors into notify AppErrors.
func mapSESError(err error) error {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) && authErrorCodes[apiErr.ErrorCode()] {
		return types.NewAppError(types.ErrCodeNotifyAuthFailure,
			fmt.Sprintf("SES rejected credentials: %s", apiErr.ErrorCode()), err)
	}

	var msgRejected *sestypes.MessageRejected
	if errors.As(err, &msgRejected) {
		return types.NewAppError(types.ErrCodeNotifyTransportFailure, "SES rejected message", err)
	}

	var tooManyReqs *sestypes.TooManyRequestsException
	if errors.As(err, &tooManyReqs) {
		return types.NewAppError(types.ErrCodeNotifyTransportFailure, "SES rate limit exceeded", err)
	}

	var sendingPaused *sestypes.SendingPausedException
	if errors.As(err, &sendingPaused) {
		return types.NewAppError(types.ErrCodeNotifyTransportFailure, "SES account sending paused", err)
	}

	return types.NewAppError(types.ErrCodeNotifyTransportFailure, "SES send failed", err)
}
