package support

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awssupport "github.com/aws/aws-sdk-go-v2/service/support"
	"github.com/aws/aws-sdk-go-v2/service/support/types"
	"github.com/aws/smithy-go"
	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/ftahirops/perfdiag/model"
)

// DefaultRegion hosts the AWS Support API endpoint.
const DefaultRegion = "us-east-1"

// API is the subset of the AWS Support client used to file cases.
type API interface {
	CreateCase(ctx context.Context, in *awssupport.CreateCaseInput, optFns ...func(*awssupport.Options)) (*awssupport.CreateCaseOutput, error)
	AddAttachmentsToSet(ctx context.Context, in *awssupport.AddAttachmentsToSetInput, optFns ...func(*awssupport.Options)) (*awssupport.AddAttachmentsToSetOutput, error)
	AddCommunicationToCase(ctx context.Context, in *awssupport.AddCommunicationToCaseInput, optFns ...func(*awssupport.Options)) (*awssupport.AddCommunicationToCaseOutput, error)
}

// AWSSubmitter files cases through the AWS Support API. Throttled calls are
// retried with exponential backoff; every other failure is returned as a
// SubmissionError.
type AWSSubmitter struct {
	api        API
	log        *zap.Logger
	newBackOff func() backoff.BackOff
	maxRetries uint64
}

// NewAWSSubmitter loads credentials from the default chain.
func NewAWSSubmitter(ctx context.Context, region string, log *zap.Logger) (*AWSSubmitter, error) {
	if region == "" {
		region = DefaultRegion
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, &model.SubmissionError{Kind: model.SubmissionAuth, Err: err,
			Advice: "configure AWS credentials (environment, shared config or instance role)"}
	}
	client := awssupport.NewFromConfig(cfg, func(o *awssupport.Options) {
		// retries are handled by backoff below
		o.RetryMaxAttempts = 1
	})
	return NewAWSSubmitterWithAPI(client, log), nil
}

// NewAWSSubmitterWithAPI wraps an existing client.
func NewAWSSubmitterWithAPI(api API, log *zap.Logger) *AWSSubmitter {
	if log == nil {
		log = zap.NewNop()
	}
	return &AWSSubmitter{
		api:        api,
		log:        log,
		newBackOff: func() backoff.BackOff { return backoff.NewExponentialBackOff() },
		maxRetries: 4,
	}
}

// Submit creates the case, uploads the report as an attachment set and adds
// a communication referencing it. When the case exists but the attachment
// step fails, the case id is returned together with the error.
func (s *AWSSubmitter) Submit(ctx context.Context, c Case) (string, error) {
	var created *awssupport.CreateCaseOutput
	err := s.retry(ctx, "CreateCase", func() (err error) {
		created, err = s.api.CreateCase(ctx, &awssupport.CreateCaseInput{
			Subject:           aws.String(c.Subject),
			CommunicationBody: aws.String(c.Body),
			ServiceCode:       optional(c.ServiceCode),
			CategoryCode:      optional(c.CategoryCode),
			SeverityCode:      aws.String(c.Severity),
			Language:          optional(c.Language),
			IssueType:         optional(c.IssueType),
		})
		return err
	})
	if err != nil {
		return "", classify(err)
	}
	caseID := aws.ToString(created.CaseId)
	s.log.Info("support case created", zap.String("case_id", caseID))

	if len(c.Attachment.Data) == 0 {
		return caseID, nil
	}

	// The SDK base64-encodes attachment data on the wire.
	var set *awssupport.AddAttachmentsToSetOutput
	err = s.retry(ctx, "AddAttachmentsToSet", func() (err error) {
		set, err = s.api.AddAttachmentsToSet(ctx, &awssupport.AddAttachmentsToSetInput{
			Attachments: []types.Attachment{{
				FileName: aws.String(c.Attachment.FileName),
				Data:     c.Attachment.Data,
			}},
		})
		return err
	})
	if err != nil {
		return caseID, attachmentFailed(caseID, err)
	}

	err = s.retry(ctx, "AddCommunicationToCase", func() error {
		_, err := s.api.AddCommunicationToCase(ctx, &awssupport.AddCommunicationToCaseInput{
			CaseId:            aws.String(caseID),
			CommunicationBody: aws.String(fmt.Sprintf("Full diagnostic report attached: %s", c.Attachment.FileName)),
			AttachmentSetId:   set.AttachmentSetId,
		})
		return err
	})
	if err != nil {
		return caseID, attachmentFailed(caseID, err)
	}
	return caseID, nil
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return aws.String(s)
}

func (s *AWSSubmitter) retry(ctx context.Context, op string, fn func() error) error {
	b := backoff.WithContext(backoff.WithMaxRetries(s.newBackOff(), s.maxRetries), ctx)
	return backoff.RetryNotify(func() error {
		err := fn()
		if err == nil || throttled(err) {
			return err
		}
		return backoff.Permanent(err)
	}, b, func(err error, wait time.Duration) {
		s.log.Warn("support API throttled, retrying", zap.String("op", op), zap.Duration("wait", wait), zap.Error(err))
	})
}

func throttled(err error) bool {
	var apiErr smithy.APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	switch apiErr.ErrorCode() {
	case "ThrottlingException", "Throttling", "TooManyRequestsException", "RequestLimitExceeded":
		return true
	}
	return false
}

func attachmentFailed(caseID string, err error) error {
	se := classify(err)
	se.Advice = fmt.Sprintf("case %s was created without the report; attach it manually", caseID)
	return se
}

// classify maps Support API failures to submission kinds.
func classify(err error) *model.SubmissionError {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "SubscriptionRequiredException":
			return &model.SubmissionError{Kind: model.SubmissionIneligible, Err: err,
				Advice: "a Business, Enterprise On-Ramp or Enterprise support plan is required to open cases through the API"}
		case "UnrecognizedClientException", "InvalidClientTokenId", "ExpiredTokenException",
			"AccessDeniedException", "AccessDenied", "InvalidSignatureException", "SignatureDoesNotMatch":
			return &model.SubmissionError{Kind: model.SubmissionAuth, Err: err,
				Advice: "check the AWS credentials and that they allow support:CreateCase"}
		}
		return &model.SubmissionError{Kind: model.SubmissionRejected, Err: err,
			Advice: "the support API rejected the request: " + apiErr.ErrorCode()}
	}
	if strings.Contains(err.Error(), "credentials") {
		return &model.SubmissionError{Kind: model.SubmissionAuth, Err: err,
			Advice: "configure AWS credentials (environment, shared config or instance role)"}
	}
	return &model.SubmissionError{Kind: model.SubmissionUnreachable, Err: err,
		Advice: "the support API could not be reached; check network access to support.us-east-1.amazonaws.com"}
}
