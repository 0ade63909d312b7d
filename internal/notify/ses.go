// ABOUTME: SES notification sink: sends a completion summary via Amazon Simple Email Service
// ABOUTME: Adapted from the workflow engine's SES task executor, narrowed to a fixed summary body

package notify

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/ses"
)

// SESSink sends a completion summary via Amazon SES.
type SESSink struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	From            string
	To              string
}

// NewSESSink creates an SESSink. Credentials may be left empty to fall
// back to the default AWS credential chain (IAM role, env vars).
func NewSESSink(region, from, to string) *SESSink {
	return &SESSink{Region: region, From: from, To: to}
}

func (s *SESSink) Notify(ctx context.Context, summary Summary) error {
	awsCfg := &aws.Config{Region: aws.String(s.Region)}
	if s.AccessKeyID != "" && s.SecretAccessKey != "" {
		awsCfg.Credentials = credentials.NewStaticCredentials(s.AccessKeyID, s.SecretAccessKey, "")
	}

	sess, err := session.NewSession(awsCfg)
	if err != nil {
		return fmt.Errorf("creating AWS session: %w", err)
	}
	svc := ses.New(sess)

	body := fmt.Sprintf("exit_code=%d\nduration=%s\nfailed_task=%d\ncorrelation_id=%s\n", summary.ExitCode, summary.Duration, summary.FailedTask, summary.CorrelationID)
	input := &ses.SendEmailInput{
		Source: aws.String(s.From),
		Destination: &ses.Destination{
			ToAddresses: aws.StringSlice([]string{s.To}),
		},
		Message: &ses.Message{
			Subject: &ses.Content{Charset: aws.String("UTF-8"), Data: aws.String(fmt.Sprintf("workflow completed: exit_code=%d", summary.ExitCode))},
			Body: &ses.Body{
				Text: &ses.Content{Charset: aws.String("UTF-8"), Data: aws.String(body)},
			},
		},
	}

	if _, err := svc.SendEmailWithContext(ctx, input); err != nil {
		return fmt.Errorf("SES SendEmail failed: %w", err)
	}
	return nil
}
