// Package ses provides email notification services via AWS SES
package ses

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
	"go.uber.org/zap"

	appConfig "mortgage-scenario-engine/internal/config"
	"mortgage-scenario-engine/internal/models"
	"mortgage-scenario-engine/internal/utils"
)

// Service handles SES email operations
type Service struct {
	client    *ses.Client
	fromEmail string
	log       *zap.Logger
}

// EmailParams represents parameters for sending an email
type EmailParams struct {
	To       string
	Subject  string
	HTMLBody string
	TextBody string
	ReplyTo  string
}

// SendEmailResult contains the result of sending an email
type SendEmailResult struct {
	MessageID string
	SentAt    time.Time
}

// NewService creates a new SES service
func NewService(ctx context.Context) (*Service, error) {
	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	appCfg, err := appConfig.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load app config: %w", err)
	}

	client := ses.NewFromConfig(cfg)

	return &Service{
		client:    client,
		fromEmail: appCfg.SESSenderEmail,
		log:       utils.Component("ses"),
	}, nil
}

// SendEmail sends an email via SES
func (s *Service) SendEmail(ctx context.Context, params *EmailParams) (*SendEmailResult, error) {
	input := &ses.SendEmailInput{
		Source: aws.String(s.fromEmail),
		Destination: &types.Destination{
			ToAddresses: []string{params.To},
		},
		Message: &types.Message{
			Subject: &types.Content{
				Data:    aws.String(params.Subject),
				Charset: aws.String("UTF-8"),
			},
			Body: &types.Body{
				Html: &types.Content{
					Data:    aws.String(params.HTMLBody),
					Charset: aws.String("UTF-8"),
				},
				Text: &types.Content{
					Data:    aws.String(params.TextBody),
					Charset: aws.String("UTF-8"),
				},
			},
		},
	}

	if params.ReplyTo != "" {
		input.ReplyToAddresses = []string{params.ReplyTo}
	}

	result, err := s.client.SendEmail(ctx, input)
	if err != nil {
		s.log.Error("Failed to send email",
			zap.String("to", params.To),
			zap.String("subject", params.Subject),
			zap.Error(err),
		)
		return nil, fmt.Errorf("failed to send email: %w", err)
	}

	s.log.Info("Email sent",
		zap.String("to", params.To),
		zap.String("message_id", aws.ToString(result.MessageId)),
	)

	return &SendEmailResult{
		MessageID: aws.ToString(result.MessageId),
		SentAt:    time.Now().UTC(),
	}, nil
}

const batchSummaryTemplate = `
<html>
<body style="font-family: Arial, sans-serif; color: #333;">
	<h2>Scenario Batch Evaluation Complete</h2>
	<p>Batch <strong>{{.BatchID}}</strong> finished at {{.CompletedAt.Format "2006-01-02 15:04:05 MST"}}.</p>
	<table border="0" cellpadding="6" style="border-collapse: collapse;">
		<tr><td>Total rows</td><td><strong>{{.TotalRows}}</strong></td></tr>
		<tr><td>Evaluated</td><td><strong>{{.Evaluated}}</strong></td></tr>
		<tr><td>Eligible</td><td style="color: #2e7d32;"><strong>{{.Eligible}}</strong></td></tr>
		<tr><td>Ineligible</td><td style="color: #c62828;"><strong>{{.Ineligible}}</strong></td></tr>
		<tr><td>Invalid rows</td><td><strong>{{.InvalidRows}}</strong></td></tr>
	</table>
	{{if .Errors}}
	<h3>Errors</h3>
	<ul>
	{{range .Errors}}<li>{{.}}</li>{{end}}
	</ul>
	{{end}}
</body>
</html>`

// SendBatchSummary emails the results of one batch run.
func (s *Service) SendBatchSummary(ctx context.Context, to string, summary *models.BatchSummary) (*SendEmailResult, error) {
	tmpl, err := template.New("batch_summary").Parse(batchSummaryTemplate)
	if err != nil {
		return nil, fmt.Errorf("failed to parse summary template: %w", err)
	}

	var htmlBody bytes.Buffer
	if err := tmpl.Execute(&htmlBody, summary); err != nil {
		return nil, fmt.Errorf("failed to render summary template: %w", err)
	}

	textBody := fmt.Sprintf(
		"Batch %s complete.\nTotal: %d\nEvaluated: %d\nEligible: %d\nIneligible: %d\nInvalid: %d\n",
		summary.BatchID,
		summary.TotalRows,
		summary.Evaluated,
		summary.Eligible,
		summary.Ineligible,
		summary.InvalidRows,
	)

	return s.SendEmail(ctx, &EmailParams{
		To:       to,
		Subject:  fmt.Sprintf("Batch %s: %d eligible of %d scenarios", summary.BatchID, summary.Eligible, summary.Evaluated),
		HTMLBody: htmlBody.String(),
		TextBody: textBody,
	})
}
