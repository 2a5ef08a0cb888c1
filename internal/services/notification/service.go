// internal/services/notification/service.go
package notification

import (
	"context"
	"fmt"
	"strings"
	"time"

	"loanassist/internal/common/config"
	"loanassist/internal/common/logger"
	"loanassist/internal/common/metrics"
	"loanassist/internal/models"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/google/uuid"
)

// Notification types.
const (
	TypeOTP             = "otp"
	TypeEligibility     = "eligibility_result"
	TypeManagerDecision = "manager_decision"
)

// Delivery statuses.
const (
	StatusSent     = "sent"
	StatusFailed   = "failed"
	StatusDisabled = "disabled"
)

// Interfaces over the AWS clients for mocking.
type SESService interface {
	SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

type SNSService interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

var templates = map[string]models.NotificationTemplate{
	TypeOTP: {
		Subject: "Your verification code",
		Body:    "Your one-time verification code is {{code}}. It expires in {{ttl_minutes}} minutes. Do not share it with anyone.",
	},
	TypeEligibility: {
		Subject: "Your loan eligibility result",
		Body: "Hi {{name}},\n\nYour eligibility check is complete. Your score is {{score_pct}}% and your current status is {{status}}.\n\n" +
			"You can continue your application in the chat at any time.",
	},
	TypeManagerDecision: {
		Subject: "Update on your loan application",
		Body: "Hi {{name}},\n\nYour loan application #{{application_id}} has been {{decision}}.\n{{notes}}\n\n" +
			"Thank you for applying with us.",
	},
}

// Input describes one notification to deliver.
type Input struct {
	Recipient string // email address
	Phone     string // optional, E.164
	Type      string
	Priority  string // "high" adds SMS delivery
	Data      map[string]interface{}
}

// Service delivers notifications over SES email and SNS SMS. Delivery is
// best effort: failures are logged and counted, never propagated into the
// conversational turn.
type Service struct {
	cfg    config.NotificationConfig
	ses    SESService
	sns    SNSService
	from   string
	logger logger.Logger
}

func New(cfg config.NotificationConfig, sesClient SESService, snsClient SNSService, log logger.Logger) *Service {
	return &Service{
		cfg:    cfg,
		ses:    sesClient,
		sns:    snsClient,
		from:   cfg.Email.FromEmail,
		logger: log.WithFields(map[string]interface{}{"collaborator": "notification"}),
	}
}

// Send renders the template for input.Type and delivers it on the enabled
// channels. The returned record reflects what actually happened.
func (s *Service) Send(ctx context.Context, input Input) *models.Notification {
	record := &models.Notification{
		ID:        uuid.New().String(),
		Recipient: input.Recipient,
		Type:      input.Type,
		Status:    StatusDisabled,
		Payload:   input.Data,
		CreatedAt: time.Now().UTC().Format(time.RFC3339),
	}

	template, exists := templates[input.Type]
	if !exists {
		s.logger.Error("unknown notification type", map[string]interface{}{"type": input.Type})
		record.Status = StatusFailed
		metrics.NotificationsSent.WithLabelValues("none", StatusFailed).Inc()
		return record
	}

	subject := renderTemplate(template.Subject, input.Data)
	body := renderTemplate(template.Body, input.Data)

	emailSent := false
	if s.cfg.Email.Enabled && input.Recipient != "" {
		if err := s.sendEmail(ctx, input.Recipient, subject, body); err != nil {
			s.logger.Error("email send failed", map[string]interface{}{
				"type": input.Type, "error": err.Error(),
			})
			metrics.NotificationsSent.WithLabelValues("email", StatusFailed).Inc()
			record.Status = StatusFailed
			return record
		}
		emailSent = true
		record.Channel = "email"
		metrics.NotificationsSent.WithLabelValues("email", StatusSent).Inc()
	}

	smsSent := false
	if s.cfg.SMS.Enabled && input.Phone != "" && input.Priority == "high" {
		if err := s.sendSMS(ctx, input.Phone, body); err != nil {
			s.logger.Error("SMS send failed", map[string]interface{}{
				"type": input.Type, "error": err.Error(),
			})
			metrics.NotificationsSent.WithLabelValues("sms", StatusFailed).Inc()
		} else {
			smsSent = true
			if record.Channel == "" {
				record.Channel = "sms"
			}
			metrics.NotificationsSent.WithLabelValues("sms", StatusSent).Inc()
		}
	}

	if emailSent || smsSent {
		record.Status = StatusSent
		record.SentAt = time.Now().UTC().Format(time.RFC3339)
	}
	return record
}

// SendOTP delivers a verification code by email.
func (s *Service) SendOTP(ctx context.Context, email, code string, ttl time.Duration) error {
	record := s.Send(ctx, Input{
		Recipient: email,
		Type:      TypeOTP,
		Data: map[string]interface{}{
			"code":        code,
			"ttl_minutes": int(ttl.Minutes()),
		},
	})
	if record.Status == StatusFailed {
		return fmt.Errorf("otp delivery failed for %s", email)
	}
	return nil
}

// SendEligibilityResult notifies the applicant of their evaluation
// outcome. Fire and forget: the chat turn has already been answered.
func (s *Service) SendEligibilityResult(_ context.Context, email, name string, score float64, status string) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.Send(ctx, Input{
			Recipient: email,
			Type:      TypeEligibility,
			Data: map[string]interface{}{
				"name":      name,
				"score_pct": fmt.Sprintf("%.1f", score*100),
				"status":    strings.ReplaceAll(status, "_", " "),
			},
		})
	}()
}

// SendManagerDecision notifies the applicant of the final decision.
func (s *Service) SendManagerDecision(ctx context.Context, email, name string, applicationID int64, decision, notes string) {
	s.Send(ctx, Input{
		Recipient: email,
		Type:      TypeManagerDecision,
		Priority:  "high",
		Data: map[string]interface{}{
			"name":           name,
			"application_id": applicationID,
			"decision":       decision,
			"notes":          notes,
		},
	})
}

func (s *Service) sendEmail(ctx context.Context, to, subject, body string) error {
	if s.ses == nil {
		return fmt.Errorf("ses client not configured")
	}
	_, err := s.ses.SendEmail(ctx, &ses.SendEmailInput{
		Destination: &types.Destination{
			ToAddresses: []string{to},
		},
		Message: &types.Message{
			Subject: &types.Content{Data: aws.String(subject)},
			Body: &types.Body{
				Text: &types.Content{Data: aws.String(body)},
			},
		},
		Source: aws.String(s.from),
	})
	return err
}

func (s *Service) sendSMS(ctx context.Context, to, message string) error {
	if s.sns == nil {
		return fmt.Errorf("sns client not configured")
	}
	_, err := s.sns.Publish(ctx, &sns.PublishInput{
		PhoneNumber: aws.String(to),
		Message:     aws.String(message),
	})
	return err
}

func renderTemplate(tmpl string, data map[string]interface{}) string {
	result := tmpl
	for k, v := range data {
		placeholder := "{{" + k + "}}"
		value := ""
		if s, ok := v.(string); ok {
			value = s
		} else if v != nil {
			value = fmt.Sprintf("%v", v)
		}
		result = strings.ReplaceAll(result, placeholder, value)
	}
	return result
}
