package service

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"text/template"

	"github.com/garyjia/justifi/internal/application/port"
	"github.com/garyjia/justifi/internal/domain/apperr"
	"github.com/garyjia/justifi/internal/domain/entity"
)

// TemplateInput is the editable part of an email template
type TemplateInput struct {
	Subject string `json:"subject"`
	HTML    string `json:"html"`
}

// TemplateService administers notification template overrides
type TemplateService interface {
	// Put validates and stores the template under key
	Put(ctx context.Context, key string, in TemplateInput) (*entity.EmailTemplate, error)
	Get(ctx context.Context, key string) (*entity.EmailTemplate, error)
	List(ctx context.Context) ([]*entity.EmailTemplate, error)

	// Delete restores the built-in text for key
	Delete(ctx context.Context, key string) error
}

type templateServiceImpl struct {
	repo   port.EmailTemplateRepository
	logger Logger
}

var _ TemplateService = (*templateServiceImpl)(nil)

// NewTemplateService creates a new TemplateService
func NewTemplateService(repo port.EmailTemplateRepository, logger Logger) TemplateService {
	return &templateServiceImpl{
		repo:   repo,
		logger: orNop(logger),
	}
}

var sampleMessageData = port.MessageData{
	JustificationID: "01HZXAMPLE",
	Title:           "New build servers",
	RequesterEmail:  "requester@example.com",
	Reason:          "over budget",
}

func (s *templateServiceImpl) validKey(key string) (string, error) {
	key = strings.TrimSpace(key)
	if !entity.IsValidTemplateKey(key) {
		return "", apperr.InvalidArgument("unknown template key %q, expected one of %v", key, entity.TemplateKeys())
	}
	return key, nil
}

// Put stores the template after executing it against sample data
func (s *templateServiceImpl) Put(ctx context.Context, key string, in TemplateInput) (*entity.EmailTemplate, error) {
	key, err := s.validKey(key)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(in.Subject) == "" {
		return nil, apperr.InvalidArgument("subject is required")
	}
	if strings.TrimSpace(in.HTML) == "" {
		return nil, apperr.InvalidArgument("html is required")
	}
	if _, err := renderTemplate(in.Subject, sampleMessageData); err != nil {
		return nil, apperr.InvalidArgument("subject: %v", err)
	}
	if _, err := renderTemplate(in.HTML, sampleMessageData); err != nil {
		return nil, apperr.InvalidArgument("html: %v", err)
	}

	t := &entity.EmailTemplate{
		Key:       key,
		Subject:   in.Subject,
		HTML:      in.HTML,
		UpdatedAt: utcNow(),
	}
	if err := s.repo.Upsert(ctx, t); err != nil {
		s.logger.Error("Failed to save email template", "error", err, "key", key)
		return nil, apperr.Internal(err, "failed to save email template %s", key)
	}

	s.logger.Info("Email template saved", "key", key)
	return t, nil
}

// Get returns the stored template or NotFound
func (s *templateServiceImpl) Get(ctx context.Context, key string) (*entity.EmailTemplate, error) {
	key, err := s.validKey(key)
	if err != nil {
		return nil, err
	}
	t, err := s.repo.Get(ctx, key)
	if err != nil {
		s.logger.Error("Failed to get email template", "error", err, "key", key)
		return nil, apperr.Internal(err, "failed to get email template %s", key)
	}
	if t == nil {
		return nil, apperr.NotFound("email template", key)
	}
	return t, nil
}

// List returns every stored template ordered by key
func (s *templateServiceImpl) List(ctx context.Context) ([]*entity.EmailTemplate, error) {
	templates, err := s.repo.List(ctx)
	if err != nil {
		s.logger.Error("Failed to list email templates", "error", err)
		return nil, apperr.Internal(err, "failed to list email templates")
	}
	if templates == nil {
		templates = []*entity.EmailTemplate{}
	}
	return templates, nil
}

// Delete removes the override stored under key
func (s *templateServiceImpl) Delete(ctx context.Context, key string) error {
	key, err := s.validKey(key)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, key); err != nil {
		s.logger.Error("Failed to delete email template", "error", err, "key", key)
		return apperr.Internal(err, "failed to delete email template %s", key)
	}
	s.logger.Info("Email template deleted", "key", key)
	return nil
}

// renderTemplate executes a text/template source against data
func renderTemplate(src string, data port.MessageData) (string, error) {
	tmpl, err := template.New("notification").Option("missingkey=error").Parse(src)
	if err != nil {
		return "", fmt.Errorf("failed to parse template: %w", err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to execute template: %w", err)
	}
	return buf.String(), nil
}
