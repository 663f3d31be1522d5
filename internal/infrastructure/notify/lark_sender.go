package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	lark "github.com/larksuite/oapi-sdk-go/v3"
	larkcore "github.com/larksuite/oapi-sdk-go/v3/core"
	larkim "github.com/larksuite/oapi-sdk-go/v3/service/im/v1"
	"go.uber.org/zap"

	"github.com/garyjia/justifi/internal/application/port"
	"github.com/garyjia/justifi/internal/domain/entity"
)

// LarkConfig holds Lark app credentials
type LarkConfig struct {
	AppID     string
	AppSecret string
}

// MessageCreator is the slice of the Lark IM API the sender needs
type MessageCreator interface {
	Create(ctx context.Context, req *larkim.CreateMessageReq, options ...larkcore.RequestOptionFunc) (*larkim.CreateMessageResp, error)
}

// LarkSender delivers notifications as Lark IM text messages, addressing
// each recipient by email.
type LarkSender struct {
	messages MessageCreator
	logger   *zap.Logger
}

// NewLarkClient creates a Lark SDK client with token caching
func NewLarkClient(cfg LarkConfig) *lark.Client {
	return lark.NewClient(cfg.AppID, cfg.AppSecret,
		lark.WithLogLevel(larkcore.LogLevelInfo),
		lark.WithEnableTokenCache(true),
	)
}

// NewLarkSender creates a sender over the given message API
func NewLarkSender(messages MessageCreator, logger *zap.Logger) *LarkSender {
	return &LarkSender{messages: messages, logger: logger}
}

// NewLarkSenderFromConfig creates a sender backed by a real Lark client
func NewLarkSenderFromConfig(cfg LarkConfig, logger *zap.Logger) *LarkSender {
	return NewLarkSender(NewLarkClient(cfg).Im.Message, logger)
}

// Name implements port.Sender
func (s *LarkSender) Name() string { return ChannelLark }

// Send implements port.Sender. Every undelivered recipient is attempted. When
// some fail, the returned *port.PartialDeliveryError lists the ones reached.
func (s *LarkSender) Send(ctx context.Context, n *entity.Notification) error {
	content, err := textContent(n.Subject, n.Body)
	if err != nil {
		return err
	}

	var (
		errs      []error
		delivered []string
	)
	for _, email := range n.Undelivered() {
		if _, err := s.sendText(ctx, email, content); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", email, err))
			continue
		}
		delivered = append(delivered, email)
	}
	if len(errs) == 0 {
		return nil
	}
	return &port.PartialDeliveryError{Delivered: delivered, Err: errors.Join(errs...)}
}

// textMessageReq addresses a text message to a user by email
func textMessageReq(email, content string) *larkim.CreateMessageReq {
	return larkim.NewCreateMessageReqBuilder().
		ReceiveIdType(larkim.ReceiveIdTypeEmail).
		Body(larkim.NewCreateMessageReqBodyBuilder().
			ReceiveId(email).
			MsgType(larkim.MsgTypeText).
			Content(content).
			Build()).
		Build()
}

func (s *LarkSender) sendText(ctx context.Context, email, content string) (string, error) {
	req := textMessageReq(email, content)

	resp, err := s.messages.Create(ctx, req)
	if err != nil {
		s.logger.Error("Failed to send Lark message",
			zap.String("receive_id", email),
			zap.Error(err))
		return "", fmt.Errorf("failed to send message: %w", err)
	}

	if !resp.Success() {
		s.logger.Error("Lark API returned failure",
			zap.String("receive_id", email),
			zap.Int("code", resp.Code),
			zap.String("msg", resp.Msg))
		return "", fmt.Errorf("API error: code=%d, msg=%s", resp.Code, resp.Msg)
	}

	messageID := ""
	if resp.Data != nil && resp.Data.MessageId != nil {
		messageID = *resp.Data.MessageId
	}

	s.logger.Info("Lark message sent",
		zap.String("message_id", messageID),
		zap.String("receive_id", email))
	return messageID, nil
}

// textContent builds the JSON content of a Lark text message
func textContent(subject, body string) (string, error) {
	text := subject
	if body != "" {
		text = subject + "\n\n" + body
	}
	data, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return "", fmt.Errorf("failed to marshal message content: %w", err)
	}
	return string(data), nil
}

var _ port.Sender = (*LarkSender)(nil)
