package mailer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"social-service/internal/config"
	"social-service/internal/util"
)

const sendTimeout = 30 * time.Second

type Message struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// Dispatcher hands a message off for delivery without waiting for it.
type Dispatcher interface {
	Dispatch(ctx context.Context, msg Message)
}

// Sender delivers one message synchronously.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// Mailer renders kinds into messages and dispatches them.
type Mailer struct {
	dispatcher Dispatcher
	appName    string
	otpExpiry  time.Duration
	logger     *zap.Logger
}

func NewMailer(d Dispatcher, appName string, otpExpiry time.Duration, logger *zap.Logger) *Mailer {
	return &Mailer{dispatcher: d, appName: appName, otpExpiry: otpExpiry, logger: logger}
}

// Notify renders an email of kind k and dispatches it. Render failures are
// logged because callers never block on email delivery.
func (m *Mailer) Notify(ctx context.Context, to string, k Kind, userName, otp string) {
	content, err := Render(k, userName, otp, m.appName, m.otpExpiry)
	if err != nil {
		m.logger.Error("failed to render email", zap.String("kind", string(k)), zap.Error(err))
		return
	}
	m.dispatcher.Dispatch(ctx, Message{To: to, Subject: content.Subject, Body: content.Body})
}

// AsyncSender sends each message on its own goroutine.
type AsyncSender struct {
	sender Sender
	logger *zap.Logger
}

func NewAsyncSender(sender Sender, logger *zap.Logger) *AsyncSender {
	return &AsyncSender{sender: sender, logger: logger}
}

func (a *AsyncSender) Dispatch(ctx context.Context, msg Message) {
	go func() {
		sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sendTimeout)
		defer cancel()
		if err := a.sender.Send(sendCtx, msg); err != nil {
			a.logger.Error("failed to send email", util.MaskedEmail("to", msg.To), zap.Error(err))
		}
	}()
}

type Producer interface {
	ProduceMessage(ctx context.Context, topic string, key, value []byte, headers map[string]string) error
}

// KafkaDispatcher queues messages on a topic consumed by Worker.
type KafkaDispatcher struct {
	producer Producer
	topic    string
	logger   *zap.Logger
}

func NewKafkaDispatcher(producer Producer, topic string, logger *zap.Logger) *KafkaDispatcher {
	return &KafkaDispatcher{producer: producer, topic: topic, logger: logger}
}

func (k *KafkaDispatcher) Dispatch(ctx context.Context, msg Message) {
	payload, err := json.Marshal(msg)
	if err != nil {
		k.logger.Error("failed to encode email", zap.Error(err))
		return
	}
	go func() {
		produceCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sendTimeout)
		defer cancel()
		err := k.producer.ProduceMessage(produceCtx, k.topic, []byte(msg.To), payload, map[string]string{"content-type": "application/json"})
		if err != nil {
			k.logger.Error("failed to queue email", util.MaskedEmail("to", msg.To), zap.Error(err))
		}
	}()
}

type Consumer interface {
	ConsumeMessage(ctx context.Context) (*kafka.Message, error)
}

// Worker drains the email topic into a Sender until ctx is cancelled.
type Worker struct {
	consumer Consumer
	sender   Sender
	logger   *zap.Logger
}

func NewWorker(consumer Consumer, sender Sender, logger *zap.Logger) *Worker {
	return &Worker{consumer: consumer, sender: sender, logger: logger}
}

func (w *Worker) Run(ctx context.Context) error {
	for {
		raw, err := w.consumer.ConsumeMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			w.logger.Warn("email worker read failed", zap.Error(err))
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(time.Second):
			}
			continue
		}

		var msg Message
		if err := json.Unmarshal(raw.Value, &msg); err != nil {
			w.logger.Error("dropping malformed email message", zap.Int64("offset", raw.Offset), zap.Error(err))
			continue
		}

		sendCtx, cancel := context.WithTimeout(ctx, sendTimeout)
		if err := w.sender.Send(sendCtx, msg); err != nil {
			w.logger.Error("failed to send email", util.MaskedEmail("to", msg.To), zap.Error(err))
		}
		cancel()
	}
}

// SMTPSender delivers HTML mail over SMTP with PLAIN auth.
type SMTPSender struct {
	addr string
	host string
	auth smtp.Auth
	from string
}

func NewSMTPSender(cfg config.MailConfig) (*SMTPSender, error) {
	if cfg.SMTPHost == "" || cfg.Username == "" || cfg.Password == "" {
		return nil, errors.New("SMTP_HOST, SMTP_USERNAME and SMTP_PASSWORD are required")
	}
	from := cfg.From
	if from == "" {
		from = cfg.Username
	}
	return &SMTPSender{
		addr: net.JoinHostPort(cfg.SMTPHost, strconv.Itoa(cfg.SMTPPort)),
		host: cfg.SMTPHost,
		auth: smtp.PlainAuth("", cfg.Username, cfg.Password, cfg.SMTPHost),
		from: from,
	}, nil
}

func (s *SMTPSender) Send(ctx context.Context, msg Message) error {
	if msg.To == "" || msg.Subject == "" || msg.Body == "" {
		return errors.New("email requires recipient, subject and body")
	}

	done := make(chan error, 1)
	go func() {
		done <- smtp.SendMail(s.addr, s.auth, s.from, []string{msg.To}, buildMIME(s.from, msg))
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("smtp send to %s: %w", msg.To, err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func buildMIME(from string, msg Message) []byte {
	var b strings.Builder
	b.WriteString("From: " + from + "\r\n")
	b.WriteString("To: " + msg.To + "\r\n")
	b.WriteString("Subject: " + msg.Subject + "\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/html; charset=\"UTF-8\"\r\n\r\n")
	b.WriteString(msg.Body)
	return []byte(b.String())
}

// LogSender writes messages to the log instead of delivering them.
type LogSender struct {
	logger *zap.Logger
}

func NewLogSender(logger *zap.Logger) *LogSender {
	return &LogSender{logger: logger}
}

func (l *LogSender) Send(_ context.Context, msg Message) error {
	l.logger.Info("email (not delivered)",
		util.MaskedEmail("to", msg.To),
		zap.String("subject", msg.Subject),
		zap.String("body", msg.Body),
	)
	return nil
}
