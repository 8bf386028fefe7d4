package messaging

import (
	"context"
	"errors"
	"time"

	"example.com/backstage/services/fleet/config"

	"github.com/Azure/azure-sdk-for-go/sdk/messaging/azservicebus"
	"github.com/rs/zerolog/log"
)

const (
	receiveBatchSize = 10
	sessionWait      = 2 * time.Second
)

// AzureClient consumes the fleet command queue
type AzureClient struct {
	client   *azservicebus.Client
	sessions bool
}

// NewAzureClient connects to Service Bus with the configured connection string
func NewAzureClient(cfg config.AzureConfig) (*AzureClient, error) {
	client, err := azservicebus.NewClientFromConnectionString(cfg.QueueConnStr, nil)
	if err != nil {
		return nil, err
	}

	return &AzureClient{client: client, sessions: cfg.SessionsEnabled}, nil
}

// StartConsumers receives from queueName until ctx is cancelled. With
// sessions enabled every accepted session is drained on its own goroutine,
// so commands for one delivery keep their order.
func (a *AzureClient) StartConsumers(ctx context.Context, queueName string, processor MessageProcessor) error {
	log.Info().Str("queue", queueName).Bool("sessions", a.sessions).Msg("Starting consumers")

	if !a.sessions {
		receiver, err := a.client.NewReceiverForQueue(queueName, nil)
		if err != nil {
			return err
		}
		defer receiver.Close(context.Background())
		return a.receive(ctx, receiver, processor, "")
	}

	for {
		sessionReceiver, err := a.client.AcceptNextSessionForQueue(ctx, queueName, nil)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			var sbErr *azservicebus.Error
			if errors.As(err, &sbErr) && sbErr.Code == azservicebus.CodeTimeout {
				log.Debug().Msg("No session available, waiting...")
				select {
				case <-ctx.Done():
					return nil
				case <-time.After(sessionWait):
				}
				continue
			}
			return err
		}

		log.Info().Msgf("Session '%s' received", sessionReceiver.SessionID())
		go a.handleSession(ctx, sessionReceiver, processor)
	}
}

func (a *AzureClient) handleSession(ctx context.Context, receiver *azservicebus.SessionReceiver, processor MessageProcessor) {
	defer func() {
		log.Info().Msgf("Closing session '%s'", receiver.SessionID())
		if err := receiver.Close(context.Background()); err != nil {
			log.Error().Err(err).Msgf("Error closing session '%s'", receiver.SessionID())
		}
	}()

	if err := a.receive(ctx, receiver, processor, receiver.SessionID()); err != nil {
		log.Error().Err(err).Msgf("Error receiving messages from session '%s'", receiver.SessionID())
	}
}

// settler is the part of a receiver used to settle messages
type settler interface {
	ReceiveMessages(ctx context.Context, maxMessages int, options *azservicebus.ReceiveMessagesOptions) ([]*azservicebus.ReceivedMessage, error)
	CompleteMessage(ctx context.Context, message *azservicebus.ReceivedMessage, options *azservicebus.CompleteMessageOptions) error
	AbandonMessage(ctx context.Context, message *azservicebus.ReceivedMessage, options *azservicebus.AbandonMessageOptions) error
	DeadLetterMessage(ctx context.Context, message *azservicebus.ReceivedMessage, options *azservicebus.DeadLetterOptions) error
}

// receive processes batches until ctx ends. A session receiver stops once its
// session is drained.
func (a *AzureClient) receive(ctx context.Context, receiver settler, processor MessageProcessor, sessionID string) error {
	for {
		messages, err := receiver.ReceiveMessages(ctx, receiveBatchSize, nil)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}

		if len(messages) == 0 {
			if sessionID != "" {
				return nil
			}
			continue
		}

		log.Debug().Str("session", sessionID).Msgf("Received %d messages", len(messages))

		for _, message := range messages {
			settle(ctx, receiver, message, processor.ProcessMessage(ctx, message))
		}
	}
}

// settle completes a processed message, dead-letters one that can never
// succeed and returns anything else to the queue
func settle(ctx context.Context, receiver settler, message *azservicebus.ReceivedMessage, procErr error) {
	// settlement must go through even while shutting down
	ctx = context.WithoutCancel(ctx)

	if procErr == nil {
		if err := receiver.CompleteMessage(ctx, message, nil); err != nil {
			log.Error().Err(err).Str("messageID", message.MessageID).Msg("Failed to complete message")
		}
		return
	}

	if IsPermanent(procErr) {
		log.Warn().Err(procErr).Str("messageID", message.MessageID).Msg("Dead-lettering rejected message")
		reason := "rejected"
		description := procErr.Error()
		err := receiver.DeadLetterMessage(ctx, message, &azservicebus.DeadLetterOptions{
			Reason:           &reason,
			ErrorDescription: &description,
		})
		if err != nil {
			log.Error().Err(err).Str("messageID", message.MessageID).Msg("Failed to dead-letter message")
		}
		return
	}

	log.Error().Err(procErr).Str("messageID", message.MessageID).Msg("Error processing message")
	if err := receiver.AbandonMessage(ctx, message, nil); err != nil {
		log.Error().Err(err).Str("messageID", message.MessageID).Msg("Failed to abandon message")
	}
}

// Close closes the Service Bus client
func (a *AzureClient) Close(ctx context.Context) error {
	return a.client.Close(ctx)
}
