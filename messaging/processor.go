package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"example.com/backstage/services/fleet/domain"
	"example.com/backstage/services/fleet/handlers"
	"example.com/backstage/services/fleet/internal/tracing"

	"github.com/Azure/azure-sdk-for-go/sdk/messaging/azservicebus"
	"github.com/rs/zerolog/log"
)

// EventType definitions
const (
	TransitionDelivery    = "TransitionDelivery"
	RecordContainerAction = "RecordContainerAction"
)

// AzureBusMessage is the common message structure
type AzureBusMessage struct {
	EventType string          `json:"eventType"`
	Data      json.RawMessage `json:"data"`
}

// MessageProcessor handles one received message
type MessageProcessor interface {
	ProcessMessage(ctx context.Context, message *azservicebus.ReceivedMessage) error
}

// MessageObserver receives the outcome of every processed message
type MessageObserver interface {
	RecordMessage(eventType string, err error)
}

// PermanentError marks a message that will never succeed on redelivery
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string {
	return e.Err.Error()
}

func (e *PermanentError) Unwrap() error {
	return e.Err
}

// IsPermanent reports whether redelivering the message cannot help. Malformed
// payloads and rejected commands are permanent. Timeouts, lost optimistic
// races and internal failures are retried until the queue's max delivery
// count dead-letters them.
func IsPermanent(err error) bool {
	var pe *PermanentError
	if errors.As(err, &pe) {
		return true
	}
	switch domain.KindOf(err) {
	case domain.KindTimeout, domain.KindConflict, domain.KindInternal:
		return false
	}
	return true
}

// Processor dispatches Service Bus commands to the command handlers
type Processor struct {
	deliveryHandler  *handlers.DeliveryHandler
	containerHandler *handlers.ContainerHandler
	metrics          MessageObserver
	tracer           *tracing.Tracer
}

// NewProcessor creates a processor. metrics and tracer may be nil.
func NewProcessor(deliveryHandler *handlers.DeliveryHandler, containerHandler *handlers.ContainerHandler, metrics MessageObserver, tracer *tracing.Tracer) *Processor {
	return &Processor{
		deliveryHandler:  deliveryHandler,
		containerHandler: containerHandler,
		metrics:          metrics,
		tracer:           tracer,
	}
}

// ProcessMessage implements MessageProcessor
func (p *Processor) ProcessMessage(ctx context.Context, message *azservicebus.ReceivedMessage) error {
	return p.Process(ctx, message.Body)
}

// Process decodes and dispatches one message body
func (p *Processor) Process(ctx context.Context, body []byte) error {
	var msg AzureBusMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		return &PermanentError{Err: fmt.Errorf("error unmarshalling message: %w", err)}
	}

	log.Info().Str("eventType", msg.EventType).Msg("Processing message")

	txn := p.tracer.StartTransaction("servicebus/" + msg.EventType)
	err := p.dispatch(ctx, msg)
	p.tracer.EndTransaction(txn, err)
	if p.metrics != nil {
		p.metrics.RecordMessage(msg.EventType, err)
	}
	return err
}

func (p *Processor) dispatch(ctx context.Context, msg AzureBusMessage) error {
	switch msg.EventType {
	case TransitionDelivery:
		var cmd handlers.TransitionDeliveryCommand
		if err := decodeData(msg.Data, &cmd); err != nil {
			return err
		}
		_, err := p.deliveryHandler.HandleTransition(ctx, cmd)
		return err

	case RecordContainerAction:
		var cmd handlers.RecordContainerActionCommand
		if err := decodeData(msg.Data, &cmd); err != nil {
			return err
		}
		_, err := p.containerHandler.HandleRecordAction(ctx, cmd)
		return err

	default:
		return &PermanentError{Err: fmt.Errorf("unsupported event type: %q", msg.EventType)}
	}
}

func decodeData(data json.RawMessage, v interface{}) error {
	if len(data) == 0 {
		return &PermanentError{Err: errors.New("message has no data")}
	}
	if err := json.Unmarshal(data, v); err != nil {
		return &PermanentError{Err: fmt.Errorf("error unmarshalling message data: %w", err)}
	}
	return nil
}
