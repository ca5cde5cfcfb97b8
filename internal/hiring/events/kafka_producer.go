package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

var jsonMarshal = json.Marshal

type EventType string

const (
	JobsSaved       EventType = "jobs_saved"
	CandidateScored EventType = "candidate_scored"
	AnswerUploaded  EventType = "answer_uploaded"
)

// Event describes a change to the job collection.
type Event struct {
	Type          EventType `json:"type"`
	Version       string    `json:"version,omitempty"`
	Count         int       `json:"count,omitempty"`
	JobID         string    `json:"jobId,omitempty"`
	CandidateID   string    `json:"candidateId,omitempty"`
	QuestionIndex int       `json:"questionIndex,omitempty"`
	// Source identifies the instance that published the event.
	Source    string    `json:"source,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// key keeps events about the same job on one partition.
func (ev Event) key() []byte {
	if ev.JobID != "" {
		return []byte(ev.JobID)
	}
	return []byte(ev.Type)
}

type KafkaWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Producer struct {
	writer    KafkaWriter
	events    chan Event
	source    string
	logger    *zap.Logger
	closeChan chan struct{}
}

func NewProducer(brokers []string, topic, source string, logger *zap.Logger) (*Producer, error) {
	// Create topic if it doesn't exist
	conn, err := kafka.Dial("tcp", brokers[0])
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	err = conn.CreateTopics(kafka.TopicConfig{
		Topic:             topic,
		NumPartitions:     3,
		ReplicationFactor: 1,
	})
	if err != nil {
		logger.Warn("failed to create topic (may already exist)", zap.Error(err))
	}

	p := newProducer(&kafka.Writer{
		Addr:     kafka.TCP(brokers...),
		Balancer: &kafka.Hash{},
		Topic:    topic,
	}, source, logger)
	go p.eventLoop()
	return p, nil
}

func newProducer(writer KafkaWriter, source string, logger *zap.Logger) *Producer {
	return &Producer{
		writer:    writer,
		events:    make(chan Event, 1000), // Buffered channel
		source:    source,
		logger:    logger.Named("kafka_producer"),
		closeChan: make(chan struct{}),
	}
}

// Produce queues the event. It never blocks; a full queue drops the event.
func (p *Producer) Produce(ev Event) {
	ev.Source = p.source
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}
	select {
	case p.events <- ev:
	default:
		p.logger.Warn("Kafka producer queue full, dropping event",
			zap.String("event_type", string(ev.Type)),
			zap.String("job_id", ev.JobID),
		)
	}
}

func (p *Producer) eventLoop() {
	for {
		select {
		case event := <-p.events:
			p.sendEvent(context.Background(), event)
		case <-p.closeChan:
			return
		}
	}
}

func (p *Producer) sendEvent(ctx context.Context, event Event) {
	value, err := jsonMarshal(event)
	if err != nil {
		p.logger.Error("Failed to serialize event",
			zap.Error(err),
			zap.String("event_type", string(event.Type)),
		)
		return
	}
	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   event.key(),
		Value: value,
	})
	if err != nil {
		p.logger.Error("Failed to produce event",
			zap.Error(err),
			zap.String("event_type", string(event.Type)),
			zap.String("job_id", event.JobID),
		)
	}
}

func (p *Producer) Close() {
	close(p.closeChan)
	if err := p.writer.Close(); err != nil {
		p.logger.Error("Failed to close Kafka writer", zap.Error(err))
	}
}

// LogProducer stands in for Producer when no brokers are configured.
type LogProducer struct {
	logger *zap.Logger
}

func NewLogProducer(logger *zap.Logger) *LogProducer {
	return &LogProducer{logger: logger.Named("events")}
}

func (p *LogProducer) Produce(ev Event) {
	p.logger.Info("Event",
		zap.String("event_type", string(ev.Type)),
		zap.String("version", ev.Version),
		zap.String("job_id", ev.JobID),
		zap.String("candidate_id", ev.CandidateID),
	)
}

func (p *LogProducer) Close() {}
