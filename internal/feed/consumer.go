// Package feed consumes social-media hazard posts from Kafka and funnels
// them through the same ingestion path as citizen reports.
package feed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/tidewatch/tidewatch/internal/database"
	"github.com/tidewatch/tidewatch/internal/observability"
	"github.com/tidewatch/tidewatch/internal/reports"
)

// SocialPost is the wire format of one feed message
type SocialPost struct {
	Text   string  `json:"text"`
	Lat    float64 `json:"lat"`
	Lon    float64 `json:"lon"`
	Source string  `json:"source"`
	UserID uint    `json:"user_id"`
}

// Importer ingests one parsed post
type Importer interface {
	Create(ctx context.Context, input reports.CreateInput) (*database.Report, error)
}

type messageReader interface {
	ReadMessage(ctx context.Context) (kafkago.Message, error)
	Close() error
}

// Consumer reads the social feed topic and ingests each post as a report
type Consumer struct {
	reader   messageReader
	importer Importer
	metrics  *observability.Metrics

	// systemUser attributes feed posts that carry no platform user id
	systemUser uint
}

// NewConsumer creates a feed consumer joining the given consumer group
func NewConsumer(brokers []string, topic, groupID string, systemUser uint,
	importer Importer, metrics *observability.Metrics) *Consumer {
	reader := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:     brokers,
		Topic:       topic,
		GroupID:     groupID,
		StartOffset: kafkago.FirstOffset,
	})
	return &Consumer{reader: reader, importer: importer, metrics: metrics, systemUser: systemUser}
}

func newConsumerWithReader(reader messageReader, systemUser uint,
	importer Importer, metrics *observability.Metrics) *Consumer {
	return &Consumer{reader: reader, importer: importer, metrics: metrics, systemUser: systemUser}
}

// Run consumes until the context is canceled. Malformed or invalid posts are
// logged and skipped; only the reader itself can make Run return an error.
func (c *Consumer) Run(ctx context.Context) error {
	for {
		msg, err := c.reader.ReadMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("read feed message: %w", err)
		}

		input, err := c.parsePost(msg.Value)
		if err != nil {
			log.Printf("Skipping malformed feed message at offset %d: %v", msg.Offset, err)
			c.count("invalid")
			continue
		}

		if _, err := c.importer.Create(ctx, input); err != nil {
			var verr *reports.ValidationError
			if errors.As(err, &verr) {
				log.Printf("Skipping invalid feed post at offset %d: %v", msg.Offset, verr)
				c.count("rejected")
				continue
			}
			log.Printf("Failed to ingest feed post at offset %d: %v", msg.Offset, err)
			c.count("error")
			continue
		}
		c.count("ingested")
	}
}

// Close releases the underlying Kafka reader
func (c *Consumer) Close() error {
	return c.reader.Close()
}

// parsePost decodes one feed message into ingestion input
func (c *Consumer) parsePost(value []byte) (reports.CreateInput, error) {
	var post SocialPost
	if err := json.Unmarshal(value, &post); err != nil {
		return reports.CreateInput{}, fmt.Errorf("decode post: %w", err)
	}
	if strings.TrimSpace(post.Text) == "" {
		return reports.CreateInput{}, errors.New("post has no text")
	}

	source := database.ReportSource(strings.ToLower(post.Source))
	if !database.ValidSource(source) {
		return reports.CreateInput{}, fmt.Errorf("unknown post source %q", post.Source)
	}

	submitter := post.UserID
	if submitter == 0 {
		submitter = c.systemUser
	}

	return reports.CreateInput{
		Text:        post.Text,
		Lat:         post.Lat,
		Lon:         post.Lon,
		Source:      source,
		SubmittedBy: submitter,
	}, nil
}

func (c *Consumer) count(outcome string) {
	if c.metrics != nil {
		c.metrics.FeedMessages.WithLabelValues(outcome).Inc()
	}
}
