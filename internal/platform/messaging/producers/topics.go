package producers

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
)

const (
	topicReadAttempts = 5
	topicReadBackoff  = 2 * time.Second
)

// topicSpec describes a topic to provision
type topicSpec struct {
	Name              string
	NumPartitions     int
	ReplicationFactor int
}

// ensureTopic creates the topic unless its partitions can be read.
// Partition reads are retried because a fresh broker may not have metadata yet.
func ensureTopic(admin topicAdmin, spec topicSpec, backoff time.Duration, log *slog.Logger) error {
	var partitions []kafka.Partition
	var err error

	for attempt := 1; attempt <= topicReadAttempts; attempt++ {
		partitions, err = admin.ReadPartitions(spec.Name)
		if err == nil && len(partitions) > 0 {
			log.Info("Kafka topic already exists", "topic", spec.Name, "partitions", len(partitions))
			return nil
		}
		if attempt < topicReadAttempts {
			log.Warn("Failed to read topic partitions, retrying", "topic", spec.Name, "attempt", attempt, "error", err)
			time.Sleep(backoff)
		}
	}

	config := kafka.TopicConfig{
		Topic:             spec.Name,
		NumPartitions:     spec.NumPartitions,
		ReplicationFactor: spec.ReplicationFactor,
	}
	if config.NumPartitions <= 0 {
		config.NumPartitions = 1
	}
	if config.ReplicationFactor <= 0 {
		config.ReplicationFactor = 1
	}

	log.Info("Creating Kafka topic", "topic", spec.Name, "partitions", config.NumPartitions, "last_read_error", err)
	if err := admin.CreateTopics(config); err != nil {
		return fmt.Errorf("failed to create kafka topic %s: %w", spec.Name, err)
	}
	return nil
}

// provisionTopic dials the broker and makes sure the topic exists
func provisionTopic(brokers string, spec topicSpec, log *slog.Logger) error {
	conn, err := kafka.Dial("tcp", brokers)
	if err != nil {
		return fmt.Errorf("failed to dial kafka: %w", err)
	}
	defer conn.Close()

	return ensureTopic(conn, spec, topicReadBackoff, log)
}
