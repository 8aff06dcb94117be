// event-tail follows the launcher event topic and prints each event as
// a JSON line. Handy for watching registrations and MOTD changes land
// without attaching to the database.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/IBM/sarama"
)

func main() {
	// Command line flags
	brokers := flag.String("brokers", "localhost:9092", "Kafka brokers (comma-separated)")
	topic := flag.String("topic", "launcher-events", "Kafka topic")
	groupID := flag.String("group", "launcher-event-tail", "Consumer group ID")
	fromBeginning := flag.Bool("from-beginning", false, "Read the topic from the oldest offset")
	flag.Parse()

	brokerList := strings.Split(*brokers, ",")

	saramaConfig := sarama.NewConfig()
	saramaConfig.Version = sarama.V3_0_0_0
	saramaConfig.Consumer.Return.Errors = true
	if *fromBeginning {
		saramaConfig.Consumer.Offsets.Initial = sarama.OffsetOldest
	} else {
		saramaConfig.Consumer.Offsets.Initial = sarama.OffsetNewest
	}

	consumerGroup, err := sarama.NewConsumerGroup(brokerList, *groupID, saramaConfig)
	if err != nil {
		log.Fatalf("Failed to create consumer group: %v", err)
	}
	defer consumerGroup.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		fmt.Fprintln(os.Stderr, "shutting down...")
		cancel()
	}()

	go func() {
		for err := range consumerGroup.Errors() {
			log.Printf("consumer error: %v", err)
		}
	}()

	fmt.Fprintf(os.Stderr, "tailing %s on %s\n", *topic, *brokers)

	handler := &tailHandler{}
	for {
		if err := consumerGroup.Consume(ctx, []string{*topic}, handler); err != nil {
			if err == sarama.ErrClosedConsumerGroup {
				return
			}
			log.Printf("consume error: %v", err)
		}
		if ctx.Err() != nil {
			return
		}
	}
}

// tailHandler implements sarama.ConsumerGroupHandler
type tailHandler struct{}

func (h *tailHandler) Setup(sarama.ConsumerGroupSession) error   { return nil }
func (h *tailHandler) Cleanup(sarama.ConsumerGroupSession) error { return nil }

func (h *tailHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for {
		select {
		case <-session.Context().Done():
			return nil

		case message, ok := <-claim.Messages():
			if !ok {
				return nil
			}

			// Re-indent valid events, pass anything else through raw
			var event map[string]interface{}
			if err := json.Unmarshal(message.Value, &event); err != nil {
				fmt.Printf("%s %s\n", message.Timestamp.Format(time.RFC3339), message.Value)
			} else {
				line, _ := json.Marshal(event)
				fmt.Printf("%s %s\n", message.Timestamp.Format(time.RFC3339), line)
			}
			session.MarkMessage(message, "")
		}
	}
}
