// Command kafka-processor measures compressed sizes for the kafka engine.
// It reads job batches from the pair topic and answers on the results topic.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/kpaschen/seqcluster/lib/comparisons"
	messages "github.com/kpaschen/seqcluster/lib/kafka"
	"github.com/kpaschen/seqcluster/lib/settings"
	kafka "github.com/segmentio/kafka-go"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func decodeJobMessage(msg kafka.Message) (*messages.JobMessage, error) {
	jobs := &messages.JobMessage{}
	if err := json.Unmarshal(msg.Value, jobs); err != nil {
		return nil, err
	}
	return jobs, nil
}

// processMessage turns one job message into the size message answering it.
func processMessage(ctx context.Context, msg kafka.Message) (kafka.Message, error) {
	jobs, err := decodeJobMessage(msg)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("decode job message: %w", err)
	}
	sizes, err := comparisons.HandleJobMessage(ctx, jobs)
	if err != nil {
		return kafka.Message{}, err
	}
	value, err := json.Marshal(sizes)
	if err != nil {
		return kafka.Message{}, err
	}
	return kafka.Message{Key: msg.Key, Value: value}, nil
}

type messageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// serve handles job messages until ctx is done.
func serve(ctx context.Context, reader messageReader, writer messageWriter) error {
	log.Info("kafka worker waiting for jobs")
	for {
		msg, err := reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			log.WithError(err).Warn("failed to read job message")
			continue
		}
		log.WithFields(log.Fields{
			"key":       string(msg.Key),
			"partition": msg.Partition,
		}).Debug("received job message")

		reply, err := processMessage(ctx, msg)
		if err != nil {
			log.WithError(err).WithField("key", string(msg.Key)).Warn("failed to process job message")
			continue
		}
		if err := writer.WriteMessages(ctx, reply); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			log.WithError(err).Warn("failed to send size message")
			continue
		}
		log.WithField("key", string(msg.Key)).Debug("sent sizes")
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "kafka-processor",
		Short:        "Measurement worker for the kafka engine",
		SilenceUsage: true,
		Args:         cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path, _ := cmd.Flags().GetString("config")
			s := settings.DefaultSettings()
			if path != "" {
				var err error
				if s, err = settings.Load(path); err != nil {
					return err
				}
			}
			if cmd.Flags().Changed("kafka-url") {
				s.Kafka.URL, _ = cmd.Flags().GetString("kafka-url")
			}
			if s.Kafka.URL == "" {
				return fmt.Errorf("a kafka broker url is required")
			}
			level, err := log.ParseLevel(s.LogLevel)
			if err != nil {
				return err
			}
			log.SetLevel(level)

			reader := kafka.NewReader(kafka.ReaderConfig{
				Brokers: []string{s.Kafka.URL},
				GroupID: s.Kafka.GroupID + "_workers",
				Topic:   s.Kafka.PairTopic,
			})
			defer reader.Close()
			writer := &kafka.Writer{
				Addr:     kafka.TCP(s.Kafka.URL),
				Topic:    s.Kafka.ResultsTopic,
				Balancer: &kafka.Hash{},
			}
			defer writer.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, reader, writer)
		},
	}
	cmd.Flags().String("config", "", "YAML settings file")
	cmd.Flags().String("kafka-url", "", "The URL for the kafka broker")
	return cmd
}

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		log.Fatal(err)
	}
}
