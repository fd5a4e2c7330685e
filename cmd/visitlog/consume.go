package main

import (
	"errors"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"visitlog/internal/ingest"
)

func newConsumeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "consume",
		Short: "Record fixes published on the Kafka topic",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(opts, func(a *app) error {
				if !a.cfg.KafkaEnabled() {
					return errors.New("kafka.brokers and kafka.topic must be configured")
				}

				consumer := ingest.NewConsumer(
					ingest.NewReader(a.cfg.Kafka.Brokers, a.cfg.Kafka.Topic, a.cfg.Kafka.GroupID),
					a.engine, a.logger,
				)
				defer consumer.Close()

				err := consumer.Run(cmd.Context())
				stats := consumer.Stats()
				a.logger.Info("consumer finished",
					zap.Int("recorded", stats.Recorded),
					zap.Int("skipped", stats.Skipped),
					zap.Int("retries", stats.Retries),
				)
				return err
			})
		},
	}
}
