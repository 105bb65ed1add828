package b3cverify

import (
	"context"
	"encoding/json"

	"github.com/everFinance/b3cverify/schema"
	"github.com/segmentio/kafka-go"
)

const (
	OutcomeTopic = "b3cverify_outcome"
)

type KWriter struct {
	w *kafka.Writer
}

func NewKWriter(topic string, uri string) (*KWriter, error) {
	w := &kafka.Writer{
		Addr:     kafka.TCP(uri),
		Topic:    topic,
		Balancer: &kafka.LeastBytes{},
	}

	return &KWriter{
		w: w,
	}, nil
}

func (kw *KWriter) Write(key string, body []byte) error {
	err := kw.w.WriteMessages(
		context.Background(),
		kafka.Message{
			Key:   []byte(key),
			Value: body,
		},
	)
	return err
}

func (kw *KWriter) Close() {
	kw.w.Close()
}

func kafkaOutcome(o schema.Outcome) ([]byte, error) {
	return json.Marshal(schema.KafkaOutcome{
		PaymentId: o.PaymentId,
		Flow:      o.Flow,
		Result:    o.Result,
		Attempts:  o.Attempts,
		Credited:  o.Credited,
		Timestamp: o.CreatedAt.Unix(),
	})
}
