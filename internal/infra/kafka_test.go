package infra

import (
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/walletd/walletd/internal/logging"
)

func TestNewKafkaWriterDisabledWithoutBrokers(t *testing.T) {
	assert.Nil(t, NewKafkaWriter(nil, "wallet.transactions", logging.Discard()))
}

func TestNewKafkaWriterConfiguresTopic(t *testing.T) {
	w := NewKafkaWriter([]string{"localhost:9092"}, "wallet.transactions", logging.Discard())
	require.NotNil(t, w)
	t.Cleanup(func() { w.Close() })

	assert.Equal(t, "wallet.transactions", w.Topic)
	assert.Equal(t, kafka.RequireOne, w.RequiredAcks)
	assert.IsType(t, &kafka.Hash{}, w.Balancer)
}
