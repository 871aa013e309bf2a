package stream

import (
	"encoding/json"
	"log"
	"sync"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
)

const flushTimeoutMs = 5000

type KafkaStream struct {
	kafkaServers string

	once     sync.Once
	producer *kafka.Producer
	err      error
}

func New(kafkaServers string) *KafkaStream {
	return &KafkaStream{
		kafkaServers: kafkaServers,
	}
}

func (st *KafkaStream) getProducer() (*kafka.Producer, error) {
	st.once.Do(func() {
		st.producer, st.err = kafka.NewProducer(&kafka.ConfigMap{"bootstrap.servers": st.kafkaServers})
		if st.err != nil {
			return
		}

		// delivery reports arrive asynchronously on the events channel
		go func(p *kafka.Producer) {
			for e := range p.Events() {
				if m, ok := e.(*kafka.Message); ok && m.TopicPartition.Error != nil {
					log.Printf("Delivery failed for topic %s: %v", *m.TopicPartition.Topic, m.TopicPartition.Error)
				}
			}
		}(st.producer)
	})

	return st.producer, st.err
}

func (st *KafkaStream) ProduceMessage(topic, key, message string) error {
	producer, err := st.getProducer()
	if err != nil {
		return err
	}

	msg := &kafka.Message{
		TopicPartition: kafka.TopicPartition{Topic: &topic, Partition: kafka.PartitionAny},
		Value:          []byte(message),
	}
	if key != "" {
		msg.Key = []byte(key)
	}

	err = producer.Produce(msg, nil)
	if err != nil {
		log.Printf("Failed to produce message: %v", err)
		return err
	}

	log.Printf("Message sent to topic %s", topic)
	return nil
}

// PublishJSON marshals v and produces it on topic, keyed so that events for the
// same entity land on the same partition.
func (st *KafkaStream) PublishJSON(topic, key string, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}

	return st.ProduceMessage(topic, key, string(payload))
}

type StreamConsumer struct {
	GroupId string
	Topic   string
}

func (st *KafkaStream) CreateConsumer(consumerStruct *StreamConsumer) (*kafka.Consumer, error) {
	consumer, err := kafka.NewConsumer(&kafka.ConfigMap{
		"bootstrap.servers": st.kafkaServers,
		"group.id":          consumerStruct.GroupId,
		"auto.offset.reset": "earliest",
	})
	if err != nil {
		return nil, err
	}

	if err := consumer.Subscribe(consumerStruct.Topic, nil); err != nil {
		return nil, err
	}

	return consumer, nil
}

// Close flushes outstanding messages before releasing the producer.
func (st *KafkaStream) Close() {
	if st.producer == nil {
		return
	}

	if remaining := st.producer.Flush(flushTimeoutMs); remaining > 0 {
		log.Printf("%d kafka messages were not delivered before shutdown", remaining)
	}
	st.producer.Close()
}
