package worker

import (
	"context"
	"log"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"github.com/trustbond/api/internal/helper"
	"github.com/trustbond/api/internal/repository"
	"github.com/trustbond/api/internal/smtp"
	"github.com/trustbond/api/internal/stream"
)

type Worker struct {
	KafkaStream  *stream.KafkaStream
	UserRepo     repository.UserRepository
	ActivityRepo repository.ActivityRepository
	Mailer       smtp.MailerInterface
	Ctx          context.Context
	Helper       *helper.HelperRepository
}

const (
	// settledNotificationGroupID is used for workers that notify users once a tracked transaction settles
	settledNotificationGroupID = "settled-notification-group"

	// kycReviewGroupID is used for workers that act on a reviewed KYC submission
	kycReviewGroupID = "kyc-review-group"

	// loanStatusGroupID is used for workers that notify borrowers about loan status changes
	loanStatusGroupID = "loan-status-group"
)

// Our workers typically needs access to the repositories and the kafka event stream
// worker-specific dependency can be passed as argument to the worker
func New(wk *Worker) *Worker {
	return &Worker{
		KafkaStream:  wk.KafkaStream,
		UserRepo:     wk.UserRepo,
		ActivityRepo: wk.ActivityRepo,
		Mailer:       wk.Mailer,
		Ctx:          wk.Ctx,
		Helper:       wk.Helper,
	}
}

// consume polls topic until the worker's context is cancelled and hands every
// message to handle. A failed message is logged and skipped.
func (wk *Worker) consume(name, groupID, topic string, handle func(payload []byte) error) {
	consumer, err := wk.KafkaStream.CreateConsumer(&stream.StreamConsumer{
		GroupId: groupID,
		Topic:   topic,
	})
	if err != nil {
		log.Printf("%s: error creating consumer: %v", name, err)
		return
	}
	defer consumer.Close()

	for {
		select {
		case <-wk.Ctx.Done():
			log.Printf("%s received cancellation signal, shutting down...", name)
			return
		default:
			event := consumer.Poll(100)
			switch e := event.(type) {
			case *kafka.Message:
				if err := handle(e.Value); err != nil {
					log.Printf("%s: error handling message on %s: %v", name, e.TopicPartition, err)
				}
			case kafka.Error:
				log.Printf("%s: %v", name, e)
			case kafka.AssignedPartitions:
				consumer.Assign(e.Partitions)
			case kafka.RevokedPartitions:
				consumer.Unassign()
			}
		}
	}
}

// Start launches every worker in its own goroutine.
func (wk *Worker) Start() {
	go wk.SettledTransactionWorker()
	go wk.KYCReviewWorker()
	go wk.LoanStatusWorker()
}
