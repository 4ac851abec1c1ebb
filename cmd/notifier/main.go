package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/example/bookshelf/internal/email"
	"github.com/example/bookshelf/internal/infrastructure/kafka"
	"github.com/example/bookshelf/internal/notification"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Configuration from environment variables
	kafkaBrokersStr := getEnv("KAFKA_BROKERS", "localhost:9092")
	kafkaBrokers := strings.Split(kafkaBrokersStr, ",")
	kafkaTopic := getEnv("KAFKA_TOPIC", "bookshelf-events")
	consumerGroup := "email-notifier"

	smtpHost := getEnv("SMTP_HOST", "localhost")
	smtpPort := getEnv("SMTP_PORT", "1025")
	smtpFrom := getEnv("SMTP_FROM", "noreply@example.com")
	notifyTo := getEnv("NOTIFY_EMAIL", "ops@example.com")

	log.Println("[Notifier] ========================================")
	log.Println("[Notifier] Bookshelf - Email Notification Service")
	log.Println("[Notifier] ========================================")
	log.Printf("[Notifier] Kafka: %v", kafkaBrokers)
	log.Printf("[Notifier] Topic: %s", kafkaTopic)
	log.Printf("[Notifier] Group: %s", consumerGroup)
	log.Printf("[Notifier] SMTP: %s:%s", smtpHost, smtpPort)
	log.Printf("[Notifier] To: %s", notifyTo)

	emailSvc := email.NewService(smtpHost, smtpPort, smtpFrom)
	handler := notification.NewHandler(emailSvc, notifyTo)

	consumer := kafka.NewConsumer(kafkaBrokers, kafkaTopic, consumerGroup)
	defer consumer.Close()

	go func() {
		log.Println("[Notifier] Starting event consumer...")
		if err := consumer.Consume(ctx, handler.HandleEvent); err != nil {
			log.Printf("[Notifier] Consumer error: %v", err)
		}
	}()

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Println("[Notifier] Shutting down...")
	cancel()
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
