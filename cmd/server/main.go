package main

import (
	"log"
	"net/http"
	"os"
	"strings"

	"github.com/joho/godotenv"

	"github.com/datasignstech/pyluca/internal/config"
	"github.com/datasignstech/pyluca/internal/events/kafka"
	"github.com/datasignstech/pyluca/internal/interfaces"
	"github.com/datasignstech/pyluca/internal/journal"
	"github.com/datasignstech/pyluca/internal/ledger"
	"github.com/datasignstech/pyluca/internal/server"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	configPath := os.Getenv("ACCOUNTING_CONFIG")
	if configPath == "" {
		log.Fatalf("ACCOUNTING_CONFIG is required (path to the accounting config JSON)")
	}
	f, err := os.Open(configPath)
	if err != nil {
		log.Fatalf("could not open accounting config: %v", err)
	}
	cfg, err := config.Load(f)
	f.Close()
	if err != nil {
		log.Fatalf("could not load accounting config: %v", err)
	}

	key := os.Getenv("LEDGER_KEY")
	if key == "" {
		key = "default"
	}
	ledgerService, err := ledger.New(journal.New(), cfg, key)
	if err != nil {
		log.Fatalf("could not create ledger: %v", err)
	}

	var publisher interfaces.EventPublisher
	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		kafkaPublisher := kafka.NewPublisher(strings.Split(brokers, ","), server.PostedEntriesTopic)
		defer kafkaPublisher.Close()
		publisher = kafkaPublisher
	} else {
		log.Println("KAFKA_BROKERS not set, event publishing disabled")
	}

	addr := os.Getenv("ADDR")
	if addr == "" {
		addr = ":8080"
	}

	log.Println("Starting server on", addr)
	log.Fatal(http.ListenAndServe(addr, server.New(ledgerService, publisher)))
}
