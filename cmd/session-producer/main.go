package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"os/signal"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/IBM/sarama"
	"github.com/google/uuid"
)

// SessionCompletedEvent mirrors the message format the server consumes
type SessionCompletedEvent struct {
	SessionID       string    `json:"session_id"`
	PlayerID        string    `json:"player_id"`
	PlayerName      string    `json:"player_name,omitempty"`
	GameID          string    `json:"game_id"`
	Outcome         string    `json:"outcome"`
	Score           int64     `json:"score"`
	DurationSeconds int64     `json:"duration_seconds"`
	PointsEarned    int64     `json:"points_earned"`
	XPEarned        int64     `json:"xp_earned"`
	CompletedAt     time.Time `json:"completed_at"`
}

var playerPrefixes = []string{
	"Phoenix", "Shadow", "Thunder", "Storm", "Blaze", "Ninja", "Dragon", "Wolf", "Hawk", "Viper",
	"Ghost", "Titan", "Frost", "Cyber", "Nova", "Raven", "Omega", "Alpha", "Delta", "Sigma",
	"Ace", "Bolt", "Crash", "Dash", "Edge", "Flash", "Glitch", "Haze", "Ion", "Jade",
	"Knight", "Luna", "Mystic", "Neon", "Orion", "Pulse", "Quantum", "Rebel", "Spark", "Turbo",
}

var gameIDs = []string{"quickmatch", "ranked", "puzzle-rush", "daily-gauntlet"}

func playerName(idx int) string {
	prefixIdx := idx % len(playerPrefixes)
	suffix := idx/len(playerPrefixes) + 1
	return fmt.Sprintf("%s%d", playerPrefixes[prefixIdx], suffix)
}

func randomSession(players int) SessionCompletedEvent {
	idx := rand.Intn(players)
	name := playerName(idx)

	outcome := "loss"
	points := int64(rand.Intn(50))
	xp := int64(rand.Intn(30) + 10)
	switch r := rand.Float64(); {
	case r < 0.45:
		outcome = "win"
		points = int64(rand.Intn(150) + 50)
		xp = int64(rand.Intn(60) + 40)
	case r < 0.55:
		outcome = "draw"
		points = int64(rand.Intn(40) + 10)
	}

	return SessionCompletedEvent{
		SessionID:       uuid.NewString(),
		PlayerID:        fmt.Sprintf("player-%d", idx),
		PlayerName:      name,
		GameID:          gameIDs[rand.Intn(len(gameIDs))],
		Outcome:         outcome,
		Score:           int64(rand.Intn(5000) + 100),
		DurationSeconds: int64(rand.Intn(540) + 60),
		PointsEarned:    points,
		XPEarned:        xp,
		CompletedAt:     time.Now().UTC(),
	}
}

func main() {
	// Command line flags
	brokers := flag.String("brokers", "localhost:9094", "Kafka brokers (comma-separated)")
	topic := flag.String("topic", "game-sessions", "Kafka topic")
	totalPlayers := flag.Int("players", 500, "Size of the simulated player pool")
	sessionsPerSecond := flag.Int("rate", 50, "Sessions per second")
	duration := flag.Duration("duration", 0, "Duration to run (0 = forever)")
	flag.Parse()

	brokerList := strings.Split(*brokers, ",")

	fmt.Println("Session event producer")
	fmt.Printf("  Brokers:       %s\n", *brokers)
	fmt.Printf("  Topic:         %s\n", *topic)
	fmt.Printf("  Player pool:   %d\n", *totalPlayers)
	fmt.Printf("  Sessions/sec:  %d\n", *sessionsPerSecond)
	fmt.Println()

	// Configure Sarama producer
	config := sarama.NewConfig()
	config.Producer.RequiredAcks = sarama.WaitForLocal
	config.Producer.Compression = sarama.CompressionSnappy
	config.Producer.Flush.Frequency = 100 * time.Millisecond
	config.Producer.Flush.Messages = 100
	config.Producer.Return.Successes = true
	config.Producer.Return.Errors = true

	// Create producer
	producer, err := sarama.NewAsyncProducer(brokerList, config)
	if err != nil {
		log.Fatalf("Failed to create producer: %v", err)
	}
	defer producer.Close()

	// Handle producer errors and successes
	var successCount, errorCount int64
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		for range producer.Successes() {
			atomic.AddInt64(&successCount, 1)
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		for err := range producer.Errors() {
			atomic.AddInt64(&errorCount, 1)
			log.Printf("Producer error: %v", err)
		}
	}()

	// Handle shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	done := make(chan struct{})

	// Send message helper. Keyed on player id so all of one player's
	// sessions land on the same partition, preserving per-player order.
	sendEvent := func(event SessionCompletedEvent) {
		data, err := json.Marshal(event)
		if err != nil {
			log.Printf("Failed to marshal event: %v", err)
			return
		}

		msg := &sarama.ProducerMessage{
			Topic: *topic,
			Key:   sarama.StringEncoder(event.PlayerID),
			Value: sarama.ByteEncoder(data),
		}

		select {
		case producer.Input() <- msg:
		case <-done:
			return
		}
	}

	fmt.Printf("Producing sessions (%d/sec), press Ctrl+C to stop\n\n", *sessionsPerSecond)

	interval := time.Second / time.Duration(*sessionsPerSecond)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	statsTicker := time.NewTicker(5 * time.Second)
	defer statsTicker.Stop()

	var endTime time.Time
	if *duration > 0 {
		endTime = time.Now().Add(*duration)
	}

	shutdown := func() {
		close(done)
		producer.AsyncClose()
		wg.Wait()
		fmt.Printf("\nCompleted. Sent: %d, Errors: %d\n", atomic.LoadInt64(&successCount), atomic.LoadInt64(&errorCount))
	}

	for {
		select {
		case <-sigChan:
			fmt.Println("\nShutting down...")
			shutdown()
			return

		case <-ticker.C:
			if *duration > 0 && time.Now().After(endTime) {
				fmt.Println("\nDuration reached, shutting down...")
				shutdown()
				return
			}
			sendEvent(randomSession(*totalPlayers))

		case <-statsTicker.C:
			fmt.Printf("Sent: %d, Errors: %d\n", atomic.LoadInt64(&successCount), atomic.LoadInt64(&errorCount))
		}
	}
}
