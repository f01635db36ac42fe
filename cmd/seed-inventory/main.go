package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"ticketgate/internal/config"
	"ticketgate/internal/database"
	"ticketgate/internal/models"
	"ticketgate/internal/repositories"
)

// Seeds a demo event with a seated section and a general admission ticket
// type, for local development.
func main() {
	var (
		eventName = flag.String("event", "Demo Concert", "Event name")
		venue     = flag.String("venue", "Main Hall", "Venue name")
		seated    = flag.Int("seated", 40, "Number of seated units")
		ga        = flag.Int("ga", 100, "Number of general admission units")
	)
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	db, err := database.NewConnection(database.Config{
		URL:      cfg.Database.URL,
		Host:     cfg.Database.Host,
		Port:     cfg.Database.Port,
		User:     cfg.Database.User,
		Password: cfg.Database.Password,
		DBName:   cfg.Database.DBName,
		SSLMode:  cfg.Database.SSLMode,

		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	})
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	ctx := context.Background()
	repo := repositories.NewInventoryRepository(db.DB)

	event, err := repo.CreateEvent(ctx, *eventName, *venue, time.Now().AddDate(0, 1, 0))
	if err != nil {
		log.Fatalf("Failed to create event: %v", err)
	}
	fmt.Printf("Created event %d: %s at %s\n", event.ID, event.Name, event.Venue)

	seatedType, err := repo.CreateTicketType(ctx, event.ID, "Reserved Seating", "Assigned seat", 7500)
	if err != nil {
		log.Fatalf("Failed to create seated ticket type: %v", err)
	}

	gaType, err := repo.CreateTicketType(ctx, event.ID, "General Admission", "Standing room", 5000)
	if err != nil {
		log.Fatalf("Failed to create GA ticket type: %v", err)
	}

	seatsPerRow := 10
	for i := 0; i < *seated; i++ {
		unit := &models.InventoryUnit{
			EventID:      event.ID,
			TicketTypeID: seatedType.ID,
			Price:        seatedType.Price,
			Section:      "A",
			Row:          fmt.Sprintf("%d", i/seatsPerRow+1),
			Seat:         fmt.Sprintf("%d", i%seatsPerRow+1),
		}
		if _, err := repo.CreateUnit(ctx, unit); err != nil {
			log.Fatalf("Failed to create seated unit: %v", err)
		}
	}
	fmt.Printf("Created %d seated units (type %d)\n", *seated, seatedType.ID)

	for i := 0; i < *ga; i++ {
		unit := &models.InventoryUnit{
			EventID:      event.ID,
			TicketTypeID: gaType.ID,
			Price:        gaType.Price,
		}
		if _, err := repo.CreateUnit(ctx, unit); err != nil {
			log.Fatalf("Failed to create GA unit: %v", err)
		}
	}
	fmt.Printf("Created %d general admission units (type %d)\n", *ga, gaType.ID)

	seatedAvail, err := repo.CountAvailableByType(ctx, seatedType.ID)
	if err != nil {
		log.Fatalf("Failed to count seated availability: %v", err)
	}
	gaAvail, err := repo.CountAvailableByType(ctx, gaType.ID)
	if err != nil {
		log.Fatalf("Failed to count GA availability: %v", err)
	}
	fmt.Printf("Available now: %d seated, %d general admission\n", seatedAvail, gaAvail)
}
