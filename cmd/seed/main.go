package main

import (
	"context"
	"log"
	"os"
	"time"

	"calmconnect-be/internal/model"
	"calmconnect-be/pkg/database"
	"calmconnect-be/pkg/events"
	pktNats "calmconnect-be/pkg/nats"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
)

// Seeds a student, a counselor and a confirmed appointment so the
// simulation client has something to join. With SEED_PUBLISH_EVENT=true
// it also pushes a sample platform event through NATS to exercise the
// notification worker end to end.
func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("Info: No .env file found, using system env")
	}

	dsn := os.Getenv("DB_CONNECTION_STRING")
	if dsn == "" {
		log.Fatal("Error: DB_CONNECTION_STRING is not set")
	}

	db, err := database.NewGormDBFromDSN(dsn)
	if err != nil {
		log.Fatal("Error: Failed to connect to database:", err)
	}

	student := &model.User{
		ID:       uuid.New(),
		Username: "demo.student",
		FullName: "Demo Student",
		Role:     "user",
	}
	counselor := &model.User{
		ID:       uuid.New(),
		Username: "demo.counselor",
		FullName: "Demo Counselor",
		Role:     "counselor",
	}
	appointment := &model.Appointment{
		ID:              uuid.New(),
		UserID:          student.ID,
		CounselorUserID: counselor.ID,
		SessionType:     model.SessionTypeVideo,
		Date:            time.Now().AddDate(0, 0, 1),
		Time:            "14:00:00",
		Status:          model.AppointmentConfirmed,
	}

	for _, record := range []interface{}{student, counselor, appointment} {
		if err := db.Create(record).Error; err != nil {
			log.Fatalf("Error: seed insert failed: %v", err)
		}
	}

	log.Printf("Seeded student=%s counselor=%s appointment=%s", student.ID, counselor.ID, appointment.ID)

	if os.Getenv("SEED_PUBLISH_EVENT") == "true" {
		natsURL := os.Getenv("NATS_URL")
		if natsURL == "" {
			natsURL = "nats://localhost:4222"
		}
		publisher, err := pktNats.NewPublisher(natsURL)
		if err != nil {
			log.Fatalf("Error: NATS connect failed: %v", err)
		}
		defer publisher.Close()

		event := events.BaseEvent{
			Type: events.AppointmentBooked,
			Data: map[string]interface{}{
				"user_id":        student.ID.String(),
				"appointment_id": appointment.ID.String(),
				"counselor_name": counselor.FullName,
			},
			OccurredAt: time.Now(),
		}
		if err := publisher.Publish(context.Background(), event); err != nil {
			log.Fatalf("Error: event publish failed: %v", err)
		}
		log.Println("Published sample APPOINTMENT_BOOKED event")
	}
}
