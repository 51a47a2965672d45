package schedules

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"pawmeds/config"
	"pawmeds/models"
)

// MongoSource reads treatment schedules, notification settings and device
// tokens from the backing store. Only the app runner talks to it — the
// engine itself consumes the Cache.
type MongoSource struct {
	schedColl    *mongo.Collection
	settingsColl *mongo.Collection
	deviceColl   *mongo.Collection
}

// NewMongoSource connects to the configured database.
func NewMongoSource(ctx context.Context, cfg config.Config) (*MongoSource, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.DatabaseURL))
	if err != nil {
		return nil, fmt.Errorf("connect to mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("ping mongo: %w", err)
	}

	db := client.Database(cfg.DatabaseName)
	return &MongoSource{
		schedColl:    db.Collection("treatment_schedules"),
		settingsColl: db.Collection("notification_settings"),
		deviceColl:   db.Collection("devices"),
	}, nil
}

// ActiveSchedules fetches the active treatment schedules for a pet.
func (s *MongoSource) ActiveSchedules(ctx context.Context, userID, petID string) ([]models.TreatmentSchedule, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	filter := bson.M{"user_id": userID, "pet_id": petID, "active": true}
	cursor, err := s.schedColl.Find(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("error fetching schedules for pet %s: %w", petID, err)
	}
	defer cursor.Close(ctx)

	var scheds []models.TreatmentSchedule
	for cursor.Next(ctx) {
		var sched models.TreatmentSchedule
		if err := cursor.Decode(&sched); err != nil {
			return nil, fmt.Errorf("error decoding schedule: %w", err)
		}
		scheds = append(scheds, sched)
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("cursor error: %w", err)
	}
	return scheds, nil
}

// Settings fetches a user's notification settings, or the defaults when
// the user has never saved any.
func (s *MongoSource) Settings(ctx context.Context, userID string) (models.NotificationSettings, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var settings models.NotificationSettings
	err := s.settingsColl.FindOne(ctx, bson.M{"user_id": userID}).Decode(&settings)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.DefaultNotificationSettings(userID), nil
	}
	if err != nil {
		return models.NotificationSettings{}, fmt.Errorf("error fetching settings for user %s: %w", userID, err)
	}
	return settings, nil
}

// DeviceToken resolves the user's current push registration token.
func (s *MongoSource) DeviceToken(ctx context.Context, userID string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var device struct {
		Token string `bson:"fcm_token"`
	}
	err := s.deviceColl.FindOne(ctx, bson.M{"user_id": userID}).Decode(&device)
	if err != nil {
		return "", fmt.Errorf("error fetching device for user %s: %w", userID, err)
	}
	return device.Token, nil
}

// Warm refreshes the cache for one scope from the backing store.
func (s *MongoSource) Warm(ctx context.Context, cache *Cache, userID, petID string) error {
	scheds, err := s.ActiveSchedules(ctx, userID, petID)
	if err != nil {
		return err
	}
	cache.ReplaceForPet(petID, scheds)

	settings, err := s.Settings(ctx, userID)
	if err != nil {
		return err
	}
	cache.PutSettings(settings)
	return nil
}
