package onboardingRepo

import (
	"context"
	"fmt"
	"strings"
	"time"

	"profitpilot/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

const collectionName = "onboarding_records"

// MongoOnboardingRepo implements OnboardingRepository using MongoDB.
type MongoOnboardingRepo struct {
	coll *mongo.Collection
}

// NewMongoOnboardingRepo creates the repository and makes sure its indexes exist.
func NewMongoOnboardingRepo(db *mongo.Database, logger *zap.Logger) OnboardingRepository {
	repo := &MongoOnboardingRepo{coll: db.Collection(collectionName)}
	if err := repo.ensureIndexes(); err != nil {
		logger.Warn("onboarding repo: failed to create indexes", zap.Error(err))
	}
	return repo
}

func (r *MongoOnboardingRepo) ensureIndexes() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	indexModels := []mongo.IndexModel{
		{Keys: bson.D{{Key: "id", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "sessionId", Value: 1}}},
		{Keys: bson.D{{Key: "email", Value: 1}, {Key: "completedAt", Value: -1}}},
	}
	if _, err := r.coll.Indexes().CreateMany(ctx, indexModels); err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}
	return nil
}

// normalizeRecord checks the required fields and fills the defaults Save relies on.
func normalizeRecord(record models.OnboardingRecord) (models.OnboardingRecord, error) {
	if record.ID == "" {
		return record, fmt.Errorf("onboarding record has no id")
	}
	if record.SessionID == "" {
		return record, fmt.Errorf("onboarding record %s has no session id", record.ID)
	}
	if record.CompletedAt.IsZero() {
		record.CompletedAt = time.Now().UTC()
	}
	record.Email = strings.ToLower(strings.TrimSpace(record.Email))
	return record, nil
}

// Save upserts on id. A retried task replaces its own record; a session that
// finishes twice keeps both.
func (r *MongoOnboardingRepo) Save(ctx context.Context, record models.OnboardingRecord) error {
	record, err := normalizeRecord(record)
	if err != nil {
		return err
	}
	opts := options.Replace().SetUpsert(true)
	if _, err := r.coll.ReplaceOne(ctx, bson.M{"id": record.ID}, record, opts); err != nil {
		return fmt.Errorf("failed to save onboarding record %s: %w", record.ID, err)
	}
	return nil
}

func (r *MongoOnboardingRepo) GetByID(ctx context.Context, id string) (*models.OnboardingRecord, error) {
	var record models.OnboardingRecord
	if err := r.coll.FindOne(ctx, bson.M{"id": id}).Decode(&record); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to fetch onboarding record %s: %w", id, err)
	}
	return &record, nil
}
