package repository

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"ml-jobs-platform/internal/api/domain"
	"ml-jobs-platform/internal/api/pagination"
	"ml-jobs-platform/shared/mongodb"
)

const jobsCollection = "jobs"

// MongoJobRepo persists jobs in a MongoDB collection. The job id is stored
// as the document key, all other fields verbatim.
type MongoJobRepo struct {
	client *mongodb.Client
	coll   *mongo.Collection
	logger *slog.Logger
}

// NewMongoJobRepo creates a MongoDB-backed repository. Initialize must be
// called before any other operation.
func NewMongoJobRepo(client *mongodb.Client, logger *slog.Logger) *MongoJobRepo {
	return &MongoJobRepo{
		client: client,
		coll:   client.Database().Collection(jobsCollection),
		logger: logger,
	}
}

func (r *MongoJobRepo) Type() string { return "mongo" }

// mongoJob is the persisted document shape.
type mongoJob struct {
	ID        string    `bson:"_id"`
	JobName   string    `bson:"jobName"`
	Username  *string   `bson:"username"`
	ModelID   string    `bson:"modelId"`
	Input     any       `bson:"input"`
	Status    string    `bson:"status"`
	Result    any       `bson:"result"`
	Error     *string   `bson:"error"`
	CreatedAt time.Time `bson:"createdAt"`
	UpdatedAt time.Time `bson:"updatedAt"`
}

func (d *mongoJob) toDomain() *domain.Job {
	return &domain.Job{
		ID:        d.ID,
		JobName:   d.JobName,
		Username:  d.Username,
		ModelID:   d.ModelID,
		Input:     d.Input,
		Status:    domain.JobStatus(d.Status),
		Result:    d.Result,
		Error:     d.Error,
		CreatedAt: d.CreatedAt.UTC(),
		UpdatedAt: d.UpdatedAt.UTC(),
	}
}

// Initialize builds the query indexes. Equality lookups on username, jobName
// and status, descending sort on creation time, and the compound
// (username, status, createdAt) shape used by the common listing query.
// The _id uniqueness index is implicit.
func (r *MongoJobRepo) Initialize(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "username", Value: 1}}},
		{Keys: bson.D{{Key: "jobName", Value: 1}}},
		{Keys: bson.D{{Key: "status", Value: 1}}},
		{Keys: bson.D{{Key: "createdAt", Value: -1}}},
		{Keys: bson.D{
			{Key: "username", Value: 1},
			{Key: "status", Value: 1},
			{Key: "createdAt", Value: -1},
		}},
	}

	if _, err := r.coll.Indexes().CreateMany(ctx, indexes); err != nil {
		r.logger.Error("Failed to create job indexes",
			slog.Any("error", err),
		)
		return fmt.Errorf("%w: create indexes: %v", domain.ErrBackendUnavailable, err)
	}

	r.logger.Info("MongoDB job indexes ready",
		slog.String("collection", jobsCollection),
	)
	return nil
}

// HealthCheck downgrades any connection failure to false.
func (r *MongoJobRepo) HealthCheck(ctx context.Context) bool {
	if err := r.client.HealthCheck(ctx); err != nil {
		r.logger.Warn("MongoDB health check failed",
			slog.Any("error", err),
		)
		return false
	}
	return true
}

func (r *MongoJobRepo) Cleanup(ctx context.Context) error {
	return r.client.Close(ctx)
}

func (r *MongoJobRepo) CreateJob(ctx context.Context, payload domain.JobCreate) (*domain.Job, error) {
	// MongoDB stores timestamps at millisecond precision; truncate up front
	// so the returned value equals what a later read sees.
	now := time.Now().UTC().Truncate(time.Millisecond)

	doc := mongoJob{
		JobName:   payload.JobName,
		Username:  payload.Username,
		ModelID:   payload.ModelID,
		Input:     payload.Input,
		Status:    string(domain.JobStatusQueued),
		CreatedAt: now,
		UpdatedAt: now,
	}

	// _id carries a native uniqueness constraint; retry generation on the
	// (vanishingly rare) collision before giving up.
	var lastErr error
	for attempt := 0; attempt < maxIDAttempts; attempt++ {
		doc.ID = uuid.NewString()
		_, err := r.coll.InsertOne(ctx, doc)
		if err == nil {
			return doc.toDomain(), nil
		}
		if !mongo.IsDuplicateKeyError(err) {
			r.logger.Error("Failed to insert job",
				slog.String("job_id", doc.ID),
				slog.Any("error", err),
			)
			return nil, fmt.Errorf("%w: insert job: %v", domain.ErrBackendOperation, err)
		}
		lastErr = err
	}

	return nil, fmt.Errorf("%w: id generation exhausted after %d attempts: %v",
		domain.ErrBackendOperation, maxIDAttempts, lastErr)
}

func (r *MongoJobRepo) GetJob(ctx context.Context, id string) (*domain.Job, error) {
	var doc mongoJob
	err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get job",
			slog.String("job_id", id),
			slog.Any("error", err),
		)
		return nil, fmt.Errorf("%w: get job: %v", domain.ErrBackendOperation, err)
	}
	return doc.toDomain(), nil
}

// buildFilter translates JobFilters into a MongoDB query with the same
// semantics as JobFilters.Matches.
func buildFilter(filters JobFilters) bson.M {
	query := bson.M{}
	if filters.Username != "" {
		query["username"] = filters.Username
	}
	if filters.JobName != "" {
		query["jobName"] = filters.JobName
	}
	if filters.Status != "" {
		query["status"] = string(filters.Status)
	}
	if filters.Q != "" {
		re := primitive.Regex{Pattern: regexp.QuoteMeta(filters.Q), Options: "i"}
		query["$or"] = []bson.M{
			{"jobName": re},
			{"username": re},
		}
	}
	return query
}

func (r *MongoJobRepo) ListJobs(ctx context.Context, filters JobFilters) ([]domain.Job, int, error) {
	page, err := pagination.Resolve(filters.Pagination)
	if err != nil {
		return nil, 0, err
	}

	query := buildFilter(filters)

	total, err := r.coll.CountDocuments(ctx, query)
	if err != nil {
		r.logger.Error("Failed to count jobs",
			slog.Any("error", err),
		)
		return nil, 0, fmt.Errorf("%w: count jobs: %v", domain.ErrBackendOperation, err)
	}

	// A zero limit means an empty page here, but SetLimit(0) means
	// "no limit" to the driver.
	if !page.Unlimited && page.Limit == 0 {
		return []domain.Job{}, int(total), nil
	}

	findOpts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}}).
		SetSkip(int64(page.Offset))
	if !page.Unlimited {
		findOpts.SetLimit(int64(page.Limit))
	}

	cursor, err := r.coll.Find(ctx, query, findOpts)
	if err != nil {
		r.logger.Error("Failed to list jobs",
			slog.Any("error", err),
		)
		return nil, 0, fmt.Errorf("%w: list jobs: %v", domain.ErrBackendOperation, err)
	}
	defer cursor.Close(ctx)

	jobs := []domain.Job{}
	for cursor.Next(ctx) {
		var doc mongoJob
		if err := cursor.Decode(&doc); err != nil {
			return nil, 0, fmt.Errorf("%w: decode job: %v", domain.ErrBackendOperation, err)
		}
		jobs = append(jobs, *doc.toDomain())
	}
	if err := cursor.Err(); err != nil {
		return nil, 0, fmt.Errorf("%w: iterate jobs: %v", domain.ErrBackendOperation, err)
	}

	return jobs, int(total), nil
}

// UpdateJob is one logical compare-and-swap: a single findAndModify applies
// the merged fields and the updatedAt bump together.
func (r *MongoJobRepo) UpdateJob(ctx context.Context, id string, update domain.JobUpdate) (*domain.Job, error) {
	set := bson.M{
		"updatedAt": time.Now().UTC().Truncate(time.Millisecond),
	}
	if update.JobName != nil {
		set["jobName"] = *update.JobName
	}
	if update.Username != nil {
		set["username"] = *update.Username
	}
	if update.Status != nil {
		set["status"] = string(*update.Status)
	}
	if update.Result != nil {
		set["result"] = update.Result
	}
	if update.Error != nil {
		set["error"] = *update.Error
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var doc mongoJob
	err := r.coll.FindOneAndUpdate(ctx, bson.M{"_id": id}, bson.M{"$set": set}, opts).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to update job",
			slog.String("job_id", id),
			slog.Any("error", err),
		)
		return nil, fmt.Errorf("%w: update job: %v", domain.ErrBackendOperation, err)
	}
	return doc.toDomain(), nil
}

func (r *MongoJobRepo) DeleteJob(ctx context.Context, id string) (bool, error) {
	res, err := r.coll.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		r.logger.Error("Failed to delete job",
			slog.String("job_id", id),
			slog.Any("error", err),
		)
		return false, fmt.Errorf("%w: delete job: %v", domain.ErrBackendOperation, err)
	}
	return res.DeletedCount > 0, nil
}
