package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/shehan-anujaya/SmartQ/db"
	"github.com/shehan-anujaya/SmartQ/models"
	"github.com/shehan-anujaya/SmartQ/utils"
)

// Mongo-backed implementations of the store seams, one small type per
// collection.

func MongoStores() Stores {
	return Stores{
		Services: mongoServices{},
		Samples:  mongoSamples{},
		Entries:  mongoEntries{},
		Queues:   mongoQueues{},
		Counters: mongoCounters{},
	}
}

type mongoServices struct{}

func (mongoServices) Get(ctx context.Context, serviceID string) (*models.Service, error) {
	var svc models.Service
	err := db.ServicesCollection.FindOne(ctx, bson.M{"serviceid": serviceID}).Decode(&svc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &svc, nil
}

type mongoSamples struct{}

func (mongoSamples) RecentCompleted(ctx context.Context, serviceID string, limit int64) ([]models.ServiceSample, error) {
	filter := bson.M{
		"serviceid":   serviceID,
		"status":      models.StatusCompleted,
		"startedAt":   bson.M{"$exists": true},
		"completedAt": bson.M{"$exists": true},
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "completedAt", Value: -1}}).
		SetLimit(limit).
		SetProjection(bson.M{"startedAt": 1, "completedAt": 1})

	cursor, err := db.QueueEntriesCollection.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var samples []models.ServiceSample
	if err := cursor.All(ctx, &samples); err != nil {
		return nil, err
	}
	return samples, nil
}

type mongoEntries struct{}

func (mongoEntries) Insert(ctx context.Context, entry *models.QueueEntry) error {
	_, err := db.QueueEntriesCollection.InsertOne(ctx, entry)
	if mongo.IsDuplicateKeyError(err) {
		return ErrConflict
	}
	return err
}

func (mongoEntries) Get(ctx context.Context, entryID string) (*models.QueueEntry, error) {
	var entry models.QueueEntry
	err := db.QueueEntriesCollection.FindOne(ctx, bson.M{"entryid": entryID}).Decode(&entry)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

func (mongoEntries) HasActive(ctx context.Context, customerID, serviceID string) (bool, error) {
	n, err := db.QueueEntriesCollection.CountDocuments(ctx, bson.M{
		"customerid": customerID,
		"serviceid":  serviceID,
		"active":     true,
	})
	return n > 0, err
}

func (mongoEntries) CountByService(ctx context.Context, serviceID string, statuses ...string) (int64, error) {
	return db.QueueEntriesCollection.CountDocuments(ctx, bson.M{
		"serviceid": serviceID,
		"status":    bson.M{"$in": statuses},
	})
}

func (mongoEntries) CountByCounter(ctx context.Context, counterID string, statuses ...string) (int64, error) {
	return db.QueueEntriesCollection.CountDocuments(ctx, bson.M{
		"counterid": counterID,
		"status":    bson.M{"$in": statuses},
	})
}

func (mongoEntries) CountActiveByQueue(ctx context.Context, queueID string) (int64, error) {
	return db.QueueEntriesCollection.CountDocuments(ctx, bson.M{
		"queueid": queueID,
		"active":  true,
	})
}

func (mongoEntries) NextWaiting(ctx context.Context, serviceID string) (*models.QueueEntry, error) {
	opts := options.FindOne().SetSort(bson.D{
		{Key: "priority", Value: -1},
		{Key: "token", Value: 1},
	})
	var entry models.QueueEntry
	err := db.QueueEntriesCollection.FindOne(ctx, bson.M{
		"serviceid": serviceID,
		"status":    models.StatusWaiting,
	}, opts).Decode(&entry)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

func (mongoEntries) Swap(ctx context.Context, entryID, fromStatus string, patch EntryPatch) (*models.QueueEntry, error) {
	set := bson.M{"status": patch.Status}
	if patch.CounterID != "" {
		set["counterid"] = patch.CounterID
	}
	if patch.CalledAt != nil {
		set["calledAt"] = *patch.CalledAt
	}
	if patch.StartedAt != nil {
		set["startedAt"] = *patch.StartedAt
	}
	if patch.CompletedAt != nil {
		set["completedAt"] = *patch.CompletedAt
	}
	if patch.ActualWait != nil {
		set["actualWait"] = *patch.ActualWait
	}
	if patch.Active != nil {
		set["active"] = *patch.Active
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var entry models.QueueEntry
	err := db.QueueEntriesCollection.FindOneAndUpdate(ctx, bson.M{
		"entryid": entryID,
		"status":  fromStatus,
	}, bson.M{"$set": set}, opts).Decode(&entry)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

type mongoQueues struct{}

func (mongoQueues) Reserve(ctx context.Context, serviceID, date string, capacity int) (*models.Queue, error) {
	// Make sure the day's queue document exists. The upsert is
	// idempotent under the unique (serviceid, date) index.
	_, err := db.QueuesCollection.UpdateOne(ctx,
		bson.M{"serviceid": serviceID, "date": date},
		bson.M{"$setOnInsert": bson.M{
			"queueid":   utils.GenerateID(),
			"serviceid": serviceID,
			"date":      date,
			"status":    models.QueueOpen,
			"capacity":  capacity,
			"occupancy": 0,
			"lastToken": 0,
			"createdAt": time.Now(),
		}},
		options.Update().SetUpsert(true),
	)
	if err != nil && !mongo.IsDuplicateKeyError(err) {
		return nil, err
	}

	// Claim the slot and draw the token in one conditional update; the
	// filter rejects full queues, so two racing admissions can never
	// both take the last slot.
	filter := bson.M{
		"serviceid": serviceID,
		"date":      date,
		"status":    models.QueueOpen,
		"$or": []bson.M{
			{"capacity": 0},
			{"$expr": bson.M{"$lt": []interface{}{"$occupancy", "$capacity"}}},
		},
	}
	update := bson.M{"$inc": bson.M{"occupancy": 1, "lastToken": 1}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var q models.Queue
	err = db.QueuesCollection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&q)
	if errors.Is(err, mongo.ErrNoDocuments) {
		// The document exists, so the miss means closed or full.
		var existing models.Queue
		if ferr := db.QueuesCollection.FindOne(ctx, bson.M{"serviceid": serviceID, "date": date}).Decode(&existing); ferr == nil {
			if existing.Status != models.QueueOpen {
				return nil, fmt.Errorf("%w: queue for service %s is closed", ErrNotFound, serviceID)
			}
		}
		return nil, fmt.Errorf("%w: queue for service %s on %s is full", ErrCapacityExceeded, serviceID, date)
	}
	if err != nil {
		return nil, err
	}
	return &q, nil
}

func (mongoQueues) Release(ctx context.Context, queueID string) error {
	_, err := db.QueuesCollection.UpdateOne(ctx,
		bson.M{"queueid": queueID, "occupancy": bson.M{"$gt": 0}},
		bson.M{"$inc": bson.M{"occupancy": -1}},
	)
	return err
}

func (mongoQueues) Open(ctx context.Context) ([]models.Queue, error) {
	cursor, err := db.QueuesCollection.Find(ctx, bson.M{"status": models.QueueOpen})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var queues []models.Queue
	if err := cursor.All(ctx, &queues); err != nil {
		return nil, err
	}
	return queues, nil
}

func (mongoQueues) SetOccupancy(ctx context.Context, queueID string, occupancy int) error {
	_, err := db.QueuesCollection.UpdateOne(ctx,
		bson.M{"queueid": queueID},
		bson.M{"$set": bson.M{"occupancy": occupancy}},
	)
	return err
}

type mongoCounters struct{}

func (mongoCounters) Get(ctx context.Context, counterID string) (*models.Counter, error) {
	var c models.Counter
	err := db.CountersCollection.FindOne(ctx, bson.M{"counterid": counterID}).Decode(&c)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (mongoCounters) ActiveSupporting(ctx context.Context, serviceID string) ([]models.Counter, error) {
	opts := options.Find().SetSort(bson.D{{Key: "number", Value: 1}})
	cursor, err := db.CountersCollection.Find(ctx, bson.M{
		"services": serviceID,
		"status":   bson.M{"$ne": models.CounterOffline},
	}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var counters []models.Counter
	if err := cursor.All(ctx, &counters); err != nil {
		return nil, err
	}
	return counters, nil
}

func (mongoCounters) Occupied(ctx context.Context) ([]models.Counter, error) {
	cursor, err := db.CountersCollection.Find(ctx, bson.M{
		"currentEntry": bson.M{"$exists": true, "$ne": ""},
	})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var counters []models.Counter
	if err := cursor.All(ctx, &counters); err != nil {
		return nil, err
	}
	return counters, nil
}

func (mongoCounters) Assign(ctx context.Context, counterID, entryID string) error {
	_, err := db.CountersCollection.UpdateOne(ctx,
		bson.M{"counterid": counterID},
		bson.M{"$set": bson.M{
			"status":       models.CounterBusy,
			"currentEntry": entryID,
			"updatedAt":    time.Now(),
		}},
	)
	return err
}

func (mongoCounters) Release(ctx context.Context, counterID, entryID string) error {
	_, err := db.CountersCollection.UpdateOne(ctx,
		bson.M{"counterid": counterID, "currentEntry": entryID},
		bson.M{
			"$set":   bson.M{"status": models.CounterAvailable, "updatedAt": time.Now()},
			"$unset": bson.M{"currentEntry": ""},
		},
	)
	return err
}

func (mongoCounters) SetAvgServiceTime(ctx context.Context, counterID string, avg float64) error {
	_, err := db.CountersCollection.UpdateOne(ctx,
		bson.M{"counterid": counterID},
		bson.M{"$set": bson.M{"avgServiceTime": avg, "updatedAt": time.Now()}},
	)
	return err
}
