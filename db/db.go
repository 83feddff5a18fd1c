package db

import (
	"context"
	"log"
	"os"

	"github.com/joho/godotenv"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var (
	UserCollection         *mongo.Collection
	ServicesCollection     *mongo.Collection
	CountersCollection     *mongo.Collection
	QueuesCollection       *mongo.Collection
	QueueEntriesCollection *mongo.Collection
	AppointmentsCollection *mongo.Collection
	Client                 *mongo.Client
)

// Initialize MongoDB connection
func init() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found; using system environment")
	}

	mongoURI := os.Getenv("MONGO_URI")
	if mongoURI == "" {
		mongoURI = "mongodb://localhost:27017"
	}

	ClientOptions := options.Client().ApplyURI(mongoURI)
	var err error
	Client, err = mongo.Connect(context.TODO(), ClientOptions)
	if err != nil {
		log.Fatalf("Failed to connect to MongoDB: %v", err)
	}

	dbName := os.Getenv("MONGO_DB")
	if dbName == "" {
		dbName = "smartq"
	}

	UserCollection = Client.Database(dbName).Collection("users")
	ServicesCollection = Client.Database(dbName).Collection("services")
	CountersCollection = Client.Database(dbName).Collection("counters")
	QueuesCollection = Client.Database(dbName).Collection("queues")
	QueueEntriesCollection = Client.Database(dbName).Collection("queueentries")
	AppointmentsCollection = Client.Database(dbName).Collection("appointments")
}

// EnsureIndexes creates the indexes the queue invariants rely on. Call
// once at startup; duplicate creation is a no-op on the server side.
func EnsureIndexes(ctx context.Context) error {
	// One active entry per (customer, service). Duplicate inserts under
	// race come back as a duplicate key error, which admission maps to
	// a conflict.
	_, err := QueueEntriesCollection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "customerid", Value: 1}, {Key: "serviceid", Value: 1}},
			Options: options.Index().
				SetUnique(true).
				SetPartialFilterExpression(bson.M{"active": true}),
		},
		{
			Keys: bson.D{{Key: "entryid", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "serviceid", Value: 1}, {Key: "status", Value: 1}, {Key: "completedAt", Value: -1}},
		},
	})
	if err != nil {
		return err
	}

	_, err = QueuesCollection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "serviceid", Value: 1}, {Key: "date", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return err
	}

	_, err = CountersCollection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "number", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return err
	}

	_, err = UserCollection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "username", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "userid", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			// Email is optional at registration, so uniqueness only
			// applies where one is set.
			Keys: bson.D{{Key: "email", Value: 1}},
			Options: options.Index().
				SetUnique(true).
				SetPartialFilterExpression(bson.M{"email": bson.M{"$gt": ""}}),
		},
	})
	if err != nil {
		return err
	}

	_, err = AppointmentsCollection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "appointmentid", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	return err
}
