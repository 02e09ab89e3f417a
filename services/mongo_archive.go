package services

import (
	"context"
	"log"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoDB archive constants
const (
	MongoArchiveDBName      = "pricewatch"
	MongoNotificationsColl  = "notifications"
	mongoConnectTimeout     = 10 * time.Second
	mongoOperationTimeout   = 5 * time.Second
)

// MongoNotificationArchive is a NotificationSink decorator: it forwards
// every notification to the inner sink and best-effort records it in a
// MongoDB collection for auditing. An insert failure is logged and never
// propagated, so delivery does not depend on the archive.
type MongoNotificationArchive struct {
	inner      NotificationSink
	collection *mongo.Collection
}

// archivedNotification is the stored document shape
type archivedNotification struct {
	Type       string    `bson:"type"`
	UserID     string    `bson:"user_id"`
	Message    string    `bson:"message,omitempty"`
	AlertID    string    `bson:"alert_id,omitempty"`
	Ticker     string    `bson:"ticker,omitempty"`
	AlertType  string    `bson:"alert_type,omitempty"`
	ArchivedAt time.Time `bson:"archived_at"`
}

// NewMongoNotificationArchive connects to MongoDB and wraps the inner sink
func NewMongoNotificationArchive(uri string, inner NotificationSink) (*MongoNotificationArchive, error) {
	ctx, cancel := context.WithTimeout(context.Background(), mongoConnectTimeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, err
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, err
	}

	log.Println("MongoDB notification archive connected")
	return &MongoNotificationArchive{
		inner:      inner,
		collection: client.Database(MongoArchiveDBName).Collection(MongoNotificationsColl),
	}, nil
}

// Send forwards to the inner sink, then archives
func (a *MongoNotificationArchive) Send(n Notification) error {
	err := a.inner.Send(n)

	doc := archivedNotification{
		Type:       n.Type,
		UserID:     n.UserID,
		Message:    n.Message,
		ArchivedAt: time.Now(),
	}
	if n.Alert != nil {
		doc.AlertID = n.Alert.ID
		doc.Ticker = n.Alert.Ticker
		doc.AlertType = n.Alert.AlertType
	}

	ctx, cancel := context.WithTimeout(context.Background(), mongoOperationTimeout)
	defer cancel()
	if _, insertErr := a.collection.InsertOne(ctx, doc); insertErr != nil {
		log.Printf("Error archiving notification for user %s: %v", n.UserID, insertErr)
	}

	return err
}
