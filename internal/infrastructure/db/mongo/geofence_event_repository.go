package mongo

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/99minutos/dock-kiosk/internal/core/domain"
)

const collectionGeofenceEvents = "geofence_events"

// GeofenceEventRepository is the geofence audit trail.
type GeofenceEventRepository struct {
	col *mongo.Collection
}

func NewGeofenceEventRepository(db *mongo.Database) *GeofenceEventRepository {
	return &GeofenceEventRepository{col: db.Collection(collectionGeofenceEvents)}
}

type geofenceEventDoc struct {
	BookingID   string               `bson:"booking_id"`
	Event       domain.GeofenceEvent `bson:",inline"`
	ProcessedAt time.Time            `bson:"processed_at"`
}

// Insert persists a geofence event for bookingID.
func (r *GeofenceEventRepository) Insert(ctx context.Context, bookingID string, ev domain.GeofenceEvent) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	ev.Timestamp = ev.Timestamp.UTC()
	_, err := r.col.InsertOne(ctx, geofenceEventDoc{
		BookingID:   bookingID,
		Event:       ev,
		ProcessedAt: time.Now().UTC(),
	})
	return err
}

// ListByBooking returns the newest events first, at most limit of them.
func (r *GeofenceEventRepository) ListByBooking(ctx context.Context, bookingID string, limit int64) ([]domain.GeofenceEvent, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	if limit <= 0 || limit > 500 {
		limit = 100
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "timestamp", Value: -1}}).
		SetLimit(limit)

	cur, err := r.col.Find(ctx, bson.M{"booking_id": bookingID}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var docs []geofenceEventDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	out := make([]domain.GeofenceEvent, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.Event)
	}
	return out, nil
}

// EnsureIndexes creates the booking/time index used by ListByBooking.
func (r *GeofenceEventRepository) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	_, err := r.col.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "booking_id", Value: 1}, {Key: "timestamp", Value: -1}},
	})
	return err
}
