package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/99minutos/dock-kiosk/internal/core/domain"
)

const collectionBookings = "bookings"

type BookingRepository struct {
	col *mongo.Collection
}

func NewBookingRepository(db *mongo.Database) *BookingRepository {
	return &BookingRepository{col: db.Collection(collectionBookings)}
}

// Create inserts a new booking document.
func (r *BookingRepository) Create(ctx context.Context, b *domain.Booking) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	if _, err := r.col.InsertOne(ctx, b); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("insert booking %s: %w", b.ID, domain.ErrBookingExists)
		}
		return fmt.Errorf("insert booking: %w", err)
	}
	return nil
}

// FindByID retrieves a booking by its ID.
func (r *BookingRepository) FindByID(ctx context.Context, id string) (*domain.Booking, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

// FindByConfirmationCode retrieves the booking a driver's confirmation code belongs to.
func (r *BookingRepository) FindByConfirmationCode(ctx context.Context, code string) (*domain.Booking, error) {
	return r.findOne(ctx, bson.M{"confirmation_code": code})
}

func (r *BookingRepository) findOne(ctx context.Context, filter bson.M) (*domain.Booking, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var b domain.Booking
	err := r.col.FindOne(ctx, filter).Decode(&b)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrBookingNotFound
		}
		return nil, err
	}
	return &b, nil
}

// UpdateStatus atomically applies a transition and appends its history entry.
// The update only matches while the stored status is still from, so two
// kiosks racing on the same booking cannot both win.
func (r *BookingRepository) UpdateStatus(ctx context.Context, b *domain.Booking, from domain.BookingStatus, entry domain.StatusHistoryEntry) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	set := bson.M{
		"status":           string(b.Status),
		"timestamps":       b.Timestamps,
		"signature":        b.Signature,
		"completion_notes": b.CompletionNotes,
		"cancel_reason":    b.CancelReason,
	}
	if b.CheckIn != nil {
		set["check_in"] = b.CheckIn
	}

	filter := bson.M{"_id": b.ID, "status": string(from)}
	update := bson.M{
		"$set":  set,
		"$push": bson.M{"status_history": entry},
	}

	res, err := r.col.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("update booking status: %w", err)
	}
	if res.MatchedCount == 0 {
		n, err := r.col.CountDocuments(ctx, bson.M{"_id": b.ID})
		if err != nil {
			return fmt.Errorf("update booking status: %w", err)
		}
		if n == 0 {
			return domain.ErrBookingNotFound
		}
		return fmt.Errorf("%w: stored status is no longer %s", domain.ErrInvalidTransition, from)
	}
	return nil
}

// SetArrivedAt records the first site arrival. Later calls leave it untouched.
func (r *BookingRepository) SetArrivedAt(ctx context.Context, id string, at time.Time) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	filter := bson.M{"_id": id, "timestamps.arrived_at": bson.M{"$exists": false}}
	update := bson.M{"$set": bson.M{"timestamps.arrived_at": at.UTC()}}
	_, err := r.col.UpdateOne(ctx, filter, update)
	return err
}

// EnsureIndexes creates necessary indexes on the bookings collection.
func (r *BookingRepository) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	indexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "confirmation_code", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "status", Value: 1}}},
	}

	_, err := r.col.Indexes().CreateMany(ctx, indexes)
	return err
}
