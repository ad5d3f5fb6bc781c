package mongo

import (
	"context"

	"go.mongodb.org/mongo-driver/mongo"

	"github.com/99minutos/dock-kiosk/internal/core/domain"
)

const collectionHelpRequests = "help_requests"

type HelpRequestRepository struct {
	col *mongo.Collection
}

func NewHelpRequestRepository(db *mongo.Database) *HelpRequestRepository {
	return &HelpRequestRepository{col: db.Collection(collectionHelpRequests)}
}

func (r *HelpRequestRepository) Insert(ctx context.Context, req *domain.HelpRequest) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	_, err := r.col.InsertOne(ctx, req)
	return err
}
