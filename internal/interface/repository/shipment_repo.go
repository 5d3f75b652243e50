package repository

import (
	"context"

	"shipment-eventing-service/internal/domain/entity"
	"shipment-eventing-service/internal/domain/repository"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ShipmentCollections names the source collections read by the engine
type ShipmentCollections struct {
	Header    string
	Shipper   string
	Consignee string
	Milestone string
}

// MongoShipmentRepository implements ShipmentRepository over the
// replicated source tables
type MongoShipmentRepository struct {
	header    *mongo.Collection
	shipper   *mongo.Collection
	consignee *mongo.Collection
	milestone *mongo.Collection
}

// NewMongoShipmentRepository creates a new shipment source repository
func NewMongoShipmentRepository(db *mongo.Database, cols ShipmentCollections) repository.ShipmentRepository {
	return &MongoShipmentRepository{
		header:    db.Collection(cols.Header),
		shipper:   db.Collection(cols.Shipper),
		consignee: db.Collection(cols.Consignee),
		milestone: db.Collection(cols.Milestone),
	}
}

// GetHeader finds the header row for an order; (nil, nil) when absent
func (r *MongoShipmentRepository) GetHeader(ctx context.Context, orderNo string) (*entity.ShipmentHeader, error) {
	var header entity.ShipmentHeader
	err := r.header.FindOne(ctx, bson.M{"PK_OrderNo": orderNo}).Decode(&header)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &header, nil
}

// ListShippers returns every shipper row for an order, in stored order
func (r *MongoShipmentRepository) ListShippers(ctx context.Context, orderNo string) ([]entity.Shipper, error) {
	opts := options.Find().SetSort(bson.M{"ShipSequence": 1})
	cursor, err := r.shipper.Find(ctx, bson.M{"FK_ShipOrderNo": orderNo}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var shippers []entity.Shipper
	if err := cursor.All(ctx, &shippers); err != nil {
		return nil, err
	}
	return shippers, nil
}

// ListConsignees returns every consignee row for an order, in stored order
func (r *MongoShipmentRepository) ListConsignees(ctx context.Context, orderNo string) ([]entity.Consignee, error) {
	opts := options.Find().SetSort(bson.M{"ConSequence": 1})
	cursor, err := r.consignee.Find(ctx, bson.M{"FK_ConOrderNo": orderNo}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var consignees []entity.Consignee
	if err := cursor.All(ctx, &consignees); err != nil {
		return nil, err
	}
	return consignees, nil
}

// GetMilestone finds one milestone row by order and status id;
// (nil, nil) when absent
func (r *MongoShipmentRepository) GetMilestone(ctx context.Context, orderNo, statusID string) (*entity.Milestone, error) {
	var milestone entity.Milestone
	err := r.milestone.FindOne(ctx, bson.M{
		"FK_OrderNo":       orderNo,
		"FK_OrderStatusId": statusID,
	}).Decode(&milestone)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &milestone, nil
}

// SetMilestoneProcessState advances the process-state column of one
// milestone row
func (r *MongoShipmentRepository) SetMilestoneProcessState(ctx context.Context, orderNo, statusID, state string) error {
	_, err := r.milestone.UpdateOne(
		ctx,
		bson.M{
			"FK_OrderNo":       orderNo,
			"FK_OrderStatusId": statusID,
		},
		bson.M{"$set": bson.M{"ProcessState": state}},
	)
	return err
}
