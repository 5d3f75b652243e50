package repository

import (
	"context"
	"time"

	"shipment-eventing-service/internal/domain/entity"
	"shipment-eventing-service/internal/domain/repository"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoStatusRecordRepository implements StatusRecordRepository
type MongoStatusRecordRepository struct {
	collection *mongo.Collection
}

// NewMongoStatusRecordRepository creates a new status record repository
func NewMongoStatusRecordRepository(db *mongo.Database, name string) repository.StatusRecordRepository {
	collection := db.Collection(name)

	// Create unique index on workflow + recordKey
	ctx := context.Background()
	indexModel := mongo.IndexModel{
		Keys:    bson.D{{Key: "workflow", Value: 1}, {Key: "recordKey", Value: 1}},
		Options: options.Index().SetUnique(true),
	}
	collection.Indexes().CreateOne(ctx, indexModel)

	// Create index on aggregateStatus for sweeper queries
	statusIndex := mongo.IndexModel{
		Keys: bson.M{"aggregateStatus": 1},
	}
	collection.Indexes().CreateOne(ctx, statusIndex)

	return &MongoStatusRecordRepository{
		collection: collection,
	}
}

var terminalStatuses = []entity.AggregateStatus{
	entity.StatusSent, entity.StatusSkipped, entity.StatusFailed,
}

// UpsertEntity merges one entity's readiness and snapshot slice into
// the record. The update is attribute-scoped so concurrent merges for
// other entity types are never overwritten. Terminal records are
// returned unchanged; a missing record with create=false yields
// (nil, nil).
func (r *MongoStatusRecordRepository) UpsertEntity(ctx context.Context, wf entity.Workflow, key, orderNo string, typ entity.EntityType, readiness entity.Readiness, snap entity.Snapshot, create bool, updatedBy string) (*entity.StatusRecord, error) {
	set := bson.M{
		"entityStatuses." + string(typ): readiness,
		"lastUpdatedAt":                 time.Now(),
		"lastUpdatedBy":                 updatedBy,
	}
	for field, value := range snapshotFields(snap) {
		set["snapshot."+field] = value
	}

	filter := bson.M{
		"workflow":        wf.Name,
		"recordKey":       key,
		"aggregateStatus": bson.M{"$nin": terminalStatuses},
	}
	update := bson.M{"$set": set}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	if create {
		setOnInsert := bson.M{
			"orderNo":         orderNo,
			"aggregateStatus": entity.StatusPending,
			"retryCount":      0,
			"createdAt":       time.Now(),
		}
		for _, tracked := range wf.Tracked {
			if tracked == typ {
				continue
			}
			setOnInsert["entityStatuses."+string(tracked)] = entity.ReadinessPending
		}
		update["$setOnInsert"] = setOnInsert
		opts.SetUpsert(true)
	}

	var record entity.StatusRecord
	err := r.collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&record)
	if mongo.IsDuplicateKeyError(err) {
		// The record exists but is terminal; the filter refused it
		// and the upsert collided with the unique index. Return it
		// as-is so callers observe the terminal state.
		return r.Get(ctx, wf.Name, key)
	}
	if err == mongo.ErrNoDocuments {
		// create=false and nothing matched; either no record exists
		// for this key, or the one that does is terminal
		return r.Get(ctx, wf.Name, key)
	}
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// Get finds a status record by workflow and key; (nil, nil) when no
// record exists
func (r *MongoStatusRecordRepository) Get(ctx context.Context, workflow, key string) (*entity.StatusRecord, error) {
	var record entity.StatusRecord
	err := r.collection.FindOne(ctx, bson.M{"workflow": workflow, "recordKey": key}).Decode(&record)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// EachByAggregateStatus streams matching records through fn, one page
// at a time, until the cursor is exhausted or fn fails
func (r *MongoStatusRecordRepository) EachByAggregateStatus(ctx context.Context, status entity.AggregateStatus, pageSize int, fn func(*entity.StatusRecord) error) error {
	opts := options.Find()
	if pageSize > 0 {
		opts.SetBatchSize(int32(pageSize))
	}
	cursor, err := r.collection.Find(ctx, bson.M{"aggregateStatus": status}, opts)
	if err != nil {
		return err
	}
	defer cursor.Close(ctx)

	for cursor.Next(ctx) {
		var record entity.StatusRecord
		if err := cursor.Decode(&record); err != nil {
			return err
		}
		if err := fn(&record); err != nil {
			return err
		}
	}
	return cursor.Err()
}

// TransitionAggregate conditionally advances the aggregate status.
// Terminal records are never moved by this path; ResetForRetrigger is
// the only way back.
func (r *MongoStatusRecordRepository) TransitionAggregate(ctx context.Context, workflow, key string, status entity.AggregateStatus, message string, retryDelta int, updatedBy string) error {
	set := bson.M{
		"aggregateStatus": status,
		"lastUpdatedAt":   time.Now(),
		"lastUpdatedBy":   updatedBy,
	}
	if message != "" {
		set["message"] = message
	}
	update := bson.M{"$set": set}
	if retryDelta != 0 {
		update["$inc"] = bson.M{"retryCount": retryDelta}
	}

	_, err := r.collection.UpdateOne(
		ctx,
		bson.M{
			"workflow":        workflow,
			"recordKey":       key,
			"aggregateStatus": bson.M{"$nin": terminalStatuses},
		},
		update,
	)
	return err
}

// StageDispatch records the resolved routing keys and, when provided,
// the serialized payload for audit and retry
func (r *MongoStatusRecordRepository) StageDispatch(ctx context.Context, workflow, key string, customerIDs []string, payloadJSON string, updatedBy string) error {
	set := bson.M{
		"customerIds":   customerIDs,
		"lastUpdatedAt": time.Now(),
		"lastUpdatedBy": updatedBy,
	}
	if payloadJSON != "" {
		set["payload"] = payloadJSON
	}
	_, err := r.collection.UpdateOne(
		ctx,
		bson.M{"workflow": workflow, "recordKey": key},
		bson.M{"$set": set},
	)
	return err
}

// Delete removes the status record entirely
func (r *MongoStatusRecordRepository) Delete(ctx context.Context, workflow, key string) error {
	_, err := r.collection.DeleteOne(ctx, bson.M{"workflow": workflow, "recordKey": key})
	return err
}

// ResetForRetrigger is the operator reset: every record for the order
// goes back to PENDING with a zeroed retry count, regardless of the
// current status
func (r *MongoStatusRecordRepository) ResetForRetrigger(ctx context.Context, workflow, orderNo string, updatedBy string) error {
	_, err := r.collection.UpdateMany(
		ctx,
		bson.M{"workflow": workflow, "orderNo": orderNo},
		bson.M{"$set": bson.M{
			"aggregateStatus": entity.StatusPending,
			"retryCount":      0,
			"message":         "",
			"lastUpdatedAt":   time.Now(),
			"lastUpdatedBy":   updatedBy,
		}},
	)
	return err
}

// snapshotFields lists the non-empty snapshot attributes so the merge
// only touches fields the triggering entity actually carries
func snapshotFields(snap entity.Snapshot) map[string]string {
	all := map[string]string{
		"uuid":              snap.UUID,
		"housebill":         snap.Housebill,
		"billNo":            snap.BillNo,
		"scheduledDateTime": snap.ScheduledDateTime,
		"etaDateTime":       snap.ETADateTime,
		"shipName":          snap.ShipName,
		"shipCity":          snap.ShipCity,
		"shipState":         snap.ShipState,
		"shipZip":           snap.ShipZip,
		"shipCountry":       snap.ShipCountry,
		"conCity":           snap.ConCity,
		"conState":          snap.ConState,
		"conZip":            snap.ConZip,
		"conCountry":        snap.ConCountry,
		"statusCode":        snap.StatusCode,
		"eventDateTime":     snap.EventDateTime,
	}
	fields := make(map[string]string, len(all))
	for k, v := range all {
		if v != "" {
			fields[k] = v
		}
	}
	return fields
}
