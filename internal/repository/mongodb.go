package repository

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"jsonbench-api/internal/model"
	"jsonbench-api/pkg/jsonvalue"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/bsontype"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	lightCollection   = "light_data"
	heavyCollection   = "heavy_data"
	counterCollection = "counters"
)

// MongoDBStore implements Store using MongoDB.
// Integer ids come from a counters collection so records keep the same
// identity shape as the SQL backends.
type MongoDBStore struct {
	client   *mongo.Client
	db       *mongo.Database
	light    *mongo.Collection
	heavy    *mongo.Collection
	counters *mongo.Collection
}

// NewMongoDBStore creates a new MongoDB store.
func NewMongoDBStore(uri, database string) (*MongoDBStore, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	clientOpts := options.Client().
		ApplyURI(uri).
		SetMaxPoolSize(50).
		SetMinPoolSize(5).
		SetMaxConnIdleTime(5 * time.Minute).
		SetRetryWrites(true)

	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	// Ping to verify connection
	if err := client.Ping(ctx, nil); err != nil {
		client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	db := client.Database(database)
	s := &MongoDBStore{
		client:   client,
		db:       db,
		light:    db.Collection(lightCollection),
		heavy:    db.Collection(heavyCollection),
		counters: db.Collection(counterCollection),
	}

	indexes := []struct {
		coll *mongo.Collection
		key  string
	}{
		{s.light, "key"},
		{s.light, "created_at"},
		{s.heavy, "created_at"},
	}
	for _, idx := range indexes {
		_, err := idx.coll.Indexes().CreateOne(ctx, mongo.IndexModel{Keys: bson.D{{Key: idx.key, Value: 1}}})
		if err != nil {
			log.Printf("[MongoDB] Warning: failed to create index %s.%s: %v", idx.coll.Name(), idx.key, err)
		}
	}

	log.Printf("[MongoDB] Connected to %s", database)
	return s, nil
}

// nextID atomically increments and returns the sequence for name.
func (r *MongoDBStore) nextID(ctx context.Context, name string) (int64, error) {
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)
	var counter struct {
		Seq int64 `bson:"seq"`
	}
	err := r.counters.FindOneAndUpdate(ctx,
		bson.M{"_id": name},
		bson.M{"$inc": bson.M{"seq": int64(1)}},
		opts,
	).Decode(&counter)
	if err != nil {
		return 0, fmt.Errorf("failed to allocate id for %s: %w", name, err)
	}
	return counter.Seq, nil
}

// mongoNow returns the current time at BSON datetime precision.
func mongoNow() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}

type mongoLightDoc struct {
	ID        int64     `bson:"_id"`
	Key       string    `bson:"key"`
	Value     string    `bson:"value"`
	CreatedAt time.Time `bson:"created_at"`
	UpdatedAt time.Time `bson:"updated_at"`
}

type mongoHeavyDoc struct {
	ID          int64         `bson:"_id"`
	Payload     bson.RawValue `bson:"payload"`
	Metadata    bson.RawValue `bson:"metadata"`
	NestedArray bson.RawValue `bson:"nested_array"`
	Tags        []string      `bson:"tags"`
	CreatedAt   time.Time     `bson:"created_at"`
	UpdatedAt   time.Time     `bson:"updated_at"`
}

// InsertLight inserts a light record.
func (r *MongoDBStore) InsertLight(ctx context.Context, data model.LightData) (*model.LightRecord, error) {
	id, err := r.nextID(ctx, lightCollection)
	if err != nil {
		return nil, err
	}
	now := mongoNow()
	doc := mongoLightDoc{ID: id, Key: data.Key, Value: data.Value, CreatedAt: now, UpdatedAt: now}
	if _, err := r.light.InsertOne(ctx, doc); err != nil {
		return nil, fmt.Errorf("failed to insert light record: %w", err)
	}
	return model.NewLightRecord(id, data, now, now), nil
}

// GetLightByKey retrieves the earliest light record with the given key.
func (r *MongoDBStore) GetLightByKey(ctx context.Context, key string) (*model.LightRecord, error) {
	opts := options.FindOne().SetSort(bson.D{{Key: "_id", Value: 1}})
	var doc mongoLightDoc
	err := r.light.FindOne(ctx, bson.M{"key": key}, opts).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get light record: %w", err)
	}
	return &model.LightRecord{
		ID:        doc.ID,
		Key:       doc.Key,
		Value:     doc.Value,
		CreatedAt: doc.CreatedAt.UTC(),
		UpdatedAt: doc.UpdatedAt.UTC(),
	}, nil
}

// InsertHeavy inserts a heavy document. Sections are stored as native BSON
// with object member order preserved.
func (r *MongoDBStore) InsertHeavy(ctx context.Context, doc model.HeavyDocument) (*model.HeavyRecord, error) {
	sections := make([]interface{}, 3)
	for i, v := range []jsonvalue.Value{doc.Payload, doc.Metadata, doc.NestedArray} {
		converted, err := toBSON(v)
		if err != nil {
			return nil, fmt.Errorf("failed to convert heavy document: %w", err)
		}
		sections[i] = converted
	}

	id, err := r.nextID(ctx, heavyCollection)
	if err != nil {
		return nil, err
	}
	now := mongoNow()
	record := bson.D{
		{Key: "_id", Value: id},
		{Key: "payload", Value: sections[0]},
		{Key: "metadata", Value: sections[1]},
		{Key: "nested_array", Value: sections[2]},
		{Key: "tags", Value: nonNil(doc.Tags)},
		{Key: "created_at", Value: now},
		{Key: "updated_at", Value: now},
	}
	if _, err := r.heavy.InsertOne(ctx, record); err != nil {
		return nil, fmt.Errorf("failed to insert heavy record: %w", err)
	}
	return model.NewHeavyRecord(id, doc, now, now), nil
}

// GetHeavyByID retrieves a heavy record by id.
func (r *MongoDBStore) GetHeavyByID(ctx context.Context, id int64) (*model.HeavyRecord, error) {
	var doc mongoHeavyDoc
	err := r.heavy.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get heavy record: %w", err)
	}

	var out model.HeavyDocument
	for _, section := range []struct {
		raw bson.RawValue
		dst *jsonvalue.Value
	}{
		{doc.Payload, &out.Payload},
		{doc.Metadata, &out.Metadata},
		{doc.NestedArray, &out.NestedArray},
	} {
		v, err := fromBSON(section.raw)
		if err != nil {
			return nil, fmt.Errorf("failed to decode heavy record %d: %w", id, err)
		}
		*section.dst = v
	}
	out.Tags = doc.Tags
	return model.NewHeavyRecord(doc.ID, out, doc.CreatedAt.UTC(), doc.UpdatedAt.UTC()), nil
}

// DeleteOlderThan deletes records created before cutoff.
func (r *MongoDBStore) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	filter := bson.M{"created_at": bson.M{"$lt": cutoff}}

	var total int64
	for _, coll := range []*mongo.Collection{r.light, r.heavy} {
		result, err := coll.DeleteMany(ctx, filter)
		if err != nil {
			return total, fmt.Errorf("failed to delete from %s: %w", coll.Name(), err)
		}
		total += result.DeletedCount
	}
	return total, nil
}

// Ping checks the MongoDB connection.
func (r *MongoDBStore) Ping(ctx context.Context) error {
	return r.client.Ping(ctx, nil)
}

// GetStats returns statistics about the collections.
func (r *MongoDBStore) GetStats(ctx context.Context) (map[string]interface{}, error) {
	stats := make(map[string]interface{})
	stats["status"] = "connected"

	light, err := r.light.CountDocuments(ctx, bson.M{})
	if err != nil {
		return stats, err
	}
	heavy, err := r.heavy.CountDocuments(ctx, bson.M{})
	if err != nil {
		return stats, err
	}
	stats["light_records"] = light
	stats["heavy_records"] = heavy

	var size int64
	for _, coll := range []*mongo.Collection{r.light, r.heavy} {
		var collStats bson.M
		result := r.db.RunCommand(ctx, bson.D{{Key: "collStats", Value: coll.Name()}})
		if err := result.Decode(&collStats); err != nil {
			continue
		}
		switch v := collStats["size"].(type) {
		case int64:
			size += v
		case int32:
			size += int64(v)
		case float64:
			size += int64(v)
		}
	}
	stats["db_size_bytes"] = size

	return stats, nil
}

// Close closes the MongoDB connection.
func (r *MongoDBStore) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return r.client.Disconnect(ctx)
}

// toBSON converts a JSON tree into values the driver encodes natively.
// Objects become bson.D to keep member order. Integers that fit int64 stay
// integers; other numbers become doubles.
func toBSON(v jsonvalue.Value) (interface{}, error) {
	switch v.Kind() {
	case jsonvalue.Null:
		return nil, nil
	case jsonvalue.Bool:
		return v.Bool(), nil
	case jsonvalue.String:
		return v.Text(), nil
	case jsonvalue.Number:
		if n, err := v.Int64(); err == nil {
			return n, nil
		}
		f, err := v.Float64()
		if err != nil {
			return nil, fmt.Errorf("number %s is not representable in BSON: %w", v.Number(), err)
		}
		return f, nil
	case jsonvalue.Array:
		out := make(bson.A, 0, v.Len())
		for _, item := range v.Items() {
			converted, err := toBSON(item)
			if err != nil {
				return nil, err
			}
			out = append(out, converted)
		}
		return out, nil
	case jsonvalue.Object:
		out := make(bson.D, 0, v.Len())
		for _, m := range v.Members() {
			converted, err := toBSON(m.Value)
			if err != nil {
				return nil, err
			}
			out = append(out, bson.E{Key: m.Key, Value: converted})
		}
		return out, nil
	}
	return nil, fmt.Errorf("unknown JSON kind %s", v.Kind())
}

// fromBSON converts a stored BSON value back into a JSON tree.
func fromBSON(rv bson.RawValue) (jsonvalue.Value, error) {
	switch rv.Type {
	case bsontype.Null, bsontype.Undefined:
		return jsonvalue.NewNull(), nil
	case bsontype.Boolean:
		return jsonvalue.NewBool(rv.Boolean()), nil
	case bsontype.String:
		return jsonvalue.NewString(rv.StringValue()), nil
	case bsontype.Int32:
		return jsonvalue.NewInt(int64(rv.Int32())), nil
	case bsontype.Int64:
		return jsonvalue.NewInt(rv.Int64()), nil
	case bsontype.Double:
		return jsonvalue.NewFloat(rv.Double())
	case bsontype.Array:
		values, err := rv.Array().Values()
		if err != nil {
			return jsonvalue.Value{}, err
		}
		items := make([]jsonvalue.Value, 0, len(values))
		for _, item := range values {
			v, err := fromBSON(item)
			if err != nil {
				return jsonvalue.Value{}, err
			}
			items = append(items, v)
		}
		return jsonvalue.NewArray(items...), nil
	case bsontype.EmbeddedDocument:
		elems, err := rv.Document().Elements()
		if err != nil {
			return jsonvalue.Value{}, err
		}
		members := make([]jsonvalue.Member, 0, len(elems))
		for _, e := range elems {
			v, err := fromBSON(e.Value())
			if err != nil {
				return jsonvalue.Value{}, err
			}
			members = append(members, jsonvalue.Member{Key: e.Key(), Value: v})
		}
		return jsonvalue.NewObject(members...), nil
	}
	return jsonvalue.Value{}, fmt.Errorf("unsupported BSON type %s", rv.Type)
}

// Ensure MongoDBStore implements Store
var _ Store = (*MongoDBStore)(nil)
