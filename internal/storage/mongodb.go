package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/EricMurray-e-m-dev/SafetyMonkey/internal/models"
)

const analysesCollection = "image_analyses"

// MongoStore keeps each analysis as a single document, so a save is atomic
// without a transaction.
type MongoStore struct {
	client     *mongo.Client
	collection *mongo.Collection
}

type analysisDocument struct {
	ID          string           `bson:"_id"`
	ImageName   string           `bson:"image_name"`
	ImageHash   string           `bson:"image_hash,omitempty"`
	TotalPeople int              `bson:"total_people"`
	CreatedAt   time.Time        `bson:"created_at"`
	People      []personDocument `bson:"people"`
}

type personDocument struct {
	ID          string                     `bson:"id"`
	Description string                     `bson:"desc"`
	Equipment   map[string]verdictDocument `bson:"equipment"`
}

type verdictDocument struct {
	Worn        bool                `bson:"worn"`
	Probability float64             `bson:"probability"`
	BoundingBox *models.BoundingBox `bson:"bounding_box,omitempty"`
	Color       string              `bson:"color"`
}

func NewMongoStore(ctx context.Context, uri, database string) (*MongoStore, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to ping mongodb: %w", err)
	}

	collection := client.Database(database).Collection(analysesCollection)
	_, err = collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "created_at", Value: -1}},
	})
	if err != nil {
		client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to create index: %w", err)
	}

	return &MongoStore{client: client, collection: collection}, nil
}

func (m *MongoStore) Save(ctx context.Context, analysis *models.Analysis) error {
	if _, err := m.collection.InsertOne(ctx, toDocument(analysis)); err != nil {
		return fmt.Errorf("failed to insert analysis: %w", err)
	}
	return nil
}

func (m *MongoStore) Get(ctx context.Context, id string) (*models.Analysis, error) {
	var doc analysisDocument
	err := m.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find analysis: %w", err)
	}

	a := fromDocument(doc)
	return &a, nil
}

func (m *MongoStore) List(ctx context.Context, limit int) ([]models.Analysis, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}).
		SetLimit(int64(clampLimit(limit)))

	cursor, err := m.collection.Find(ctx, bson.D{}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list analyses: %w", err)
	}

	var docs []analysisDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode analyses: %w", err)
	}

	analyses := make([]models.Analysis, 0, len(docs))
	for _, doc := range docs {
		analyses = append(analyses, fromDocument(doc))
	}
	return analyses, nil
}

func (m *MongoStore) Ping(ctx context.Context) error {
	return m.client.Ping(ctx, nil)
}

func (m *MongoStore) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return m.client.Disconnect(ctx)
}

func toDocument(a *models.Analysis) analysisDocument {
	doc := analysisDocument{
		ID:          a.ID,
		ImageName:   a.ImageName,
		ImageHash:   a.ImageHash,
		TotalPeople: a.TotalPeople,
		CreatedAt:   a.CreatedAt,
		People:      make([]personDocument, 0, len(a.People)),
	}
	for _, p := range a.People {
		person := personDocument{
			ID:          p.ID,
			Description: p.Description,
			Equipment:   make(map[string]verdictDocument, len(p.Equipment)),
		}
		for name, v := range p.Equipment {
			person.Equipment[name] = verdictDocument{
				Worn:        v.Worn,
				Probability: v.Probability,
				BoundingBox: v.BoundingBox,
				Color:       v.Color,
			}
		}
		doc.People = append(doc.People, person)
	}
	return doc
}

func fromDocument(doc analysisDocument) models.Analysis {
	people := make([]models.PersonRecord, 0, len(doc.People))
	for _, p := range doc.People {
		person := models.PersonRecord{
			ID:          p.ID,
			Description: p.Description,
			Equipment:   make(map[string]models.EquipmentVerdict, len(p.Equipment)),
		}
		for name, v := range p.Equipment {
			person.Equipment[name] = models.EquipmentVerdict{
				Worn:        v.Worn,
				Probability: v.Probability,
				BoundingBox: v.BoundingBox,
				Color:       v.Color,
			}
		}
		people = append(people, person)
	}

	return models.Analysis{
		ID:                  doc.ID,
		ImageName:           doc.ImageName,
		ImageHash:           doc.ImageHash,
		CreatedAt:           doc.CreatedAt.UTC(),
		ImageAnalysisReport: models.ImageAnalysisReport{People: people, TotalPeople: doc.TotalPeople},
	}
}
