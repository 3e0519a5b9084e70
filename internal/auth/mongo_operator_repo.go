package auth

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoConfig contains connection settings for the MongoDB operator repository.
type MongoConfig struct {
	URI        string // e.g. mongodb://localhost:27017
	Database   string // e.g. meadow
	Collection string // e.g. operators
	Counters   string // e.g. counters (for auto-increment)
}

// MongoOperatorRepo implements OperatorRepository on MongoDB.
type MongoOperatorRepo struct {
	client      *mongo.Client
	collection  *mongo.Collection
	counterColl *mongo.Collection
	ctxTimeout  time.Duration
}

type operatorDoc struct {
	OperatorID    uint64    `bson:"operator_id"`
	Username      string    `bson:"username"`
	PasswordHash  string    `bson:"password_hash"`
	Authoritative bool      `bson:"authoritative"`
	CreatedAt     time.Time `bson:"created_at"`
	LastLogin     time.Time `bson:"last_login"`
}

func (d operatorDoc) operator() *Operator {
	return &Operator{
		ID:            d.OperatorID,
		Username:      d.Username,
		PasswordHash:  d.PasswordHash,
		Authoritative: d.Authoritative,
		CreatedAt:     d.CreatedAt,
		LastLogin:     d.LastLogin,
	}
}

// NewMongoOperatorRepo connects, pings and ensures indexes.
func NewMongoOperatorRepo(ctx context.Context, cfg MongoConfig) (*MongoOperatorRepo, error) {
	if cfg.URI == "" {
		cfg.URI = "mongodb://localhost:27017"
	}
	if cfg.Database == "" {
		cfg.Database = "meadow"
	}
	if cfg.Collection == "" {
		cfg.Collection = "operators"
	}
	if cfg.Counters == "" {
		cfg.Counters = "counters"
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, err
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}

	db := client.Database(cfg.Database)
	repo := &MongoOperatorRepo{
		client:      client,
		collection:  db.Collection(cfg.Collection),
		counterColl: db.Collection(cfg.Counters),
		ctxTimeout:  5 * time.Second,
	}
	if err := repo.ensureIndexes(ctx); err != nil {
		return nil, err
	}
	return repo, nil
}

func (m *MongoOperatorRepo) ensureIndexes(ctx context.Context) error {
	_, err := m.collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "username", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("username_unique"),
		},
		{
			Keys:    bson.D{{Key: "operator_id", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("operator_id_unique"),
		},
	})
	return err
}

// GetByUsername implements OperatorRepository.
func (m *MongoOperatorRepo) GetByUsername(username string) (*Operator, error) {
	ctx, cancel := context.WithTimeout(context.Background(), m.ctxTimeout)
	defer cancel()

	var doc operatorDoc
	err := m.collection.FindOne(ctx, bson.M{"username": normalize(username)}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrOperatorNotFound
	}
	if err != nil {
		return nil, err
	}
	return doc.operator(), nil
}

// Create implements OperatorRepository.
func (m *MongoOperatorRepo) Create(username, passwordHash string, authoritative bool) (*Operator, error) {
	nextID, err := m.nextSequence("operator_id")
	if err != nil {
		return nil, err
	}

	doc := operatorDoc{
		OperatorID:    nextID,
		Username:      normalize(username),
		PasswordHash:  passwordHash,
		Authoritative: authoritative,
		CreatedAt:     time.Now(),
	}

	ctx, cancel := context.WithTimeout(context.Background(), m.ctxTimeout)
	defer cancel()
	_, err = m.collection.InsertOne(ctx, doc)
	if mongo.IsDuplicateKeyError(err) {
		return nil, ErrOperatorExists
	}
	if err != nil {
		return nil, err
	}
	return doc.operator(), nil
}

// ValidateCredentials implements OperatorRepository.
func (m *MongoOperatorRepo) ValidateCredentials(username, password string) (*Operator, error) {
	op, err := m.GetByUsername(username)
	if errors.Is(err, ErrOperatorNotFound) {
		return nil, ErrInvalidCredential
	}
	if err != nil {
		return nil, err
	}
	if !CheckPassword(op.PasswordHash, password) {
		return nil, ErrInvalidCredential
	}

	ctx, cancel := context.WithTimeout(context.Background(), m.ctxTimeout)
	defer cancel()
	op.LastLogin = time.Now()
	_, err = m.collection.UpdateOne(ctx,
		bson.M{"operator_id": op.ID},
		bson.M{"$set": bson.M{"last_login": op.LastLogin}},
	)
	return op, err
}

// nextSequence atomically increments a counter and returns the new value.
func (m *MongoOperatorRepo) nextSequence(name string) (uint64, error) {
	ctx, cancel := context.WithTimeout(context.Background(), m.ctxTimeout)
	defer cancel()

	res := m.counterColl.FindOneAndUpdate(ctx,
		bson.M{"_id": name},
		bson.M{"$inc": bson.M{"seq": 1}},
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	)
	var doc struct {
		Seq int64 `bson:"seq"`
	}
	if err := res.Decode(&doc); err != nil {
		return 0, err
	}
	return uint64(doc.Seq), nil
}

// Close terminates the connection.
func (m *MongoOperatorRepo) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return m.client.Disconnect(ctx)
}
