package db

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/BorisDmv/portfolio-api/internal/models"
)

// MongoManager owns the single client used by the server and hands out the
// posts collection. It is created once in main and shared by all requests.
type MongoManager struct {
	uri        string
	database   string
	collection string

	connect func(ctx context.Context) (*mongo.Client, error)

	mu     sync.Mutex
	client *mongo.Client
	coll   *mongo.Collection
}

func NewMongoManager(uri, database, collection string) *MongoManager {
	m := &MongoManager{
		uri:        uri,
		database:   database,
		collection: collection,
	}
	m.connect = m.dial
	return m
}

// NewMongoManagerWithClient serves the collection from an already connected
// client instead of dialing a URI.
func NewMongoManagerWithClient(client *mongo.Client, database, collection string) *MongoManager {
	return &MongoManager{
		uri:        "client",
		database:   database,
		collection: collection,
		connect: func(context.Context) (*mongo.Client, error) {
			return client, nil
		},
	}
}

// Acquire returns the cached collection handle, connecting on first use.
// A cached handle is returned as is; liveness is left to the driver pool.
func (m *MongoManager) Acquire(ctx context.Context) (*mongo.Collection, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.coll != nil {
		return m.coll, nil
	}
	if m.uri == "" {
		return nil, ErrMissingURI
	}

	client, err := m.connect(ctx)
	if err != nil {
		return nil, err
	}

	m.client = client
	m.coll = client.Database(m.database).Collection(m.collection)
	return m.coll, nil
}

func (m *MongoManager) dial(ctx context.Context) (*mongo.Client, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(m.uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("ping mongo: %w", err)
	}
	return client, nil
}

func (m *MongoManager) Close(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.client == nil {
		return nil
	}
	err := m.client.Disconnect(ctx)
	m.client = nil
	m.coll = nil
	return err
}

type postDocument struct {
	ID            primitive.ObjectID `bson:"_id,omitempty"`
	Title         string             `bson:"title"`
	Excerpt       string             `bson:"excerpt"`
	Content       string             `bson:"content"`
	Date          string             `bson:"date"`
	Author        string             `bson:"author"`
	Category      string             `bson:"category"`
	Tags          []string           `bson:"tags"`
	ReadTime      *int               `bson:"readTime,omitempty"`
	FeaturedImage string             `bson:"featuredImage,omitempty"`
	Images        []string           `bson:"images,omitempty"`
	CreatedAt     string             `bson:"createdAt,omitempty"`
	UpdatedAt     string             `bson:"updatedAt,omitempty"`
}

func newPostDocument(post models.Post) postDocument {
	readTime := post.ReadTime
	tags := post.Tags
	if tags == nil {
		tags = []string{}
	}
	return postDocument{
		Title:         post.Title,
		Excerpt:       post.Excerpt,
		Content:       post.Content,
		Date:          post.Date,
		Author:        post.Author,
		Category:      post.Category,
		Tags:          tags,
		ReadTime:      &readTime,
		FeaturedImage: post.FeaturedImage,
		Images:        post.Images,
		CreatedAt:     post.CreatedAt,
	}
}

// toPost converts a stored document. Documents written by older clients may
// lack tags or readTime.
func (d postDocument) toPost() models.Post {
	readTime := models.DefaultReadTime
	if d.ReadTime != nil {
		readTime = *d.ReadTime
	}
	tags := d.Tags
	if tags == nil {
		tags = []string{}
	}
	return models.Post{
		ID:            d.ID.Hex(),
		Title:         d.Title,
		Excerpt:       d.Excerpt,
		Content:       d.Content,
		Date:          d.Date,
		Author:        d.Author,
		Category:      d.Category,
		Tags:          tags,
		ReadTime:      readTime,
		FeaturedImage: d.FeaturedImage,
		Images:        d.Images,
		CreatedAt:     d.CreatedAt,
		UpdatedAt:     d.UpdatedAt,
	}
}

// setDocument builds the $set body for update: only supplied fields plus
// updatedAt.
func setDocument(u models.PostUpdate) bson.D {
	set := bson.D{}
	add := func(key string, value interface{}) {
		set = append(set, bson.E{Key: key, Value: value})
	}
	if u.Title != nil {
		add("title", *u.Title)
	}
	if u.Excerpt != nil {
		add("excerpt", *u.Excerpt)
	}
	if u.Content != nil {
		add("content", *u.Content)
	}
	if u.Date != nil {
		add("date", *u.Date)
	}
	if u.Author != nil {
		add("author", *u.Author)
	}
	if u.Category != nil {
		add("category", *u.Category)
	}
	if u.Tags != nil {
		add("tags", models.NormalizeTags(*u.Tags))
	}
	if u.ReadTime != nil {
		add("readTime", *u.ReadTime)
	}
	if u.FeaturedImage != nil {
		add("featuredImage", *u.FeaturedImage)
	}
	if u.Images != nil {
		add("images", *u.Images)
	}
	add("updatedAt", u.UpdatedAt)
	return set
}

func objectID(id string) (primitive.ObjectID, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	return oid, nil
}

// MongoStore is the document-store profile of Repository.
type MongoStore struct {
	manager *MongoManager
}

func NewMongoStore(manager *MongoManager) *MongoStore {
	return &MongoStore{manager: manager}
}

func (s *MongoStore) List(ctx context.Context) ([]models.Post, error) {
	coll, err := s.manager.Acquire(ctx)
	if err != nil {
		return nil, err
	}

	opts := options.Find().SetSort(bson.D{{Key: "date", Value: -1}})
	cursor, err := coll.Find(ctx, bson.D{}, opts)
	if err != nil {
		return nil, fmt.Errorf("list posts: %w", err)
	}

	var docs []postDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode posts: %w", err)
	}

	posts := make([]models.Post, 0, len(docs))
	for _, doc := range docs {
		posts = append(posts, doc.toPost())
	}
	return posts, nil
}

func (s *MongoStore) Get(ctx context.Context, id string) (*models.Post, error) {
	oid, err := objectID(id)
	if err != nil {
		return nil, err
	}
	coll, err := s.manager.Acquire(ctx)
	if err != nil {
		return nil, err
	}

	var doc postDocument
	err = coll.FindOne(ctx, bson.D{{Key: "_id", Value: oid}}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get post: %w", err)
	}
	post := doc.toPost()
	return &post, nil
}

func (s *MongoStore) Create(ctx context.Context, post models.Post) (string, error) {
	coll, err := s.manager.Acquire(ctx)
	if err != nil {
		return "", err
	}

	res, err := coll.InsertOne(ctx, newPostDocument(post))
	if err != nil {
		return "", fmt.Errorf("create post: %w", err)
	}
	oid, ok := res.InsertedID.(primitive.ObjectID)
	if !ok {
		return "", fmt.Errorf("create post: unexpected id type %T", res.InsertedID)
	}
	return oid.Hex(), nil
}

func (s *MongoStore) Update(ctx context.Context, id string, update models.PostUpdate) error {
	oid, err := objectID(id)
	if err != nil {
		return err
	}
	coll, err := s.manager.Acquire(ctx)
	if err != nil {
		return err
	}

	res, err := coll.UpdateOne(ctx,
		bson.D{{Key: "_id", Value: oid}},
		bson.D{{Key: "$set", Value: setDocument(update)}},
	)
	if err != nil {
		return fmt.Errorf("update post: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *MongoStore) Delete(ctx context.Context, id string) error {
	oid, err := objectID(id)
	if err != nil {
		return err
	}
	coll, err := s.manager.Acquire(ctx)
	if err != nil {
		return err
	}

	res, err := coll.DeleteOne(ctx, bson.D{{Key: "_id", Value: oid}})
	if err != nil {
		return fmt.Errorf("delete post: %w", err)
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *MongoStore) Close(ctx context.Context) error {
	return s.manager.Close(ctx)
}
