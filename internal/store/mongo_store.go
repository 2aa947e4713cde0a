package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/kittclouds/novelkit/pkg/apperr"
)

// MongoConfig holds connection settings for the remote document backend.
type MongoConfig struct {
	URI      string
	Database string
	Timeout  time.Duration
}

// MongoStore is the remote document backend. Documents use the entity id as
// _id; characters, chapters and plots are indexed on novel_id.
type MongoStore struct {
	client *mongo.Client
	db     *mongo.Database
	owned  bool
}

// NewMongoStore connects, pings and ensures indexes.
func NewMongoStore(ctx context.Context, cfg MongoConfig) (*MongoStore, error) {
	if cfg.URI == "" {
		return nil, apperr.BackendUnavailable("remote-document", errors.New("no mongo uri configured"))
	}
	if cfg.Database == "" {
		cfg.Database = "novelkit"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}

	connectCtx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(cfg.URI).SetTimeout(cfg.Timeout))
	if err != nil {
		return nil, apperr.BackendUnavailable("remote-document", err)
	}
	if err := client.Ping(connectCtx, nil); err != nil {
		client.Disconnect(context.Background())
		return nil, apperr.BackendUnavailable("remote-document", fmt.Errorf("ping: %w", err))
	}

	s := NewMongoStoreFromDatabase(client.Database(cfg.Database))
	s.client = client
	s.owned = true
	if err := s.EnsureIndexes(connectCtx); err != nil {
		s.Close()
		return nil, apperr.BackendUnavailable("remote-document", err)
	}
	return s, nil
}

// NewMongoStoreFromDatabase wraps an existing database handle. Close does not
// disconnect the client.
func NewMongoStoreFromDatabase(db *mongo.Database) *MongoStore {
	return &MongoStore{client: db.Client(), db: db}
}

// EnsureIndexes creates the novel_id indexes. Existing indexes are kept.
func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	byNovel := func(name string) mongo.IndexModel {
		return mongo.IndexModel{
			Keys:    bson.D{{Key: "novel_id", Value: 1}},
			Options: options.Index().SetName(name),
		}
	}
	indexes := map[string][]mongo.IndexModel{
		KeyCharacters: {byNovel("idx_novel_id")},
		KeyPlots:      {byNovel("idx_novel_id")},
		KeyChapters: {
			byNovel("idx_novel_id"),
			{
				// not unique: a reorder rewrites orders one row at a time
				Keys:    bson.D{{Key: "novel_id", Value: 1}, {Key: "order", Value: 1}},
				Options: options.Index().SetName("idx_novel_order"),
			},
		},
	}
	for coll, models := range indexes {
		if _, err := s.db.Collection(coll).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("ensure indexes on %s: %w", coll, err)
		}
	}
	return nil
}

func (s *MongoStore) Name() string { return string(ModeRemoteDocument) }

func (s *MongoStore) Close() error {
	if !s.owned || s.client == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

func (s *MongoStore) novels() *mongo.Collection     { return s.db.Collection(KeyNovels) }
func (s *MongoStore) characters() *mongo.Collection { return s.db.Collection(KeyCharacters) }
func (s *MongoStore) chapters() *mongo.Collection   { return s.db.Collection(KeyChapters) }
func (s *MongoStore) plots() *mongo.Collection      { return s.db.Collection(KeyPlots) }

func findAll[T any](ctx context.Context, coll *mongo.Collection, filter bson.D, opts ...*options.FindOptions) ([]T, error) {
	cur, err := coll.Find(ctx, filter, opts...)
	if err != nil {
		return nil, apperr.TransactionFailed("find "+coll.Name(), err)
	}
	out := make([]T, 0)
	if err := cur.All(ctx, &out); err != nil {
		return nil, apperr.TransactionFailed("decode "+coll.Name(), err)
	}
	return out, nil
}

func findOne[T any](ctx context.Context, coll *mongo.Collection, kind, id string) (T, error) {
	var out T
	err := coll.FindOne(ctx, bson.D{{Key: "_id", Value: id}}).Decode(&out)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return out, apperr.NotFound(kind, id)
	}
	if err != nil {
		return out, apperr.TransactionFailed("find "+kind, err)
	}
	return out, nil
}

func replaceOne(ctx context.Context, coll *mongo.Collection, id string, doc any) error {
	_, err := coll.ReplaceOne(ctx, bson.D{{Key: "_id", Value: id}}, doc, options.Replace().SetUpsert(true))
	if err != nil {
		return apperr.TransactionFailed("replace "+coll.Name(), err)
	}
	return nil
}

// updateOne reads the document, applies fn and writes it back.
func updateOne[T any](ctx context.Context, coll *mongo.Collection, kind, id string, fn func(*T)) (T, error) {
	doc, err := findOne[T](ctx, coll, kind, id)
	if err != nil {
		return doc, err
	}
	fn(&doc)
	return doc, replaceOne(ctx, coll, id, doc)
}

func deleteOne(ctx context.Context, coll *mongo.Collection, kind, id string) error {
	res, err := coll.DeleteOne(ctx, bson.D{{Key: "_id", Value: id}})
	if err != nil {
		return apperr.TransactionFailed("delete "+kind, err)
	}
	if res.DeletedCount == 0 {
		return apperr.NotFound(kind, id)
	}
	return nil
}

func insertAll[T any](ctx context.Context, coll *mongo.Collection, items []T) error {
	if len(items) == 0 {
		return nil
	}
	docs := make([]any, len(items))
	for i := range items {
		docs[i] = items[i]
	}
	if _, err := coll.InsertMany(ctx, docs); err != nil {
		return apperr.TransactionFailed("insert "+coll.Name(), err)
	}
	return nil
}

func byNovel(novelID string) bson.D {
	if novelID == "" {
		return bson.D{}
	}
	return bson.D{{Key: "novel_id", Value: novelID}}
}

// =============================================================================
// Novels
// =============================================================================

func (s *MongoStore) Novels(ctx context.Context) ([]Novel, error) {
	return findAll[Novel](ctx, s.novels(), bson.D{})
}

func (s *MongoStore) Novel(ctx context.Context, id string) (Novel, error) {
	return findOne[Novel](ctx, s.novels(), "novel", id)
}

func (s *MongoStore) SaveNovels(ctx context.Context, novels []Novel) error {
	if _, err := s.novels().DeleteMany(ctx, bson.D{}); err != nil {
		return apperr.TransactionFailed("clear novels", err)
	}
	return insertAll(ctx, s.novels(), novels)
}

func (s *MongoStore) PutNovel(ctx context.Context, n Novel) error {
	return replaceOne(ctx, s.novels(), n.ID, n)
}

func (s *MongoStore) UpdateNovel(ctx context.Context, id string, apply func(*Novel)) (Novel, error) {
	return updateOne(ctx, s.novels(), "novel", id, func(n *Novel) {
		apply(n)
		n.ID = id
	})
}

// DeleteNovel removes dependents first so a failure never leaves orphans
// behind a deleted novel.
func (s *MongoStore) DeleteNovel(ctx context.Context, id string) error {
	if _, err := s.Novel(ctx, id); err != nil {
		return err
	}
	for _, coll := range []*mongo.Collection{s.characters(), s.chapters(), s.plots()} {
		if _, err := coll.DeleteMany(ctx, byNovel(id)); err != nil {
			return apperr.TransactionFailed("cascade "+coll.Name(), err)
		}
	}
	return deleteOne(ctx, s.novels(), "novel", id)
}

// =============================================================================
// Characters
// =============================================================================

func (s *MongoStore) Characters(ctx context.Context, novelID string) ([]Character, error) {
	return findAll[Character](ctx, s.characters(), byNovel(novelID))
}

func (s *MongoStore) PutCharacter(ctx context.Context, c Character) error {
	return replaceOne(ctx, s.characters(), c.ID, c)
}

func (s *MongoStore) UpdateCharacter(ctx context.Context, id string, apply func(*Character)) (Character, error) {
	return updateOne(ctx, s.characters(), "character", id, func(c *Character) {
		apply(c)
		c.ID = id
	})
}

func (s *MongoStore) DeleteCharacter(ctx context.Context, id string) error {
	return deleteOne(ctx, s.characters(), "character", id)
}

// =============================================================================
// Chapters
// =============================================================================

func (s *MongoStore) Chapters(ctx context.Context, novelID string) ([]Chapter, error) {
	if novelID == "" {
		return findAll[Chapter](ctx, s.chapters(), bson.D{})
	}
	sort := options.Find().SetSort(bson.D{{Key: "order", Value: 1}, {Key: "_id", Value: 1}})
	return findAll[Chapter](ctx, s.chapters(), byNovel(novelID), sort)
}

func (s *MongoStore) Chapter(ctx context.Context, id string) (Chapter, error) {
	return findOne[Chapter](ctx, s.chapters(), "chapter", id)
}

// SaveChapters upserts the supplied rows in one unordered bulk write.
func (s *MongoStore) SaveChapters(ctx context.Context, chapters []Chapter) error {
	if len(chapters) == 0 {
		return nil
	}
	models := make([]mongo.WriteModel, len(chapters))
	for i, c := range chapters {
		models[i] = mongo.NewReplaceOneModel().
			SetFilter(bson.D{{Key: "_id", Value: c.ID}}).
			SetReplacement(c).
			SetUpsert(true)
	}
	if _, err := s.chapters().BulkWrite(ctx, models, options.BulkWrite().SetOrdered(false)); err != nil {
		return apperr.TransactionFailed("save chapters", err)
	}
	return nil
}

// SetChapterOrders sets only the order field, leaving the rest of each
// document untouched.
func (s *MongoStore) SetChapterOrders(ctx context.Context, orders map[string]int) error {
	if len(orders) == 0 {
		return nil
	}
	models := make([]mongo.WriteModel, 0, len(orders))
	for id, o := range orders {
		models = append(models, mongo.NewUpdateOneModel().
			SetFilter(bson.D{{Key: "_id", Value: id}}).
			SetUpdate(bson.D{{Key: "$set", Value: bson.D{{Key: "order", Value: o}}}}))
	}
	if _, err := s.chapters().BulkWrite(ctx, models, options.BulkWrite().SetOrdered(false)); err != nil {
		return apperr.TransactionFailed("set chapter orders", err)
	}
	return nil
}

func (s *MongoStore) UpdateChapter(ctx context.Context, id string, apply func(*Chapter)) (Chapter, error) {
	return updateOne(ctx, s.chapters(), "chapter", id, func(c *Chapter) {
		apply(c)
		c.ID = id
	})
}

func (s *MongoStore) DeleteChapter(ctx context.Context, id string) error {
	return deleteOne(ctx, s.chapters(), "chapter", id)
}

// =============================================================================
// Plots
// =============================================================================

func (s *MongoStore) Plots(ctx context.Context, novelID string) ([]Plot, error) {
	return findAll[Plot](ctx, s.plots(), byNovel(novelID))
}

func (s *MongoStore) PutPlot(ctx context.Context, p Plot) error {
	return replaceOne(ctx, s.plots(), p.ID, p)
}

func (s *MongoStore) UpdatePlot(ctx context.Context, id string, apply func(*Plot)) (Plot, error) {
	return updateOne(ctx, s.plots(), "plot", id, func(p *Plot) {
		apply(p)
		p.ID = id
	})
}

func (s *MongoStore) DeletePlot(ctx context.Context, id string) error {
	return deleteOne(ctx, s.plots(), "plot", id)
}

// =============================================================================
// Graph
// =============================================================================

// Replace clears every collection and inserts g. Without a replica set there
// is no multi-document transaction, so a failure part way leaves the backend
// partially restored.
func (s *MongoStore) Replace(ctx context.Context, g Graph) error {
	for _, coll := range []*mongo.Collection{s.plots(), s.chapters(), s.characters(), s.novels()} {
		if _, err := coll.DeleteMany(ctx, bson.D{}); err != nil {
			return apperr.TransactionFailed("clear "+coll.Name(), err)
		}
	}
	if err := insertAll(ctx, s.novels(), g.Novels); err != nil {
		return err
	}
	if err := insertAll(ctx, s.characters(), g.Characters); err != nil {
		return err
	}
	if err := insertAll(ctx, s.chapters(), g.Chapters); err != nil {
		return err
	}
	return insertAll(ctx, s.plots(), g.Plots)
}

var _ Backend = (*MongoStore)(nil)
