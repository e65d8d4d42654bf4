package mongo

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/99minutos/todo-sync/internal/core/domain"
	"github.com/99minutos/todo-sync/internal/core/ports"
)

const todosCollection = "todos"

type TodoRepository struct {
	col *mongo.Collection
	now func() time.Time
}

func NewTodoRepository(db *mongo.Database) *TodoRepository {
	return &TodoRepository{
		col: db.Collection(todosCollection),
		now: func() time.Time { return time.Now().UTC() },
	}
}

type todoDocument struct {
	ID        primitive.ObjectID `bson:"_id,omitempty"`
	Title     string             `bson:"title"`
	Completed bool               `bson:"completed"`
	OwnerID   string             `bson:"owner_id"`
	CreatedAt time.Time          `bson:"created_at"`
	UpdatedAt time.Time          `bson:"updated_at"`
}

func (d *todoDocument) toDomain() *domain.Todo {
	return &domain.Todo{
		ID:        d.ID.Hex(),
		Title:     d.Title,
		Completed: d.Completed,
		OwnerID:   d.OwnerID,
		CreatedAt: d.CreatedAt.UTC(),
		UpdatedAt: d.UpdatedAt.UTC(),
	}
}

// ownedFilter builds the (id, owner) filter every id-based operation uses.
// ok is false when id is not a valid ObjectID, which callers report as not found.
func ownedFilter(id, ownerID string) (bson.M, bool) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, false
	}
	return bson.M{"_id": oid, "owner_id": ownerID}, true
}

// Create inserts a new todo document.
func (r *TodoRepository) Create(ctx context.Context, todo *domain.Todo) (*domain.Todo, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	doc := todoDocument{
		Title:     todo.Title,
		Completed: todo.Completed,
		OwnerID:   todo.OwnerID,
		CreatedAt: todo.CreatedAt,
		UpdatedAt: todo.UpdatedAt,
	}

	res, err := r.col.InsertOne(ctx, doc)
	if err != nil {
		return nil, domain.StoreFailure("insert todo", err)
	}
	if id, ok := res.InsertedID.(primitive.ObjectID); ok {
		doc.ID = id
	}
	return doc.toDomain(), nil
}

// ListByOwner returns the owner's todos, newest first.
func (r *TodoRepository) ListByOwner(ctx context.Context, ownerID string) ([]*domain.Todo, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}})
	cursor, err := r.col.Find(ctx, bson.M{"owner_id": ownerID}, opts)
	if err != nil {
		return nil, domain.StoreFailure("list todos", err)
	}

	var docs []todoDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, domain.StoreFailure("decode todos", err)
	}

	todos := make([]*domain.Todo, 0, len(docs))
	for i := range docs {
		todos = append(todos, docs[i].toDomain())
	}
	return todos, nil
}

func (r *TodoRepository) FindByID(ctx context.Context, id, ownerID string) (*domain.Todo, error) {
	filter, ok := ownedFilter(id, ownerID)
	if !ok {
		return nil, nil
	}

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var doc todoDocument
	if err := r.col.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, domain.StoreFailure("find todo", err)
	}
	return doc.toDomain(), nil
}

// Update applies patch atomically to the todo matching (id, owner).
func (r *TodoRepository) Update(ctx context.Context, id, ownerID string, patch ports.TodoPatch) (*domain.Todo, error) {
	filter, ok := ownedFilter(id, ownerID)
	if !ok {
		return nil, nil
	}

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	set := bson.M{"updated_at": r.now()}
	if patch.Title != nil {
		set["title"] = *patch.Title
	}
	if patch.Completed != nil {
		set["completed"] = *patch.Completed
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var doc todoDocument
	if err := r.col.FindOneAndUpdate(ctx, filter, bson.M{"$set": set}, opts).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, domain.StoreFailure("update todo", err)
	}
	return doc.toDomain(), nil
}

// Delete removes the todo matching (id, owner) and returns it.
func (r *TodoRepository) Delete(ctx context.Context, id, ownerID string) (*domain.Todo, error) {
	filter, ok := ownedFilter(id, ownerID)
	if !ok {
		return nil, nil
	}

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var doc todoDocument
	if err := r.col.FindOneAndDelete(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, domain.StoreFailure("delete todo", err)
	}
	return doc.toDomain(), nil
}

// EnsureIndexes creates the index backing the per-owner listing.
func (r *TodoRepository) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	indexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "owner_id", Value: 1}, {Key: "created_at", Value: -1}}},
	}

	_, err := r.col.Indexes().CreateMany(ctx, indexes)
	return err
}
