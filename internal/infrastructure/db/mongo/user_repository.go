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
)

const usersCollection = "users"

type UserRepository struct {
	coll *mongo.Collection
}

func NewUserRepository(db *mongo.Database) *UserRepository {
	return &UserRepository{coll: db.Collection(usersCollection)}
}

type userDocument struct {
	ID             primitive.ObjectID `bson:"_id,omitempty"`
	Email          string             `bson:"email"`
	PasswordDigest string             `bson:"password_digest"`
	Token          string             `bson:"token,omitempty"`
	LastLoginAt    time.Time          `bson:"last_login_at,omitempty"`
	CreatedAt      time.Time          `bson:"created_at"`
	UpdatedAt      time.Time          `bson:"updated_at"`
}

func (d *userDocument) toDomain() *domain.User {
	return &domain.User{
		ID:             d.ID.Hex(),
		Email:          d.Email,
		PasswordDigest: d.PasswordDigest,
		Token:          d.Token,
		LastLoginAt:    d.LastLoginAt.UTC(),
		CreatedAt:      d.CreatedAt.UTC(),
		UpdatedAt:      d.UpdatedAt.UTC(),
	}
}

func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.findOne(ctx, bson.M{"email": email}, "find user by email")
}

func (r *UserRepository) FindByToken(ctx context.Context, token string) (*domain.User, error) {
	if token == "" {
		return nil, nil
	}
	return r.findOne(ctx, bson.M{"token": token}, "find user by token")
}

func (r *UserRepository) findOne(ctx context.Context, filter bson.M, op string) (*domain.User, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var doc userDocument
	if err := r.coll.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, domain.StoreFailure(op, err)
	}
	return doc.toDomain(), nil
}

func (r *UserRepository) Create(ctx context.Context, user *domain.User) (*domain.User, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	doc := userDocument{
		Email:          user.Email,
		PasswordDigest: user.PasswordDigest,
		Token:          user.Token,
		LastLoginAt:    user.LastLoginAt,
		CreatedAt:      user.CreatedAt,
		UpdatedAt:      user.UpdatedAt,
	}

	res, err := r.coll.InsertOne(ctx, doc)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, domain.Conflict("User with this email already exists")
		}
		return nil, domain.StoreFailure("insert user", err)
	}

	if id, ok := res.InsertedID.(primitive.ObjectID); ok {
		doc.ID = id
	}
	return doc.toDomain(), nil
}

// Update overwrites the token and timestamps of an existing user and returns
// the stored document. The password digest is never touched.
func (r *UserRepository) Update(ctx context.Context, user *domain.User) (*domain.User, error) {
	oid, err := primitive.ObjectIDFromHex(user.ID)
	if err != nil {
		return nil, domain.NotFound("user not found")
	}

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	set := bson.M{"updated_at": user.UpdatedAt}
	if !user.LastLoginAt.IsZero() {
		set["last_login_at"] = user.LastLoginAt
	}
	update := bson.M{"$set": set}
	if user.Token != "" {
		set["token"] = user.Token
	} else {
		update["$unset"] = bson.M{"token": ""}
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var doc userDocument
	if err := r.coll.FindOneAndUpdate(ctx, bson.M{"_id": oid}, update, opts).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.NotFound("user not found")
		}
		return nil, domain.StoreFailure("update user", err)
	}
	return doc.toDomain(), nil
}

// EnsureIndexes enforces one user per email and one user per token.
func (r *UserRepository) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	indexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "token", Value: 1}}, Options: options.Index().SetUnique(true).SetSparse(true)},
	}

	_, err := r.coll.Indexes().CreateMany(ctx, indexes)
	return err
}
