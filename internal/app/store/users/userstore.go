package userstore

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/dalemusser/schedulehub/internal/app/system/status"
	"github.com/dalemusser/schedulehub/internal/domain/models"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"github.com/dalemusser/waffle/pantry/text"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"golang.org/x/crypto/bcrypt"
)

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("users")}
}

var (
	// ErrDuplicateLoginID is returned when the login id is already taken.
	ErrDuplicateLoginID = errors.New("a user with this login id already exists")
	// ErrBadCredentials covers unknown login ids and wrong passwords alike.
	ErrBadCredentials = errors.New("invalid login id or password")
	// ErrDisabled is returned for a correct password on a disabled account.
	ErrDisabled = errors.New("account is disabled")

	errBadRole     = errors.New(`role must be "admin"|"teacher"`)
	errBadStatus   = errors.New(`status must be "active"|"disabled"`)
	errTeacherLink = errors.New("teacher accounts must be linked to a teacher record")
	errNoPassword  = errors.New("password is required")
)

// GetByID loads a user by ObjectID.
func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	var u models.User
	if err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&u); err != nil {
		return nil, err
	}
	return &u, nil
}

// GetByIDs loads the users with the given ids, in no particular order.
func (s *Store) GetByIDs(ctx context.Context, ids []primitive.ObjectID) ([]models.User, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	cur, err := s.c.Find(ctx, bson.M{"_id": bson.M{"$in": ids}}, options.Find().SetProjection(bson.M{"password_hash": 0}))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	var out []models.User
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetByLoginID looks up a user by case-insensitive login id. Returns
// mongo.ErrNoDocuments if not found.
func (s *Store) GetByLoginID(ctx context.Context, loginID string) (*models.User, error) {
	var u models.User
	if err := s.c.FindOne(ctx, bson.M{"login_id_ci": text.Fold(strings.TrimSpace(loginID))}).Decode(&u); err != nil {
		return nil, err
	}
	return &u, nil
}

// Create validates and inserts a user, hashing password with bcrypt.
func (s *Store) Create(ctx context.Context, u models.User, password string) (models.User, error) {
	u.ID = primitive.NewObjectID()
	u.FullName = strings.TrimSpace(u.FullName)
	u.FullNameCI = text.Fold(u.FullName)
	u.LoginID = strings.TrimSpace(u.LoginID)
	u.LoginIDCI = text.Fold(u.LoginID)
	u.Status = status.Default(u.Status)

	switch u.Role {
	case models.RoleAdmin, models.RoleTeacher:
	default:
		return models.User{}, errBadRole
	}
	if !status.IsValid(u.Status) {
		return models.User{}, errBadStatus
	}
	if u.Role == models.RoleTeacher && u.TeacherID == nil {
		return models.User{}, errTeacherLink
	}
	if password == "" {
		return models.User{}, errNoPassword
	}
	hash, err := HashPassword(password)
	if err != nil {
		return models.User{}, err
	}
	u.PasswordHash = hash

	now := time.Now().UTC()
	u.CreatedAt = now
	u.UpdatedAt = now

	if _, err := s.c.InsertOne(ctx, u); err != nil {
		if wafflemongo.IsDup(err) {
			return models.User{}, ErrDuplicateLoginID
		}
		return models.User{}, err
	}
	return u, nil
}

// Authenticate checks a login id and password.
func (s *Store) Authenticate(ctx context.Context, loginID, password string) (*models.User, error) {
	u, err := s.GetByLoginID(ctx, loginID)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrBadCredentials
	}
	if err != nil {
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return nil, ErrBadCredentials
	}
	if u.Status == status.Disabled {
		return nil, ErrDisabled
	}
	return u, nil
}

// CheckPassword reports whether password matches the user's hash.
func CheckPassword(u *models.User, password string) bool {
	if u == nil || u.PasswordHash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) == nil
}

// SetPassword replaces a user's password hash.
func (s *Store) SetPassword(ctx context.Context, id primitive.ObjectID, password string) error {
	if password == "" {
		return errNoPassword
	}
	hash, err := HashPassword(password)
	if err != nil {
		return err
	}
	res, err := s.c.UpdateByID(ctx, id, bson.M{"$set": bson.M{"password_hash": hash, "updated_at": time.Now().UTC()}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return mongo.ErrNoDocuments
	}
	return nil
}

// EnsureAdmin creates an admin with loginID if no admin exists yet.
// It reports whether a user was created.
func (s *Store) EnsureAdmin(ctx context.Context, loginID, password string) (bool, error) {
	if strings.TrimSpace(loginID) == "" || password == "" {
		return false, nil
	}
	err := s.c.FindOne(ctx, bson.M{"role": models.RoleAdmin}, options.FindOne().SetProjection(bson.M{"_id": 1})).Err()
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return false, err
	}
	_, err = s.Create(ctx, models.User{FullName: "Administrator", LoginID: loginID, Role: models.RoleAdmin}, password)
	if errors.Is(err, ErrDuplicateLoginID) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Delete removes a user by ID. Returns the number of documents deleted (0 or 1).
func (s *Store) Delete(ctx context.Context, id primitive.ObjectID) (int64, error) {
	res, err := s.c.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

func (s *Store) Count(ctx context.Context, filter bson.M) (int64, error) {
	return s.c.CountDocuments(ctx, filter)
}

// HashPassword returns the bcrypt hash of a password.
func HashPassword(password string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
