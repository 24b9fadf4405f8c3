package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/pageza/foodgram/backend/internal/models"
	"github.com/pageza/foodgram/backend/internal/storage"
	"github.com/pageza/foodgram/backend/internal/types"
)

var usernamePattern = regexp.MustCompile(`^[\w.@+-]+$`)

const minPasswordLength = 8

// UserService handles accounts and follow edges.
type UserService struct {
	db    *gorm.DB
	store storage.Store
}

func NewUserService(db *gorm.DB, store storage.Store) *UserService {
	return &UserService{db: db, store: store}
}

func validatePassword(v *ValidationError, field, password string) {
	if len([]rune(password)) < minPasswordLength {
		v.Addf(field, "This password is too short. It must contain at least %d characters.", minPasswordLength)
	}
	allDigits := password != ""
	for _, r := range password {
		if !unicode.IsDigit(r) {
			allDigits = false
			break
		}
	}
	if allDigits {
		v.Add(field, "This password is entirely numeric.")
	}
}

// Register creates an account. Duplicate email or username is a
// ValidationError keyed by that field.
func (s *UserService) Register(ctx context.Context, req *types.RegisterRequest) (*types.RegisterResponse, error) {
	v := &ValidationError{}
	email := strings.TrimSpace(req.Email)
	username := strings.TrimSpace(req.Username)

	if !usernamePattern.MatchString(username) {
		v.Add("username", "Enter a valid username. This value may contain only letters, numbers, and @/./+/-/_ characters.")
	}
	validatePassword(v, "password", req.Password)

	db := s.db.WithContext(ctx)
	var count int64
	if err := db.Model(&models.User{}).Where("LOWER(email) = ?", strings.ToLower(email)).Count(&count).Error; err != nil {
		return nil, fmt.Errorf("failed to check email: %w", err)
	}
	if count > 0 {
		v.Add("email", "A user with that email already exists.")
	}
	if err := db.Model(&models.User{}).Where("username = ?", username).Count(&count).Error; err != nil {
		return nil, fmt.Errorf("failed to check username: %w", err)
	}
	if count > 0 {
		v.Add("username", "A user with that username already exists.")
	}
	if err := v.Err(); err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := models.User{
		Email:        email,
		Username:     username,
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		PasswordHash: string(hash),
	}
	if err := db.Create(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, NewValidationError("username", "A user with that email or username already exists.")
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	return &types.RegisterResponse{
		ID:        user.ID,
		Email:     user.Email,
		Username:  user.Username,
		FirstName: user.FirstName,
		LastName:  user.LastName,
	}, nil
}

// followedAmong returns which of ids the requester follows.
func followedAmong(db *gorm.DB, rc RequestContext, ids []uuid.UUID) (map[uuid.UUID]bool, error) {
	result := make(map[uuid.UUID]bool)
	if !rc.Authenticated() || len(ids) == 0 {
		return result, nil
	}

	var followed []uuid.UUID
	if err := db.Model(&models.Follow{}).
		Where("user_id = ? AND following_id IN ?", rc.UserID(), ids).
		Pluck("following_id", &followed).Error; err != nil {
		return nil, fmt.Errorf("failed to load subscriptions: %w", err)
	}
	for _, id := range followed {
		result[id] = true
	}
	return result, nil
}

// List returns one page of users ordered by username.
func (s *UserService) List(ctx context.Context, rc RequestContext, page PageRequest) ([]types.UserResponse, int64, error) {
	db := s.db.WithContext(ctx)

	var count int64
	if err := db.Model(&models.User{}).Count(&count).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count users: %w", err)
	}
	if err := checkPage(page, count); err != nil {
		return nil, 0, err
	}

	var users []models.User
	if err := db.Order("username").Offset(page.Offset()).Limit(page.Limit).Find(&users).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list users: %w", err)
	}

	ids := make([]uuid.UUID, 0, len(users))
	for _, u := range users {
		ids = append(ids, u.ID)
	}
	subscribed, err := followedAmong(db, rc, ids)
	if err != nil {
		return nil, 0, err
	}

	results := make([]types.UserResponse, 0, len(users))
	for i := range users {
		results = append(results, userResponse(&users[i], subscribed[users[i].ID]))
	}
	return results, count, nil
}

func (s *UserService) find(db *gorm.DB, id uuid.UUID) (*models.User, error) {
	var user models.User
	err := db.First(&user, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	return &user, nil
}

// Get returns the profile of user id as seen by the requester.
func (s *UserService) Get(ctx context.Context, rc RequestContext, id uuid.UUID) (*types.UserResponse, error) {
	db := s.db.WithContext(ctx)
	user, err := s.find(db, id)
	if err != nil {
		return nil, err
	}

	subscribed, err := followedAmong(db, rc, []uuid.UUID{id})
	if err != nil {
		return nil, err
	}
	resp := userResponse(user, subscribed[id])
	return &resp, nil
}

// Me returns the requester's own profile.
func (s *UserService) Me(ctx context.Context, rc RequestContext) (*types.UserResponse, error) {
	if !rc.Authenticated() {
		return nil, ErrUnauthorized
	}
	resp := userResponse(rc.User, false)
	return &resp, nil
}

// SetPassword replaces the requester's password after checking the current one.
func (s *UserService) SetPassword(ctx context.Context, rc RequestContext, req *types.SetPasswordRequest) error {
	if !rc.Authenticated() {
		return ErrUnauthorized
	}

	if err := bcrypt.CompareHashAndPassword([]byte(rc.User.PasswordHash), []byte(req.CurrentPassword)); err != nil {
		return NewValidationError("current_password", "Wrong password.")
	}
	v := &ValidationError{}
	validatePassword(v, "new_password", req.NewPassword)
	if err := v.Err(); err != nil {
		return err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	if err := s.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", rc.UserID()).
		Update("password_hash", string(hash)).Error; err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}
	rc.User.PasswordHash = string(hash)
	return nil
}

// ParseRecipesLimit reads the recipes_limit query parameter. A missing value
// means no limit and is returned as -1.
func ParseRecipesLimit(rc RequestContext) (int, error) {
	raw := rc.Query.Get("recipes_limit")
	if raw == "" {
		return -1, nil
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 0 {
		return 0, NewValidationError("recipes_limit", "A non-negative integer is required.")
	}
	return limit, nil
}

// subscriptionResponses builds follow payloads for authors with one recipe
// query for the whole set.
func (s *UserService) subscriptionResponses(db *gorm.DB, authors []models.User, recipesLimit int) ([]types.SubscriptionResponse, error) {
	ids := make([]uuid.UUID, 0, len(authors))
	for _, a := range authors {
		ids = append(ids, a.ID)
	}

	byAuthor := make(map[uuid.UUID][]models.Recipe)
	if len(ids) > 0 {
		var recipes []models.Recipe
		if err := db.Select("id", "author_id", "name", "image", "cooking_time", "pub_date").
			Where("author_id IN ?", ids).
			Order("pub_date DESC, id DESC").
			Find(&recipes).Error; err != nil {
			return nil, fmt.Errorf("failed to load author recipes: %w", err)
		}
		for _, r := range recipes {
			byAuthor[r.AuthorID] = append(byAuthor[r.AuthorID], r)
		}
	}

	results := make([]types.SubscriptionResponse, 0, len(authors))
	for i := range authors {
		recipes := byAuthor[authors[i].ID]
		preview := recipes
		if recipesLimit >= 0 && len(preview) > recipesLimit {
			preview = preview[:recipesLimit]
		}

		short := make([]types.RecipeShortResponse, 0, len(preview))
		for j := range preview {
			short = append(short, shortRecipe(s.store, &preview[j]))
		}
		results = append(results, types.SubscriptionResponse{
			UserResponse: userResponse(&authors[i], true),
			Recipes:      short,
			RecipesCount: int64(len(recipes)),
		})
	}
	return results, nil
}

// Subscribe makes the requester follow author id.
func (s *UserService) Subscribe(ctx context.Context, rc RequestContext, id uuid.UUID) (*types.SubscriptionResponse, error) {
	if !rc.Authenticated() {
		return nil, ErrUnauthorized
	}
	recipesLimit, err := ParseRecipesLimit(rc)
	if err != nil {
		return nil, err
	}

	db := s.db.WithContext(ctx)
	author, err := s.find(db, id)
	if err != nil {
		return nil, err
	}
	if author.ID == rc.UserID() {
		return nil, ErrSelfFollow
	}

	follow := models.Follow{UserID: rc.UserID(), FollowingID: author.ID}
	result := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&follow)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to follow user: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, ErrAlreadyFollowing
	}

	responses, err := s.subscriptionResponses(db, []models.User{*author}, recipesLimit)
	if err != nil {
		return nil, err
	}
	return &responses[0], nil
}

// Unsubscribe removes the requester's follow edge to author id.
func (s *UserService) Unsubscribe(ctx context.Context, rc RequestContext, id uuid.UUID) error {
	if !rc.Authenticated() {
		return ErrUnauthorized
	}

	db := s.db.WithContext(ctx)
	if _, err := s.find(db, id); err != nil {
		return err
	}

	result := db.Where("user_id = ? AND following_id = ?", rc.UserID(), id).Delete(&models.Follow{})
	if result.Error != nil {
		return fmt.Errorf("failed to unfollow user: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFollowing
	}
	return nil
}

// Subscriptions returns one page of authors the requester follows, ordered
// by username.
func (s *UserService) Subscriptions(ctx context.Context, rc RequestContext, page PageRequest) ([]types.SubscriptionResponse, int64, error) {
	if !rc.Authenticated() {
		return nil, 0, ErrUnauthorized
	}
	recipesLimit, err := ParseRecipesLimit(rc)
	if err != nil {
		return nil, 0, err
	}

	db := s.db.WithContext(ctx)
	followed := db.Model(&models.Follow{}).Select("following_id").Where("user_id = ?", rc.UserID())

	var count int64
	if err := db.Model(&models.User{}).Where("id IN (?)", followed).Count(&count).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count subscriptions: %w", err)
	}
	if err := checkPage(page, count); err != nil {
		return nil, 0, err
	}

	var authors []models.User
	if err := db.Where("id IN (?)", followed).
		Order("username").
		Offset(page.Offset()).
		Limit(page.Limit).
		Find(&authors).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list subscriptions: %w", err)
	}

	results, err := s.subscriptionResponses(db, authors, recipesLimit)
	if err != nil {
		return nil, 0, err
	}
	return results, count, nil
}
