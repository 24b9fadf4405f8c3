package types

// RegisterRequest represents the request body for user registration
type RegisterRequest struct {
	Email     string `json:"email" binding:"required,email,max=254"`
	Username  string `json:"username" binding:"required,max=150"`
	FirstName string `json:"first_name" binding:"required,max=150"`
	LastName  string `json:"last_name" binding:"required,max=150"`
	Password  string `json:"password" binding:"required,max=150"`
}

// LoginRequest represents the request body for obtaining a token
type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type SetPasswordRequest struct {
	NewPassword     string `json:"new_password" binding:"required"`
	CurrentPassword string `json:"current_password" binding:"required"`
}

// RecipeIngredientInput is one {id, amount} item of a recipe write.
// Amount is a pointer so a missing amount can be told apart from zero.
type RecipeIngredientInput struct {
	ID     uint `json:"id"`
	Amount *int `json:"amount"`
}

// ImageFile is an uploaded image before it is validated and stored.
type ImageFile struct {
	Data        []byte
	ContentType string
}

// RecipeWriteRequest is the body of recipe create and update. Image holds a
// base64 data URL; multipart uploads arrive in ImageFile instead.
type RecipeWriteRequest struct {
	Ingredients []RecipeIngredientInput `json:"ingredients"`
	Tags        []uint                  `json:"tags"`
	Image       string                  `json:"image"`
	Name        string                  `json:"name"`
	Text        string                  `json:"text"`
	CookingTime *int                    `json:"cooking_time"`
	ImageFile   *ImageFile              `json:"-"`
}

// HasImage reports whether the request carries an image in either form.
func (r *RecipeWriteRequest) HasImage() bool {
	return r.Image != "" || (r.ImageFile != nil && len(r.ImageFile.Data) > 0)
}
