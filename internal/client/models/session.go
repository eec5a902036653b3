package models

// User is the remote account profile.
type User struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// TokenPair holds the opaque bearer credentials issued by the auth service.
// Both tokens are persisted so a restart can resume the session; the
// encryption key never is.
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}
