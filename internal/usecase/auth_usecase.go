package usecase

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"kairaba-backend/internal/domain"
	"kairaba-backend/pkg/logger"
	"kairaba-backend/pkg/utils"

	"github.com/goccy/go-json"
)

type AuthUsecase struct {
	userRepo           domain.UserRepository
	clientID           string
	clientSecret       string
	accessTokenExpiry  time.Duration
	refreshTokenExpiry time.Duration
	httpClient         *http.Client
}

func NewAuthUsecase(userRepo domain.UserRepository, clientID, clientSecret string, atExpiry, rtExpiry time.Duration) *AuthUsecase {
	return &AuthUsecase{
		userRepo:           userRepo,
		clientID:           clientID,
		clientSecret:       clientSecret,
		accessTokenExpiry:  atExpiry,
		refreshTokenExpiry: rtExpiry,
		httpClient:         &http.Client{Timeout: 10 * time.Second},
	}
}

type googleUser struct {
	Sub        string `json:"sub"`
	Email      string `json:"email"`
	Name       string `json:"name"`
	GivenName  string `json:"given_name"`
	FamilyName string `json:"family_name"`
	Picture    string `json:"picture"`
}

type googleTokens struct {
	AccessToken string `json:"access_token"`
	IDToken     string `json:"id_token"`
	ExpiresIn   int    `json:"expires_in"`
}

// AuthenticateGoogle exchanges an auth code for Google tokens, upserts the
// user, and returns a JWT access token plus a stored refresh token.
func (u *AuthUsecase) AuthenticateGoogle(ctx context.Context, code, device string) (string, string, *domain.User, error) {
	tokens, err := u.exchangeCodeForToken(ctx, code)
	if err != nil {
		return "", "", nil, fmt.Errorf("google code exchange failed: %w", err)
	}

	info, err := u.fetchGoogleUserInfo(ctx, tokens.AccessToken)
	if err != nil {
		return "", "", nil, fmt.Errorf("fetch google user info: %w", err)
	}

	user, err := u.userRepo.GetByEmail(ctx, info.Email)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		user = &domain.User{
			ID:        utils.GenerateUUID(),
			Email:     info.Email,
			FirstName: info.GivenName,
			LastName:  info.FamilyName,
			Avatar:    info.Picture,
			Role:      "customer",
		}
		if err := u.userRepo.Create(ctx, user); err != nil {
			return "", "", nil, err
		}
		logger.WithContext(ctx).Info().Str("user_id", user.ID).Msg("New user registered")
	case err != nil:
		return "", "", nil, err
	default:
		// Sync profile fields from Google; role is never overwritten.
		user.FirstName = info.GivenName
		user.LastName = info.FamilyName
		user.Avatar = info.Picture
		if err := u.userRepo.Update(ctx, user); err != nil {
			logger.WithContext(ctx).Warn().Err(err).Str("user_id", user.ID).Msg("Profile sync failed")
		}
	}

	accessToken, err := utils.GenerateJWT(user.ID, user.Email, user.Role, u.accessTokenExpiry)
	if err != nil {
		return "", "", nil, err
	}

	refreshToken := &domain.RefreshToken{
		Token:     utils.GenerateUUID(),
		UserID:    user.ID,
		ExpiresAt: time.Now().Add(u.refreshTokenExpiry),
		Device:    device,
	}
	if err := u.userRepo.SaveRefreshToken(ctx, refreshToken); err != nil {
		return "", "", nil, err
	}

	return accessToken, refreshToken.Token, user, nil
}

func (u *AuthUsecase) RefreshAccessToken(ctx context.Context, refreshToken string) (string, error) {
	rt, err := u.userRepo.GetRefreshToken(ctx, refreshToken)
	if err != nil {
		return "", fmt.Errorf("invalid refresh token")
	}
	if rt.Revoked {
		return "", fmt.Errorf("token revoked")
	}
	if time.Now().After(rt.ExpiresAt) {
		return "", fmt.Errorf("token expired")
	}

	user, err := u.userRepo.GetByID(ctx, rt.UserID)
	if err != nil {
		return "", err
	}
	return utils.GenerateJWT(user.ID, user.Email, user.Role, u.accessTokenExpiry)
}

func (u *AuthUsecase) RevokeToken(ctx context.Context, refreshToken string) error {
	return u.userRepo.RevokeRefreshToken(ctx, refreshToken)
}

// --- Profile / addresses ---

func (u *AuthUsecase) GetUserByID(ctx context.Context, id string) (*domain.User, error) {
	return u.userRepo.GetByID(ctx, id)
}

func (u *AuthUsecase) GetAllUsers(ctx context.Context, limit, offset int) ([]*domain.User, int64, error) {
	return u.userRepo.GetAll(ctx, limit, offset)
}

func (u *AuthUsecase) UpdateProfile(ctx context.Context, userID, firstName, lastName, phone string) (*domain.User, error) {
	user, err := u.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	user.FirstName = firstName
	user.LastName = lastName
	user.Phone = phone
	if err := u.userRepo.Update(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

func (u *AuthUsecase) AddAddress(ctx context.Context, userID string, addr domain.Address) (*domain.Address, error) {
	addr.UserID = userID
	addr.ID = utils.GenerateUUID()
	addr.Country = strings.ToUpper(strings.TrimSpace(addr.Country))
	if addr.Country == "" {
		return nil, domain.NewValidationError(domain.FieldDestination, "country is required")
	}
	if err := u.userRepo.AddAddress(ctx, &addr); err != nil {
		return nil, err
	}
	return &addr, nil
}

func (u *AuthUsecase) UpdateAddress(ctx context.Context, userID string, addr domain.Address) (*domain.Address, error) {
	addr.UserID = userID
	if addr.ID == "" {
		return nil, fmt.Errorf("address id required")
	}
	addr.Country = strings.ToUpper(strings.TrimSpace(addr.Country))
	// Ownership is enforced by the repository's WHERE user_id clause.
	if err := u.userRepo.UpdateAddress(ctx, &addr); err != nil {
		return nil, err
	}
	return &addr, nil
}

func (u *AuthUsecase) GetAddresses(ctx context.Context, userID string) ([]domain.Address, error) {
	return u.userRepo.GetAddresses(ctx, userID)
}

func (u *AuthUsecase) DeleteAddress(ctx context.Context, id, userID string) error {
	return u.userRepo.DeleteAddress(ctx, id, userID)
}

// --- Google endpoints ---

func (u *AuthUsecase) exchangeCodeForToken(ctx context.Context, code string) (*googleTokens, error) {
	data := url.Values{}
	data.Set("code", code)
	data.Set("client_id", u.clientID)
	data.Set("client_secret", u.clientSecret)
	data.Set("redirect_uri", "postmessage") // auth-code flow from the SPA
	data.Set("grant_type", "authorization_code")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		"https://oauth2.googleapis.com/token", strings.NewReader(data.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := u.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("google token endpoint returned status %d", resp.StatusCode)
	}

	var tokens googleTokens
	if err := json.NewDecoder(resp.Body).Decode(&tokens); err != nil {
		return nil, err
	}
	return &tokens, nil
}

func (u *AuthUsecase) fetchGoogleUserInfo(ctx context.Context, accessToken string) (*googleUser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		"https://www.googleapis.com/oauth2/v3/userinfo", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := u.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("google userinfo returned status %d", resp.StatusCode)
	}

	var info googleUser
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, err
	}
	return &info, nil
}
