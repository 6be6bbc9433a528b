package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/crypto/bcrypt"

	"github.com/councilworks/grantscout/internal/models"
)

var (
	ErrUserExists   = errors.New("user already exists")
	ErrInvalidCreds = errors.New("invalid credentials")

	jwtSecretOnce    sync.Once
	jwtSecretRuntime []byte
	jwtSecretErr     error
)

func jwtSecretFromEnv() ([]byte, error) {
	jwtSecretOnce.Do(func() {
		secret := strings.TrimSpace(os.Getenv("JWT_SECRET"))
		if secret != "" {
			jwtSecretRuntime = []byte(secret)
			return
		}

		buf := make([]byte, 48)
		if _, err := rand.Read(buf); err != nil {
			jwtSecretErr = fmt.Errorf("failed to generate JWT fallback secret: %w", err)
			return
		}

		jwtSecretRuntime = []byte(base64.RawURLEncoding.EncodeToString(buf))
		log.Print("JWT_SECRET is not set; using ephemeral in-memory fallback secret")
	})

	if jwtSecretErr != nil {
		return nil, jwtSecretErr
	}
	if len(jwtSecretRuntime) == 0 {
		return nil, errors.New("JWT secret unavailable")
	}

	return jwtSecretRuntime, nil
}

// Service handles accounts and saved grants. It is Postgres-only;
// deployments on the file store run without accounts.
type Service struct {
	db *pgxpool.Pool
}

func NewService(db *pgxpool.Pool) *Service {
	return &Service{db: db}
}

func (s *Service) Signup(ctx context.Context, req SignupRequest) (*AuthResponse, error) {
	var exists bool
	err := s.db.QueryRow(ctx, "SELECT EXISTS(SELECT 1 FROM users WHERE email = $1)", req.Email).Scan(&exists)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, ErrUserExists
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hashing failed: %w", err)
	}

	user := User{
		ID:       uuid.New(),
		Email:    req.Email,
		TenantID: req.TenantID,
	}
	err = s.db.QueryRow(ctx, `
		INSERT INTO users (id, email, password_hash, tenant_id)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at
	`, user.ID.String(), user.Email, string(hash), user.TenantID).Scan(&user.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert failed: %w", err)
	}

	token, err := generateToken(user.ID)
	if err != nil {
		return nil, err
	}

	return &AuthResponse{Token: token, User: user}, nil
}

func (s *Service) Login(ctx context.Context, req LoginRequest) (*AuthResponse, error) {
	var user User
	var id string
	err := s.db.QueryRow(ctx,
		"SELECT id, email, password_hash, tenant_id, created_at FROM users WHERE email = $1", req.Email).Scan(
		&id, &user.Email, &user.PasswordHash, &user.TenantID, &user.CreatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, ErrInvalidCreds
	}
	if err != nil {
		return nil, err
	}
	user.ID, err = uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("corrupt user id: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, ErrInvalidCreds
	}

	token, err := generateToken(user.ID)
	if err != nil {
		return nil, err
	}

	user.PasswordHash = ""
	return &AuthResponse{Token: token, User: user}, nil
}

// TenantFor returns the tenant the user belongs to.
func (s *Service) TenantFor(ctx context.Context, userID uuid.UUID) (string, error) {
	var tenant string
	err := s.db.QueryRow(ctx, "SELECT tenant_id FROM users WHERE id = $1", userID.String()).Scan(&tenant)
	if err != nil {
		return "", fmt.Errorf("lookup user tenant: %w", err)
	}
	return tenant, nil
}

func generateToken(userID uuid.UUID) (string, error) {
	secretKey, err := jwtSecretFromEnv()
	if err != nil {
		return "", err
	}

	claims := jwt.MapClaims{
		"sub": userID.String(),
		"iat": time.Now().Unix(),
		"exp": time.Now().Add(24 * time.Hour).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(secretKey)
}

// VerifyToken checks a bearer token issued by generateToken and returns
// the user id it carries.
func (s *Service) VerifyToken(tokenString string) (uuid.UUID, error) {
	secretKey, err := jwtSecretFromEnv()
	if err != nil {
		return uuid.Nil, err
	}

	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return secretKey, nil
	})
	if err != nil || !token.Valid {
		return uuid.Nil, errors.New("invalid or expired token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return uuid.Nil, errors.New("invalid token claims")
	}
	sub, err := claims.GetSubject()
	if err != nil {
		return uuid.Nil, errors.New("invalid token subject")
	}
	userID, err := uuid.Parse(sub)
	if err != nil {
		return uuid.Nil, errors.New("invalid user id in token")
	}
	return userID, nil
}

// Saved grants

func (s *Service) SaveGrant(ctx context.Context, userID uuid.UUID, grantID string) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO saved_grants (user_id, grant_id)
		VALUES ($1, $2)
		ON CONFLICT (user_id, grant_id) DO NOTHING
	`, userID.String(), grantID)
	return err
}

func (s *Service) UnsaveGrant(ctx context.Context, userID uuid.UUID, grantID string) error {
	_, err := s.db.Exec(ctx, `
		DELETE FROM saved_grants
		WHERE user_id = $1 AND grant_id = $2
	`, userID.String(), grantID)
	return err
}

func (s *Service) SavedGrants(ctx context.Context, userID uuid.UUID) ([]models.GrantRecord, error) {
	rows, err := s.db.Query(ctx, `
		SELECT g.id, g.tenant_id, g.title, g.description, g.amount, g.deadline,
		       g.link, g.source, g.created_at, g.summary
		FROM grants g
		JOIN saved_grants sg ON g.id = sg.grant_id
		WHERE sg.user_id = $1
		ORDER BY sg.saved_at DESC
	`, userID.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.GrantRecord
	for rows.Next() {
		var rec models.GrantRecord
		if err := rows.Scan(&rec.ID, &rec.TenantID, &rec.Title, &rec.Description, &rec.Amount,
			&rec.Deadline, &rec.Link, &rec.Source, &rec.CreatedAt, &rec.Summary); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
