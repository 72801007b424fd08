package services

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"
	"unicode/utf8"

	"blogify/internal/logger"
	"blogify/internal/models"
	"blogify/internal/repository"
	"blogify/internal/utils"

	"go.uber.org/zap"
)

const minPasswordLen = 6

var ErrInvalidCredentials = errors.New("invalid email or password")

type UserRepo interface {
	Create(ctx context.Context, user *models.User) error
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByID(ctx context.Context, id string) (*models.User, error)
}

type AuthService struct {
	repo      UserRepo
	jwtSecret string
	tokenTTL  time.Duration
	now       func() time.Time
}

func NewAuthService(repo UserRepo, jwtSecret string, tokenTTL time.Duration) *AuthService {
	return &AuthService{repo: repo, jwtSecret: jwtSecret, tokenTTL: tokenTTL, now: time.Now}
}

func (s *AuthService) Signup(ctx context.Context, req models.SignupRequest) (*models.Session, error) {
	log := logger.WithCtx(ctx)
	log.Info("Регистрация пользователя (service)", zap.String("email", req.Email))

	name := strings.TrimSpace(req.Name)
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrValidation)
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, fmt.Errorf("%w: invalid email", ErrValidation)
	}
	if utf8.RuneCountInString(req.Password) < minPasswordLen {
		return nil, fmt.Errorf("%w: password must be at least %d characters", ErrValidation, minPasswordLen)
	}

	hashed, err := utils.HashPassword(req.Password)
	if err != nil {
		log.Error("Ошибка хеширования пароля", zap.Error(err))
		return nil, err
	}

	user := &models.User{Name: name, Email: email, PasswordHash: hashed, Role: repository.DefaultRole}
	if err := s.repo.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicateAccount) {
			log.Warn("Email уже зарегистрирован", zap.String("email", email))
		} else {
			log.Error("Ошибка создания пользователя", zap.Error(err))
		}
		return nil, err
	}

	log.Info("Пользователь зарегистрирован (service)", zap.String("user_id", user.ID))
	return s.session(user)
}

func (s *AuthService) Login(ctx context.Context, req models.LoginRequest) (*models.Session, error) {
	log := logger.WithCtx(ctx)
	log.Info("Попытка входа (service)", zap.String("email", req.Email))

	user, err := s.repo.GetByEmail(ctx, req.Email)
	if err != nil {
		log.Error("Ошибка поиска пользователя", zap.Error(err))
		return nil, err
	}
	if user == nil {
		log.Warn("Пользователь не найден (service)", zap.String("email", req.Email))
		return nil, ErrInvalidCredentials
	}
	if !utils.CheckPasswordHash(req.Password, user.PasswordHash) {
		log.Warn("Неверный пароль (service)", zap.String("email", req.Email))
		return nil, ErrInvalidCredentials
	}

	log.Info("Вход выполнен (service)", zap.String("user_id", user.ID))
	return s.session(user)
}

func (s *AuthService) ParseToken(token string) (models.Actor, error) {
	claims, err := utils.ParseToken(s.jwtSecret, token)
	if err != nil {
		return models.Actor{}, err
	}
	return models.Actor{UserID: claims.UserID, Role: claims.Role}, nil
}

func (s *AuthService) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		logger.WithCtx(ctx).Warn("Ошибка получения пользователя по ID (service)", zap.String("user_id", id), zap.Error(err))
		return nil, err
	}
	if user == nil {
		return nil, fmt.Errorf("user %s: %w", id, repository.ErrNotFound)
	}
	return user, nil
}

func (s *AuthService) session(user *models.User) (*models.Session, error) {
	token, err := utils.GenerateToken(s.jwtSecret, user.ID, user.Role, s.tokenTTL, s.now())
	if err != nil {
		logger.Log.Error("Ошибка генерации access-токена", zap.Error(err))
		return nil, err
	}
	return &models.Session{User: user.Profile(), Token: token}, nil
}
