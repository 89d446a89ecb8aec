package service

import (
	"context"
	"errors"
	"strings"

	"autoservice/internal/domain"
	"autoservice/internal/models"
	"autoservice/internal/security"

	"github.com/rs/zerolog"
)

type fieldRule struct {
	tag  string
	hash bool
}

var profileRules = map[models.ProfileField]fieldRule{
	models.ProfileName:     {tag: "required,min=2,max=64"},
	models.ProfileLogin:    {tag: "required,alphanum,min=3,max=32"},
	models.ProfilePassword: {tag: "required,min=6,max=72", hash: true},
	models.ProfilePhone:    {tag: "required,numeric,len=11"},
}

type UserService struct {
	repo     domain.UserRepository
	hasher   *security.Hasher
	pageSize int
	logger   *zerolog.Logger
}

func NewUserService(repo domain.UserRepository, hasher *security.Hasher, pageSize int, logger *zerolog.Logger) *UserService {
	if pageSize <= 0 {
		pageSize = models.ClientsPageSize
	}
	return &UserService{
		repo:     repo,
		hasher:   hasher,
		pageSize: pageSize,
		logger:   logger,
	}
}

func (s *UserService) Register(ctx context.Context, reg models.Registration) (*models.User, error) {
	reg.Name = strings.TrimSpace(reg.Name)
	reg.Login = strings.TrimSpace(reg.Login)
	reg.Phone = strings.TrimSpace(reg.Phone)
	if err := validateStruct(reg); err != nil {
		return nil, err
	}

	hash, err := s.hasher.Hash(reg.Password)
	if err != nil {
		return nil, err
	}

	role := reg.Role
	if role == "" {
		role = models.RoleClient
	}
	user := &models.User{
		Name:         reg.Name,
		Login:        reg.Login,
		PasswordHash: hash,
		Phone:        reg.Phone,
		Role:         role,
	}
	if err := s.repo.CreateUser(ctx, user); err != nil {
		return nil, err
	}

	s.logger.Info().Int64("user_id", user.ID).Str("login", user.Login).Str("role", string(role)).Msg("User registered")
	return user, nil
}

// Authenticate checks the credentials and binds the chat to the account.
func (s *UserService) Authenticate(ctx context.Context, login, password string, chatID int64) (*models.User, error) {
	user, err := s.repo.GetUserByLogin(ctx, strings.TrimSpace(login))
	if errors.Is(err, domain.ErrNotFound) {
		return nil, security.ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if err := s.hasher.Verify(user.PasswordHash, password); err != nil {
		s.logger.Warn().Str("login", login).Int64("chat_id", chatID).Msg("Failed login attempt")
		return nil, err
	}

	if chatID != 0 && user.ChatID != chatID {
		if err := s.repo.UpdateUserChatID(ctx, user.ID, chatID); err != nil {
			return nil, err
		}
		user.ChatID = chatID
	}
	return user, nil
}

func (s *UserService) ChangeProfile(ctx context.Context, userID int64, field models.ProfileField, value string) error {
	rule, ok := profileRules[field]
	if !ok {
		return domain.NewValidationError("field", "unknown profile field")
	}

	value = strings.TrimSpace(value)
	if err := validateVar(field.Key(), value, rule.tag); err != nil {
		return err
	}
	if rule.hash {
		hashed, err := s.hasher.Hash(value)
		if err != nil {
			return err
		}
		value = hashed
	}

	if err := s.repo.UpdateUserField(ctx, userID, field, value); err != nil {
		return err
	}
	s.logger.Info().Int64("user_id", userID).Str("field", field.Key()).Msg("Profile updated")
	return nil
}

// ListClients returns one page of clients (pages start at 1) and the number of pages.
func (s *UserService) ListClients(ctx context.Context, page int) ([]*models.User, int, error) {
	if page < 1 {
		page = 1
	}
	total, err := s.repo.CountUsersByRole(ctx, models.RoleClient)
	if err != nil {
		return nil, 0, err
	}
	pages := (total + s.pageSize - 1) / s.pageSize
	if pages == 0 {
		return []*models.User{}, 0, nil
	}

	users, err := s.repo.ListUsersByRole(ctx, models.RoleClient, s.pageSize, (page-1)*s.pageSize)
	if err != nil {
		return nil, 0, err
	}
	return users, pages, nil
}

func (s *UserService) Info(ctx context.Context, name string) (*models.User, error) {
	return s.resolve(ctx, "user", name)
}

func (s *UserService) ResolveClient(ctx context.Context, name string) (*models.User, error) {
	return s.resolve(ctx, "client", name)
}

func (s *UserService) Delete(ctx context.Context, name string, actingAdminID int64) error {
	user, err := s.Info(ctx, name)
	if err != nil {
		return err
	}
	if user.ID == actingAdminID {
		return domain.NewValidationError("name", "cannot delete yourself")
	}
	if err := s.repo.DeleteUser(ctx, user.ID); err != nil {
		return err
	}
	s.logger.Info().Int64("user_id", user.ID).Int64("admin_id", actingAdminID).Msg("User deleted")
	return nil
}

func (s *UserService) GetByID(ctx context.Context, id int64) (*models.User, error) {
	return s.repo.GetUserByID(ctx, id)
}

func (s *UserService) resolve(ctx context.Context, kind, name string) (*models.User, error) {
	name = strings.TrimSpace(name)
	user, err := s.repo.GetUserByName(ctx, name)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, domain.UnknownEntity(kind, name)
	}
	return user, err
}
