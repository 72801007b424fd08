package models

import "time"

type User struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	Role         string    `json:"role"`
	PasswordHash string    `json:"password"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// UserProfileResponse: пользователь без хэша пароля.
type UserProfileResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (u *User) Profile() UserProfileResponse {
	return UserProfileResponse{
		ID:        u.ID,
		Name:      u.Name,
		Email:     u.Email,
		Role:      u.Role,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}

type SignupRequest struct {
	Name     string `json:"name"     example:"Ada"`
	Email    string `json:"email"    example:"ada@example.com"`
	Password string `json:"password" example:"secret123"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Session: то, что клиент сохраняет после входа.
type Session struct {
	User  UserProfileResponse `json:"user"`
	Token string              `json:"token"`
}

const RoleAdmin = "admin"

// Actor: кто выполняет операцию (из JWT).
type Actor struct {
	UserID string
	Role   string
}

// CanEdit: владелец поста или админ.
func (a Actor) CanEdit(p *Post) bool {
	return a.Role == RoleAdmin || p.OwnedBy(a.UserID)
}
