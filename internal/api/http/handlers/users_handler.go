package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/helpdesk-service/internal/api/dto"
	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/service"
	apperrors "github.com/spec-kit/helpdesk-service/pkg/util/errorutil"
)

// UsersHandler exposes admin account management and registration review.
type UsersHandler struct {
	users *service.UserService
}

// NewUsersHandler constructs handler.
func NewUsersHandler(userService *service.UserService) *UsersHandler {
	return &UsersHandler{users: userService}
}

// List GET /users?search=&role=&active=.
func (h *UsersHandler) List(c *fiber.Ctx) error {
	admin, err := currentUser(c)
	if err != nil {
		return err
	}
	filters := service.UserListFilters{Search: optionalQuery(c, "search")}
	if raw := c.Query("role"); raw != "" {
		role, ok := domain.ParseRole(raw)
		if !ok {
			return apperrors.NewFieldValidationError(map[string]string{"role": "must be one of client, support, admin"})
		}
		filters.Role = &role
	}
	if raw := c.Query("active"); raw != "" {
		active := c.QueryBool("active")
		filters.Active = &active
	}
	users, err := h.users.ListUsers(c.UserContext(), admin, filters)
	if err != nil {
		return err
	}
	items := make([]dto.UserResponse, 0, len(users))
	for i := range users {
		items = append(items, userResponse(&users[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// Get GET /users/:id.
func (h *UsersHandler) Get(c *fiber.Ctx) error {
	admin, err := currentUser(c)
	if err != nil {
		return err
	}
	user, err := h.users.GetUser(c.UserContext(), admin, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": userResponse(user)})
}

// Create POST /users.
func (h *UsersHandler) Create(c *fiber.Ctx) error {
	admin, err := currentUser(c)
	if err != nil {
		return err
	}
	var req dto.CreateUserRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidPayload()
	}
	user, err := h.users.CreateUser(c.UserContext(), admin, service.UserInput{
		Email:      req.Email,
		Password:   req.Password,
		FirstName:  req.FirstName,
		LastName:   req.LastName,
		MiddleName: req.MiddleName,
		Phone:      req.Phone,
		Role:       domain.Role(req.Role),
		Department: req.Department,
		Position:   req.Position,
		IsActive:   req.IsActive,
	})
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": userResponse(user)})
}

// Update PUT /users/:id.
func (h *UsersHandler) Update(c *fiber.Ctx) error {
	admin, err := currentUser(c)
	if err != nil {
		return err
	}
	var req dto.UpdateUserRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidPayload()
	}
	patch := service.UserPatch{
		Email:      req.Email,
		Password:   req.Password,
		FirstName:  req.FirstName,
		LastName:   req.LastName,
		MiddleName: req.MiddleName,
		Phone:      req.Phone,
		Department: req.Department,
		Position:   req.Position,
		IsActive:   req.IsActive,
	}
	if req.Role != nil {
		role := domain.Role(*req.Role)
		patch.Role = &role
	}
	user, err := h.users.UpdateUser(c.UserContext(), admin, c.Params("id"), patch)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": userResponse(user)})
}

// Delete DELETE /users/:id.
func (h *UsersHandler) Delete(c *fiber.Ctx) error {
	admin, err := currentUser(c)
	if err != nil {
		return err
	}
	if err := h.users.DeleteUser(c.UserContext(), admin, c.Params("id")); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"id": c.Params("id"), "deleted": true}})
}

// ListPending GET /users/pending?status=.
func (h *UsersHandler) ListPending(c *fiber.Ctx) error {
	admin, err := currentUser(c)
	if err != nil {
		return err
	}
	var status *domain.RegistrationStatus
	switch raw := domain.RegistrationStatus(c.Query("status")); raw {
	case "":
	case domain.RegistrationPending, domain.RegistrationApproved, domain.RegistrationRejected:
		status = &raw
	default:
		return apperrors.NewFieldValidationError(map[string]string{"status": "must be one of pending, approved, rejected"})
	}
	list, err := h.users.ListPending(c.UserContext(), admin, status)
	if err != nil {
		return err
	}
	items := make([]dto.PendingUserResponse, 0, len(list))
	for i := range list {
		items = append(items, pendingUserResponse(&list[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// Approve POST /users/pending/:id/approve.
func (h *UsersHandler) Approve(c *fiber.Ctx) error {
	admin, err := currentUser(c)
	if err != nil {
		return err
	}
	user, err := h.users.Approve(c.UserContext(), admin, c.Params("id"))
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": userResponse(user)})
}

// Reject POST /users/pending/:id/reject.
func (h *UsersHandler) Reject(c *fiber.Ctx) error {
	admin, err := currentUser(c)
	if err != nil {
		return err
	}
	pending, err := h.users.Reject(c.UserContext(), admin, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": pendingUserResponse(pending)})
}

func userResponse(user *domain.User) dto.UserResponse {
	return dto.UserResponse{
		ID:          user.ID,
		Email:       user.Email,
		FirstName:   user.FirstName,
		LastName:    user.LastName,
		MiddleName:  user.MiddleName,
		Phone:       user.Phone,
		Role:        user.Role,
		Department:  user.Department,
		Position:    user.Position,
		IsActive:    user.IsActive,
		CreatedAt:   user.CreatedAt,
		UpdatedAt:   user.UpdatedAt,
		LastLoginAt: user.LastLoginAt,
	}
}

func pendingUserResponse(p *domain.PendingUser) dto.PendingUserResponse {
	return dto.PendingUserResponse{
		ID:         p.ID,
		Email:      p.Email,
		FirstName:  p.FirstName,
		LastName:   p.LastName,
		MiddleName: p.MiddleName,
		Phone:      p.Phone,
		Department: p.Department,
		Position:   p.Position,
		EmployeeID: p.EmployeeID,
		Status:     p.Status,
		CreatedAt:  p.CreatedAt,
		DecidedAt:  p.DecidedAt,
		DecidedBy:  p.DecidedBy,
	}
}
