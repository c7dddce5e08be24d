package users

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/serenitylibrary/serenity/pkg/auth"
	"github.com/serenitylibrary/serenity/pkg/errcodes"
	"github.com/serenitylibrary/serenity/pkg/models"
)

type handler struct {
	userService *Service
}

// create registers an account. Only admins may choose the role.
func (h *handler) create(c echo.Context) error {
	ctx := c.Request().Context()

	params := CreateUserPayload{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}

	role := models.RoleUser
	if caller, ok := auth.GetUserFromContext(c); ok && caller.IsAdmin() && params.Role != "" {
		role = params.Role
	} else if params.Role == models.RoleAdmin {
		return errcodes.Forbidden("Creating an admin account")
	}

	user, err := h.userService.Create(ctx, CreateUserOptions{
		Name:        params.Name,
		Email:       params.Email,
		Password:    params.Password,
		Address:     params.Address,
		PhoneNumber: params.PhoneNumber,
		Role:        role,
	})
	if err != nil {
		return err
	}

	return c.JSON(http.StatusCreated, user)
}

func (h *handler) retrieve(c echo.Context) error {
	ctx := c.Request().Context()

	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return errcodes.NotFound("User")
	}

	user, err := h.userService.Retrieve(ctx, RetrieveUserOptions{ID: &id})
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, user)
}

func (h *handler) retrieveByEmail(c echo.Context) error {
	email := c.Param("email")
	user, err := h.userService.Retrieve(c.Request().Context(), RetrieveUserOptions{Email: &email})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, user)
}

func (h *handler) retrieveByName(c echo.Context) error {
	name := c.Param("name")
	user, err := h.userService.Retrieve(c.Request().Context(), RetrieveUserOptions{Name: &name})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, user)
}

func (h *handler) list(c echo.Context) error {
	return h.listByRole(c, nil)
}

func (h *handler) listAdmins(c echo.Context) error {
	role := models.RoleAdmin
	return h.listByRole(c, &role)
}

func (h *handler) listReaders(c echo.Context) error {
	role := models.RoleUser
	return h.listByRole(c, &role)
}

func (h *handler) listByRole(c echo.Context, role *string) error {
	ctx := c.Request().Context()

	params := ListUsersQuery{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}

	users, total, err := h.userService.ListWithTotal(ctx, ListUsersOptions{
		Role:   role,
		Limit:  &params.Limit,
		Offset: &params.Offset,
	})
	if err != nil {
		return err
	}

	resp := struct {
		Users []*models.User `json:"users"`
		Total int            `json:"total"`
	}{users, total}

	return c.JSON(http.StatusOK, resp)
}

func (h *handler) count(c echo.Context) error {
	count, err := h.userService.Count(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]int{"count": count})
}

func (h *handler) update(c echo.Context) error {
	ctx := c.Request().Context()

	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return errcodes.NotFound("User")
	}

	params := UpdateUserPayload{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}

	user, err := h.userService.Retrieve(ctx, RetrieveUserOptions{ID: &id})
	if err != nil {
		return err
	}

	opts := UpdateUserOptions{Columns: []string{}}

	if params.Name != nil && *params.Name != user.Name {
		user.Name = *params.Name
		opts.Columns = append(opts.Columns, "name")
	}
	if params.Email != nil && *params.Email != user.Email {
		user.Email = *params.Email
		opts.Columns = append(opts.Columns, "email")
	}
	if params.Address != nil {
		user.Address = params.Address
		opts.Columns = append(opts.Columns, "address")
	}
	if params.PhoneNumber != nil {
		user.PhoneNumber = params.PhoneNumber
		opts.Columns = append(opts.Columns, "phone_number")
	}
	if params.Password != nil {
		opts.Password = *params.Password
	}
	if params.Role != nil && *params.Role != user.Role {
		caller, _ := auth.GetUserFromContext(c)
		if caller == nil || !caller.IsAdmin() {
			return errcodes.Forbidden("Changing the role")
		}
		user.Role = *params.Role
		opts.Columns = append(opts.Columns, "role")
	}

	if err := h.userService.Update(ctx, user, opts); err != nil {
		return err
	}

	return c.JSON(http.StatusOK, user)
}

func (h *handler) delete(c echo.Context) error {
	ctx := c.Request().Context()

	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return errcodes.NotFound("User")
	}

	if err := h.userService.Delete(ctx, id); err != nil {
		return err
	}

	return c.NoContent(http.StatusNoContent)
}
