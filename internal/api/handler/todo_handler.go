package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/99minutos/todo-sync/internal/api/metrics"
	"github.com/99minutos/todo-sync/internal/core/domain"
	"github.com/99minutos/todo-sync/internal/core/ports"
)

const msgTodoNotFound = "Todo not found"

// TodoHandler handles the owner-scoped todo endpoints. Every route behind it
// requires an authenticated user.
type TodoHandler struct {
	svc ports.TodoService
}

func NewTodoHandler(svc ports.TodoService) *TodoHandler {
	return &TodoHandler{svc: svc}
}

// Create godoc
//
// @Summary      Create a todo
// @Tags         todos
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body  body      createTodoRequest  true  "Todo title"
// @Success      201   {object}  todoResponse
// @Failure      400   {object}  errorResponse
// @Failure      401   {object}  errorResponse
// @Router       /todos [post]
func (h *TodoHandler) Create(c echo.Context) error {
	user, err := requireUser(c)
	if err != nil {
		return err
	}

	var req createTodoRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid payload"})
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	todo, err := h.svc.Create(c.Request().Context(), user.ID, req.Title)
	if err != nil {
		return err
	}

	metrics.TodoMutationsTotal.WithLabelValues("create").Inc()
	return c.JSON(http.StatusCreated, toTodoResponse(todo))
}

// List godoc
//
// @Summary      List todos
// @Description  Returns the caller's todos, newest first.
// @Tags         todos
// @Produce      json
// @Security     BearerAuth
// @Success      200  {array}   todoResponse
// @Failure      401  {object}  errorResponse
// @Failure      500  {object}  errorResponse
// @Router       /todos [get]
func (h *TodoHandler) List(c echo.Context) error {
	user, err := requireUser(c)
	if err != nil {
		return err
	}

	todos, err := h.svc.List(c.Request().Context(), user.ID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toTodoListResponse(todos))
}

// Update godoc
//
// @Summary      Update a todo
// @Tags         todos
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id    path      string             true  "Todo ID"
// @Param        body  body      updateTodoRequest  true  "Fields to change"
// @Success      200   {object}  todoResponse
// @Failure      400   {object}  errorResponse
// @Failure      401   {object}  errorResponse
// @Failure      404   {object}  errorResponse
// @Router       /todos/{id} [put]
func (h *TodoHandler) Update(c echo.Context) error {
	user, err := requireUser(c)
	if err != nil {
		return err
	}

	var req updateTodoRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid payload"})
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	patch := ports.TodoPatch{Title: req.Title, Completed: req.Completed}
	todo, err := h.svc.Update(c.Request().Context(), c.Param("id"), user.ID, patch)
	if err != nil {
		return err
	}
	if todo == nil {
		return domain.NotFound(msgTodoNotFound)
	}

	metrics.TodoMutationsTotal.WithLabelValues("update").Inc()
	return c.JSON(http.StatusOK, toTodoResponse(todo))
}

// Delete godoc
//
// @Summary      Delete a todo
// @Tags         todos
// @Security     BearerAuth
// @Param        id   path  string  true  "Todo ID"
// @Success      204
// @Failure      401  {object}  errorResponse
// @Failure      404  {object}  errorResponse
// @Failure      500  {object}  errorResponse
// @Router       /todos/{id} [delete]
func (h *TodoHandler) Delete(c echo.Context) error {
	user, err := requireUser(c)
	if err != nil {
		return err
	}

	todo, err := h.svc.Delete(c.Request().Context(), c.Param("id"), user.ID)
	if err != nil {
		return err
	}
	if todo == nil {
		return domain.NotFound(msgTodoNotFound)
	}

	metrics.TodoMutationsTotal.WithLabelValues("delete").Inc()
	return c.NoContent(http.StatusNoContent)
}
