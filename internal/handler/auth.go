package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/xenking/shopsim/internal/domain/user"
)

func (h *Handler) register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	sess, err := h.users.Register(c.Request.Context(), user.RegisterRequest{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     req.Email,
		Password:  req.Password,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	respond(c, http.StatusCreated, newSessionDTO(sess), "registration successful")
}

func (h *Handler) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	sess, err := h.users.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		writeError(c, err)
		return
	}
	respond(c, http.StatusOK, newSessionDTO(sess), "login successful")
}

func (h *Handler) me(c *gin.Context) {
	u, err := h.users.Get(c.Request.Context(), claimsFrom(c).UserID)
	if err != nil {
		writeError(c, err)
		return
	}
	respond(c, http.StatusOK, newUserDTO(u), "")
}
