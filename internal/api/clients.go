// Copyright (c) 2026 John Earle
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package api

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/codeautomation/mailwatch/internal/models"
)

// pathID parses the named path parameter as an int64, writing a 400 and
// returning false on garbage.
func pathID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name})
		return 0, false
	}
	return id, true
}

func storeError(c *gin.Context, op string, err error) {
	slog.Error("store operation failed", "op", op, "error", err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
}

type clientRequest struct {
	Email       string `json:"email" binding:"required,email"`
	Name        string `json:"name" binding:"required"`
	Company     string `json:"company"`
	Designation string `json:"designation"`
}

func (h *Handler) createClient(c *gin.Context) {
	var req clientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	// Stored lowercase so the sender resolver's lookup always matches.
	client := models.Client{
		Email:       strings.ToLower(req.Email),
		Name:        req.Name,
		Company:     req.Company,
		Designation: req.Designation,
	}
	if err := h.backend.CreateClient(c.Request.Context(), &client); err != nil {
		storeError(c, "create client", err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "client created", "data": client})
}

func (h *Handler) listClients(c *gin.Context) {
	clients, err := h.backend.ListClients(c.Request.Context())
	if err != nil {
		storeError(c, "list clients", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": clients})
}

func (h *Handler) getClient(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	client, err := h.backend.GetClient(c.Request.Context(), id)
	if err != nil {
		storeError(c, "get client", err)
		return
	}
	if client == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "client not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": client})
}

func (h *Handler) updateClient(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req clientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	updated, err := h.backend.UpdateClient(c.Request.Context(), models.Client{
		ID:          id,
		Email:       strings.ToLower(req.Email),
		Name:        req.Name,
		Company:     req.Company,
		Designation: req.Designation,
	})
	if err != nil {
		storeError(c, "update client", err)
		return
	}
	if !updated {
		c.JSON(http.StatusNotFound, gin.H{"error": "client not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "client updated"})
}

func (h *Handler) deleteClient(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	deleted, err := h.backend.DeleteClient(c.Request.Context(), id)
	if err != nil {
		storeError(c, "delete client", err)
		return
	}
	if !deleted {
		c.JSON(http.StatusNotFound, gin.H{"error": "client not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "client deleted"})
}

func (h *Handler) listRecipientsForClient(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	recipients, err := h.backend.RecipientsForClient(c.Request.Context(), id)
	if err != nil {
		storeError(c, "list client recipients", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": recipients})
}
