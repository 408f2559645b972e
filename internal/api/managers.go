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

	"github.com/gin-gonic/gin"

	"github.com/codeautomation/mailwatch/internal/models"
)

type managerRequest struct {
	Email       string `json:"email" binding:"required,email"`
	Name        string `json:"name" binding:"required"`
	ProjectName string `json:"project_name"`
	// Password is the mailbox password; sealed before it reaches the
	// store. Required on create, optional on update.
	Password string `json:"password"`
}

func (h *Handler) createProjectManager(c *gin.Context) {
	var req managerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Password == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "password is required"})
		return
	}

	sealed, err := h.sealer.Seal(req.Password)
	if err != nil {
		slog.Error("failed to seal mailbox password", "pm", req.Email, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	pm := models.ProjectManager{
		Email:          req.Email,
		Name:           req.Name,
		ProjectName:    req.ProjectName,
		SealedPassword: sealed,
	}
	if err := h.backend.CreateProjectManager(c.Request.Context(), &pm); err != nil {
		storeError(c, "create project manager", err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "project manager created", "data": pm})
}

func (h *Handler) listProjectManagers(c *gin.Context) {
	pms, err := h.backend.ListProjectManagers(c.Request.Context())
	if err != nil {
		storeError(c, "list project managers", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": pms})
}

func (h *Handler) getProjectManager(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	pm, err := h.backend.GetProjectManager(c.Request.Context(), id)
	if err != nil {
		storeError(c, "get project manager", err)
		return
	}
	if pm == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "project manager not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": pm})
}

func (h *Handler) updateProjectManager(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req managerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	// An empty sealed password tells the store to keep the stored one.
	var sealed string
	if req.Password != "" {
		var err error
		sealed, err = h.sealer.Seal(req.Password)
		if err != nil {
			slog.Error("failed to seal mailbox password", "pm", req.Email, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}
	}

	updated, err := h.backend.UpdateProjectManager(c.Request.Context(), models.ProjectManager{
		ID:             id,
		Email:          req.Email,
		Name:           req.Name,
		ProjectName:    req.ProjectName,
		SealedPassword: sealed,
	})
	if err != nil {
		storeError(c, "update project manager", err)
		return
	}
	if !updated {
		c.JSON(http.StatusNotFound, gin.H{"error": "project manager not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "project manager updated"})
}

func (h *Handler) deleteProjectManager(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	deleted, err := h.backend.DeleteProjectManager(c.Request.Context(), id)
	if err != nil {
		storeError(c, "delete project manager", err)
		return
	}
	if !deleted {
		c.JSON(http.StatusNotFound, gin.H{"error": "project manager not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "project manager deleted"})
}
