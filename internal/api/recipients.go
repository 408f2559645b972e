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
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/codeautomation/mailwatch/internal/models"
)

type recipientRequest struct {
	Email string `json:"email" binding:"required,email"`
}

func (h *Handler) createRecipient(c *gin.Context) {
	var req recipientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	r := models.Recipient{Email: req.Email}
	if err := h.backend.CreateRecipient(c.Request.Context(), &r); err != nil {
		storeError(c, "create recipient", err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "recipient created", "data": r})
}

func (h *Handler) listRecipients(c *gin.Context) {
	recipients, err := h.backend.ListRecipients(c.Request.Context())
	if err != nil {
		storeError(c, "list recipients", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": recipients})
}

func (h *Handler) getRecipient(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	r, err := h.backend.GetRecipient(c.Request.Context(), id)
	if err != nil {
		storeError(c, "get recipient", err)
		return
	}
	if r == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "recipient not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": r})
}

func (h *Handler) deleteRecipient(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	deleted, err := h.backend.DeleteRecipient(c.Request.Context(), id)
	if err != nil {
		storeError(c, "delete recipient", err)
		return
	}
	if !deleted {
		c.JSON(http.StatusNotFound, gin.H{"error": "recipient not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "recipient deleted"})
}

type linkRequest struct {
	ClientID    int64 `json:"client_id" binding:"required"`
	RecipientID int64 `json:"recipient_id" binding:"required"`
}

func (h *Handler) linkRecipient(c *gin.Context) {
	var req linkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	// The link rows carry foreign keys, so a bad ID surfaces as a store
	// error; check existence first for a clean 400.
	client, err := h.backend.GetClient(c.Request.Context(), req.ClientID)
	if err != nil {
		storeError(c, "get client", err)
		return
	}
	if client == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "client not found"})
		return
	}
	recipient, err := h.backend.GetRecipient(c.Request.Context(), req.RecipientID)
	if err != nil {
		storeError(c, "get recipient", err)
		return
	}
	if recipient == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "recipient not found"})
		return
	}

	if err := h.backend.LinkRecipient(c.Request.Context(), req.ClientID, req.RecipientID); err != nil {
		storeError(c, "link recipient", err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "recipient linked"})
}

func (h *Handler) listClientRecipients(c *gin.Context) {
	links, err := h.backend.ListClientRecipients(c.Request.Context())
	if err != nil {
		storeError(c, "list client recipients", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": links})
}

func (h *Handler) unlinkRecipient(c *gin.Context) {
	clientID, ok := pathID(c, "client_id")
	if !ok {
		return
	}
	recipientID, ok := pathID(c, "recipient_id")
	if !ok {
		return
	}
	deleted, err := h.backend.UnlinkRecipient(c.Request.Context(), clientID, recipientID)
	if err != nil {
		storeError(c, "unlink recipient", err)
		return
	}
	if !deleted {
		c.JSON(http.StatusNotFound, gin.H{"error": "link not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "recipient unlinked"})
}
