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
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/codeautomation/mailwatch/internal/models"
	"github.com/codeautomation/mailwatch/internal/notify"
	"github.com/codeautomation/mailwatch/internal/store"
)

type mailRequest struct {
	ClientID  int64  `json:"client_id" binding:"required"`
	PMID      int64  `json:"pm_id" binding:"required"`
	Subject   string `json:"subject" binding:"required"`
	Body      string `json:"body"`
	IsRead    bool   `json:"is_read"`
	IsReplied bool   `json:"is_replied"`
}

func (h *Handler) createMail(c *gin.Context) {
	var req mailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	client, err := h.backend.GetClient(c.Request.Context(), req.ClientID)
	if err != nil {
		storeError(c, "get client", err)
		return
	}
	if client == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "client not found"})
		return
	}
	pm, err := h.backend.GetProjectManager(c.Request.Context(), req.PMID)
	if err != nil {
		storeError(c, "get project manager", err)
		return
	}
	if pm == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "project manager not found"})
		return
	}

	mail := models.Mail{
		ClientID: req.ClientID,
		PMID:     req.PMID,
		// Manually created records have no wire Message-ID.
		MessageID: fmt.Sprintf("<api-%s@mailwatch>", uuid.New()),
		Subject:   req.Subject,
		Body:      req.Body,
		IsRead:    req.IsRead || req.IsReplied,
		IsReplied: req.IsReplied,
	}
	if err := h.backend.CreateMail(c.Request.Context(), &mail); err != nil {
		storeError(c, "create mail", err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "email created", "data": mail})
}

func (h *Handler) getMail(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	mail, err := h.backend.GetMail(c.Request.Context(), id)
	if err != nil {
		storeError(c, "get mail", err)
		return
	}
	if mail == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "email not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": mail})
}

func (h *Handler) listMails(c *gin.Context) {
	h.listMailsFiltered(c, mailFilterFromQuery(c), false)
}

// listMailsByClient narrows by client attributes and requires at least
// one of them.
func (h *Handler) listMailsByClient(c *gin.Context) {
	f := store.MailFilter{
		ClientName:    c.Query("name"),
		ClientEmail:   c.Query("email"),
		ClientCompany: c.Query("company"),
	}
	h.listMailsFiltered(c, f, true)
}

// listMailsByPM narrows by project manager attributes and requires at
// least one of them.
func (h *Handler) listMailsByPM(c *gin.Context) {
	f := store.MailFilter{
		PMName:      c.Query("name"),
		PMEmail:     c.Query("email"),
		ProjectName: c.Query("project_name"),
	}
	h.listMailsFiltered(c, f, true)
}

func (h *Handler) listMailsFiltered(c *gin.Context, f store.MailFilter, requireFilter bool) {
	if requireFilter && f == (store.MailFilter{}) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "at least one filter parameter is required"})
		return
	}
	details, err := h.backend.ListMailsDetailed(c.Request.Context(), f)
	if err != nil {
		storeError(c, "list mails", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": details})
}

func mailFilterFromQuery(c *gin.Context) store.MailFilter {
	return store.MailFilter{
		ClientName:    c.Query("client_name"),
		ClientEmail:   c.Query("client_email"),
		ClientCompany: c.Query("client_company"),
		PMName:        c.Query("pm_name"),
		PMEmail:       c.Query("pm_email"),
		ProjectName:   c.Query("project_name"),
	}
}

type mailUpdateRequest struct {
	// ClientID and PMID are optional; zero keeps the stored party.
	ClientID  int64  `json:"client_id"`
	PMID      int64  `json:"pm_id"`
	Subject   string `json:"subject" binding:"required"`
	Body      string `json:"body"`
	IsRead    bool   `json:"is_read"`
	IsReplied bool   `json:"is_replied"`
}

func (h *Handler) updateMail(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req mailUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if req.ClientID != 0 {
		client, err := h.backend.GetClient(c.Request.Context(), req.ClientID)
		if err != nil {
			storeError(c, "get client", err)
			return
		}
		if client == nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "client not found"})
			return
		}
	}
	if req.PMID != 0 {
		pm, err := h.backend.GetProjectManager(c.Request.Context(), req.PMID)
		if err != nil {
			storeError(c, "get project manager", err)
			return
		}
		if pm == nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "project manager not found"})
			return
		}
	}

	updated, err := h.backend.UpdateMailStatus(c.Request.Context(), models.Mail{
		ID:        id,
		ClientID:  req.ClientID,
		PMID:      req.PMID,
		Subject:   req.Subject,
		Body:      req.Body,
		IsRead:    req.IsRead,
		IsReplied: req.IsReplied,
	})
	if err != nil {
		storeError(c, "update mail", err)
		return
	}
	if !updated {
		c.JSON(http.StatusNotFound, gin.H{"error": "email not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "email updated"})
}

func (h *Handler) deleteMail(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	deleted, err := h.backend.DeleteMail(c.Request.Context(), id)
	if err != nil {
		storeError(c, "delete mail", err)
		return
	}
	if !deleted {
		c.JSON(http.StatusNotFound, gin.H{"error": "email not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "email deleted"})
}

type digestRequest struct {
	ClientEmail string `json:"client_email" binding:"required,email"`
	PMEmail     string `json:"pm_email" binding:"required,email"`
}

// triggerDigest runs one digest check for a client/PM pair and reports
// what was sent.
func (h *Handler) triggerDigest(c *gin.Context) {
	var req digestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	report, err := h.digests.CheckMailStatus(c.Request.Context(), req.ClientEmail, req.PMEmail)
	if err != nil {
		if errors.Is(err, notify.ErrPartyNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		storeError(c, "digest check", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "digest check complete", "data": report})
}
