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

// Package api exposes the REST CRUD surface over clients, project
// managers, recipients, client-recipient links, and mail records, plus
// the digest-notification trigger.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/codeautomation/mailwatch/internal/models"
	"github.com/codeautomation/mailwatch/internal/notify"
	"github.com/codeautomation/mailwatch/internal/store"
)

// Backend is the data store surface the handlers consume. Implemented by
// store.Store.
type Backend interface {
	CreateClient(ctx context.Context, c *models.Client) error
	GetClient(ctx context.Context, id int64) (*models.Client, error)
	ListClients(ctx context.Context) ([]models.Client, error)
	UpdateClient(ctx context.Context, c models.Client) (bool, error)
	DeleteClient(ctx context.Context, id int64) (bool, error)

	CreateProjectManager(ctx context.Context, pm *models.ProjectManager) error
	GetProjectManager(ctx context.Context, id int64) (*models.ProjectManager, error)
	ListProjectManagers(ctx context.Context) ([]models.ProjectManager, error)
	UpdateProjectManager(ctx context.Context, pm models.ProjectManager) (bool, error)
	DeleteProjectManager(ctx context.Context, id int64) (bool, error)

	CreateRecipient(ctx context.Context, r *models.Recipient) error
	GetRecipient(ctx context.Context, id int64) (*models.Recipient, error)
	ListRecipients(ctx context.Context) ([]models.Recipient, error)
	DeleteRecipient(ctx context.Context, id int64) (bool, error)
	LinkRecipient(ctx context.Context, clientID, recipientID int64) error
	UnlinkRecipient(ctx context.Context, clientID, recipientID int64) (bool, error)
	ListClientRecipients(ctx context.Context) ([]models.ClientRecipient, error)
	RecipientsForClient(ctx context.Context, clientID int64) ([]models.Recipient, error)

	CreateMail(ctx context.Context, m *models.Mail) error
	GetMail(ctx context.Context, id int64) (*models.Mail, error)
	ListMailsDetailed(ctx context.Context, f store.MailFilter) ([]store.MailDetail, error)
	UpdateMailStatus(ctx context.Context, m models.Mail) (bool, error)
	DeleteMail(ctx context.Context, id int64) (bool, error)
}

// Digester triggers batched notifications. Implemented by
// notify.DigestService.
type Digester interface {
	CheckMailStatus(ctx context.Context, clientEmail, pmEmail string) (notify.DigestReport, error)
}

// CredentialSealer seals mailbox passwords before storage. Implemented
// by secrets.Keeper.
type CredentialSealer interface {
	Seal(plaintext string) (string, error)
}

// Handler carries the API dependencies.
type Handler struct {
	backend Backend
	digests Digester
	sealer  CredentialSealer
	healthy func(ctx context.Context) error
}

// NewHandler creates the API handler. healthy reports dependency status
// for the health endpoint and may be nil.
func NewHandler(backend Backend, digests Digester, sealer CredentialSealer, healthy func(ctx context.Context) error) *Handler {
	return &Handler{
		backend: backend,
		digests: digests,
		sealer:  sealer,
		healthy: healthy,
	}
}

// Router builds the gin engine with every endpoint registered.
func (h *Handler) Router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/health", h.health)

	clients := r.Group("/clients")
	{
		clients.POST("", h.createClient)
		clients.GET("", h.listClients)
		clients.GET("/:id", h.getClient)
		clients.PUT("/:id", h.updateClient)
		clients.DELETE("/:id", h.deleteClient)
		clients.GET("/:id/recipients", h.listRecipientsForClient)
	}

	pms := r.Group("/project-managers")
	{
		pms.POST("", h.createProjectManager)
		pms.GET("", h.listProjectManagers)
		pms.GET("/:id", h.getProjectManager)
		pms.PUT("/:id", h.updateProjectManager)
		pms.DELETE("/:id", h.deleteProjectManager)
	}

	recipients := r.Group("/recipients")
	{
		recipients.POST("", h.createRecipient)
		recipients.GET("", h.listRecipients)
		recipients.GET("/:id", h.getRecipient)
		recipients.DELETE("/:id", h.deleteRecipient)
	}

	links := r.Group("/client-recipients")
	{
		links.POST("", h.linkRecipient)
		links.GET("", h.listClientRecipients)
		links.DELETE("/:client_id/:recipient_id", h.unlinkRecipient)
	}

	emails := r.Group("/emails")
	{
		emails.POST("", h.createMail)
		emails.GET("", h.listMails)
		emails.GET("/by-client", h.listMailsByClient)
		emails.GET("/by-pm", h.listMailsByPM)
		emails.GET("/:id", h.getMail)
		emails.PUT("/:id", h.updateMail)
		emails.DELETE("/:id", h.deleteMail)
	}

	r.POST("/notifications/digest", h.triggerDigest)

	return r
}

func (h *Handler) health(c *gin.Context) {
	if h.healthy != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()
		if err := h.healthy(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy", "error": err.Error()})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}
