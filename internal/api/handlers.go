package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/miekg/dns"

	"github.com/yourusername/mailfeed/internal/models"
	"github.com/yourusername/mailfeed/internal/storage"
)

// MessageReader is the read-only store surface the handlers use.
type MessageReader interface {
	GetMessageByID(ctx context.Context, id int64) (models.Message, error)
	GetAttachmentContent(ctx context.Context, messageID, attachmentID int64) (models.Attachment, error)
	ListMessagesSince(ctx context.Context, since time.Time) ([]models.Message, error)
}

// ConsumerRegistry is the registration surface the handlers use.
type ConsumerRegistry interface {
	Register(c models.Consumer)
}

// ConsumerRegistration is the POST /consumers/register request body.
type ConsumerRegistration struct {
	ID          string             `json:"id" binding:"required"`
	Name        string             `json:"name"`
	WebhookURL  string             `json:"webhookUrl" binding:"required"`
	FilterRules models.FilterRules `json:"filterRules"`
}

func (s *Server) handleGetMessage(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(401, gin.H{"error": "Missing or invalid message id"})
		return
	}

	msg, err := s.store.GetMessageByID(c.Request.Context(), id)
	if errors.Is(err, storage.ErrNotFound) {
		c.JSON(404, gin.H{"error": "Message not found"})
		return
	}
	if err != nil {
		s.logger.Error("get message", "id", id, "error", err)
		c.JSON(500, gin.H{"error": "Database error"})
		return
	}

	c.JSON(200, msg)
}

func (s *Server) handleListMessages(c *gin.Context) {
	sinceParam := c.Query("since")
	sinceMillis, err := strconv.ParseInt(sinceParam, 10, 64)
	if sinceParam == "" || err != nil {
		c.JSON(401, gin.H{"error": "Missing since query parameter"})
		return
	}

	msgs, err := s.store.ListMessagesSince(c.Request.Context(), time.UnixMilli(sinceMillis))
	if err != nil {
		s.logger.Error("list messages", "since", sinceMillis, "error", err)
		c.JSON(500, gin.H{"error": "Database error"})
		return
	}
	if msgs == nil {
		msgs = []models.Message{}
	}

	c.JSON(200, msgs)
}

func (s *Server) handleGetAttachment(c *gin.Context) {
	messageID, err1 := strconv.ParseInt(c.Param("id"), 10, 64)
	attachmentID, err2 := strconv.ParseInt(c.Param("attachmentId"), 10, 64)
	if err1 != nil || err2 != nil {
		c.JSON(401, gin.H{"error": "Missing or invalid identifiers"})
		return
	}

	att, err := s.store.GetAttachmentContent(c.Request.Context(), messageID, attachmentID)
	if errors.Is(err, storage.ErrNotFound) {
		c.JSON(404, gin.H{"error": "Attachment not found"})
		return
	}
	if err != nil {
		s.logger.Error("get attachment", "message_id", messageID, "attachment_id", attachmentID, "error", err)
		c.JSON(500, gin.H{"error": "Database error"})
		return
	}

	mimeType := att.MimeType
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}
	if att.Filename != "" {
		c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", att.Filename))
	}
	c.Data(200, mimeType, att.Content)
}

func (s *Server) handleRegisterConsumer(c *gin.Context) {
	var in ConsumerRegistration
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(400, gin.H{"error": "Invalid request"})
		return
	}

	if err := s.validateWebhookURL(in.WebhookURL); err != nil {
		c.JSON(400, gin.H{"error": err.Error()})
		return
	}

	s.registry.Register(models.Consumer{
		ID:          in.ID,
		Name:        in.Name,
		WebhookURL:  in.WebhookURL,
		FilterRules: in.FilterRules,
	})

	s.logger.Info("consumer registered", "consumer", in.ID, "webhook", in.WebhookURL)
	c.JSON(201, gin.H{"success": true, "consumerId": in.ID})
}

// validateWebhookURL is the boundary check for callback URLs: http(s)
// scheme with a host that is either a literal IP, localhost, or a name
// that resolves in DNS.
func (s *Server) validateWebhookURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Hostname() == "" {
		return errors.New("webhookUrl must be a valid http(s) URL")
	}

	host := u.Hostname()
	if net.ParseIP(host) != nil || host == "localhost" {
		return nil
	}
	if !s.resolveHost(host) {
		return fmt.Errorf("webhook host %q does not resolve", host)
	}
	return nil
}

// resolveHost asks DNS for an A then an AAAA record.
func (s *Server) resolveHost(host string) bool {
	client := &dns.Client{Timeout: 3 * time.Second}
	for _, qtype := range []uint16{dns.TypeA, dns.TypeAAAA} {
		msg := new(dns.Msg)
		msg.SetQuestion(dns.Fqdn(host), qtype)
		resp, _, err := client.Exchange(msg, s.dnsAddr)
		if err != nil {
			continue
		}
		if len(resp.Answer) > 0 {
			return true
		}
	}
	return false
}
