package handler

import (
	"log"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"varejo-system/internal/database/models"
)

// ClientsHandler owns the client CRUD surface. The aggregate columns on a
// client (purchases, spent, debt, units) are written by the sale engine, not
// here; the one exception is TotalUnits, which the reward-redemption flow may
// reset through UpdateClient.
type ClientsHandler struct {
	db *gorm.DB
}

func NewClientsHandler(db *gorm.DB) *ClientsHandler {
	return &ClientsHandler{db: db}
}

type CreateClientRequest struct {
	Name  string `json:"name" binding:"required"`
	Phone string `json:"phone"`
}

type UpdateClientRequest struct {
	Name       string `json:"name" binding:"required"`
	Phone      string `json:"phone"`
	TotalUnits *int32 `json:"total_units,omitempty"`
}

func (s *ClientsHandler) ListClients(c *gin.Context) {
	clients := make([]models.Client, 0)
	if err := s.db.Order("name ASC").Find(&clients).Error; err != nil {
		log.Printf("Error fetching clients: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Error fetching clients"})
		return
	}

	c.JSON(http.StatusOK, clients)
}

func (s *ClientsHandler) CreateClient(c *gin.Context) {
	var req CreateClientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Name is required"})
		return
	}

	client := models.Client{
		Name:       req.Name,
		Phone:      req.Phone,
		TotalDebt:  "0.00",
		TotalSpent: "0.00",
	}

	if err := s.db.Create(&client).Error; err != nil {
		log.Printf("Error creating client: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Error creating client"})
		return
	}

	c.JSON(http.StatusCreated, client)
}

func (s *ClientsHandler) UpdateClient(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid client id"})
		return
	}

	var req UpdateClientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Name is required"})
		return
	}

	var client models.Client
	if err := s.db.First(&client, id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			c.JSON(http.StatusNotFound, gin.H{"error": "Client not found"})
			return
		}
		log.Printf("Error fetching client %d: %v", id, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Error updating client"})
		return
	}

	client.Name = req.Name
	client.Phone = req.Phone
	if req.TotalUnits != nil {
		client.TotalUnits = *req.TotalUnits
	}

	if err := s.db.Save(&client).Error; err != nil {
		log.Printf("Error updating client %d: %v", id, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Error updating client"})
		return
	}

	c.JSON(http.StatusOK, client)
}

func (s *ClientsHandler) DeleteClient(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid client id"})
		return
	}

	res := s.db.Delete(&models.Client{}, id)
	if res.Error != nil {
		log.Printf("Error deleting client %d: %v", id, res.Error)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Error deleting client"})
		return
	}
	if res.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "Client not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}
