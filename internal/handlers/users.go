package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// GetUserSummary GET /users/:id/summary
func GetUserSummary(c *gin.Context) {
	summary, err := Users.LookupSummary(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"user": summary})
}

// GetOnlineUsers GET /users/online
func GetOnlineUsers(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"users": Presence.OnlineUsers()})
}
