package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

// GetNotifications GET /notifications
func GetNotifications(c *gin.Context) {
	userID := c.MustGet("userId").(string)

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	notifications, err := Notifications.ListForUser(c.Request.Context(), userID, limit)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"notifications": notifications})
}

// GetUnreadNotificationCount GET /notifications/unread-count
func GetUnreadNotificationCount(c *gin.Context) {
	userID := c.MustGet("userId").(string)

	count, err := Notifications.UnreadCount(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"count": count})
}

// MarkNotificationRead PUT /notifications/:id/read
func MarkNotificationRead(c *gin.Context) {
	userID := c.MustGet("userId").(string)
	notificationID := c.Param("id")

	if err := Notifications.MarkRead(c.Request.Context(), notificationID, userID); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Marked as read"})
}

// MarkAllNotificationsRead PUT /notifications/read-all
func MarkAllNotificationsRead(c *gin.Context) {
	userID := c.MustGet("userId").(string)

	if err := Notifications.MarkAllRead(c.Request.Context(), userID); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "All marked as read"})
}
