package core

import "github.com/gin-gonic/gin"

// respondError sends unified error payload {"error": {"code", "message"}}.
func respondError(c *gin.Context, status int, code, message string) {
	c.JSON(status, gin.H{"error": gin.H{"code": code, "message": message}})
}

// Job error codes, reproduced byte-for-byte from spec.md §6's HTTP surface.
const (
	jobCodeInvalidArgument = 1
	jobCodeInvalidState    = 2
	jobCodeNotFound        = 3
)

// respondJobError sends spec.md §6's `/jobs` envelope: {code, reason, message}.
// It is distinct from respondError's {error:{code,message}} shape, which the
// teacher's pre-existing /submissions routes keep for backward compatibility.
func respondJobError(c *gin.Context, status, code int, reason, message string) {
	c.JSON(status, gin.H{"code": code, "reason": reason, "message": message})
}
