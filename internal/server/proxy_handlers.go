package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// onboardingStatus proxies the onboarding flag for the verified session
func (s *Server) onboardingStatus(c *gin.Context) {
	store := MustSessionStore(c)

	resp := store.Client().GetOnboardingStatus(c.Request.Context())
	if !resp.Success {
		c.JSON(http.StatusBadGateway, gin.H{"error": resp.Error})
		return
	}
	c.JSON(http.StatusOK, resp.Data)
}

// uploadResume forwards a multipart resume upload to the backend with
// the session's bearer token. The JSON content-type default does not
// apply here; the multipart boundary must survive as-is.
func (s *Server) uploadResume(c *gin.Context) {
	store := MustSessionStore(c)

	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file is required"})
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read file"})
		return
	}
	defer file.Close()

	jobDescription := c.PostForm("job_description")

	resp := store.Client().UploadResume(c.Request.Context(), fileHeader.Filename, file, jobDescription)
	if !resp.Success {
		c.JSON(http.StatusBadGateway, gin.H{"error": resp.Error})
		return
	}
	c.JSON(http.StatusOK, resp.Data)
}
