package server

import (
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
)

// listLibrary enumerates the output directory via the sidecar-backed
// library cache.
func (s *Server) listLibrary(c *gin.Context) {
	c.JSON(http.StatusOK, LibraryResponse{Items: s.library.list()})
}

// downloadLibraryFile streams a single output file, enforcing the
// path-containment check required by §4.11: resolve both the requested
// path and the configured output directory to absolute paths, and require
// the file to lie within the output directory.
func (s *Server) downloadLibraryFile(c *gin.Context) {
	requested := c.Query("path")
	if requested == "" {
		writeError(c, http.StatusBadRequest, "path query parameter is required", "")
		return
	}

	outputDir, err := filepath.Abs(s.cfg.Storage.OutputDir)
	if err != nil {
		writeError(c, http.StatusInternalServerError, "could not resolve output directory", "")
		return
	}

	target, err := filepath.Abs(requested)
	if err != nil {
		writeError(c, http.StatusBadRequest, "invalid path", "")
		return
	}

	rel, err := filepath.Rel(outputDir, target)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		writeError(c, http.StatusForbidden, "path is outside the output directory", "")
		return
	}

	c.FileAttachment(target, filepath.Base(target))
}
