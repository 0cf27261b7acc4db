package common

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsStatus(t *testing.T) {
	err := fmt.Errorf("cannot get course: %w", &HTTPError{StatusCode: http.StatusNotFound, URL: "http://lms/courses/1"})

	assert.True(t, IsStatus(err, http.StatusForbidden, http.StatusNotFound))
	assert.False(t, IsStatus(err, http.StatusInternalServerError))
	assert.False(t, IsStatus(fmt.Errorf("plain"), http.StatusNotFound))
	assert.Contains(t, err.Error(), "status 404")
}
