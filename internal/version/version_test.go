package version

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUserAgentCarriesVersion(t *testing.T) {
	prev := Version
	t.Cleanup(func() { Version = prev })

	Version = "1.2.3"
	assert.Equal(t, "debtdash/1.2.3", UserAgent())
	assert.Contains(t, String(), "version: 1.2.3\n")
}
