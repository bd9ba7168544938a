package webhook

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateDestination_RejectsNonHTTPScheme(t *testing.T) {
	err := ValidateDestination("ftp://example.com")
	assert.Error(t, err)
}

func TestValidateDestination_RejectsLoopbackIP(t *testing.T) {
	err := ValidateDestination("http://127.0.0.1:8080/hook")
	assert.Error(t, err)
}

func TestValidateDestination_RejectsPrivateIP(t *testing.T) {
	err := ValidateDestination("http://10.0.0.5/hook")
	assert.Error(t, err)
}

func TestValidateDestination_RejectsLinkLocal(t *testing.T) {
	err := ValidateDestination("http://169.254.1.1/hook")
	assert.Error(t, err)
}

func TestValidateDestination_RejectsMalformedURL(t *testing.T) {
	err := ValidateDestination("::::not a url::::")
	assert.Error(t, err)
}

func TestValidateDestination_AcceptsPublicIPLiteral(t *testing.T) {
	err := ValidateDestination("http://93.184.216.34/hook")
	assert.NoError(t, err)
}
