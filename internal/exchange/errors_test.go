package exchange

import (
	"errors"
	"fmt"
	"lighter-grid-bot-go/internal/models"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		status int
		code   int
		msg    string
		want   models.ErrorKind
	}{
		{http.StatusBadRequest, 21104, "invalid nonce", models.KindSequenceConflict},
		{http.StatusOK, 21104, "Nonce too low", models.KindSequenceConflict},
		{http.StatusUnauthorized, 0, "", models.KindAuth},
		{http.StatusBadRequest, 20013, "invalid signature", models.KindAuth},
		{http.StatusBadGateway, 0, "upstream", models.KindTransport},
		{http.StatusBadRequest, 21700, "invalid order base amount", models.KindRejected},
		{http.StatusOK, 0, "", models.KindUnknown},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, classify(c.status, c.code, c.msg), "%d/%d/%s", c.status, c.code, c.msg)
	}
}

func TestIsSequenceConflict(t *testing.T) {
	conflict := newError(models.KindSequenceConflict, 21104, "invalid nonce")
	assert.True(t, IsSequenceConflict(conflict))
	assert.True(t, IsSequenceConflict(fmt.Errorf("place order: %w", conflict)))

	assert.False(t, IsSequenceConflict(newError(models.KindRejected, 1, "nonce-looking text is not enough")))
	assert.False(t, IsSequenceConflict(errors.New("invalid nonce")))
	assert.False(t, IsSequenceConflict(nil))

	assert.Equal(t, models.KindEmptyBook, KindOf(newError(models.KindEmptyBook, 0, "")))
	assert.Equal(t, models.KindUnknown, KindOf(errors.New("x")))
}
