package redis

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"checkin/internal/platform/config"
)

func TestNewRejectsBadURL(t *testing.T) {
	_, err := New(context.Background(), config.RedisConfig{URL: "mysql://nope"})
	assert.ErrorContains(t, err, "parse redis URL")
}
