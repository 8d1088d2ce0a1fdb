package events

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testEvent struct {
	ClientID string `json:"client_id"`
	Kind     string `json:"kind"`
}

func (e *testEvent) Key() string { return e.ClientID }

func TestNewPublisher_Disabled(t *testing.T) {
	tests := []struct {
		name string
		cfg  *Config
	}{
		{"nil config", nil},
		{"disabled config", &Config{Enabled: false, Brokers: []string{"localhost:9092"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pub, err := NewPublisher(tt.cfg)
			require.NoError(t, err)
			assert.False(t, pub.Enabled())

			// No-op publisher never errors and never panics
			err = pub.Publish(context.Background(), "member.enrolled", &testEvent{ClientID: "c1", Kind: "enrolled"})
			assert.NoError(t, err)
			pub.PublishAsync(context.Background(), "member.enrolled", &testEvent{ClientID: "c1", Kind: "enrolled"})
			pub.Close()
		})
	}
}

func TestNewPublisher_EnabledWithoutBrokers(t *testing.T) {
	_, err := NewPublisher(&Config{Enabled: true})
	assert.Error(t, err)
}
